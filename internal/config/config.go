// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// General
	Timezone     string
	PollInterval int // milliseconds

	// Offline map
	MapFolder     string
	MapZoom       int
	TileSize      int
	ViewSize      int
	TileLayout    string // "auto", "xyz" or "tms"
	TileCacheSize int

	// GPS
	GPSSerialPort      string
	GPSBaudRate        int
	GPSSimulate        bool
	GPSVerifyChecksum  bool
	GPSStaleAfter      int // seconds
	GPSMaxLinesPerTick int

	// Sensors
	I2CBus           string
	MPU6050Addr      uint16
	BMEInsideAddr    uint16
	BMEOutsideAddr   uint16
	LightPin1        string
	LightPin2        string
	ButtonNextPin    string
	ButtonExtraPin   string
	ButtonDebounce   int // milliseconds
	RPMChip          string
	RPMOffset        int
	RPMPulsesPerRev  int
	RPMInterval      int // milliseconds
	ThermalSensorKey string

	// Files
	SettingsFile    string
	CalibrationFile string
	ViewsFile       string
	RepoPath        string
	VersionFile     string
	UpdateMethod    string // "exec" or "go-git"

	// MQTT; an empty broker disables telemetry
	MQTTBroker            string
	MQTTClientIDDashboard string
	MQTTClientIDGPS       string
	MQTTClientIDConsole   string
	TopicState            string
	TopicGPS              string

	// Web Server
	WebServerPort int
	WebRoot       string

	// Display
	DisplayEnabled        bool
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds

	// Logging; an empty file logs to stderr only
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Default returns the configuration used for every key the file leaves out.
func Default() *Config {
	return &Config{
		Timezone:     "Europe/Amsterdam",
		PollInterval: 500,

		MapFolder:     "maps/tiles",
		MapZoom:       14,
		TileSize:      256,
		ViewSize:      800,
		TileLayout:    "auto",
		TileCacheSize: 64,

		GPSSerialPort:      "/dev/serial0",
		GPSBaudRate:        9600,
		GPSStaleAfter:      10,
		GPSMaxLinesPerTick: 50,

		I2CBus:           "1",
		MPU6050Addr:      0x68,
		BMEInsideAddr:    0x76,
		BMEOutsideAddr:   0x77,
		LightPin1:        "GPIO22",
		LightPin2:        "GPIO10",
		ButtonNextPin:    "GPIO18",
		ButtonExtraPin:   "GPIO23",
		ButtonDebounce:   300,
		RPMChip:          "gpiochip0",
		RPMOffset:        17,
		RPMPulsesPerRev:  2,
		RPMInterval:      500,
		ThermalSensorKey: "cpu_thermal",

		SettingsFile:    "settings.txt",
		CalibrationFile: "calibration.txt",
		ViewsFile:       "views.yaml",
		RepoPath:        ".",
		VersionFile:     "VERSION",
		UpdateMethod:    "exec",

		MQTTClientIDDashboard: "dashboard",
		MQTTClientIDGPS:       "dashboard-gps",
		MQTTClientIDConsole:   "dashboard-console",
		TopicState:            "dashboard/state",
		TopicGPS:              "dashboard/gps",

		WebServerPort: 8080,
		WebRoot:       "./web",

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 500,

		LogMaxSizeMB:  10,
		LogMaxBackups: 3,
		LogMaxAgeDays: 28,
	}
}

// Poll returns PollInterval as a duration.
func (c *Config) Poll() time.Duration { return time.Duration(c.PollInterval) * time.Millisecond }

// StaleAfter returns GPSStaleAfter as a duration.
func (c *Config) StaleAfter() time.Duration { return time.Duration(c.GPSStaleAfter) * time.Second }

// Package-level singleton: globalConfig is only set by InitGlobal and only
// read through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file on top of Default. An empty path returns
// the defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit I2C address, got %#x", key, addr)
	}
	return uint16(addr), nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// General
	case "TIMEZONE":
		if _, err := time.LoadLocation(value); err != nil {
			return fmt.Errorf("invalid TIMEZONE %q: %w", value, err)
		}
		c.Timezone = value
	case "POLL_INTERVAL":
		c.PollInterval, err = parseInt(key, value, 100, 5000)

	// Offline map
	case "MAP_FOLDER":
		c.MapFolder = value
	case "MAP_ZOOM":
		c.MapZoom, err = parseInt(key, value, 0, 22)
	case "TILE_SIZE":
		c.TileSize, err = parseInt(key, value, 16, 1024)
	case "VIEW_SIZE":
		c.ViewSize, err = parseInt(key, value, 16, 4096)
	case "TILE_LAYOUT":
		switch strings.ToLower(value) {
		case "auto", "xyz", "tms":
			c.TileLayout = strings.ToLower(value)
		default:
			return fmt.Errorf("TILE_LAYOUT must be auto, xyz or tms, got %q", value)
		}
	case "TILE_CACHE_SIZE":
		c.TileCacheSize, err = parseInt(key, value, 0, 4096)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = parseInt(key, value, 1200, 921600)
	case "GPS_SIMULATE":
		c.GPSSimulate, err = parseBool(key, value)
	case "GPS_VERIFY_CHECKSUM":
		c.GPSVerifyChecksum, err = parseBool(key, value)
	case "GPS_STALE_AFTER":
		c.GPSStaleAfter, err = parseInt(key, value, 1, 3600)
	case "GPS_MAX_LINES_PER_TICK":
		c.GPSMaxLinesPerTick, err = parseInt(key, value, 1, 1000)

	// Sensors
	case "I2C_BUS":
		c.I2CBus = value
	case "MPU6050_ADDR":
		c.MPU6050Addr, err = parseAddr(key, value)
	case "BME_INSIDE_ADDR":
		c.BMEInsideAddr, err = parseAddr(key, value)
	case "BME_OUTSIDE_ADDR":
		c.BMEOutsideAddr, err = parseAddr(key, value)
	case "LIGHT_PIN_1":
		c.LightPin1 = value
	case "LIGHT_PIN_2":
		c.LightPin2 = value
	case "BUTTON_NEXT_PIN":
		c.ButtonNextPin = value
	case "BUTTON_EXTRA_PIN":
		c.ButtonExtraPin = value
	case "BUTTON_DEBOUNCE":
		c.ButtonDebounce, err = parseInt(key, value, 0, 5000)
	case "RPM_CHIP":
		c.RPMChip = value
	case "RPM_OFFSET":
		c.RPMOffset, err = parseInt(key, value, 0, 511)
	case "RPM_PULSES_PER_REV":
		c.RPMPulsesPerRev, err = parseInt(key, value, 1, 64)
	case "RPM_INTERVAL":
		c.RPMInterval, err = parseInt(key, value, 50, 10000)
	case "THERMAL_SENSOR_KEY":
		c.ThermalSensorKey = value

	// Files
	case "SETTINGS_FILE":
		c.SettingsFile = value
	case "CALIBRATION_FILE":
		c.CalibrationFile = value
	case "VIEWS_FILE":
		c.ViewsFile = value
	case "REPO_PATH":
		c.RepoPath = value
	case "VERSION_FILE":
		c.VersionFile = value
	case "UPDATE_METHOD":
		if value != "exec" && value != "go-git" {
			return fmt.Errorf("UPDATE_METHOD must be exec or go-git, got %q", value)
		}
		c.UpdateMethod = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_DASHBOARD":
		c.MQTTClientIDDashboard = value
	case "MQTT_CLIENT_ID_GPS":
		c.MQTTClientIDGPS = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_STATE":
		c.TopicState = value
	case "TOPIC_GPS":
		c.TopicGPS = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)
	case "WEB_ROOT":
		c.WebRoot = value

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = parseBool(key, value)
	case "DISPLAY_I2C_ADDR":
		c.DisplayI2CAddr, err = parseAddr(key, value)
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseInt(key, value, 50, 10000)

	// Logging
	case "LOG_FILE":
		c.LogFile = value
	case "LOG_MAX_SIZE_MB":
		c.LogMaxSizeMB, err = parseInt(key, value, 1, 1024)
	case "LOG_MAX_BACKUPS":
		c.LogMaxBackups, err = parseInt(key, value, 0, 100)
	case "LOG_MAX_AGE_DAYS":
		c.LogMaxAgeDays, err = parseInt(key, value, 0, 3650)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks combinations that single keys cannot.
func (c *Config) validate() error {
	if c.MapFolder == "" {
		return fmt.Errorf("MAP_FOLDER must not be empty")
	}
	if !c.GPSSimulate && c.GPSSerialPort == "" {
		return fmt.Errorf("GPS_SERIAL_PORT is required unless GPS_SIMULATE=true")
	}
	if c.MQTTBroker != "" && (c.TopicState == "" || c.TopicGPS == "") {
		return fmt.Errorf("TOPIC_STATE and TOPIC_GPS are required when MQTT_BROKER is set")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
