// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/JojoErer/dashboard-peugeot-106/internal/config"
)

// SetupLogging sends the standard logger to stderr and, when LOG_FILE is
// set, to a rotated file as well. The returned closer releases the file.
func SetupLogging(cfg *config.Config, stderr bool) io.Closer {
	if cfg.LogFile == "" {
		return io.NopCloser(nil)
	}
	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}
	if stderr {
		log.SetOutput(io.MultiWriter(os.Stderr, file))
	} else {
		log.SetOutput(file)
	}
	return file
}
