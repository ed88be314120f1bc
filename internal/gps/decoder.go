// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"math"
	"strconv"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// KnotsToKMH converts knots to km/h.
const KnotsToKMH = 1.852

// Decoder turns single NMEA lines into partial fixes. GGA and RMC are decoded
// by hand so that partially filled sentences still yield their valid fields;
// VTG goes through go-nmea.
//
// Decode never returns an error: anything it cannot use becomes an empty Update.
type Decoder struct {
	// Location is the zone RMC times are shown in. Nil means UTC.
	Location *time.Location
	// Strict drops sentences without a matching "*hh" checksum.
	Strict bool
	// Now supplies the date for RMC sentences with an empty date field.
	Now func() time.Time
}

// Decode parses one sentence.
func (d *Decoder) Decode(line string) Update {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Update{}
	}

	body, sum, hasSum := strings.Cut(line[1:], "*")
	if d.Strict && (!hasSum || !strings.EqualFold(strings.TrimSpace(sum), nmea.Checksum(body))) {
		return Update{}
	}

	fields := strings.Split(body, ",")
	if len(fields) < 3 {
		return Update{}
	}

	switch sentenceType(fields[0]) {
	case nmea.TypeGGA:
		return decodeGGA(fields)
	case nmea.TypeRMC:
		return d.decodeRMC(fields)
	case nmea.TypeVTG:
		return decodeVTG(line)
	default:
		return Update{}
	}
}

// sentenceType strips the talker ID ("GP", "GN", ...) from an address field.
func sentenceType(addr string) string {
	if len(addr) < 3 {
		return ""
	}
	return addr[len(addr)-3:]
}

// field returns fields[i] or "" when the sentence is short.
func field(fields []string, i int) string {
	if i < len(fields) {
		return strings.TrimSpace(fields[i])
	}
	return ""
}

// $xxGGA,time,lat,NS,lon,EW,quality,numSV,HDOP,alt,M,sep,M,diffAge,diffStation
func decodeGGA(fields []string) Update {
	var u Update

	quality, qok := parseInt(field(fields, 6))
	if qok {
		u.FixStatus = ptr(quality)
	}
	if sats, ok := parseInt(field(fields, 7)); ok {
		u.Satellites = ptr(sats)
	}
	if hdop, ok := parseFloat(field(fields, 8)); ok {
		u.HDOP = ptr(hdop)
	}

	if qok && quality > 0 {
		lat, lon, ok := parseLatLon(field(fields, 2), field(fields, 3), field(fields, 4), field(fields, 5))
		if ok {
			u.Latitude = ptr(lat)
			u.Longitude = ptr(lon)
		}
	}
	return u
}

// $xxRMC,time,status,lat,NS,lon,EW,spd,cog,date,mv,mvEW
func (d *Decoder) decodeRMC(fields []string) Update {
	var u Update

	if ts, ok := d.localClock(field(fields, 1), field(fields, 9)); ok {
		u.Timestamp = ptr(ts)
	}
	if knots, ok := parseFloat(field(fields, 7)); ok {
		u.SpeedKMH = ptr(knots * KnotsToKMH)
	}
	if field(fields, 2) == "A" {
		lat, lon, ok := parseLatLon(field(fields, 3), field(fields, 4), field(fields, 5), field(fields, 6))
		if ok {
			u.Latitude = ptr(lat)
			u.Longitude = ptr(lon)
		}
	}
	return u
}

func decodeVTG(line string) Update {
	s, err := nmea.Parse(line)
	if err != nil {
		return Update{}
	}
	vtg, ok := s.(nmea.VTG)
	if !ok {
		return Update{}
	}
	return Update{SpeedKMH: ptr(vtg.GroundSpeedKPH)}
}

// localClock combines an RMC hhmmss[.ss] time with a ddmmyy date and renders
// it as local "HH:MM".
func (d *Decoder) localClock(hms, dmy string) (string, bool) {
	if len(hms) < 6 {
		return "", false
	}
	hh, err1 := strconv.Atoi(hms[0:2])
	mm, err2 := strconv.Atoi(hms[2:4])
	ss, err3 := strconv.Atoi(hms[4:6])
	if err1 != nil || err2 != nil || err3 != nil || hh > 23 || mm > 59 || ss > 60 {
		return "", false
	}

	var year, day int
	var month time.Month
	if len(dmy) == 6 {
		dd, err1 := strconv.Atoi(dmy[0:2])
		mo, err2 := strconv.Atoi(dmy[2:4])
		yy, err3 := strconv.Atoi(dmy[4:6])
		if err1 != nil || err2 != nil || err3 != nil || mo < 1 || mo > 12 || dd < 1 || dd > 31 {
			return "", false
		}
		day, month = dd, time.Month(mo)
		year = 2000 + yy
		if yy >= 80 {
			year = 1900 + yy
		}
	} else {
		now := time.Now
		if d.Now != nil {
			now = d.Now
		}
		year, month, day = now().UTC().Date()
	}

	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	t := time.Date(year, month, day, hh, mm, ss, 0, time.UTC).In(loc)
	return t.Format("15:04"), true
}

// parseLatLon converts a pair of ddmm.mmmm / dddmm.mmmm values with their
// hemisphere letters to signed decimal degrees.
func parseLatLon(lat, ns, lon, ew string) (float64, float64, bool) {
	la, ok := parseDMM(lat)
	if !ok {
		return 0, 0, false
	}
	lo, ok := parseDMM(lon)
	if !ok {
		return 0, 0, false
	}
	if ns == "S" {
		la = -la
	}
	if ew == "W" {
		lo = -lo
	}
	if la < -90 || la > 90 || lo < -180 || lo > 180 {
		return 0, 0, false
	}
	return la, lo, true
}

// parseDMM converts degrees*100+minutes to decimal degrees.
func parseDMM(raw string) (float64, bool) {
	v, ok := parseFloat(raw)
	if !ok || v < 0 {
		return 0, false
	}
	deg := math.Floor(v / 100)
	minutes := v - deg*100
	return deg + minutes/60, true
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
