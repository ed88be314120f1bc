// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package updater

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// FileVersion returns a version accessor reading a VERSION file. The file is
// re-read on every call so the value changes after a pull.
func FileVersion(path string) func() string {
	return func() string {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "unknown"
		}
		s := strings.TrimSpace(string(raw))
		v, err := semver.NewVersion(s)
		if err != nil {
			log.Printf("updater: VERSION %q is not semver: %v", s, err)
			if s == "" {
				return "unknown"
			}
			return s
		}
		return v.String()
	}
}

// describeVersionChange renders "1.2.0 → 1.3.0", flagging downgrades.
func describeVersionChange(from, to string) string {
	s := fmt.Sprintf("%s → %s", from, to)
	a, errA := semver.NewVersion(from)
	b, errB := semver.NewVersion(to)
	if errA == nil && errB == nil && b.LessThan(a) {
		s += " (downgrade)"
	}
	return s
}
