// Copyright 2024 Fantom Foundation
// This file is part of Specula, a speculative block executor for Sonic
//
// Specula is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Specula is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Specula. If not, see <http://www.gnu.org/licenses/>.

package logger

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLogger_LevelFiltersMessages(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warning", "Test")

	log.Info("hidden")
	log.Warning("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message must not be printed at warning level, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warning message must be printed at warning level, got %q", out)
	}
}

func TestLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "no-such-level", "Test")

	log.Debug("hidden")
	log.Info("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "visible") {
		t.Errorf("unexpected output for default level: %q", out)
	}
}

func TestLogger_CanBeCreatedConcurrently(t *testing.T) {
	const numLoggers = 16
	var wg sync.WaitGroup
	loggers := make([]Logger, numLoggers)
	for i := 0; i < numLoggers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loggers[i] = newLogger(io.Discard, "info", fmt.Sprintf("Test-%d", i))
		}(i)
	}
	wg.Wait()

	for i, log := range loggers {
		if log == nil {
			t.Fatalf("logger %d was not created", i)
		}
		log.Info("created")
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		elapsed                time.Duration
		hours, minutes, second uint32
	}{
		{0, 0, 0, 0},
		{59 * time.Second, 0, 0, 59},
		{60 * time.Second, 0, 1, 0},
		{3725 * time.Second, 1, 2, 5},
	}
	for _, test := range tests {
		h, m, s := ParseTime(test.elapsed)
		if h != test.hours || m != test.minutes || s != test.second {
			t.Errorf("unexpected result for %v, wanted %d:%d:%d, got %d:%d:%d", test.elapsed, test.hours, test.minutes, test.second, h, m, s)
		}
	}
}
