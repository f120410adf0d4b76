// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Seeder emits sample logbook entries as JSON lines, one entry per line,
// in the shape the file adapter ingests:
//
//	ariel ingest --adapter file --source entries.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"time"
)

var notes = []string{
	"Replaced the coolant pump seal on loop B after a slow drip was spotted during rounds.",
	"Vacuum pressure in the main chamber drifted above threshold; leak traced to a cracked flange gasket.",
	"Recalibrated the flow meters on lines 3 and 4 against the reference standard.",
	"Backup generator exercised for thirty minutes under load, no anomalies.",
	"Swapped the UPS batteries in rack 12; old cells were below 70 percent capacity.",
	"Beamline shutter stuck half open; actuator lubricated and cycled twenty times.",
	"Observed intermittent noise on thermocouple channel 7, rerouted cable away from the VFD.",
	"Completed the quarterly inspection of the crane hoist, brake pads within tolerance.",
	"Chiller 2 tripped on high head pressure, condenser coils cleaned and restarted.",
	"Updated the interlock logic to require both key switches before high voltage enable.",
	"Nitrogen dewar refilled, fill line check valve replaced as preventive maintenance.",
	"Fire suppression panel reported a supervisory fault; loose wire at zone 4 reseated.",
	"Power dip at 03:12 caused the turbo pumps to spin down, restarted in sequence.",
	"Replaced air filters in the clean room plenum, differential pressure back to nominal.",
	"Found corrosion on the grounding strap at the transformer pad, scheduled replacement.",
	"Compressor oil sample sent for analysis after metal flakes appeared in the sight glass.",
	"Tightened packing gland on valve CV-221, stem leak stopped.",
	"Control room HVAC setpoint lowered two degrees at operator request.",
	"Annual pressure relief valve certification completed for vessels V-1 through V-6.",
	"Cable tray over bay 3 found overloaded, moved the new fiber runs to the spare tray.",
}

var authors = []string{"rmartin", "kchen", "dsouza", "ljohnson"}

var (
	count  = flag.Int("count", 100, "number of entries to generate")
	source = flag.String("source", "ops-logbook", "source system name")
	out    = flag.String("out", "", "output file (defaults to stdout)")
	src    = flag.String("src", "", "file of note lines to draw from instead of the built-in set")
)

// wireEntry mirrors the JSON shape the ingestion adapters consume.
type wireEntry struct {
	EntryID      string            `json:"entry_id"`
	SourceSystem string            `json:"source_system"`
	Timestamp    time.Time         `json:"timestamp"`
	Author       string            `json:"author"`
	Title        string            `json:"title,omitempty"`
	RawText      string            `json:"raw_text"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// cycle repeats a finite iterator until limit values have been yielded.
func cycle(lines iter.Seq[string], limit int) iter.Seq[string] {
	return func(yield func(string) bool) {
		emitted := 0
		for emitted < limit {
			for line := range lines {
				if emitted >= limit {
					return
				}
				if !yield(line) {
					return
				}
				emitted++
			}
		}
	}
}

func main() {
	lines := linesFromSlice(notes)
	if *src != "" {
		var err error
		lines, err = linesFromFile(*src)
		if err != nil {
			slog.Error("failed to open source file", "file", *src, "err", err)
			os.Exit(1)
		}
	}

	output := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			slog.Error("failed to create output file", "file", *out, "err", err)
			os.Exit(1)
		}
		defer f.Close()
		output = f
	}

	// Spread timestamps backwards so ingestion windows have something
	// to chunk over.
	start := time.Now().UTC().Add(-time.Duration(*count) * time.Hour)

	encoder := json.NewEncoder(output)
	i := 0
	for line := range cycle(lines, *count) {
		entry := wireEntry{
			EntryID:      fmt.Sprintf("seed-%05d", i+1),
			SourceSystem: *source,
			Timestamp:    start.Add(time.Duration(i) * time.Hour),
			Author:       authors[i%len(authors)],
			RawText:      line,
			Metadata:     map[string]string{"shift": shiftFor(i)},
		}
		if err := encoder.Encode(&entry); err != nil {
			slog.Error("failed to encode entry", "err", err)
			os.Exit(1)
		}
		i++
	}

	slog.Info("seed data written", "entries", i, "source", *source)
}

func shiftFor(i int) string {
	switch i % 3 {
	case 0:
		return "day"
	case 1:
		return "swing"
	default:
		return "night"
	}
}
