// Command replay runs a recorded sequence of dashboard snapshots through the
// differ and writes the resulting feed events as a JSON fixture. It uses the
// actual domain package, so the output matches what the live monitor would
// emit for the same sequence.
//
// Usage:
//
//	go run ./cmd/replay \
//	  -in data/snapshots.jsonl \
//	  -out data/events.json \
//	  -interval 4s
//
// The input holds one snapshot payload per line.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/infrawatch-feed-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// maxSnapshotBytes bounds a single input line.
const maxSnapshotBytes = 16 << 20

var baseTime = time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "input file with one snapshot payload per line")
	out := flag.String("out", "", "output path for the events JSON fixture")
	interval := flag.Duration("interval", 4*time.Second, "simulated time between snapshots without a timestamp")
	flag.Parse()

	if *in == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -in, -out")
	}

	// Fixed clock for reproducible timestamps on snapshots that carry none.
	clock := clockwork.NewFakeClockAt(baseTime)
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	events, stats, err := replayFile(*in, clock, *interval)
	if err != nil {
		return fmt.Errorf("replaying %s: %w", *in, err)
	}

	if err := writeJSON(*out, events); err != nil {
		return fmt.Errorf("writing events fixture: %w", err)
	}
	log.Printf("wrote events fixture: %s", *out)

	printStats(stats, events)
	return nil
}

type replayStats struct {
	snapshots int
	invalid   int
	malformed int
}

func replayFile(path string, clock *clockwork.FakeClock, interval time.Duration) ([]domain.Event, replayStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, replayStats{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var (
		stats  replayStats
		prev   *domain.Snapshot
		events []domain.Event //nolint:prealloc // size depends on input contents
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), maxSnapshotBytes)
	line := 0
	for scanner.Scan() {
		line++
		payload := scanner.Bytes()
		if len(payload) == 0 {
			continue
		}
		stats.snapshots++

		snap, issues, err := domain.ParseSnapshot(payload)
		if err != nil {
			stats.invalid++
			log.Printf("line %d: %v", line, err)
			continue
		}
		for _, is := range issues {
			log.Printf("line %d: skipped %v", line, is)
		}
		stats.malformed += len(issues)

		events = append(events, domain.Diff(prev, snap)...)
		prev = &snap
		clock.Advance(interval)
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read: %w", err)
	}
	return events, stats, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(stats replayStats, events []domain.Event) {
	fmt.Printf("\n=== Replay Stats ===\n")
	fmt.Printf("Snapshots: %d (invalid %d, malformed entries %d)\n", stats.snapshots, stats.invalid, stats.malformed)
	fmt.Printf("Events: %d\n", len(events))

	byKind := map[string]int{}
	bySeverity := map[string]int{}
	notifications := 0
	for _, e := range events {
		byKind[e.Kind.String()]++
		bySeverity[e.Severity.String()]++
		if _, ok := domain.NotificationFor(e); ok {
			notifications++
		}
	}

	printCounts("By kind", byKind)
	printCounts("By severity", bySeverity)
	fmt.Printf("Notifications: %d\n", notifications)
}

func printCounts(title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-14s %d\n", k, counts[k])
	}
}
