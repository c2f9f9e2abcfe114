package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/banshee-data/crosswatch/internal/bus"
	"github.com/banshee-data/crosswatch/internal/config"
	"github.com/banshee-data/crosswatch/internal/pipeline"
	"github.com/banshee-data/crosswatch/internal/radar"
	"github.com/banshee-data/crosswatch/internal/storage"
)

var (
	input      = flag.String("input", "", "JSONL recording to replay")
	dbFile     = flag.String("db", "crosswatch.db", "SQLite output database (empty to disable)")
	configFile = flag.String("config", "", "Tuning config JSON (defaults when empty)")
	seed       = flag.Int64("seed", 1, "RANSAC sampling seed")
)

// Bus signal names as they appear in recordings.
const (
	signalSpeed  = "speed_kmh"
	signalTorque = "torque_nm"
	signalGear   = "gear"
	signalGrade  = "grade_deg"
)

// replayRecord is one line of a JSONL recording: a radar cycle plus the
// bus samples received since the previous cycle.
type replayRecord struct {
	TimestampMs float64       `json:"timestamp_ms"`
	Points      []replayPoint `json:"points"`
	// Bus maps signal name to [timestamp_ms, value] pairs.
	Bus map[string][][2]float64 `json:"bus,omitempty"`
}

type replayPoint struct {
	Range     float64 `json:"range"`
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	Doppler   float64 `json:"doppler"`
	SNR       float64 `json:"snr"`
}

func main() {
	flag.Parse()

	if *input == "" {
		log.Fatal("-input recording is required")
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid tuning config: %v", err)
	}

	var store *storage.Store
	if *dbFile != "" {
		var err error
		store, err = storage.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer store.Close()
		log.Printf("recording run %s to %s", store.RunID(), *dbFile)
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("failed to open recording: %v", err)
	}
	defer f.Close()

	p := pipeline.New(cfg, rand.New(rand.NewSource(*seed)))
	signals := bus.NewBuffer(bus.DefaultDepth)

	cycles, confirmed, err := replay(f, p, signals, store)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	log.Printf("replayed %d cycles, %d confirmed track updates", cycles, confirmed)
}

// replay drives the pipeline cycle by cycle from the recording.
func replay(f *os.File, p *pipeline.Pipeline, signals *bus.Buffer, store *storage.Store) (cycles, confirmed int, err error) {
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec replayRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return cycles, confirmed, fmt.Errorf("line %d: %w", line, err)
		}

		for name, samples := range rec.Bus {
			for _, s := range samples {
				signals.Publish(name, s[0], s[1])
			}
		}

		frame := radar.NewFrame(rec.TimestampMs, toPoints(rec.Points), busAt(signals, rec.TimestampMs))
		trackList, _ := p.Process(frame)
		cycles++
		for _, tr := range trackList {
			if tr.IsConfirmed() && !tr.IsLost() {
				confirmed++
			}
		}

		if store != nil {
			if err := store.RecordCycle(frame, trackList); err != nil {
				return cycles, confirmed, fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	return cycles, confirmed, scanner.Err()
}

func toPoints(pts []replayPoint) []radar.Point {
	out := make([]radar.Point, len(pts))
	for i, pt := range pts {
		out[i] = radar.Point{
			Range:     pt.Range,
			Azimuth:   pt.Azimuth,
			Elevation: pt.Elevation,
			Doppler:   pt.Doppler,
			SNR:       pt.SNR,
		}
	}
	return out
}

// busAt interpolates every signal to the frame timestamp. Missing or
// single-sample signals degrade inside the snapshot; the frame carries
// NaN and the pipeline treats the channel as unavailable.
func busAt(signals *bus.Buffer, timestampMs float64) radar.BusSignals {
	snap := signals.Snapshot()
	return radar.BusSignals{
		SpeedKmh: snap.SampleAt(signalSpeed, timestampMs),
		TorqueNm: snap.SampleAt(signalTorque, timestampMs),
		Gear:     snap.SampleAt(signalGear, timestampMs),
		GradeDeg: snap.SampleAt(signalGrade, timestampMs),
	}
}
