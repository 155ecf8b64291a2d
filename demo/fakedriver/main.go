/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Stand-in exploration driver for demos. Speaks the driver CLI the
session supervisor uses (-a, -o, -keep_env) and emits droidbot-shaped
artifacts: app.json, timestamped screen states, and event records. The last
state repeats the first one, so crash analysis on the demo output flags a
recurrence of the home screen.
*/

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

var eventKinds = []string{"touch", "scroll", "key", "set_text", "select", "swipe"}

func main() {
	apk := flag.String("a", "", "APK path (accepted for CLI compatibility)")
	out := flag.String("o", "demo_output", "Output directory")
	flag.Bool("keep_env", false, "Accepted for CLI compatibility")
	events := flag.Int("events", 8, "Number of exploration steps to emulate")
	interval := flag.Duration("interval", time.Second, "Delay between steps")
	flag.Parse()

	if err := run(*apk, *out, *events, *interval); err != nil {
		fmt.Fprintf(os.Stderr, "fakedriver: %v\n", err)
		os.Exit(1)
	}
}

func run(apk, out string, events int, interval time.Duration) error {
	statesDir := filepath.Join(out, "states")
	eventsDir := filepath.Join(out, "events")
	for _, dir := range []string{statesDir, eventsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	identity := map[string]string{
		"package":       "com.example.demo",
		"main_activity": "MainActivity",
	}
	data, _ := json.MarshalIndent(identity, "", "  ")
	if err := os.WriteFile(filepath.Join(out, "app.json"), data, 0644); err != nil {
		return err
	}

	fmt.Printf("fakedriver exploring %s into %s, %d steps\n", apk, out, events)
	for i := 1; i <= events; i++ {
		// The final screen repeats the first, like an app dropped back
		// to its entry screen
		step := i
		if i == events && events > 2 {
			step = 1
		}

		statePath := filepath.Join(statesDir, fmt.Sprintf("screen_%04d.png", i))
		if err := writeState(statePath, step); err != nil {
			return err
		}
		eventPath := filepath.Join(eventsDir, fmt.Sprintf("event_%04d.json", i))
		if err := writeEvent(eventPath, i); err != nil {
			return err
		}

		fmt.Printf("step %d: %s\n", i, eventKinds[(i-1)%len(eventKinds)])
		time.Sleep(interval)
	}
	return nil
}

// writeState renders a synthetic screen whose content depends on the step, so
// consecutive states differ visibly
func writeState(path string, step int) error {
	img := image.NewRGBA(image.Rect(0, 0, 96, 160))
	background := color.RGBA{R: 240, G: 240, B: 245, A: 255}
	for y := 0; y < 160; y++ {
		for x := 0; x < 96; x++ {
			img.SetRGBA(x, y, background)
		}
	}

	// A tile that wanders down the screen step by step
	tile := color.RGBA{R: uint8(40 * step % 255), G: 90, B: 200, A: 255}
	top := (step * 17) % 128
	for y := top; y < top+24 && y < 160; y++ {
		for x := 8; x < 88; x++ {
			img.SetRGBA(x, y, tile)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return png.Encode(file, img)
}

// writeEvent records one exploration event in the driver's wrapped schema
func writeEvent(path string, step int) error {
	record := map[string]interface{}{
		"tag": fmt.Sprintf("step_%04d", step),
		"event": map[string]interface{}{
			"event_type": eventKinds[(step-1)%len(eventKinds)],
		},
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
