// Detect runs the object detector on an image file and prints each object
// with its direction, the hazard verdict and the spoken scene summary.
//
//	go run ./cmd/detect -model models/yolov8n.onnx street.jpg
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/teslashibe/go-guide/pkg/detection"
	"github.com/teslashibe/go-guide/pkg/guidance"
)

func main() {
	cfg := detection.DefaultConfig()
	model := flag.String("model", cfg.Model, "Detector: yolo or ssd")
	modelPath := flag.String("model-path", "", "Model weights (default depends on -model)")
	graph := flag.String("graph", "", "SSD graph text (pbtxt)")
	labels := flag.String("labels", "", "Optional labels file, one per line")
	conf := flag.Float64("confidence", cfg.ConfidenceThresh, "Minimum confidence")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: detect [flags] image...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if *model == detection.ModelSSD {
		cfg = detection.DefaultSSDConfig()
	}
	if *modelPath != "" {
		cfg.ModelPath = *modelPath
	}
	if *graph != "" {
		cfg.ConfigPath = *graph
	}
	cfg.LabelsPath = *labels
	cfg.ConfidenceThresh = *conf

	backend, err := detection.Open(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to load detector: %v", err)
	}
	defer backend.Close()

	buckets := guidance.DefaultBuckets()
	hazards := guidance.DefaultHazardRule()

	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("⚠️  %s: %v", path, err)
			continue
		}
		results, err := backend.Detect(data)
		if err != nil {
			log.Printf("⚠️  %s: detect: %v", path, err)
			continue
		}

		objects := make([]guidance.DetectedObject, 0, len(results))
		for _, r := range results {
			objects = append(objects, r.Object())
		}
		objects = guidance.FilterConfidence(objects, cfg.ConfidenceThresh)

		fmt.Printf("📷 %s\n", path)
		for _, o := range objects {
			dir := buckets.Of(o.Box)
			if dir == guidance.DirectionNone {
				dir = "?"
			}
			mark := ""
			if hazards.Matches(o) {
				mark = "  ⚠️  " + guidance.Warning(o, buckets)
			}
			fmt.Printf("   %-14s %3.0f%%  %-6s%s\n", o.Label, o.Confidence*100, dir, mark)
		}
		fmt.Printf("   🗣️  %s\n", guidance.Summarize(objects))
	}
}
