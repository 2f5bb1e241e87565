package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"lanetrack/internal/render"

	"gocv.io/x/gocv"
)

// detectionLine is one line of a detections file.
type detectionLine struct {
	Frame int                `json:"frame"`
	Boxes []render.Detection `json:"boxes"`
}

// ReplayDetector returns boxes recorded ahead of time, one JSON object per
// line: {"frame":N,"boxes":[...]}. Frames without a line have no boxes.
type ReplayDetector struct {
	byFrame map[int][]render.Detection
	next    int
}

// LoadDetections parses a detections stream.
func LoadDetections(r io.Reader) (*ReplayDetector, error) {
	d := &ReplayDetector{byFrame: make(map[int][]render.Detection)}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line detectionLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, fmt.Errorf("detections line %d: %w", lineNo, err)
		}
		d.byFrame[line.Frame] = append(d.byFrame[line.Frame], line.Boxes...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read detections: %w", err)
	}
	return d, nil
}

// Detect returns the boxes for the next frame in sequence.
func (d *ReplayDetector) Detect(gocv.Mat) ([]render.Detection, error) {
	dets := d.byFrame[d.next]
	d.next++
	return dets, nil
}

// Frames returns the number of frames with recorded boxes.
func (d *ReplayDetector) Frames() int { return len(d.byFrame) }
