// Package video adapts OpenCV capture and writer devices to the frame
// pipeline.
package video

import (
	"errors"
	"fmt"
	"image"
	"strconv"

	"lanetrack/internal/pipeline"

	"gocv.io/x/gocv"
)

// Source reads frames from a file or camera device.
type Source struct {
	capture *gocv.VideoCapture
}

// OpenSource opens uri, treating an integer as a device id.
func OpenSource(uri string) (*Source, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, convErr := strconv.Atoi(uri); convErr == nil {
		vc, err = gocv.VideoCaptureDevice(id)
	} else {
		vc, err = gocv.VideoCaptureFile(uri)
	}
	if err != nil {
		if vc != nil {
			vc.Close()
		}
		return nil, fmt.Errorf("failed to open video %s: %w", uri, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("failed to open video %s", uri)
	}
	return &Source{capture: vc}, nil
}

// Read decodes the next frame into dst. pipeline.ErrEndOfStream is returned
// once the capture stops yielding frames.
func (s *Source) Read(dst *gocv.Mat) error {
	if ok := s.capture.Read(dst); !ok || dst.Empty() {
		return pipeline.ErrEndOfStream
	}
	return nil
}

// FPS returns the reported frame rate, or 0 when unknown.
func (s *Source) FPS() float64 {
	return s.capture.Get(gocv.VideoCaptureFPS)
}

// FrameCount returns the reported number of frames, or 0 for live devices.
func (s *Source) FrameCount() int {
	return int(s.capture.Get(gocv.VideoCaptureFrameCount))
}

// Close releases the capture.
func (s *Source) Close() error {
	return s.capture.Close()
}

// Sink encodes frames to a video file.
type Sink struct {
	writer *gocv.VideoWriter
	size   image.Point
}

// CreateSink opens path for writing with a four-character codec such as
// "mp4v". Frames of a different size are resized on write.
func CreateSink(path, codec string, fps float64, size image.Point) (*Sink, error) {
	if len(codec) != 4 {
		return nil, fmt.Errorf("codec %q must be four characters", codec)
	}
	if fps <= 0 {
		return nil, errors.New("sink fps must be positive")
	}
	vw, err := gocv.VideoWriterFile(path, codec, fps, size.X, size.Y, true)
	if err != nil {
		if vw != nil {
			vw.Close()
		}
		return nil, fmt.Errorf("failed to create video %s: %w", path, err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("failed to create video %s", path)
	}
	return &Sink{writer: vw, size: size}, nil
}

// Write appends one frame.
func (s *Sink) Write(frame gocv.Mat) error {
	if frame.Cols() == s.size.X && frame.Rows() == s.size.Y {
		return s.writer.Write(frame)
	}
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(frame, &resized, s.size, 0, 0, gocv.InterpolationLinear)
	return s.writer.Write(resized)
}

// Close finalises the file.
func (s *Sink) Close() error {
	return s.writer.Close()
}

// ImageSink writes each frame as a numbered image file, for a debug view.
type ImageSink struct {
	pattern string // fmt pattern with one %d verb
	n       int
}

// NewImageSink writes frames to fmt.Sprintf(pattern, index).
func NewImageSink(pattern string) *ImageSink {
	return &ImageSink{pattern: pattern}
}

// Write encodes frame to the next file name.
func (s *ImageSink) Write(frame gocv.Mat) error {
	name := fmt.Sprintf(s.pattern, s.n)
	s.n++
	if ok := gocv.IMWrite(name, frame); !ok {
		return fmt.Errorf("failed to write %s", name)
	}
	return nil
}
