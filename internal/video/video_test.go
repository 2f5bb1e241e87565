package video

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestCreateSinkValidates(t *testing.T) {
	dir := t.TempDir()
	_, err := CreateSink(filepath.Join(dir, "out.avi"), "mp4", 30, image.Pt(64, 48))
	assert.Error(t, err)
	_, err = CreateSink(filepath.Join(dir, "out.avi"), "MJPG", 0, image.Pt(64, 48))
	assert.Error(t, err)
}

func TestOpenSourceMissingFile(t *testing.T) {
	_, err := OpenSource(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
}

func TestImageSink(t *testing.T) {
	dir := t.TempDir()
	sink := NewImageSink(filepath.Join(dir, "search_%03d.png"))

	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	require.NoError(t, sink.Write(frame))
	require.NoError(t, sink.Write(frame))

	for _, name := range []string{"search_000.png", "search_001.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}
