package artifact

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func checkerMat(t *testing.T, w, h, cell int) gocv.Mat {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := byte(30)
			if (x/cell+y/cell)%2 == 0 {
				v = 220
			}
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
		}
	}
	m, err := gocv.ImageToMatRGB(img)
	require.NoError(t, err)
	return m
}

var namePattern = regexp.MustCompile(`^hit_\d{8}_\d{6}_\d{6}_[0-9a-f]{8}\.png$`)

func TestFileSink_WritesTimestampedPNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewFileSink(dir, FileOptions{})
	s.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 123456000, time.UTC) }

	path, err := s.Save(checkerMat(t, 40, 30, 5), "hit")
	require.NoError(t, err)
	assert.Regexp(t, namePattern, filepath.Base(path))
	assert.Contains(t, filepath.Base(path), "hit_20240309_140507_123456_")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 30, cfg.Height)
}

func TestFileSink_DownscalesWideFrames(t *testing.T) {
	s := NewFileSink(t.TempDir(), FileOptions{MaxWidth: 50})
	path, err := s.Save(checkerMat(t, 200, 100, 10), "near")
	require.NoError(t, err)
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)
}

func TestFileSink_SkipsDuplicatesPerPrefix(t *testing.T) {
	s := NewFileSink(t.TempDir(), FileOptions{DedupeDistance: 2})
	_, err := s.Save(checkerMat(t, 64, 64, 8), "hit")
	require.NoError(t, err)
	_, err = s.Save(checkerMat(t, 64, 64, 8), "hit")
	require.ErrorIs(t, err, ErrDuplicate)
	_, err = s.Save(checkerMat(t, 64, 64, 8), "near")
	require.NoError(t, err, "different prefix keeps its own history")
}

func TestFileSink_FailedWriteDoesNotSuppressRetry(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	s := NewFileSink(filepath.Join(blocker, "out"), FileOptions{DedupeDistance: 2})

	_, err := s.Save(checkerMat(t, 64, 64, 8), "hit")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDuplicate)

	s.dir = t.TempDir()
	path, err := s.Save(checkerMat(t, 64, 64, 8), "hit")
	require.NoError(t, err, "frame lost to a failed write must be saved on retry")
	assert.FileExists(t, path)
	_, err = s.Save(checkerMat(t, 64, 64, 8), "hit")
	assert.ErrorIs(t, err, ErrDuplicate)
}

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	saved   []string
}

func (b *blockingSink) Save(img gocv.Mat, prefix string) (string, error) {
	defer img.Close()
	<-b.release
	b.mu.Lock()
	b.saved = append(b.saved, prefix)
	b.mu.Unlock()
	return prefix, nil
}

func TestAsync_DropsWhenFullAndDrainsOnClose(t *testing.T) {
	inner := &blockingSink{release: make(chan struct{})}
	a := NewAsync(inner, 1, nil)

	// First job is picked up by the worker and blocks; second fills the queue.
	_, err := a.Save(checkerMat(t, 8, 8, 2), "a")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(a.jobs) == 0 }, time.Second, 5*time.Millisecond)
	_, err = a.Save(checkerMat(t, 8, 8, 2), "b")
	require.NoError(t, err)
	_, err = a.Save(checkerMat(t, 8, 8, 2), "c")
	require.ErrorIs(t, err, ErrQueueFull)

	close(inner.release)
	a.Close()
	written, dropped := a.Stats()
	assert.Equal(t, uint64(2), written)
	assert.Equal(t, uint64(1), dropped)
	assert.Equal(t, []string{"a", "b"}, inner.saved)

	_, err = a.Save(checkerMat(t, 8, 8, 2), "d")
	require.ErrorIs(t, err, ErrClosed)
}
