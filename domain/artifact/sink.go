package artifact

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/gift"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

var (
	// ErrDuplicate is returned when a frame is perceptually identical to the
	// previous frame saved under the same prefix.
	ErrDuplicate = errors.New("artifact: near-duplicate frame skipped")
	// ErrQueueFull is returned by Async when the write queue is saturated.
	ErrQueueFull = errors.New("artifact: queue full, frame dropped")
	// ErrClosed is returned after the sink has been closed.
	ErrClosed = errors.New("artifact: sink closed")
)

// Sink stores annotated debug frames. Save takes ownership of img and closes
// it. The returned path is empty when the write is deferred or skipped.
type Sink interface {
	Save(img gocv.Mat, prefix string) (string, error)
}

// FileOptions configures a FileSink.
type FileOptions struct {
	// MaxWidth downscales wider frames, preserving aspect ratio. 0 disables.
	MaxWidth int
	// DedupeDistance is the maximum perceptual hash distance treated as a
	// duplicate of the previous frame with the same prefix. 0 disables.
	DedupeDistance int
}

// FileSink writes PNG files named prefix_YYYYmmdd_HHMMSS_micro_id.png.
type FileSink struct {
	dir  string
	opts FileOptions
	now  func() time.Time

	mu   sync.Mutex
	last map[string]*goimagehash.ImageHash
}

var _ Sink = (*FileSink)(nil)

// NewFileSink returns a sink writing into dir. The directory is created on first write.
func NewFileSink(dir string, opts FileOptions) *FileSink {
	return &FileSink{dir: dir, opts: opts, now: time.Now, last: make(map[string]*goimagehash.ImageHash)}
}

// Dir returns the output directory.
func (s *FileSink) Dir() string { return s.dir }

func (s *FileSink) Save(img gocv.Mat, prefix string) (string, error) {
	defer img.Close()
	if img.Empty() {
		return "", fmt.Errorf("artifact: empty image for %q", prefix)
	}
	src, err := img.ToImage()
	if err != nil {
		return "", fmt.Errorf("artifact: convert %q: %w", prefix, err)
	}
	var hash *goimagehash.ImageHash
	if s.opts.DedupeDistance > 0 {
		if hash, err = goimagehash.PerceptionHash(src); err != nil {
			hash = nil
		}
		if s.isDuplicate(prefix, hash) {
			return "", ErrDuplicate
		}
	}
	out := downscale(src, s.opts.MaxWidth)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact: mkdir %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, fileName(prefix, s.now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("artifact: create %s: %w", path, err)
	}
	if err := png.Encode(f, out); err != nil {
		f.Close()
		return "", fmt.Errorf("artifact: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("artifact: close %s: %w", path, err)
	}
	if hash != nil {
		s.mu.Lock()
		s.last[prefix] = hash
		s.mu.Unlock()
	}
	return path, nil
}

// isDuplicate compares h against the last frame written under prefix.
func (s *FileSink) isDuplicate(prefix string, h *goimagehash.ImageHash) bool {
	if h == nil {
		return false
	}
	s.mu.Lock()
	prev := s.last[prefix]
	s.mu.Unlock()
	if prev == nil {
		return false
	}
	d, err := prev.Distance(h)
	return err == nil && d <= s.opts.DedupeDistance
}

func fileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%06d_%s.png", prefix, t.Format("20060102_150405"), t.Nanosecond()/1000, uuid.NewString()[:8])
}

func downscale(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	g := gift.New(gift.Resize(maxWidth, 0, gift.LinearResampling))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}
