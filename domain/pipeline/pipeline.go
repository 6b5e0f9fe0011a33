package pipeline

import (
	"errors"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/soocke/game-watcher-go/domain/action"
	"github.com/soocke/game-watcher-go/domain/artifact"
	"github.com/soocke/game-watcher-go/domain/trigger"
	"github.com/soocke/game-watcher-go/domain/vision"
)

// Class is the per-frame classification of the best candidate.
type Class int

const (
	ClassNone Class = iota // no eligible (template, scale) pair
	ClassHit
	ClassNear
	ClassMiss
)

func (c Class) String() string {
	switch c {
	case ClassHit:
		return "hit"
	case ClassNear:
		return "near"
	case ClassMiss:
		return "miss"
	default:
		return "none"
	}
}

// Classify buckets a score against the hit and near-miss thresholds.
func Classify(score, threshold, nearMiss float64) Class {
	switch {
	case score >= threshold:
		return ClassHit
	case score >= nearMiss:
		return ClassNear
	default:
		return ClassMiss
	}
}

// BestMatcher is the matching capability the pipeline needs.
type BestMatcher interface {
	MatchBest(intensity, edges gocv.Mat, mode vision.Mode) (vision.Candidate, bool)
}

// Options configures classification and artifact emission.
type Options struct {
	Mode           vision.Mode
	Edge           vision.EdgeParams
	Threshold      float64
	NearMiss       float64
	SaveHits       bool
	SaveNearMisses bool
}

// Outcome reports what happened to one frame.
type Outcome struct {
	Class     Class
	Candidate vision.Candidate
	Found     bool
	Triggered bool
	Target    image.Point // screen coordinates of the candidate center, set on hits
}

// Pipeline runs preprocess, match, classify and gate for one frame at a time.
// It is not safe for concurrent use; frames must be fed in arrival order.
type Pipeline struct {
	matcher BestMatcher
	gate    *trigger.Gate
	exec    action.Executor
	sink    artifact.Sink
	opts    Options
	logger  *slog.Logger
	clock   trigger.Clock

	frames    atomic.Uint64
	hits      atomic.Uint64
	nears     atomic.Uint64
	misses    atomic.Uint64
	empty     atomic.Uint64
	triggers  atomic.Uint64
	procNanos atomic.Uint64
	lastNanos atomic.Uint64
}

// New assembles a pipeline. exec and sink may be nil.
func New(m BestMatcher, gate *trigger.Gate, exec action.Executor, sink artifact.Sink, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{matcher: m, gate: gate, exec: exec, sink: sink, opts: opts, logger: logger, clock: trigger.SystemClock{}}
}

// Gate exposes the pipeline's trigger gate.
func (p *Pipeline) Gate() *trigger.Gate { return p.gate }

// ProcessFrame handles one BGR frame. origin is the screen position of the
// frame's top-left pixel. Only a malformed frame returns an error.
func (p *Pipeline) ProcessFrame(frame gocv.Mat, origin image.Point) (Outcome, error) {
	start := time.Now()
	intensity, err := vision.ToIntensity(frame)
	if err != nil {
		intensity.Close()
		return Outcome{}, err
	}
	defer intensity.Close()
	p.frames.Add(1)
	defer func() {
		d := uint64(time.Since(start))
		p.procNanos.Add(d)
		p.lastNanos.Store(d)
	}()
	edges := vision.ToEdges(intensity, p.opts.Edge)
	defer edges.Close()

	cand, ok := p.matcher.MatchBest(intensity, edges, p.opts.Mode)
	if !ok {
		p.empty.Add(1)
		p.logger.Debug("no eligible template for frame", "cols", frame.Cols(), "rows", frame.Rows())
		return Outcome{Class: ClassNone}, nil
	}

	out := Outcome{Candidate: cand, Found: true, Class: Classify(cand.Score, p.opts.Threshold, p.opts.NearMiss)}
	switch out.Class {
	case ClassHit:
		p.hits.Add(1)
		out.Target = cand.Center.Add(origin)
		p.logger.Info("match hit", "template", cand.Template, "score", cand.Score, "scale", cand.Scale,
			"x", out.Target.X, "y", out.Target.Y, "streak", p.gate.Streak()+1)
		if p.gate.Observe(true) {
			out.Triggered = true
			p.triggers.Add(1)
			p.fire(out)
		}
		if p.opts.SaveHits {
			p.emit(frame, cand, "HIT", "hit")
		}
	case ClassNear:
		p.nears.Add(1)
		p.logger.Debug("near miss", "template", cand.Template, "score", cand.Score, "threshold", p.opts.Threshold)
		p.gate.Observe(false)
		if p.opts.SaveNearMisses {
			p.emit(frame, cand, "NEAR", "near")
		}
	default:
		p.misses.Add(1)
		p.logger.Debug("miss", "template", cand.Template, "score", cand.Score)
		p.gate.Observe(false)
	}
	return out, nil
}

func (p *Pipeline) fire(out Outcome) {
	p.logger.Info("trigger fired", "template", out.Candidate.Template, "x", out.Target.X, "y", out.Target.Y)
	if p.exec == nil {
		return
	}
	err := p.exec.Execute(action.Trigger{Target: out.Target, Candidate: out.Candidate, At: p.clock.Now()})
	switch {
	case errors.Is(err, action.ErrRateLimited):
		p.logger.Warn("trigger suppressed by rate limit", "template", out.Candidate.Template)
	case err != nil:
		p.logger.Error("action executor failed", "error", err)
	}
}

func (p *Pipeline) emit(frame gocv.Mat, cand vision.Candidate, kind, prefix string) {
	if p.sink == nil {
		return
	}
	annotated := vision.Annotate(frame, cand, vision.Label(kind, cand))
	if _, err := p.sink.Save(annotated, prefix); err != nil && !errors.Is(err, artifact.ErrDuplicate) {
		p.logger.Warn("debug artifact not saved", "prefix", prefix, "error", err)
	}
}

// Stats summarises pipeline activity.
type Stats struct {
	Frames      uint64
	Hits        uint64
	NearMisses  uint64
	Misses      uint64
	Empty       uint64
	Triggers    uint64
	AvgProcess  time.Duration
	LastProcess time.Duration
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	frames := p.frames.Load()
	var avg time.Duration
	if frames > 0 {
		avg = time.Duration(p.procNanos.Load() / frames)
	}
	return Stats{
		Frames:      frames,
		Hits:        p.hits.Load(),
		NearMisses:  p.nears.Load(),
		Misses:      p.misses.Load(),
		Empty:       p.empty.Load(),
		Triggers:    p.triggers.Load(),
		AvgProcess:  avg,
		LastProcess: time.Duration(p.lastNanos.Load()),
	}
}

// LogValue renders stats as a slog group.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("frames", s.Frames),
		slog.Uint64("hits", s.Hits),
		slog.Uint64("near", s.NearMisses),
		slog.Uint64("misses", s.Misses),
		slog.Uint64("empty", s.Empty),
		slog.Uint64("triggers", s.Triggers),
		slog.Duration("avg_process", s.AvgProcess),
	)
}
