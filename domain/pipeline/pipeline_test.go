package pipeline

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/soocke/game-watcher-go/domain/action"
	"github.com/soocke/game-watcher-go/domain/artifact"
	"github.com/soocke/game-watcher-go/domain/trigger"
	"github.com/soocke/game-watcher-go/domain/vision"
)

// scriptedMatcher returns one scripted result per call.
type scriptedMatcher struct {
	results []*vision.Candidate // nil entry = no candidate
	calls   int
}

func (s *scriptedMatcher) MatchBest(_, _ gocv.Mat, _ vision.Mode) (vision.Candidate, bool) {
	r := s.results[s.calls]
	s.calls++
	if r == nil {
		return vision.Candidate{}, false
	}
	return *r, true
}

type recordingSink struct {
	prefixes []string
	err      error
}

func (r *recordingSink) Save(img gocv.Mat, prefix string) (string, error) {
	img.Close()
	r.prefixes = append(r.prefixes, prefix)
	return "", r.err
}

type recordingExecutor struct {
	triggers []action.Trigger
	err      error
}

func (r *recordingExecutor) Execute(t action.Trigger) error {
	r.triggers = append(r.triggers, t)
	return r.err
}

func cand(name string, score float64) *vision.Candidate {
	return &vision.Candidate{
		Template: name,
		Score:    score,
		TopLeft:  image.Pt(10, 20),
		Size:     image.Pt(8, 6),
		Center:   image.Pt(14, 23),
		Scale:    1,
	}
}

func testFrame(t *testing.T) gocv.Mat {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = byte(i * 7)
	}
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		t.Fatalf("ImageToMatRGB: %v", err)
	}
	return m
}

func newPipeline(m BestMatcher, confirm int, exec action.Executor, sink artifact.Sink) *Pipeline {
	clk := trigger.NewManualClock(trigger.SystemClock{}.Now())
	return New(m, trigger.NewGate(confirm, 0, clk), exec, sink, Options{
		Mode:           vision.ModeEdges,
		Edge:           vision.DefaultEdgeParams(),
		Threshold:      0.8,
		NearMiss:       0.6,
		SaveHits:       true,
		SaveNearMisses: true,
	}, nil)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		score float64
		want  Class
	}{
		{0.95, ClassHit},
		{0.8, ClassHit},
		{0.79, ClassNear},
		{0.6, ClassNear},
		{0.59, ClassMiss},
		{-1, ClassMiss},
	}
	for _, c := range cases {
		if got := Classify(c.score, 0.8, 0.6); got != c.want {
			t.Fatalf("Classify(%v)=%v want %v", c.score, got, c.want)
		}
	}
}

func TestProcessFrame_HitFiresWithScreenTarget(t *testing.T) {
	frame := testFrame(t)
	defer frame.Close()
	exec := &recordingExecutor{}
	sink := &recordingSink{}
	p := newPipeline(&scriptedMatcher{results: []*vision.Candidate{cand("marker", 0.93)}}, 1, exec, sink)

	out, err := p.ProcessFrame(frame, image.Pt(100, 200))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if out.Class != ClassHit || !out.Triggered || out.Target != image.Pt(114, 223) {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if len(exec.triggers) != 1 || exec.triggers[0].Target != image.Pt(114, 223) {
		t.Fatalf("executor got %+v", exec.triggers)
	}
	if len(sink.prefixes) != 1 || sink.prefixes[0] != "hit" {
		t.Fatalf("sink got %v", sink.prefixes)
	}
}

func TestProcessFrame_NearMissResetsStreak(t *testing.T) {
	frame := testFrame(t)
	defer frame.Close()
	exec := &recordingExecutor{}
	sink := &recordingSink{}
	m := &scriptedMatcher{results: []*vision.Candidate{cand("m", 0.9), cand("m", 0.7), cand("m", 0.9)}}
	p := newPipeline(m, 2, exec, sink)

	var classes []Class
	for range m.results {
		out, err := p.ProcessFrame(frame, image.Point{})
		if err != nil {
			t.Fatalf("ProcessFrame: %v", err)
		}
		if out.Triggered {
			t.Fatalf("unexpected trigger")
		}
		classes = append(classes, out.Class)
	}
	if classes[1] != ClassNear || p.Gate().Streak() != 1 {
		t.Fatalf("classes=%v streak=%d", classes, p.Gate().Streak())
	}
	if got := len(sink.prefixes); got != 3 || sink.prefixes[1] != "near" {
		t.Fatalf("sink got %v", sink.prefixes)
	}
}

func TestProcessFrame_NoCandidateLeavesGateAlone(t *testing.T) {
	frame := testFrame(t)
	defer frame.Close()
	exec := &recordingExecutor{}
	m := &scriptedMatcher{results: []*vision.Candidate{cand("m", 0.9), nil, cand("m", 0.9)}}
	p := newPipeline(m, 2, exec, &recordingSink{})

	var last Outcome
	for range m.results {
		out, err := p.ProcessFrame(frame, image.Point{})
		if err != nil {
			t.Fatalf("ProcessFrame: %v", err)
		}
		last = out
	}
	if !last.Triggered || len(exec.triggers) != 1 {
		t.Fatalf("expected streak to survive the empty frame, outcome=%+v", last)
	}
	if s := p.Stats(); s.Frames != 3 || s.Empty != 1 || s.Hits != 2 || s.Triggers != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestProcessFrame_ArtifactAndExecutorErrorsDoNotFail(t *testing.T) {
	frame := testFrame(t)
	defer frame.Close()
	exec := &recordingExecutor{err: action.ErrRateLimited}
	sink := &recordingSink{err: errors.New("disk full")}
	p := newPipeline(&scriptedMatcher{results: []*vision.Candidate{cand("m", 0.99)}}, 1, exec, sink)
	out, err := p.ProcessFrame(frame, image.Point{})
	if err != nil || !out.Triggered {
		t.Fatalf("expected success despite sink/executor errors, got %+v %v", out, err)
	}
}

func TestProcessFrame_RejectsMalformedFrame(t *testing.T) {
	gray := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC1)
	defer gray.Close()
	p := newPipeline(&scriptedMatcher{}, 1, nil, nil)
	if _, err := p.ProcessFrame(gray, image.Point{}); !errors.Is(err, vision.ErrInvalidImageShape) {
		t.Fatalf("expected ErrInvalidImageShape, got %v", err)
	}
	if s := p.Stats(); s.Frames != 0 || s.AvgProcess != 0 || s.LastProcess != 0 {
		t.Fatalf("rejected frame must not count toward timing, got %+v", s)
	}
}
