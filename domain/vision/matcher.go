package vision

import (
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"
)

// minScaledDim is the smallest side a rescaled template may have.
const minScaledDim = 8

// Candidate is the best-scoring placement of a template within a frame.
type Candidate struct {
	Template string
	Score    float64
	TopLeft  image.Point
	Size     image.Point // width, height of the scaled template
	Center   image.Point
	Scale    float64
}

// Rect returns the matched area in frame coordinates.
func (c Candidate) Rect() image.Rectangle {
	return image.Rectangle{Min: c.TopLeft, Max: c.TopLeft.Add(c.Size)}
}

// MatcherOptions tunes the matcher. Parallelism is the number of
// (template, scale) pairs evaluated concurrently by this instance; values
// below 1 mean 1, which keeps all work on the caller's goroutine.
type MatcherOptions struct {
	Parallelism int
}

// correlator produces the extremum summary of a correlation surface.
type correlator interface {
	correlate(src, tmpl gocv.Mat, mode gocv.TemplateMatchMode) surface
}

type cvCorrelator struct{}

func (cvCorrelator) correlate(src, tmpl gocv.Mat, mode gocv.TemplateMatchMode) surface {
	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(src, tmpl, &result, mode, mask)
	minVal, maxVal, minLoc, maxLoc := gocv.MinMaxLoc(result)
	return surface{MinVal: float64(minVal), MaxVal: float64(maxVal), MinLoc: minLoc, MaxLoc: maxLoc}
}

// variant is one template at one scale, in both representations.
type variant struct {
	name      string
	scale     float64
	intensity gocv.Mat
	edges     gocv.Mat
	owned     bool
}

func (v variant) mat(mode Mode) gocv.Mat {
	if mode == ModeIntensity {
		return v.intensity
	}
	return v.edges
}

// Matcher searches a frame for the best-scoring (template, scale) pair.
// Scaled variants are built once at construction and owned by the matcher.
type Matcher struct {
	method      Method
	scales      []float64
	parallelism int
	variants    []variant // template-major, scale-minor
	corr        correlator
}

// NewMatcher builds a matcher for the given templates. The method name must be
// one of the supported correlation methods. Non-positive scales are ignored and
// an empty scale list means [1.0].
func NewMatcher(templates []Template, method string, scales []float64, opts MatcherOptions) (*Matcher, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}
	if len(scales) == 0 {
		scales = []float64{1.0}
	}
	usable := make([]float64, 0, len(scales))
	for _, s := range scales {
		if s > 0 && !math.IsNaN(s) && !math.IsInf(s, 0) {
			usable = append(usable, s)
		}
	}
	par := opts.Parallelism
	if par < 1 {
		par = 1
	}
	mt := &Matcher{method: m, scales: usable, parallelism: par, corr: cvCorrelator{}}
	for _, t := range templates {
		for _, s := range usable {
			mt.variants = append(mt.variants, scaleTemplate(t, s))
		}
	}
	return mt, nil
}

func scaleTemplate(t Template, s float64) variant {
	if math.Abs(s-1.0) <= 1e-6 {
		return variant{name: t.Name, scale: s, intensity: t.Intensity, edges: t.Edges}
	}
	w, h := t.Size()
	sz := image.Pt(max(minScaledDim, int(float64(w)*s)), max(minScaledDim, int(float64(h)*s)))
	gi := gocv.NewMat()
	gocv.Resize(t.Intensity, &gi, sz, 0, 0, gocv.InterpolationArea)
	ge := gocv.NewMat()
	gocv.Resize(t.Edges, &ge, sz, 0, 0, gocv.InterpolationArea)
	return variant{name: t.Name, scale: s, intensity: gi, edges: ge, owned: true}
}

// Method returns the configured correlation method.
func (m *Matcher) Method() Method { return m.method }

// Scales returns the effective scale list.
func (m *Matcher) Scales() []float64 { return append([]float64(nil), m.scales...) }

// Close releases the scaled variants. Templates themselves stay with their pack.
func (m *Matcher) Close() {
	for _, v := range m.variants {
		if v.owned {
			v.intensity.Close()
			v.edges.Close()
		}
	}
	m.variants = nil
}

type evaluation struct {
	ok        bool
	candidate Candidate
}

// MatchBest returns the highest-scoring candidate across all templates and
// scales, or false when no pair fits inside the frame. Ties keep the first
// pair in template order, then scale order.
func (m *Matcher) MatchBest(intensity, edges gocv.Mat, mode Mode) (Candidate, bool) {
	src := edges
	if mode == ModeIntensity {
		src = intensity
	}
	results := make([]evaluation, len(m.variants))
	if m.parallelism == 1 || len(m.variants) < 2 {
		for i, v := range m.variants {
			results[i] = m.evaluate(src, v, mode)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, m.parallelism)
		for i, v := range m.variants {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, v variant) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = m.evaluate(src, v, mode)
			}(i, v)
		}
		wg.Wait()
	}

	var best Candidate
	found := false
	for _, r := range results {
		if !r.ok {
			continue
		}
		if !found || r.candidate.Score > best.Score {
			best = r.candidate
			found = true
		}
	}
	return best, found
}

func (m *Matcher) evaluate(src gocv.Mat, v variant, mode Mode) evaluation {
	tmpl := v.mat(mode)
	tw, th := tmpl.Cols(), tmpl.Rows()
	if th >= src.Rows() || tw >= src.Cols() {
		return evaluation{}
	}
	score, loc := m.method.normalize(m.corr.correlate(src, tmpl, methodTable[m.method].mode))
	size := image.Pt(tw, th)
	return evaluation{ok: true, candidate: Candidate{
		Template: v.name,
		Score:    score,
		TopLeft:  loc,
		Size:     size,
		Center:   image.Pt(loc.X+tw/2, loc.Y+th/2),
		Scale:    v.scale,
	}}
}
