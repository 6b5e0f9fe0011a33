package vision

import (
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"
)

// Method identifies a correlation method.
type Method int

const (
	MethodSqDiff Method = iota
	MethodSqDiffNormed
	MethodCCorr
	MethodCCorrNormed
	MethodCCoeff
	MethodCCoeffNormed
)

type family int

const (
	// familyDifference: lower raw values are better.
	familyDifference family = iota
	familyCorrelation
)

type methodInfo struct {
	name   string
	mode   gocv.TemplateMatchMode
	family family
}

var methodTable = map[Method]methodInfo{
	MethodSqDiff:       {"TM_SQDIFF", gocv.TmSqdiff, familyDifference},
	MethodSqDiffNormed: {"TM_SQDIFF_NORMED", gocv.TmSqdiffNormed, familyDifference},
	MethodCCorr:        {"TM_CCORR", gocv.TmCcorr, familyCorrelation},
	MethodCCorrNormed:  {"TM_CCORR_NORMED", gocv.TmCcorrNormed, familyCorrelation},
	MethodCCoeff:       {"TM_CCOEFF", gocv.TmCcoeff, familyCorrelation},
	MethodCCoeffNormed: {"TM_CCOEFF_NORMED", gocv.TmCcoeffNormed, familyCorrelation},
}

// ParseMethod resolves a method name such as "TM_CCOEFF_NORMED". Matching is
// case-insensitive and the "TM_" prefix is optional.
func ParseMethod(name string) (Method, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n != "" && !strings.HasPrefix(n, "TM_") {
		n = "TM_" + n
	}
	for m, info := range methodTable {
		if info.name == n {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMatchMethod, name)
}

func (m Method) String() string {
	if info, ok := methodTable[m]; ok {
		return info.name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// surface is the extremum summary of one correlation surface.
type surface struct {
	MinVal, MaxVal float64
	MinLoc, MaxLoc image.Point
}

// normalize turns a raw surface into a higher-is-better score and its offset.
func (m Method) normalize(s surface) (float64, image.Point) {
	if methodTable[m].family == familyDifference {
		return 1 - s.MinVal, s.MinLoc
	}
	return s.MaxVal, s.MaxLoc
}

// Mode selects the frame representation used for matching.
type Mode int

const (
	ModeEdges Mode = iota
	ModeIntensity
)

// ParseMode accepts "edges", "gray" and "intensity".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "edges", "edge":
		return ModeEdges, nil
	case "gray", "grey", "intensity":
		return ModeIntensity, nil
	}
	return ModeEdges, fmt.Errorf("vision: unknown match mode %q", s)
}

func (m Mode) String() string {
	if m == ModeIntensity {
		return "gray"
	}
	return "edges"
}
