// Package classify scores a selected contour against a small set of desk
// objects using real-world size, shape and an optional thermal signature.
package classify

import (
	"math"

	"github.com/ironsheep/desk-mode-mcp/internal/detection"
	"gonum.org/v1/gonum/floats"
)

// Label is an object class.
type Label string

// Object classes. The order of Labels breaks ties between equal scores.
const (
	Pen     Label = "Pen"
	Book    Label = "Book"
	Cup     Label = "Cup"
	Bottle  Label = "Bottle"
	Unknown Label = "Unknown"
)

// Labels lists every class in tie-break order.
var Labels = [...]Label{Pen, Book, Cup, Bottle, Unknown}

// DefaultMMPerPixel is the linear scale of the reference desk camera.
const DefaultMMPerPixel = 0.65

// Range is a closed interval of real-world lengths in millimeters.
type Range struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Contains reports whether v lies in [Lo, Hi].
func (r Range) Contains(v float64) bool {
	return v >= r.Lo && v <= r.Hi
}

// Rules holds every scoring constant. A Rules value is copied into the
// classifier and never changed afterwards.
type Rules struct {
	// UnknownBaseline seeds the Unknown score.
	UnknownBaseline float64 `json:"unknown_baseline"`

	// Pen: thin and long, and optionally small in footprint.
	PenElongationBonus float64 `json:"pen_elongation_bonus"`
	PenElongation      float64 `json:"pen_elongation"`
	PenMinLengthMM     float64 `json:"pen_min_length_mm"`
	PenFootprintBonus  float64 `json:"pen_footprint_bonus"`
	PenMaxAreaCM2      float64 `json:"pen_max_area_cm2"`

	// Book: page-like proportions.
	BookBonus   float64 `json:"book_bonus"`
	BookLongMM  Range   `json:"book_long_mm"`
	BookShortMM Range   `json:"book_short_mm"`

	// Cup: round footprint, optionally warmer or colder than the room.
	CupBonus        float64 `json:"cup_bonus"`
	CupMinAreaCM2   float64 `json:"cup_min_area_cm2"`
	CupThermalBonus float64 `json:"cup_thermal_bonus"`
	CupMinDeltaC    float64 `json:"cup_min_delta_c"`
}

// DefaultRules returns the scoring constants for the reference desk setup.
func DefaultRules() Rules {
	return Rules{
		UnknownBaseline: 1.0,

		PenElongationBonus: 2.8,
		PenElongation:      3.0,
		PenMinLengthMM:     80,
		PenFootprintBonus:  2.8,
		PenMaxAreaCM2:      10,

		BookBonus:   2.0,
		BookLongMM:  Range{Lo: 150, Hi: 450},
		BookShortMM: Range{Lo: 70, Hi: 230},

		CupBonus:        1.0,
		CupMinAreaCM2:   10,
		CupThermalBonus: 1.5,
		CupMinDeltaC:    1.0,
	}
}

// Observation is everything known about one candidate.
//
// Temperatures and humidity are optional; nil means "not available", which
// is different from a zero reading. Humidity is accepted but does not affect
// any score. The frame size is informational.
type Observation struct {
	Color  string
	Shape  detection.Shape
	AreaPx float64
	Width  int // bounding box width in pixels
	Height int // bounding box height in pixels

	FrameWidth  int
	FrameHeight int

	ObjectTemp  *float64
	AmbientTemp *float64
	Humidity    *float64
}

// Result is the outcome of one classification.
type Result struct {
	// Label is the winning class.
	Label Label `json:"label"`

	// Confidence is the winner's share of the total score, at most 1.0.
	Confidence float64 `json:"confidence"`

	// Scores holds the raw (unnormalized) score of every class.
	Scores map[Label]float64 `json:"scores"`

	// Real-world measurements the rules were applied to.
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`
	AreaCM2  float64 `json:"area_cm2"`
}

// Classifier applies Rules at a fixed pixel scale. It holds no mutable
// state and is safe for concurrent use.
type Classifier struct {
	mmPerPixel float64
	rules      Rules
}

// NewClassifier creates a classifier. A non-positive scale falls back to
// DefaultMMPerPixel.
func NewClassifier(mmPerPixel float64, rules Rules) *Classifier {
	if mmPerPixel <= 0 {
		mmPerPixel = DefaultMMPerPixel
	}
	return &Classifier{mmPerPixel: mmPerPixel, rules: rules}
}

// MMPerPixel returns the pixel scale in use.
func (c *Classifier) MMPerPixel() float64 {
	return c.mmPerPixel
}

// Rules returns a copy of the scoring rules.
func (c *Classifier) Rules() Rules {
	return c.rules
}

// Classify scores an observation and picks the most likely class.
//
// # Scoring
//
// Scores start at Unknown = UnknownBaseline and 0 for everything else, and
// each rule adds to one class:
//
//   - Pen: PenElongationBonus when the shape is any known shape, the long
//     side exceeds PenElongation times the short side and is at least
//     PenMinLengthMM; PenFootprintBonus more when the area is at most
//     PenMaxAreaCM2 (same shape condition). The two bonuses are independent
//     and both need a positive width and height.
//   - Book: BookBonus when the shape is Rectangle or Square, one side lies in
//     BookLongMM and one side lies in BookShortMM.
//   - Cup: CupBonus when the shape is Circle or Oval and the area is at least
//     CupMinAreaCM2; CupThermalBonus more when both temperatures are known
//     and differ by at least CupMinDeltaC.
//   - Bottle: never scored.
//
// When the total is at most UnknownBaseline nothing matched and the result
// is Unknown with confidence 1. Otherwise each score is divided by the total
// and the largest share wins, ties going to the earlier class in Labels.
func (c *Classifier) Classify(obs Observation) Result {
	r := c.rules

	widthMM := float64(obs.Width) * c.mmPerPixel
	heightMM := float64(obs.Height) * c.mmPerPixel
	areaCM2 := obs.AreaPx * c.mmPerPixel * c.mmPerPixel / 100
	longMM := math.Max(widthMM, heightMM)
	shortMM := math.Min(widthMM, heightMM)

	var scores [len(Labels)]float64
	scores[indexOf(Unknown)] = r.UnknownBaseline

	switch obs.Shape {
	case detection.Rectangle, detection.Square, detection.Oval, detection.Circle:
		if shortMM <= 0 {
			break
		}
		if longMM > r.PenElongation*shortMM && longMM >= r.PenMinLengthMM {
			scores[indexOf(Pen)] += r.PenElongationBonus
		}
		if areaCM2 <= r.PenMaxAreaCM2 {
			scores[indexOf(Pen)] += r.PenFootprintBonus
		}
	}

	switch obs.Shape {
	case detection.Rectangle, detection.Square:
		long := r.BookLongMM.Contains(widthMM) || r.BookLongMM.Contains(heightMM)
		short := r.BookShortMM.Contains(widthMM) || r.BookShortMM.Contains(heightMM)
		if long && short {
			scores[indexOf(Book)] += r.BookBonus
		}
	}

	switch obs.Shape {
	case detection.Circle, detection.Oval:
		if areaCM2 >= r.CupMinAreaCM2 {
			scores[indexOf(Cup)] += r.CupBonus
		}
		if obs.ObjectTemp != nil && obs.AmbientTemp != nil &&
			math.Abs(*obs.ObjectTemp-*obs.AmbientTemp) >= r.CupMinDeltaC {
			scores[indexOf(Cup)] += r.CupThermalBonus
		}
	}

	result := Result{
		Scores:   make(map[Label]float64, len(Labels)),
		WidthMM:  widthMM,
		HeightMM: heightMM,
		AreaCM2:  areaCM2,
	}
	for i, l := range Labels {
		result.Scores[l] = scores[i]
	}

	total := floats.Sum(scores[:])
	if total <= r.UnknownBaseline {
		result.Label = Unknown
		result.Confidence = 1.0
		return result
	}

	shares := scores
	floats.Scale(1/total, shares[:])
	best := floats.MaxIdx(shares[:])

	result.Label = Labels[best]
	result.Confidence = math.Min(shares[best], 1.0)
	return result
}

func indexOf(l Label) int {
	for i, x := range Labels {
		if x == l {
			return i
		}
	}
	return len(Labels) - 1
}
