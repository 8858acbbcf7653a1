package classify

import (
	"math"
	"testing"

	"github.com/ironsheep/desk-mode-mcp/internal/detection"
)

func ptr(v float64) *float64 { return &v }

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClassify(t *testing.T) {
	// One pixel is one millimeter, so sizes read directly.
	c := NewClassifier(1.0, DefaultRules())

	tests := []struct {
		name     string
		obs      Observation
		wantL    Label
		wantConf float64
	}{
		{
			name:     "pen with both bonuses",
			obs:      Observation{Shape: detection.Rectangle, Width: 150, Height: 8, AreaPx: 900},
			wantL:    Pen,
			wantConf: 5.6 / 8.6, // Pen 5.6, Book 2.0, Unknown 1.0
		},
		{
			name:     "long pen without footprint bonus",
			obs:      Observation{Shape: detection.Oval, Width: 20, Height: 120, AreaPx: 2000},
			wantL:    Pen,
			wantConf: 2.8 / 4.8, // an oval this large also scores Cup 1.0
		},
		{
			name:     "book",
			obs:      Observation{Shape: detection.Rectangle, Width: 200, Height: 150, AreaPx: 30000},
			wantL:    Book,
			wantConf: 2.0 / 3.0,
		},
		{
			name: "warm cup",
			obs: Observation{Shape: detection.Circle, Width: 80, Height: 80, AreaPx: 5000,
				ObjectTemp: ptr(55), AmbientTemp: ptr(22)},
			wantL:    Cup,
			wantConf: 2.5 / 3.5,
		},
		{
			name:     "cup ties unknown and wins by order",
			obs:      Observation{Shape: detection.Oval, Width: 80, Height: 70, AreaPx: 5000},
			wantL:    Cup,
			wantConf: 0.5,
		},
		{
			name:     "unknown shape scores nothing",
			obs:      Observation{Shape: detection.Unknown, Width: 150, Height: 8, AreaPx: 900},
			wantL:    Unknown,
			wantConf: 1.0,
		},
		{
			name:     "large round object without temperatures is not a pen",
			obs:      Observation{Shape: detection.Circle, Width: 300, Height: 290, AreaPx: 5000},
			wantL:    Cup,
			wantConf: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.obs)
			if got.Label != tt.wantL {
				t.Errorf("Label: got %s, want %s (scores %v)", got.Label, tt.wantL, got.Scores)
			}
			if !approxEqual(got.Confidence, tt.wantConf) {
				t.Errorf("Confidence: got %v, want %v", got.Confidence, tt.wantConf)
			}
			if got.Confidence > 1.0 {
				t.Errorf("Confidence above 1: %v", got.Confidence)
			}
		})
	}
}

func TestClassify_RawScores(t *testing.T) {
	c := NewClassifier(1.0, DefaultRules())
	got := c.Classify(Observation{Shape: detection.Rectangle, Width: 150, Height: 8, AreaPx: 900})

	want := map[Label]float64{Pen: 5.6, Book: 2.0, Cup: 0, Bottle: 0, Unknown: 1.0}
	for l, w := range want {
		if !approxEqual(got.Scores[l], w) {
			t.Errorf("score %s: got %v, want %v", l, got.Scores[l], w)
		}
	}
	if len(got.Scores) != len(Labels) {
		t.Errorf("scores should list every label, got %v", got.Scores)
	}
}

func TestClassify_Thermal(t *testing.T) {
	c := NewClassifier(1.0, DefaultRules())
	base := Observation{Shape: detection.Circle, Width: 80, Height: 80, AreaPx: 5000}

	tests := []struct {
		name     string
		obj, amb *float64
		wantCup  float64
	}{
		{"no readings", nil, nil, 1.0},
		{"object only", ptr(40), nil, 1.0},
		{"ambient only", nil, ptr(20), 1.0},
		{"same temperature", ptr(21), ptr(21), 1.0},
		{"just below delta", ptr(21.5), ptr(21), 1.0},
		{"exactly delta", ptr(22), ptr(21), 2.5},
		{"cold drink", ptr(5), ptr(21), 2.5},
		{"zero is a reading", ptr(0), ptr(20), 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := base
			obs.ObjectTemp, obs.AmbientTemp = tt.obj, tt.amb
			got := c.Classify(obs)
			if !approxEqual(got.Scores[Cup], tt.wantCup) {
				t.Errorf("Cup score: got %v, want %v", got.Scores[Cup], tt.wantCup)
			}
		})
	}
}

func TestClassify_HumidityIgnored(t *testing.T) {
	c := NewClassifier(1.0, DefaultRules())
	obs := Observation{Shape: detection.Circle, Width: 80, Height: 80, AreaPx: 5000}

	without := c.Classify(obs)
	obs.Humidity = ptr(85)
	with := c.Classify(obs)

	if without.Label != with.Label || !approxEqual(without.Confidence, with.Confidence) {
		t.Errorf("humidity changed the result: %+v vs %+v", without, with)
	}
}

func TestClassify_Scale(t *testing.T) {
	c := NewClassifier(0.65, DefaultRules())
	got := c.Classify(Observation{Shape: detection.Rectangle, Width: 200, Height: 100, AreaPx: 10000})

	if !approxEqual(got.WidthMM, 130) || !approxEqual(got.HeightMM, 65) {
		t.Errorf("mm: got %vx%v, want 130x65", got.WidthMM, got.HeightMM)
	}
	if !approxEqual(got.AreaCM2, 10000*0.65*0.65/100) {
		t.Errorf("AreaCM2: got %v", got.AreaCM2)
	}
}

func TestClassify_NonPositiveSize(t *testing.T) {
	tests := []struct {
		name string
		obs  Observation
	}{
		{"large area", Observation{Shape: detection.Rectangle, Width: 0, Height: -5, AreaPx: 5000}},
		{"small area", Observation{Shape: detection.Rectangle, Width: 0, Height: 0, AreaPx: 100}},
		{"zero height", Observation{Shape: detection.Oval, Width: 40, Height: 0, AreaPx: 100}},
		{"negative width", Observation{Shape: detection.Square, Width: -10, Height: 10, AreaPx: 0}},
	}

	c := NewClassifier(0.65, DefaultRules())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.obs)
			if got.Scores[Pen] != 0 || got.Scores[Book] != 0 {
				t.Errorf("size rules should fail for non-positive sizes, got %v", got.Scores)
			}
			if got.Label != Unknown {
				t.Errorf("Label: got %s, want Unknown", got.Label)
			}
		})
	}
}

func TestNewClassifier_DefaultScale(t *testing.T) {
	for _, s := range []float64{0, -1} {
		if got := NewClassifier(s, DefaultRules()).MMPerPixel(); got != DefaultMMPerPixel {
			t.Errorf("NewClassifier(%v): scale %v, want %v", s, got, DefaultMMPerPixel)
		}
	}
}

func TestRange_Contains(t *testing.T) {
	r := Range{Lo: 70, Hi: 230}
	for v, want := range map[float64]bool{69.9: false, 70: true, 150: true, 230: true, 230.1: false} {
		if got := r.Contains(v); got != want {
			t.Errorf("Contains(%v) = %v, want %v", v, got, want)
		}
	}
}
