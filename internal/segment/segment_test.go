package segment

import (
	"encoding/json"
	"testing"

	"github.com/ironsheep/desk-mode-mcp/internal/imaging"
)

// hsvFrame builds a frame from a row of HSV triples.
func hsvFrame(pixels ...[3]uint8) *imaging.HSVFrame {
	f := imaging.NewHSVFrame(len(pixels), 1)
	for x, p := range pixels {
		f.Set(x, 0, p[0], p[1], p[2])
	}
	return f
}

func maskByLabel(t *testing.T, masks []Mask, label string) Mask {
	t.Helper()
	for _, m := range masks {
		if m.Label == label {
			return m
		}
	}
	t.Fatalf("no mask for label %q", label)
	return Mask{}
}

func TestInterval_Contains(t *testing.T) {
	i := Interval{Lo: 10, Hi: 20}

	tests := []struct {
		v    uint8
		want bool
	}{
		{9, false},
		{10, true},
		{15, true},
		{20, true},
		{21, false},
	}

	for _, tt := range tests {
		if got := i.Contains(tt.v); got != tt.want {
			t.Errorf("Contains(%d) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestInterval_JSON(t *testing.T) {
	var r ColorRange
	if err := json.Unmarshal([]byte(`{"name":"Teal","hue":[80,95],"sat":[50,255],"val":[40,255]}`), &r); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if r.Hue != (Interval{80, 95}) || r.Val.Lo != 40 {
		t.Errorf("decoded %+v", r)
	}

	data, err := json.Marshal(Interval{3, 7})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "[3,7]" {
		t.Errorf("Marshal: got %s, want [3,7]", data)
	}

	if err := json.Unmarshal([]byte(`{"hue":5}`), &r); err == nil {
		t.Error("scalar interval should be rejected")
	}
}

func TestNewTable_Labels(t *testing.T) {
	table, err := NewTable(DefaultTable())
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	want := []string{"Red", "Orange", "Yellow", "Green", "Blue", "Purple", "Pink", "Black", "Brown"}
	got := table.Labels()
	if len(got) != len(want) {
		t.Fatalf("labels: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("label %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestNewTable_Errors(t *testing.T) {
	tests := []struct {
		name   string
		ranges []ColorRange
	}{
		{"empty", nil},
		{"unnamed", []ColorRange{{Name: " "}}},
		{"duplicate", []ColorRange{{Name: "Blue"}, {Name: "Blue"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable(tt.ranges); err == nil {
				t.Error("NewTable should fail")
			}
		})
	}
}

func TestNewTable_CopiesInput(t *testing.T) {
	ranges := DefaultTable()
	table, err := NewTable(ranges)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	ranges[0].Hue = Interval{90, 90}
	if got := table.Ranges()[0].Hue; got != (Interval{0, 10}) {
		t.Errorf("table mutated through caller slice: %+v", got)
	}
}

func TestSegment_IntervalMembership(t *testing.T) {
	table, err := NewTable(DefaultTable())
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	tests := []struct {
		name  string
		hsv   [3]uint8
		label string
		want  bool
	}{
		{"blue center", [3]uint8{110, 200, 200}, "Blue", true},
		{"blue low edge", [3]uint8{86, 60, 60}, "Blue", true},
		{"blue below sat", [3]uint8{110, 59, 200}, "Blue", false},
		{"green upper edge", [3]uint8{85, 60, 60}, "Green", true},
		{"green is not blue", [3]uint8{85, 200, 200}, "Blue", false},
		{"black dark gray", [3]uint8{0, 0, 60}, "Black", true},
		{"black too bright", [3]uint8{0, 0, 61}, "Black", false},
		{"orange and brown overlap", [3]uint8{15, 150, 110}, "Brown", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masks := table.Segment(hsvFrame(tt.hsv))
			m := maskByLabel(t, masks, tt.label)
			if got := m.Image.GrayAt(0, 0).Y == 255; got != tt.want {
				t.Errorf("%s at %v: got %v, want %v", tt.label, tt.hsv, got, tt.want)
			}
		})
	}
}

func TestSegment_RedUnion(t *testing.T) {
	table, err := NewTable(DefaultTable())
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	// low red, high red, and a blue pixel
	frame := hsvFrame([3]uint8{5, 200, 200}, [3]uint8{170, 200, 200}, [3]uint8{110, 200, 200})
	masks := table.Segment(frame)

	for _, m := range masks {
		if m.Label == RedLow || m.Label == RedHigh {
			t.Fatalf("red half %q exposed downstream", m.Label)
		}
	}

	red := maskByLabel(t, masks, Red)
	if red.Image.GrayAt(0, 0).Y != 255 || red.Image.GrayAt(1, 0).Y != 255 {
		t.Error("both red halves must be set in the Red mask")
	}
	if red.Image.GrayAt(2, 0).Y != 0 {
		t.Error("blue pixel leaked into the Red mask")
	}
	if red.Count() != 2 {
		t.Errorf("Red count: got %d, want 2", red.Count())
	}
}

func TestSegment_MaskSize(t *testing.T) {
	table, _ := NewTable(DefaultTable())
	frame := imaging.NewHSVFrame(7, 5)

	for _, m := range table.Segment(frame) {
		b := m.Image.Bounds()
		if b.Dx() != 7 || b.Dy() != 5 {
			t.Errorf("%s mask size: got %v, want 7x5", m.Label, b)
		}
	}
}
