// Package segment turns a preprocessed HSV frame into one binary mask per
// color label.
//
// The color table is an ordered list of named HSV boxes. Each box yields a
// mask whose pixels are 255 where H, S and V all fall inside the box's
// closed intervals and 0 elsewhere. Hue wraps around 0/180 for red, so red
// is split into two boxes ("Red-low" and "Red-high") that are ORed into a
// single "Red" mask before anything downstream sees them.
package segment

import (
	"encoding/json"
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/desk-mode-mcp/internal/imaging"
)

// Names of the two halves of the red hue range and their union.
const (
	RedLow  = "Red-low"
	RedHigh = "Red-high"
	Red     = "Red"
)

// Interval is a closed range [Lo, Hi] over an 8-bit channel.
type Interval struct {
	Lo uint8
	Hi uint8
}

// Contains reports whether v lies in [Lo, Hi].
func (i Interval) Contains(v uint8) bool {
	return v >= i.Lo && v <= i.Hi
}

// MarshalJSON encodes the interval as a two-element array.
func (i Interval) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint8{i.Lo, i.Hi})
}

// UnmarshalJSON decodes a two-element array [lo, hi].
func (i *Interval) UnmarshalJSON(data []byte) error {
	var pair [2]uint8
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("interval must be [lo, hi]: %w", err)
	}
	i.Lo, i.Hi = pair[0], pair[1]
	return nil
}

// ColorRange is one named HSV box of the color table.
type ColorRange struct {
	Name string   `json:"name"`
	Hue  Interval `json:"hue"`
	Sat  Interval `json:"sat"`
	Val  Interval `json:"val"`
}

// Matches reports whether an HSV triple falls inside all three intervals.
func (c ColorRange) Matches(h, s, v uint8) bool {
	return c.Hue.Contains(h) && c.Sat.Contains(s) && c.Val.Contains(v)
}

// DefaultTable returns the color table tuned for common desk objects under
// indoor lighting. Hue uses the 0-179 half-degree scale.
func DefaultTable() []ColorRange {
	return []ColorRange{
		{Name: RedLow, Hue: Interval{0, 10}, Sat: Interval{100, 255}, Val: Interval{100, 255}},
		{Name: RedHigh, Hue: Interval{160, 180}, Sat: Interval{100, 255}, Val: Interval{100, 255}},
		{Name: "Orange", Hue: Interval{10, 25}, Sat: Interval{100, 255}, Val: Interval{100, 255}},
		{Name: "Yellow", Hue: Interval{25, 35}, Sat: Interval{100, 255}, Val: Interval{100, 255}},
		{Name: "Green", Hue: Interval{36, 85}, Sat: Interval{60, 255}, Val: Interval{60, 255}},
		{Name: "Blue", Hue: Interval{86, 125}, Sat: Interval{60, 255}, Val: Interval{60, 255}},
		{Name: "Purple", Hue: Interval{126, 145}, Sat: Interval{60, 255}, Val: Interval{60, 255}},
		{Name: "Pink", Hue: Interval{146, 159}, Sat: Interval{80, 255}, Val: Interval{80, 255}},
		{Name: "Black", Hue: Interval{0, 180}, Sat: Interval{0, 255}, Val: Interval{0, 60}},
		{Name: "Brown", Hue: Interval{5, 25}, Sat: Interval{100, 255}, Val: Interval{20, 120}},
	}
}

// Mask is the binary mask produced for one color label.
type Mask struct {
	Label string
	Image *image.Gray
}

// Count returns the number of set pixels in the mask.
func (m Mask) Count() int {
	n := 0
	for _, p := range m.Image.Pix {
		if p != 0 {
			n++
		}
	}
	return n
}

// Table is an immutable, ordered color table.
type Table struct {
	ranges []ColorRange
	labels []string
	// slot maps each range index to its label index.
	slot []int
}

// NewTable copies the given ranges into a table.
//
// Label order follows the ranges, with both red halves collapsing into a
// single "Red" label at the position of whichever half comes first. A range
// named "Red" is merged with the halves. Duplicate non-red names and empty
// names are rejected.
func NewTable(ranges []ColorRange) (*Table, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("color table is empty")
	}

	t := &Table{
		ranges: append([]ColorRange(nil), ranges...),
		slot:   make([]int, len(ranges)),
	}
	index := make(map[string]int, len(ranges))

	for i, r := range t.ranges {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("color range %d has no name", i)
		}
		label := LabelFor(name)
		if j, ok := index[label]; ok {
			if label != Red {
				return nil, fmt.Errorf("duplicate color range %q", name)
			}
			t.slot[i] = j
			continue
		}
		index[label] = len(t.labels)
		t.slot[i] = len(t.labels)
		t.labels = append(t.labels, label)
	}
	return t, nil
}

// LabelFor maps a color range name to the label its mask is exposed under.
func LabelFor(name string) string {
	switch name {
	case RedLow, RedHigh:
		return Red
	}
	return name
}

// Labels returns the mask labels in table order.
func (t *Table) Labels() []string {
	return append([]string(nil), t.labels...)
}

// Ranges returns a copy of the table entries.
func (t *Table) Ranges() []ColorRange {
	return append([]ColorRange(nil), t.ranges...)
}

// Segment produces one mask per label, in label order.
//
// Pixels are 255 where the HSV triple matches any range mapped to the label
// and 0 otherwise. Masks are independent: one pixel may be set in several
// (for example Orange and Brown overlap in hue).
func (t *Table) Segment(hsv *imaging.HSVFrame) []Mask {
	rect := image.Rect(0, 0, hsv.Width, hsv.Height)
	masks := make([]Mask, len(t.labels))
	for i, label := range t.labels {
		masks[i] = Mask{Label: label, Image: image.NewGray(rect)}
	}

	for y := 0; y < hsv.Height; y++ {
		for x := 0; x < hsv.Width; x++ {
			h, s, v := hsv.At(x, y)
			for i, r := range t.ranges {
				if r.Matches(h, s, v) {
					m := masks[t.slot[i]].Image
					m.Pix[y*m.Stride+x] = 255
				}
			}
		}
	}
	return masks
}
