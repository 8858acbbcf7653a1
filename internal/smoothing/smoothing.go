// Package smoothing turns noisy per-frame labels into a stable label with a
// sliding-window majority vote.
package smoothing

// Default window parameters.
const (
	DefaultSize     = 8
	DefaultRequired = 5
)

// Entry is one frame's raw classification.
type Entry struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Decision is the outcome of pushing one entry.
type Decision struct {
	// Label is the stable label: the majority label when it reaches the
	// required count, otherwise the raw label just pushed.
	Label string `json:"label"`

	// Confidence belongs to the entry just pushed.
	Confidence float64 `json:"confidence"`

	// Majority is the most frequent label in the window and Count its
	// number of occurrences.
	Majority string `json:"majority"`
	Count    int    `json:"count"`

	// Smoothed reports whether the majority overrode the raw label.
	Smoothed bool `json:"smoothed"`
}

// Window is a bounded FIFO of recent entries. The zero value is not usable;
// create windows with NewWindow. A Window is not safe for concurrent use.
type Window struct {
	size     int
	required int
	entries  []Entry
}

// NewWindow creates a window keeping the last size entries and requiring
// required occurrences for a majority. Non-positive values fall back to the
// defaults, and required is capped at size.
func NewWindow(size, required int) *Window {
	if size <= 0 {
		size = DefaultSize
	}
	if required <= 0 {
		required = DefaultRequired
	}
	if required > size {
		required = size
	}
	return &Window{
		size:     size,
		required: required,
		entries:  make([]Entry, 0, size),
	}
}

// Size returns the window capacity.
func (w *Window) Size() int { return w.size }

// Required returns the majority threshold.
func (w *Window) Required() int { return w.required }

// Len returns the number of entries held.
func (w *Window) Len() int { return len(w.entries) }

// Push appends a raw classification, evicting the oldest entry when full,
// and returns the stable decision.
func (w *Window) Push(label string, confidence float64) Decision {
	if len(w.entries) == w.size {
		copy(w.entries, w.entries[1:])
		w.entries = w.entries[:len(w.entries)-1]
	}
	w.entries = append(w.entries, Entry{Label: label, Confidence: confidence})

	best, count := w.Majority()
	d := Decision{
		Label:      label,
		Confidence: confidence,
		Majority:   best,
		Count:      count,
	}
	if count >= w.required {
		d.Smoothed = best != label
		d.Label = best
	}
	return d
}

// Majority returns the most frequent label and its count. Ties go to the
// label whose earliest occurrence is oldest. An empty window returns "", 0.
func (w *Window) Majority() (string, int) {
	counts := make(map[string]int, len(w.entries))
	var order []string
	for _, e := range w.entries {
		if counts[e.Label] == 0 {
			order = append(order, e.Label)
		}
		counts[e.Label]++
	}

	var best string
	bestCount := 0
	for _, l := range order {
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best, bestCount
}

// Entries returns a copy of the window contents, oldest first.
func (w *Window) Entries() []Entry {
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Reset empties the window.
func (w *Window) Reset() {
	w.entries = w.entries[:0]
}
