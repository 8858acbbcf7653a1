// Package pipeline runs the full detection chain on one frame at a time.
//
// A Pipeline owns the only mutable state of the detector: the smoothing
// window and the recorded mode. Everything else is derived from the frame
// and the sensor readings passed to Process.
//
//	frame -> Preprocess -> Segment -> Select -> ClassifyShape -> Classify
//	      -> smoothing window -> mode decider -> FrameResult
//
// A Pipeline is not safe for concurrent use. Hosts that report status from
// other goroutines must guard it themselves.
package pipeline

import (
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/ironsheep/desk-mode-mcp/internal/classify"
	"github.com/ironsheep/desk-mode-mcp/internal/detection"
	"github.com/ironsheep/desk-mode-mcp/internal/imaging"
	"github.com/ironsheep/desk-mode-mcp/internal/mode"
	"github.com/ironsheep/desk-mode-mcp/internal/segment"
	"github.com/ironsheep/desk-mode-mcp/internal/sensors"
	"github.com/ironsheep/desk-mode-mcp/internal/smoothing"
)

// Options configures a Pipeline. Options are copied at construction.
type Options struct {
	// ROIScale is the region of interest size as a fraction of each frame
	// dimension.
	ROIScale float64 `json:"roi_scale"`

	// MinArea drops contours smaller than this many square pixels.
	MinArea float64 `json:"min_area"`

	// ROIFallback enables the ROI-overlap rule. Disabling it gives
	// center-only detection.
	ROIFallback bool `json:"roi_fallback"`

	UseGamma       bool    `json:"use_gamma"`
	Gamma          float64 `json:"gamma"`
	CLAHEClipLimit float64 `json:"clahe_clip_limit"`
	CLAHETiles     int     `json:"clahe_tiles"`

	// MMPerPixel converts pixel sizes to millimeters.
	MMPerPixel float64 `json:"mm_per_pixel"`

	WindowSize int `json:"window_size"`
	Required   int `json:"required"`

	ColorRanges []segment.ColorRange `json:"color_ranges"`
	Rules       classify.Rules       `json:"rules"`
}

// DefaultOptions returns the settings for the reference desk camera.
func DefaultOptions() Options {
	pre := imaging.DefaultPreprocessOptions()
	return Options{
		ROIScale:       0.30,
		MinArea:        250,
		ROIFallback:    true,
		UseGamma:       pre.UseGamma,
		Gamma:          pre.Gamma,
		CLAHEClipLimit: pre.ClipLimit,
		CLAHETiles:     pre.TileGrid,
		MMPerPixel:     classify.DefaultMMPerPixel,
		WindowSize:     smoothing.DefaultSize,
		Required:       smoothing.DefaultRequired,
		ColorRanges:    segment.DefaultTable(),
		Rules:          classify.DefaultRules(),
	}
}

// PreprocessOptions returns the preprocessing subset of the options.
func (o Options) PreprocessOptions() imaging.PreprocessOptions {
	return imaging.PreprocessOptions{
		UseGamma:  o.UseGamma,
		Gamma:     o.Gamma,
		ClipLimit: o.CLAHEClipLimit,
		TileGrid:  o.CLAHETiles,
	}
}

func (o Options) selector() detection.SelectorOptions {
	return detection.SelectorOptions{MinArea: o.MinArea, ROIFallback: o.ROIFallback}
}

// FrameResult is everything the pipeline learned from one frame.
type FrameResult struct {
	// Frame is the 1-based sequence number since the last reset.
	Frame int64 `json:"frame"`

	Width  int              `json:"width"`
	Height int              `json:"height"`
	Center detection.Point  `json:"center"`
	ROI    detection.Bounds `json:"roi"`

	// Candidate is nil when no contour qualified. The remaining detection
	// fields are only set alongside a candidate.
	Candidate      *detection.Candidate     `json:"candidate,omitempty"`
	Shape          detection.Shape          `json:"shape,omitempty"`
	Features       *detection.ShapeFeatures `json:"features,omitempty"`
	Classification *classify.Result         `json:"classification,omitempty"`
	Decision       *smoothing.Decision      `json:"decision,omitempty"`

	// State is the recorded mode after this frame, and Transition is set
	// only when this frame changed it.
	State      mode.State       `json:"state"`
	Transition *mode.Transition `json:"transition,omitempty"`

	Readings sensors.Readings `json:"readings"`

	// Contours is the number of contours that passed the area filter.
	Contours int `json:"contours"`

	// Combined is the union of all cleaned masks.
	Combined *image.Gray `json:"-"`
}

// Detected reports whether the frame produced a candidate.
func (r *FrameResult) Detected() bool {
	return r.Candidate != nil
}

// Status is a snapshot of the pipeline state.
type Status struct {
	Frames      int64             `json:"frames"`
	Detections  int64             `json:"detections"`
	Transitions int64             `json:"transitions"`
	State       mode.State        `json:"state"`
	Window      []smoothing.Entry `json:"window"`
	Required    int               `json:"required"`
	Last        *mode.Transition  `json:"last_transition,omitempty"`
	Labels      []string          `json:"color_labels"`
}

// Pipeline is the stateful detector.
type Pipeline struct {
	opts       Options
	table      *segment.Table
	classifier *classify.Classifier
	window     *smoothing.Window
	decider    *mode.Decider
	logger     *slog.Logger

	frames      int64
	detections  int64
	transitions int64
	last        *mode.Transition
}

// New creates a pipeline. Non-positive numeric options fall back to their
// defaults, as do zero-valued scoring rules and an empty color table. A nil
// logger discards output.
func New(opts Options, logger *slog.Logger) (*Pipeline, error) {
	opts = opts.normalize()

	table, err := segment.NewTable(opts.ColorRanges)
	if err != nil {
		return nil, fmt.Errorf("building color table: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Pipeline{
		opts:       opts,
		table:      table,
		classifier: classify.NewClassifier(opts.MMPerPixel, opts.Rules),
		window:     smoothing.NewWindow(opts.WindowSize, opts.Required),
		decider:    mode.NewDecider(),
		logger:     logger,
	}, nil
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.ROIScale <= 0 || o.ROIScale > 1 {
		o.ROIScale = def.ROIScale
	}
	if o.MinArea < 0 {
		o.MinArea = def.MinArea
	}
	if o.Gamma <= 0 {
		o.Gamma = def.Gamma
	}
	if o.CLAHETiles <= 0 {
		o.CLAHETiles = def.CLAHETiles
	}
	if o.MMPerPixel <= 0 {
		o.MMPerPixel = def.MMPerPixel
	}
	if o.WindowSize <= 0 {
		o.WindowSize = def.WindowSize
	}
	if o.Required <= 0 {
		o.Required = def.Required
	}
	if o.Rules == (classify.Rules{}) {
		o.Rules = def.Rules
	}
	if len(o.ColorRanges) == 0 {
		o.ColorRanges = def.ColorRanges
	} else {
		o.ColorRanges = append([]segment.ColorRange(nil), o.ColorRanges...)
	}
	return o
}

// Options returns the effective options.
func (p *Pipeline) Options() Options {
	o := p.opts
	o.ColorRanges = p.table.Ranges()
	return o
}

// Table returns the color table in use.
func (p *Pipeline) Table() *segment.Table {
	return p.table
}

// Process runs one frame through every stage and updates the smoothing
// window and recorded mode. It never fails; a frame without a candidate
// clears the smoothing window and leaves the mode unchanged.
func (p *Pipeline) Process(frame image.Image, readings sensors.Readings) *FrameResult {
	p.frames++

	res := p.analyze(frame, readings)
	res.Frame = p.frames

	if res.Candidate == nil {
		p.window.Reset()
		res.State = p.decider.State()
		p.logger.Debug("no candidate", "frame", res.Frame, "contours", res.Contours)
		return res
	}
	p.detections++

	decision := p.window.Push(string(res.Classification.Label), res.Classification.Confidence)
	res.Decision = &decision

	p.logger.Debug("candidate",
		"frame", res.Frame,
		"color", res.Candidate.Label,
		"via", res.Candidate.Via,
		"area", res.Candidate.Area,
		"shape", res.Shape,
		"label", res.Classification.Label,
		"confidence", res.Classification.Confidence,
		"stable", decision.Label,
		"count", decision.Count,
	)

	if t := p.decider.Observe(decision.Label); t != nil {
		p.transitions++
		p.last = t
		res.Transition = t
		p.logger.Info("mode transition",
			"from", t.From.String(),
			"to", t.To.String(),
			"frame", res.Frame,
		)
	}
	res.State = p.decider.State()
	return res
}

// Inspect runs detection and classification on a frame without pushing the
// result into the smoothing window. Frame is 0 and Decision is nil; State is
// the currently recorded mode.
func (p *Pipeline) Inspect(frame image.Image, readings sensors.Readings) *FrameResult {
	res := p.analyze(frame, readings)
	res.State = p.decider.State()
	return res
}

func (p *Pipeline) analyze(frame image.Image, readings sensors.Readings) *FrameResult {
	b := frame.Bounds()
	center, roi := detection.CenterROI(b.Dx(), b.Dy(), p.opts.ROIScale)
	res := &FrameResult{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Center:   detection.PointOf(center),
		ROI:      detection.BoundsOf(roi),
		Readings: readings.Clone(),
	}

	sel := p.detect(frame, center, roi)
	res.Combined = sel.Combined
	res.Contours = sel.Contours
	if sel.Candidate == nil {
		return res
	}

	cand := sel.Candidate
	shape, features := detection.ClassifyShapeWithFeatures(cand.Contour)
	box := cand.Bounds.Rect()

	result := p.classifier.Classify(classify.Observation{
		Color:       cand.Label,
		Shape:       shape,
		AreaPx:      cand.Area,
		Width:       box.Dx(),
		Height:      box.Dy(),
		FrameWidth:  b.Dx(),
		FrameHeight: b.Dy(),
		ObjectTemp:  readings.ObjectTemp,
		AmbientTemp: readings.AmbientTemp,
		Humidity:    readings.Humidity,
	})

	res.Candidate = cand
	res.Shape = shape
	res.Features = &features
	res.Classification = &result
	return res
}

// Detect runs preprocessing, segmentation and selection without touching
// the pipeline state.
func (p *Pipeline) Detect(frame image.Image) detection.Selection {
	b := frame.Bounds()
	center, roi := detection.CenterROI(b.Dx(), b.Dy(), p.opts.ROIScale)
	return p.detect(frame, center, roi)
}

func (p *Pipeline) detect(frame image.Image, center image.Point, roi image.Rectangle) detection.Selection {
	_, hsv := imaging.Preprocess(frame, p.opts.PreprocessOptions())
	masks := p.table.Segment(hsv)
	return detection.Select(center, roi, masks, p.opts.selector())
}

// Masks returns the raw (uncleaned) color masks of a frame in label order.
func (p *Pipeline) Masks(frame image.Image) []segment.Mask {
	_, hsv := imaging.Preprocess(frame, p.opts.PreprocessOptions())
	return p.table.Segment(hsv)
}

// Status returns a snapshot of the pipeline state.
func (p *Pipeline) Status() Status {
	return Status{
		Frames:      p.frames,
		Detections:  p.detections,
		Transitions: p.transitions,
		State:       p.decider.State(),
		Window:      p.window.Entries(),
		Required:    p.window.Required(),
		Last:        p.last,
		Labels:      p.table.Labels(),
	}
}

// Reset clears the smoothing window, the recorded mode and the counters.
func (p *Pipeline) Reset() {
	p.window.Reset()
	p.decider.Reset()
	p.frames, p.detections, p.transitions = 0, 0, 0
	p.last = nil
	p.logger.Info("pipeline reset")
}
