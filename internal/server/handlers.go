package server

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/ironsheep/desk-mode-mcp/internal/detection"
	"github.com/ironsheep/desk-mode-mcp/internal/imaging"
	"github.com/ironsheep/desk-mode-mcp/internal/pipeline"
	"github.com/ironsheep/desk-mode-mcp/internal/sensors"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "frame_analyze").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	// Frame inspection
	case "frame_info":
		return s.handleFrameInfo(args)
	case "frame_sample_hsv":
		return s.handleFrameSampleHSV(args)
	case "frame_color_masks":
		return s.handleFrameColorMasks(args)

	// Detection
	case "frame_analyze":
		return s.handleFrameAnalyze(args)
	case "frame_annotate":
		return s.handleFrameAnnotate(args)
	case "frame_crop_roi":
		return s.handleFrameCropROI(args)

	// Pipeline state
	case "pipeline_status":
		return s.handlePipelineStatus()
	case "pipeline_reset":
		return s.handlePipelineReset()

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	e := &MCPError{Code: code, Message: message}
	if data != "" {
		e.Data = data
	}
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e,
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments, treating absent arguments as {}.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type framePathArgs struct {
	Path string `json:"path"`
}

func (s *Server) loadFrame(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return s.cache.Load(path)
}

// === Frame Inspection Handlers ===

func (s *Server) handleFrameInfo(args json.RawMessage) (interface{}, error) {
	var a framePathArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	return imaging.LoadFrameInfo(s.cache, a.Path)
}

type frameSampleArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

func (s *Server) handleFrameSampleHSV(args json.RawMessage) (interface{}, error) {
	var a frameSampleArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	opts := s.pipe.Options().PreprocessOptions()
	s.mu.Unlock()

	return imaging.SampleHSV(img, a.X, a.Y, opts)
}

// MaskSummary is the pixel coverage of one color label.
type MaskSummary struct {
	Label    string  `json:"label"`
	Pixels   int     `json:"pixels"`
	Coverage float64 `json:"coverage"`
}

func (s *Server) handleFrameColorMasks(args json.RawMessage) (interface{}, error) {
	var a framePathArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	masks := s.pipe.Masks(img)
	s.mu.Unlock()

	total := float64(img.Bounds().Dx() * img.Bounds().Dy())
	out := make([]MaskSummary, 0, len(masks))
	for _, m := range masks {
		n := m.Count()
		cov := 0.0
		if total > 0 {
			cov = float64(n) / total
		}
		out = append(out, MaskSummary{Label: m.Label, Pixels: n, Coverage: cov})
	}
	return map[string]interface{}{
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
		"masks":  out,
	}, nil
}

// === Detection Handlers ===

type frameAnalyzeArgs struct {
	Path        string   `json:"path"`
	ObjectTemp  *float64 `json:"object_temp,omitempty"`
	AmbientTemp *float64 `json:"ambient_temp,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`

	// DryRun classifies without updating the smoothing window or mode.
	DryRun bool `json:"dry_run,omitempty"`
}

// readings merges explicit arguments over the live sensor readings.
func (s *Server) readings(a frameAnalyzeArgs) sensors.Readings {
	var r sensors.Readings
	if s.sensors != nil {
		r = s.sensors.Readings()
	}
	if a.ObjectTemp != nil {
		r.ObjectTemp = a.ObjectTemp
	}
	if a.AmbientTemp != nil {
		r.AmbientTemp = a.AmbientTemp
	}
	if a.Humidity != nil {
		r.Humidity = a.Humidity
	}
	return r
}

func (s *Server) handleFrameAnalyze(args json.RawMessage) (interface{}, error) {
	var a frameAnalyzeArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}
	r := s.readings(a)

	s.mu.Lock()
	defer s.mu.Unlock()
	if a.DryRun {
		return s.pipe.Inspect(img, r), nil
	}
	return s.pipe.Process(img, r), nil
}

type frameAnnotateArgs struct {
	Path       string `json:"path"`
	GuideColor string `json:"guide_color,omitempty"`
}

// AnnotateResponse is the annotated frame plus the detection it shows.
type AnnotateResponse struct {
	*imaging.AnnotateResult
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Color      string  `json:"color,omitempty"`
	Shape      string  `json:"shape,omitempty"`
}

func (s *Server) handleFrameAnnotate(args json.RawMessage) (interface{}, error) {
	var a frameAnnotateArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	img, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	res := s.pipe.Inspect(img, s.readings(frameAnalyzeArgs{}))
	s.mu.Unlock()

	ann, resp := annotation(res)
	ann.GuideColor = a.GuideColor
	out, err := imaging.Annotate(img, ann)
	if err != nil {
		return nil, err
	}
	resp.AnnotateResult = out
	return resp, nil
}

// annotation builds the overlay for an analyzed frame.
func annotation(res *pipeline.FrameResult) (imaging.Annotation, *AnnotateResponse) {
	ann := imaging.Annotation{
		ROI:    res.ROI.Rect(),
		Center: image.Pt(res.Center.X, res.Center.Y),
	}
	resp := &AnnotateResponse{}

	if !res.Detected() {
		ann.Lines = []string{"no object"}
		return ann, resp
	}

	c := res.Candidate
	ann.Outline = []image.Point(c.Contour)
	ann.Box = c.Bounds.Rect()
	ann.Lines = []string{
		fmt.Sprintf("%s (%.2f)", res.Classification.Label, res.Classification.Confidence),
		fmt.Sprintf("%s, %s", c.Label, res.Shape),
	}

	resp.Label = string(res.Classification.Label)
	resp.Confidence = res.Classification.Confidence
	resp.Color = c.Label
	resp.Shape = string(res.Shape)
	return ann, resp
}

type frameCropArgs struct {
	Path  string  `json:"path"`
	Scale float64 `json:"scale"`
}

func (s *Server) handleFrameCropROI(args json.RawMessage) (interface{}, error) {
	var a frameCropArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	roiScale := s.pipe.Options().ROIScale
	s.mu.Unlock()

	b := img.Bounds()
	_, roi := detection.CenterROI(b.Dx(), b.Dy(), roiScale)
	roi = roi.Intersect(image.Rect(0, 0, b.Dx(), b.Dy()))
	if roi.Empty() {
		return nil, fmt.Errorf("frame %dx%d too small for a region of interest", b.Dx(), b.Dy())
	}
	return imaging.Crop(img, roi, a.Scale)
}

// === Pipeline State Handlers ===

func (s *Server) handlePipelineStatus() (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipe.Status(), nil
}

func (s *Server) handlePipelineReset() (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipe.Reset()
	s.cache.Clear()
	return s.pipe.Status(), nil
}
