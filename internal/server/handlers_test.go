package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/desk-mode-mcp/internal/mode"
	"github.com/ironsheep/desk-mode-mcp/internal/pipeline"
	"github.com/ironsheep/desk-mode-mcp/internal/sensors"
)

var (
	gray = color.RGBA{128, 128, 128, 255}
	blue = color.RGBA{0, 0, 255, 255}
)

// createTestFrame writes a frame with an optional colored bar and returns
// its path
func createTestFrame(t *testing.T, width, height int, bar image.Rectangle, c color.RGBA) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if image.Pt(x, y).In(bar) {
				img.SetRGBA(x, y, c)
			} else {
				img.SetRGBA(x, y, gray)
			}
		}
	}

	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create frame: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	return path
}

// penFramePath is a 300x300 desk with a thin blue bar across the center.
func penFramePath(t *testing.T) string {
	return createTestFrame(t, 300, 300, image.Rect(120, 146, 180, 154), blue)
}

func penOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.MMPerPixel = 2.0
	return opts
}

// callTool runs a tools/call request and decodes the text content into out.
func callTool(t *testing.T, s *Server, name string, args interface{}, out interface{}) *MCPError {
	t.Helper()

	params, _ := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	if resp.Error != nil {
		return resp.Error
	}

	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(content[0]["text"].(string)), out); err != nil {
			t.Fatalf("decoding %s result: %v", name, err)
		}
	}
	return nil
}

type fixedReadings sensors.Readings

func (f fixedReadings) Readings() sensors.Readings { return sensors.Readings(f) }

func ptr(v float64) *float64 { return &v }

func TestHandleToolsCall_FrameInfo(t *testing.T) {
	s := newTestServer(t, pipeline.DefaultOptions())
	path := createTestFrame(t, 200, 150, image.Rectangle{}, blue)

	var info struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
		Center struct {
			X, Y int
		} `json:"center"`
	}
	if e := callTool(t, s, "frame_info", map[string]interface{}{"path": path}, &info); e != nil {
		t.Fatalf("frame_info: %+v", e)
	}
	if info.Width != 200 || info.Height != 150 || info.Format != "png" {
		t.Errorf("info: got %+v", info)
	}
	if info.Center.X != 100 || info.Center.Y != 75 {
		t.Errorf("center: got %+v", info.Center)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	s := newTestServer(t, pipeline.DefaultOptions())

	tests := []struct {
		name     string
		tool     string
		args     interface{}
		wantCode int
	}{
		{"unknown tool", "frame_rotate", map[string]interface{}{}, -32000},
		{"missing path", "frame_analyze", map[string]interface{}{}, -32000},
		{"nonexistent file", "frame_info", map[string]interface{}{"path": "/nonexistent/frame.png"}, -32000},
		{"wrong argument type", "frame_sample_hsv", map[string]interface{}{"path": 3}, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := callTool(t, s, tt.tool, tt.args, nil)
			if e == nil || e.Code != tt.wantCode {
				t.Errorf("got %+v, want code %d", e, tt.wantCode)
			}
		})
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, pipeline.DefaultOptions())
	resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 1, Params: json.RawMessage(`[1,2]`)})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("got %+v, want -32602", resp.Error)
	}
}

func TestHandleToolsCall_SampleHSV(t *testing.T) {
	s := newTestServer(t, pipeline.DefaultOptions())
	path := penFramePath(t)

	var sample struct {
		Hex string `json:"hex"`
		HSV struct {
			H, S, V int
		} `json:"hsv"`
	}
	if e := callTool(t, s, "frame_sample_hsv", map[string]interface{}{"path": path, "x": 150, "y": 150}, &sample); e != nil {
		t.Fatalf("frame_sample_hsv: %+v", e)
	}
	if sample.Hex != "#0000FF" {
		t.Errorf("Hex: got %s", sample.Hex)
	}
	if sample.HSV.H < 110 || sample.HSV.H > 130 || sample.HSV.S < 200 {
		t.Errorf("HSV: got %+v, want blue", sample.HSV)
	}

	if e := callTool(t, s, "frame_sample_hsv", map[string]interface{}{"path": path, "x": 300, "y": 0}, nil); e == nil {
		t.Error("expected an out-of-bounds error")
	}
}

func TestHandleToolsCall_ColorMasks(t *testing.T) {
	s := newTestServer(t, pipeline.DefaultOptions())
	path := penFramePath(t)

	var result struct {
		Width int           `json:"width"`
		Masks []MaskSummary `json:"masks"`
	}
	if e := callTool(t, s, "frame_color_masks", map[string]interface{}{"path": path}, &result); e != nil {
		t.Fatalf("frame_color_masks: %+v", e)
	}
	if len(result.Masks) == 0 || result.Masks[0].Label != "Red" {
		t.Fatalf("masks: got %+v", result.Masks)
	}

	found := false
	for _, m := range result.Masks {
		switch m.Label {
		case "Blue":
			found = true
			if m.Pixels < 400 || m.Coverage <= 0 || m.Coverage > 0.01 {
				t.Errorf("Blue mask: got %+v", m)
			}
		case "Red", "Green":
			if m.Pixels != 0 {
				t.Errorf("%s mask should be empty: %+v", m.Label, m)
			}
		}
	}
	if !found {
		t.Error("no Blue mask")
	}
}

type analyzeResult struct {
	Frame          int64 `json:"frame"`
	Classification *struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"classification"`
	Decision *struct {
		Label string `json:"label"`
	} `json:"decision"`
	State      mode.State       `json:"state"`
	Transition *mode.Transition `json:"transition"`
	Readings   sensors.Readings `json:"readings"`
}

func TestHandleToolsCall_Analyze(t *testing.T) {
	s := newTestServer(t, penOptions())
	path := penFramePath(t)

	transitions := 0
	var last analyzeResult
	for i := 0; i < 6; i++ {
		last = analyzeResult{}
		if e := callTool(t, s, "frame_analyze", map[string]interface{}{"path": path}, &last); e != nil {
			t.Fatalf("frame_analyze: %+v", e)
		}
		if last.Transition != nil {
			transitions++
		}
	}

	if last.Frame != 6 {
		t.Errorf("Frame: got %d, want 6", last.Frame)
	}
	if last.Classification == nil || last.Classification.Label != "Pen" {
		t.Fatalf("classification: got %+v", last.Classification)
	}
	if last.State != (mode.State{Mode: mode.Study, Label: "Pen"}) {
		t.Errorf("State: got %v", last.State)
	}
	if transitions != 1 {
		t.Errorf("transitions: got %d, want 1", transitions)
	}

	var st pipeline.Status
	if e := callTool(t, s, "pipeline_status", nil, &st); e != nil {
		t.Fatalf("pipeline_status: %+v", e)
	}
	if st.Frames != 6 || st.Transitions != 1 || len(st.Window) != 6 {
		t.Errorf("status: %+v", st)
	}

	var after pipeline.Status
	if e := callTool(t, s, "pipeline_reset", nil, &after); e != nil {
		t.Fatalf("pipeline_reset: %+v", e)
	}
	if after.Frames != 0 || after.State.Mode != mode.Normal || len(after.Window) != 0 || after.Last != nil {
		t.Errorf("status after reset: %+v", after)
	}
}

func TestHandleToolsCall_AnalyzeDryRun(t *testing.T) {
	s := newTestServer(t, penOptions())
	path := penFramePath(t)

	var res analyzeResult
	if e := callTool(t, s, "frame_analyze", map[string]interface{}{"path": path, "dry_run": true}, &res); e != nil {
		t.Fatalf("frame_analyze: %+v", e)
	}
	if res.Classification == nil || res.Classification.Label != "Pen" {
		t.Errorf("classification: got %+v", res.Classification)
	}
	if res.Decision != nil || res.Transition != nil {
		t.Errorf("dry run decided: %+v", res)
	}
	if st := s.pipe.Status(); st.Frames != 0 {
		t.Errorf("dry run changed pipeline: %+v", st)
	}
}

func TestHandleToolsCall_AnalyzeReadings(t *testing.T) {
	live := fixedReadings{AmbientTemp: ptr(21), Humidity: ptr(40), ObjectTemp: ptr(22)}
	s := newTestServer(t, pipeline.DefaultOptions(), WithSensors(live))
	path := createTestFrame(t, 100, 100, image.Rectangle{}, blue)

	var res analyzeResult
	args := map[string]interface{}{"path": path, "object_temp": 58.5}
	if e := callTool(t, s, "frame_analyze", args, &res); e != nil {
		t.Fatalf("frame_analyze: %+v", e)
	}

	r := res.Readings
	if r.ObjectTemp == nil || *r.ObjectTemp != 58.5 {
		t.Errorf("ObjectTemp: argument should win, got %v", r.ObjectTemp)
	}
	if r.AmbientTemp == nil || *r.AmbientTemp != 21 {
		t.Errorf("AmbientTemp: live reading should fill in, got %v", r.AmbientTemp)
	}
	if r.Humidity == nil || *r.Humidity != 40 {
		t.Errorf("Humidity: got %v", r.Humidity)
	}
}

func TestHandleToolsCall_Annotate(t *testing.T) {
	tests := []struct {
		name      string
		bar       image.Rectangle
		wantLabel string
	}{
		{"pen", image.Rect(120, 146, 180, 154), "Pen"},
		{"empty desk", image.Rectangle{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, penOptions())
			path := createTestFrame(t, 300, 300, tt.bar, blue)

			var res struct {
				Width       int    `json:"width"`
				ImageBase64 string `json:"image_base64"`
				MimeType    string `json:"mime_type"`
				Label       string `json:"label"`
				Shape       string `json:"shape"`
			}
			args := map[string]interface{}{"path": path, "guide_color": "#FF00FF"}
			if e := callTool(t, s, "frame_annotate", args, &res); e != nil {
				t.Fatalf("frame_annotate: %+v", e)
			}
			if res.Width != 300 || res.ImageBase64 == "" || res.MimeType != "image/png" {
				t.Errorf("image: width %d, mime %s, %d bytes", res.Width, res.MimeType, len(res.ImageBase64))
			}
			if res.Label != tt.wantLabel {
				t.Errorf("Label: got %q, want %q", res.Label, tt.wantLabel)
			}
			if st := s.pipe.Status(); st.Frames != 0 {
				t.Errorf("annotate changed pipeline: %+v", st)
			}
		})
	}
}

func TestHandleToolsCall_CropROI(t *testing.T) {
	tests := []struct {
		name  string
		scale interface{}
		want  int
	}{
		{"default scale", nil, 90},
		{"doubled", 2.0, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, pipeline.DefaultOptions())
			args := map[string]interface{}{"path": penFramePath(t)}
			if tt.scale != nil {
				args["scale"] = tt.scale
			}

			var res struct {
				Width  int `json:"width"`
				Height int `json:"height"`
			}
			if e := callTool(t, s, "frame_crop_roi", args, &res); e != nil {
				t.Fatalf("frame_crop_roi: %+v", e)
			}
			if res.Width != tt.want || res.Height != tt.want {
				t.Errorf("size: got %dx%d, want %dx%d", res.Width, res.Height, tt.want, tt.want)
			}
		})
	}
}
