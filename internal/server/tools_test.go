package server

import (
	"encoding/json"
	"testing"

	"github.com/ironsheep/desk-mode-mcp/internal/pipeline"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	want := []string{
		"frame_info",
		"frame_sample_hsv",
		"frame_color_masks",
		"frame_analyze",
		"frame_annotate",
		"frame_crop_roi",
		"pipeline_status",
		"pipeline_reset",
	}
	if len(tools) != len(want) {
		t.Fatalf("got %d tools, want %d", len(tools), len(want))
	}
	for i, name := range want {
		if tools[i].Name != name {
			t.Errorf("tool %d: got %s, want %s", i, tools[i].Name, name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("missing description")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("schema type: got %v", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatalf("properties: got %T", tool.InputSchema["properties"])
			}

			required, _ := tool.InputSchema["required"].([]string)
			for _, r := range required {
				if _, ok := props[r]; !ok {
					t.Errorf("required field %q has no property", r)
				}
			}

			// every tool is reachable through executeTool
			if _, err := newTestServer(t, pipeline.DefaultOptions()).executeTool(tool.Name, json.RawMessage(`{}`)); err != nil &&
				err.Error() == "unknown tool: "+tool.Name {
				t.Error("tool is listed but not dispatched")
			}
		})
	}
}

func TestToolDefinitions_RequiredPath(t *testing.T) {
	tests := []struct {
		tool     string
		wantPath bool
	}{
		{"frame_info", true},
		{"frame_sample_hsv", true},
		{"frame_color_masks", true},
		{"frame_analyze", true},
		{"frame_annotate", true},
		{"frame_crop_roi", true},
		{"pipeline_status", false},
		{"pipeline_reset", false},
	}

	defs := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		defs[tool.Name] = tool
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			tool, ok := defs[tt.tool]
			if !ok {
				t.Fatalf("tool %s not defined", tt.tool)
			}
			required, _ := tool.InputSchema["required"].([]string)
			hasPath := false
			for _, r := range required {
				if r == "path" {
					hasPath = true
				}
			}
			if hasPath != tt.wantPath {
				t.Errorf("path required: got %v, want %v", hasPath, tt.wantPath)
			}
		})
	}
}

func TestToolDefinitions_OptionalDefaults(t *testing.T) {
	tests := []struct {
		tool    string
		param   string
		wantDef interface{}
	}{
		{"frame_crop_roi", "scale", 1.0},
		{"frame_analyze", "dry_run", false},
	}

	defs := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		defs[tool.Name] = tool
	}

	for _, tt := range tests {
		t.Run(tt.tool+"/"+tt.param, func(t *testing.T) {
			props := defs[tt.tool].InputSchema["properties"].(map[string]interface{})
			p, ok := props[tt.param].(map[string]interface{})
			if !ok {
				t.Fatalf("param %s missing", tt.param)
			}
			if p["default"] != tt.wantDef {
				t.Errorf("default: got %v, want %v", p["default"], tt.wantDef)
			}
		})
	}
}

func TestHandleToolsList(t *testing.T) {
	s := newTestServer(t, pipeline.DefaultOptions())
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})

	b, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(b, &result); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(result.Tools) != len(GetToolDefinitions()) {
		t.Errorf("got %d tools, want %d", len(result.Tools), len(GetToolDefinitions()))
	}
}
