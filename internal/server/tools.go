package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the frame image (PNG, JPEG or GIF)",
	}
}

func readingProperty(what string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": what + ". Falls back to the live sensor reading when omitted",
	}
}

func noArgs() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Frame inspection
		{
			Name:        "frame_info",
			Description: "Load a frame and return its dimensions, format and the detection anchor (frame center).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "frame_sample_hsv",
			Description: "Report a pixel's raw RGB, gamma-corrected RGB and the equalized HSV triple the color table is matched against. Use this to tune color ranges.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "X coordinate (0-based)",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Y coordinate (0-based)",
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},
		{
			Name:        "frame_color_masks",
			Description: "Segment a frame with the color table and return the pixel coverage of every color label, in table order.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Detection
		{
			Name:        "frame_analyze",
			Description: "Run a frame through the full detector: segmentation, candidate selection, shape and object classification, temporal smoothing and the Study/Relax/Normal mode decision. Updates the smoothing window unless dry_run is set.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":         pathProperty(),
					"object_temp":  readingProperty("Object temperature in degrees Celsius"),
					"ambient_temp": readingProperty("Ambient temperature in degrees Celsius"),
					"humidity":     readingProperty("Relative humidity in percent"),
					"dry_run": map[string]interface{}{
						"type":        "boolean",
						"description": "Classify only; leave the smoothing window and mode untouched. Default false",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "frame_annotate",
			Description: "Return the frame as base64 PNG with the region of interest, the center marker, the selected contour and its label drawn on top.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"guide_color": map[string]interface{}{
						"type":        "string",
						"description": "Hex color for the ROI box and center marker (e.g. '#00FF00'). Default green",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "frame_crop_roi",
			Description: "Crop the region of interest around the frame center and return it as base64 PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":     1.0,
					},
				},
				"required": []string{"path"},
			},
		},

		// Pipeline state
		{
			Name:        "pipeline_status",
			Description: "Return frame and transition counters, the recorded mode, the smoothing window contents and the last transition.",
			InputSchema: noArgs(),
		},
		{
			Name:        "pipeline_reset",
			Description: "Clear the smoothing window, counters and frame cache and return the mode to Normal.",
			InputSchema: noArgs(),
		},
	}
}
