// Package server implements the MCP (Model Context Protocol) server for the
// desk mode detector.
//
// The server exposes the detector's stages as tools so an MCP client can
// inspect frames, tune the color table and drive the mode decision one
// frame at a time.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Frame inspection:
//   - frame_info: Dimensions, format and detection anchor
//   - frame_sample_hsv: Pixel value at each preprocessing step
//   - frame_color_masks: Per-label mask coverage
//
// Detection:
//   - frame_analyze: Full pipeline pass, optionally with temperatures
//   - frame_annotate: Diagnostic overlay as base64 PNG
//   - frame_crop_roi: Region of interest as base64 PNG
//
// Pipeline state:
//   - pipeline_status: Counters, mode and smoothing window
//   - pipeline_reset: Back to Normal with an empty window
//
// frame_analyze is the only tool besides pipeline_reset that changes
// pipeline state. Frames are cached by path for the lifetime of the server
// or until pipeline_reset.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
package server
