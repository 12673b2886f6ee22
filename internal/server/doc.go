// Package server implements the MCP (Model Context Protocol) server for
// patent diagram tools.
//
// The server speaks JSON-RPC 2.0 over stdio:
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
//   - diagram_generate: sketch to rendered, vectorized and numbered diagram
//   - diagram_vectorize: raster to SVG only
//   - diagram_detect_components: component boxes, areas and shape classes
//   - diagram_annotate: number an existing SVG using a reference raster
//   - diagram_types: supported diagram types and their prompts
//   - image_load: image metadata
//
// Image arguments are given either as an absolute path (<name>_path) or as
// base64 data (<name>_base64). Files are cached by path for the lifetime of
// the process.
//
// # Concurrency
//
// Every tools/call runs in its own goroutine, so a long generation does not
// hold up other requests. Responses may therefore arrive out of order and
// are matched to requests by ID. Writes to stdout are serialized.
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC error responses:
//   - -32602: invalid arguments (missing image, out-of-range parameters, bad SVG)
//   - -32000: tool execution failure (generation service errors and the like)
//
// The data field carries the Go error string.
//
// # Usage
//
//	srv := server.New(p, server.WithLogger(logger))
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
