package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ironsheep/patent-diagram-mcp/internal/generation"
	"github.com/ironsheep/patent-diagram-mcp/internal/imaging"
	"github.com/ironsheep/patent-diagram-mcp/internal/observability"
	"github.com/ironsheep/patent-diagram-mcp/internal/pipeline"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "diagram_generate").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// errInvalidArgs marks argument problems found before calling the pipeline.
var errInvalidArgs = errors.New("invalid arguments")

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Invalid arguments return code -32602 and other failures -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool call failed",
			observability.String("tool", params.Name),
			observability.Error("error", err))

		var cfgErr *pipeline.ConfigurationError
		if errors.As(err, &cfgErr) || errors.Is(err, errInvalidArgs) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
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
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "diagram_generate":
		return s.handleDiagramGenerate(ctx, args)
	case "diagram_vectorize":
		return s.handleDiagramVectorize(ctx, args)
	case "diagram_detect_components":
		return s.handleDetectComponents(ctx, args)
	case "diagram_annotate":
		return s.handleDiagramAnnotate(ctx, args)
	case "diagram_types":
		return s.pipeline.DiagramTypes(), nil
	case "image_load":
		return s.handleImageLoad(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return nil
}

// readImage returns image bytes from a file path or base64 data. Files go
// through the image cache so repeated calls on the same path are cheap.
func (s *Server) readImage(field, path, data string) ([]byte, error) {
	switch {
	case path != "":
		r, err := s.cache.Load(path)
		if err != nil {
			return nil, err
		}
		return r.Bytes(), nil
	case data != "":
		// Accept data URLs as well as bare base64.
		if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
			data = data[i+len(";base64,"):]
		}
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s_base64: %v", errInvalidArgs, field, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %s_path or %s_base64 is required", errInvalidArgs, field, field)
	}
}

func writeOutput(path, svg string) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, fmt.Errorf("%w: path is required", errInvalidArgs)
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Diagram Handlers ===

type diagramGenerateArgs struct {
	SketchPath         string   `json:"sketch_path"`
	SketchBase64       string   `json:"sketch_base64"`
	DiagramType        string   `json:"diagram_type"`
	AutoAnnotate       *bool    `json:"auto_annotate"`
	StartNumber        *int     `json:"start_number"`
	Increment          *int     `json:"number_increment"`
	ControlNetStrength *float64 `json:"controlnet_strength"`
	LeaderLines        *bool    `json:"add_leader_lines"`
	CustomPrompt       string   `json:"custom_prompt"`
	OutputPath         string   `json:"output_path"`
	IncludeRaster      bool     `json:"include_raster"`
}

type diagramGenerateResult struct {
	*pipeline.Result
	DiagramPNG string `json:"diagram_png_base64,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
}

func (s *Server) handleDiagramGenerate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a diagramGenerateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	sketch, err := s.readImage("sketch", a.SketchPath, a.SketchBase64)
	if err != nil {
		return nil, err
	}
	if a.DiagramType == "" {
		a.DiagramType = string(generation.Mechanical)
	}
	strength := 0.8
	if a.ControlNetStrength != nil {
		strength = *a.ControlNetStrength
	}

	res, err := s.pipeline.Run(ctx, pipeline.Request{
		Sketch:             sketch,
		DiagramType:        generation.DiagramType(a.DiagramType),
		AutoAnnotate:       boolOr(a.AutoAnnotate, true),
		StartNumber:        intOr(a.StartNumber, 10),
		Increment:          intOr(a.Increment, 10),
		ControlNetStrength: strength,
		LeaderLines:        boolOr(a.LeaderLines, true),
		CustomPrompt:       a.CustomPrompt,
	})
	if err != nil {
		return nil, err
	}
	if err := writeOutput(a.OutputPath, res.SVG); err != nil {
		return nil, err
	}

	out := diagramGenerateResult{Result: res, OutputPath: a.OutputPath}
	if a.IncludeRaster {
		out.DiagramPNG = base64.StdEncoding.EncodeToString(res.DiagramRaster)
	}
	return out, nil
}

type diagramVectorizeArgs struct {
	ImagePath   string `json:"image_path"`
	ImageBase64 string `json:"image_base64"`
	Threshold   *int   `json:"threshold"`
	Optimize    *bool  `json:"optimize"`
	OutputPath  string `json:"output_path"`
}

func (s *Server) handleDiagramVectorize(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a diagramVectorizeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	data, err := s.readImage("image", a.ImagePath, a.ImageBase64)
	if err != nil {
		return nil, err
	}

	res, err := s.pipeline.VectorizeOnly(ctx, data, intOr(a.Threshold, pipeline.DefaultVectorizeThreshold), boolOr(a.Optimize, true))
	if err != nil {
		return nil, err
	}
	if err := writeOutput(a.OutputPath, res.SVG); err != nil {
		return nil, err
	}
	return res, nil
}

type detectComponentsArgs struct {
	ImagePath     string `json:"image_path"`
	ImageBase64   string `json:"image_base64"`
	MinArea       *int   `json:"min_area"`
	MaxComponents *int   `json:"max_components"`
}

func (s *Server) handleDetectComponents(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectComponentsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	data, err := s.readImage("image", a.ImagePath, a.ImageBase64)
	if err != nil {
		return nil, err
	}

	components, strategy, err := s.pipeline.DetectComponents(ctx, data,
		intOr(a.MinArea, pipeline.DefaultMinComponentArea),
		intOr(a.MaxComponents, pipeline.DefaultMaxComponents))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"components": components,
		"count":      len(components),
		"strategy":   strategy.String(),
	}, nil
}

type diagramAnnotateArgs struct {
	SVG             string `json:"svg"`
	SVGPath         string `json:"svg_path"`
	ReferencePath   string `json:"reference_path"`
	ReferenceBase64 string `json:"reference_base64"`
	StartNumber     *int   `json:"start_number"`
	Increment       *int   `json:"number_increment"`
	LeaderLines     *bool  `json:"add_leader_lines"`
	AvoidText       bool   `json:"avoid_text"`
	OutputPath      string `json:"output_path"`
}

func (s *Server) handleDiagramAnnotate(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a diagramAnnotateArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	svg := a.SVG
	if svg == "" {
		if a.SVGPath == "" {
			return nil, fmt.Errorf("%w: svg or svg_path is required", errInvalidArgs)
		}
		data, err := os.ReadFile(a.SVGPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read svg: %w", err)
		}
		svg = string(data)
	}
	reference, err := s.readImage("reference", a.ReferencePath, a.ReferenceBase64)
	if err != nil {
		return nil, err
	}

	res, err := s.pipeline.AnnotateExisting(ctx, pipeline.AnnotateRequest{
		SVG:         svg,
		Reference:   reference,
		StartNumber: intOr(a.StartNumber, 10),
		Increment:   intOr(a.Increment, 10),
		LeaderLines: boolOr(a.LeaderLines, true),
		AvoidText:   a.AvoidText,
	})
	if err != nil {
		return nil, err
	}
	if err := writeOutput(a.OutputPath, res.SVG); err != nil {
		return nil, err
	}
	return res, nil
}
