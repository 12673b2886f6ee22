package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string, def, min, max int) map[string]interface{} {
	return map[string]interface{}{
		"type":        "integer",
		"description": description,
		"default":     def,
		"minimum":     min,
		"maximum":     max,
	}
}

func boolProp(description string, def bool) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description, "default": def}
}

// imageInput returns the properties for an image given as a path or as
// base64 data under the given prefix.
func imageInput(prefix, what string) map[string]interface{} {
	return map[string]interface{}{
		prefix + "_path":   stringProp("Absolute path to the " + what),
		prefix + "_base64": stringProp("Base64-encoded " + what + " (used when no path is given)"),
	}
}

func merge(maps ...map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name: "diagram_generate",
			Description: "Turn a hand-drawn sketch into a patent-style technical diagram: render it with the " +
				"generation service, vectorize the result to SVG, and number each detected component " +
				"(10, 20, 30...) with optional leader lines.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(imageInput("sketch", "sketch image"), map[string]interface{}{
					"diagram_type": map[string]interface{}{
						"type":        "string",
						"description": "Drawing style used for the rendering prompt",
						"enum":        []string{"mechanical", "electrical", "chemical", "software", "generic"},
						"default":     "mechanical",
					},
					"auto_annotate":    boolProp("Detect components and add reference numerals", true),
					"start_number":     intProp("First reference numeral", 10, 1, 100),
					"number_increment": intProp("Step between reference numerals", 10, 1, 50),
					"controlnet_strength": map[string]interface{}{
						"type":        "number",
						"description": "How closely the rendering follows the sketch (0-1)",
						"default":     0.8,
						"minimum":     0,
						"maximum":     1,
					},
					"add_leader_lines": boolProp("Draw dashed leader lines to distant labels", true),
					"custom_prompt": map[string]interface{}{
						"type":        "string",
						"description": "Replaces the diagram type's rendering prompt",
						"maxLength":   500,
					},
					"output_path":    stringProp("Optional file to write the SVG to"),
					"include_raster": boolProp("Include the rendered PNG as base64 in the result", false),
				}),
			},
		},
		{
			Name:        "diagram_vectorize",
			Description: "Trace a raster diagram into a clean SVG without rendering or annotation. Use this to preview vectorization.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(imageInput("image", "raster image"), map[string]interface{}{
					"threshold":   intProp("Gray level above which pixels count as paper", 128, 0, 255),
					"optimize":    boolProp("Strip metadata and normalize whitespace", true),
					"output_path": stringProp("Optional file to write the SVG to"),
				}),
			},
		},
		{
			Name:        "diagram_detect_components",
			Description: "Find the distinct components of a diagram and report their bounding boxes, areas and coarse shape classes, largest first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(imageInput("image", "raster image"), map[string]interface{}{
					"min_area":       intProp("Smallest component area in pixels", 100, 0, 1<<30),
					"max_components": intProp("Maximum number of components returned", 50, 1, 1000),
				}),
			},
		},
		{
			Name: "diagram_annotate",
			Description: "Add reference numerals to an existing SVG diagram. Components are detected in a " +
				"reference raster of the same drawing. Use this to re-annotate a manually edited diagram.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": merge(imageInput("reference", "reference raster"), map[string]interface{}{
					"svg":              stringProp("SVG document text"),
					"svg_path":         stringProp("Absolute path to the SVG file (used when svg is empty)"),
					"start_number":     intProp("First reference numeral", 10, 1, 100),
					"number_increment": intProp("Step between reference numerals", 10, 1, 50),
					"add_leader_lines": boolProp("Draw dashed leader lines to distant labels", true),
					"avoid_text":       boolProp("Keep labels away from text found by OCR in the reference", false),
					"output_path":      stringProp("Optional file to write the SVG to"),
				}),
			},
		},
		{
			Name:        "diagram_types",
			Description: "List the supported diagram types with their descriptions and rendering prompts.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
