package generation

// DiagramType selects the prompt used to render a sketch.
type DiagramType string

const (
	Mechanical DiagramType = "mechanical"
	Electrical DiagramType = "electrical"
	Chemical   DiagramType = "chemical"
	Software   DiagramType = "software"
	Generic    DiagramType = "generic"
)

// NegativePrompt steers every render away from photographic or sketchy
// output.
const NegativePrompt = "blurry, low quality, photo, photorealistic, colored, " +
	"messy lines, unclear, hand-drawn sketch, rough draft"

// TypeInfo describes one supported diagram type.
type TypeInfo struct {
	Type            DiagramType `json:"type"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	OptimalUseCases []string    `json:"optimal_use_cases"`
	Prompt          string      `json:"example_prompt"`
}

var types = []TypeInfo{
	{
		Type:        Mechanical,
		Name:        "Mechanical",
		Description: "Machines, mechanisms and assemblies drawn as clean line art.",
		OptimalUseCases: []string{
			"gear trains and linkages", "housings and enclosures", "tools and fixtures",
		},
		Prompt: "technical mechanical patent diagram, clean engineering lines, " +
			"isometric view, labeled components, professional CAD style, " +
			"precise technical drawing, black and white line art",
	},
	{
		Type:        Electrical,
		Name:        "Electrical",
		Description: "Circuit schematics using standard electrical symbols.",
		OptimalUseCases: []string{
			"circuit schematics", "sensor and power wiring", "control boards",
		},
		Prompt: "electrical circuit diagram, clean schematic symbols, " +
			"professional engineering drawing, clear connections, " +
			"standard electrical notation, technical illustration",
	},
	{
		Type:        Chemical,
		Name:        "Chemical",
		Description: "Process flow diagrams with labeled equipment.",
		OptimalUseCases: []string{
			"process flow diagrams", "reactor and separator layouts", "piping arrangements",
		},
		Prompt: "chemical process diagram, clean flowchart, professional " +
			"industrial drawing, labeled equipment, process flow diagram, " +
			"technical engineering style",
	},
	{
		Type:        Software,
		Name:        "Software",
		Description: "System and architecture diagrams in a UML-like style.",
		OptimalUseCases: []string{
			"system architecture", "module and data flow", "network topology",
		},
		Prompt: "software architecture diagram, clean UML style, professional " +
			"technical illustration, clear components, system diagram, " +
			"technical documentation style",
	},
	{
		Type:        Generic,
		Name:        "Generic",
		Description: "General-purpose technical patent drawing.",
		OptimalUseCases: []string{
			"devices that fit no other category", "simple apparatus overviews",
		},
		Prompt: "technical patent diagram, clean lines, professional engineering " +
			"schematic, precise technical drawing, labeled components",
	},
}

// Types returns every supported diagram type in a fixed order.
func Types() []TypeInfo {
	out := make([]TypeInfo, len(types))
	copy(out, types)
	return out
}

// Lookup returns the description of t.
func Lookup(t DiagramType) (TypeInfo, bool) {
	for _, info := range types {
		if info.Type == t {
			return info, true
		}
	}
	return TypeInfo{}, false
}

// PromptFor returns the custom prompt if set, otherwise the prompt for t.
// Unknown types use the generic prompt.
func PromptFor(t DiagramType, custom string) string {
	if custom != "" {
		return custom
	}
	if info, ok := Lookup(t); ok {
		return info.Prompt
	}
	info, _ := Lookup(Generic)
	return info.Prompt
}
