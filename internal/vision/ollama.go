// Package vision segments diagrams with a vision-language model served by
// Ollama. It implements detection.Segmenter so the detector can use it as
// its primary strategy.
package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/ironsheep/patent-diagram-mcp/internal/detection"
	"github.com/ironsheep/patent-diagram-mcp/internal/imaging"
)

// SegmentPrompt asks the model for component boxes in normalized coordinates.
const SegmentPrompt = `You are segmenting a black-and-white technical patent drawing.

Identify every distinct physical component or part in the drawing. Ignore
text, reference numerals, arrows and leader lines.

Return JSON only:
{
  "regions": [
    {"label": "string", "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels), origin top-left.
- Boxes must tightly enclose one component each.
- If no components are visible, return {"regions": []}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// ErrNoJSON is returned when the model reply contains no JSON object.
var ErrNoJSON = errors.New("model response contains no JSON object")

// chatClient is the subset of *api.Client used here.
type chatClient interface {
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
	Show(ctx context.Context, req *api.ShowRequest) (*api.ShowResponse, error)
}

// Client segments images through an Ollama vision model.
type Client struct {
	client       chatClient
	model        string
	timeout      time.Duration
	maxDimension int
}

// Options configures a Client.
type Options struct {
	URL          string
	Model        string
	Timeout      time.Duration
	MaxDimension int
}

// NewClient creates a Client for the Ollama server at opts.URL.
func NewClient(opts Options) (*Client, error) {
	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", opts.URL)
	}
	if opts.Model == "" {
		return nil, errors.New("vision model name is required")
	}

	// Strip any path such as /api/chat; the SDK adds its own.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return newClient(api.NewClient(baseURL, http.DefaultClient), opts), nil
}

func newClient(c chatClient, opts Options) *Client {
	return &Client{
		client:       c,
		model:        opts.Model,
		timeout:      opts.Timeout,
		maxDimension: opts.MaxDimension,
	}
}

// Loader returns a detection.Loader that confirms the model is available on
// the server before handing out the Client.
func (c *Client) Loader() detection.Loader {
	return func(ctx context.Context) (detection.Segmenter, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()

		if _, err := c.client.Show(ctx, &api.ShowRequest{Model: c.model}); err != nil {
			return nil, fmt.Errorf("vision model %q unavailable: %w", c.model, err)
		}
		return c, nil
	}
}

// Segment asks the model for component regions and converts them to pixel
// masks on r's canvas. Each mask's area is its box area.
func (c *Client) Segment(ctx context.Context, r *imaging.Raster) ([]detection.Mask, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	// The model sees a reduced copy; boxes are normalized, so they map
	// straight back onto the original canvas.
	img, err := imaging.PrepareSketch(r, c.maxDimension)
	if err != nil {
		return nil, err
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: c.model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: SegmentPrompt,
				Images:  []api.ImageData{api.ImageData(img.Bytes())},
			},
		},
		Stream:  &streamFalse,
		Options: map[string]any{"temperature": 0},
	}

	var content strings.Builder
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}

	return parseRegions(content.String(), r.Width(), r.Height())
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline || c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

type box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type regionsReply struct {
	Regions []struct {
		Label string `json:"label"`
		Box   box    `json:"box"`
	} `json:"regions"`
}

// parseRegions converts a model reply into masks on a width×height canvas.
// Boxes are clamped to the canvas; empty boxes are dropped.
func parseRegions(raw string, width, height int) ([]detection.Mask, error) {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, ErrNoJSON
	}

	var reply regionsReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	masks := make([]detection.Mask, 0, len(reply.Regions))
	for _, region := range reply.Regions {
		b := region.Box
		x1 := clamp01(b.X)
		y1 := clamp01(b.Y)
		x2 := clamp01(b.X + b.W)
		y2 := clamp01(b.Y + b.H)

		px := int(math.Round(x1 * float64(width)))
		py := int(math.Round(y1 * float64(height)))
		pw := int(math.Round(x2*float64(width))) - px
		ph := int(math.Round(y2*float64(height))) - py
		if pw <= 0 || ph <= 0 {
			continue
		}
		masks = append(masks, detection.Mask{
			BBox: detection.BBox{X: px, Y: py, W: pw, H: ph},
			Area: pw * ph,
		})
	}
	return masks, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from
// a model reply and keeps only the outermost {...}.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
