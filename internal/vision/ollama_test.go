package vision

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/ironsheep/patent-diagram-mcp/internal/detection"
	"github.com/ironsheep/patent-diagram-mcp/internal/imaging"
)

type fakeChat struct {
	reply   string
	chatErr error
	showErr error

	lastChat *api.ChatRequest
	lastShow *api.ShowRequest
}

func (f *fakeChat) Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	f.lastChat = req
	if f.chatErr != nil {
		return f.chatErr
	}
	return fn(api.ChatResponse{Message: api.Message{Role: "assistant", Content: f.reply}})
}

func (f *fakeChat) Show(ctx context.Context, req *api.ShowRequest) (*api.ShowResponse, error) {
	f.lastShow = req
	if f.showErr != nil {
		return nil, f.showErr
	}
	return &api.ShowResponse{}, nil
}

func testRaster(t *testing.T, width, height int) *imaging.Raster {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.White)
		}
	}
	r, err := imaging.FromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"valid", Options{URL: "http://localhost:11434", Model: "qwen2.5vl:7b"}, false},
		{"path stripped", Options{URL: "http://localhost:11434/api/chat", Model: "m"}, false},
		{"no scheme", Options{URL: "localhost", Model: "m"}, true},
		{"no model", Options{URL: "http://localhost:11434"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSegment(t *testing.T) {
	fake := &fakeChat{reply: "```json\n" + `{
  "regions": [
    {"label": "gear", "box": {"x": 0.1, "y": 0.2, "w": 0.25, "h": 0.25}},
    {"label": "shaft", "box": {"x": 0.9, "y": 0.5, "w": 0.5, "h": 0.1}},
    {"label": "empty", "box": {"x": 0.5, "y": 0.5, "w": 0, "h": 0.1}},
  ]
}` + "\n```"}
	c := newClient(fake, Options{Model: "m", MaxDimension: 200})

	masks, err := c.Segment(context.Background(), testRaster(t, 800, 400))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}

	want := []detection.Mask{
		{BBox: detection.BBox{X: 80, Y: 80, W: 200, H: 100}, Area: 20000},
		{BBox: detection.BBox{X: 720, Y: 200, W: 80, H: 40}, Area: 3200},
	}
	if len(masks) != len(want) {
		t.Fatalf("got %d masks, want %d: %+v", len(masks), len(want), masks)
	}
	for i := range want {
		if masks[i] != want[i] {
			t.Errorf("mask %d = %+v, want %+v", i, masks[i], want[i])
		}
	}

	if fake.lastChat == nil || fake.lastChat.Model != "m" || len(fake.lastChat.Messages) != 1 {
		t.Fatalf("unexpected chat request: %+v", fake.lastChat)
	}
	sent, err := imaging.Decode(fake.lastChat.Messages[0].Images[0])
	if err != nil {
		t.Fatalf("sent image does not decode: %v", err)
	}
	if sent.Width() != 200 || sent.Height() != 100 {
		t.Errorf("sent image should be reduced to 200x100, got %dx%d", sent.Width(), sent.Height())
	}
}

func TestSegment_Errors(t *testing.T) {
	r := testRaster(t, 10, 10)

	c := newClient(&fakeChat{chatErr: errors.New("connection refused")}, Options{Model: "m"})
	if _, err := c.Segment(context.Background(), r); err == nil {
		t.Error("expected chat error")
	}

	c = newClient(&fakeChat{reply: "I see a gear and a shaft."}, Options{Model: "m"})
	if _, err := c.Segment(context.Background(), r); !errors.Is(err, ErrNoJSON) {
		t.Errorf("expected ErrNoJSON, got %v", err)
	}
}

func TestLoader(t *testing.T) {
	fake := &fakeChat{}
	c := newClient(fake, Options{Model: "qwen2.5vl:7b", Timeout: time.Second})

	seg, err := c.Loader()(context.Background())
	if err != nil {
		t.Fatalf("Loader failed: %v", err)
	}
	if seg != detection.Segmenter(c) {
		t.Error("Loader should return the client")
	}
	if fake.lastShow == nil || fake.lastShow.Model != "qwen2.5vl:7b" {
		t.Errorf("unexpected show request: %+v", fake.lastShow)
	}

	fake.showErr = errors.New("model not found")
	if _, err := c.Loader()(context.Background()); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestLoader_ThroughModelHandle(t *testing.T) {
	c := newClient(&fakeChat{showErr: errors.New("model not found")}, Options{Model: "m"})
	h := detection.NewModelHandle(c.Loader())
	d := detection.New(detection.WithModel(h))

	if _, err := d.Detect(context.Background(), testRaster(t, 20, 20), 10, 5); err != nil {
		t.Fatalf("Detect should fall back, got %v", err)
	}
	if d.Strategy() != detection.StrategyContour {
		t.Errorf("Strategy() = %s, want contour", d.Strategy())
	}
}

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{`Here you go: {"a":[1,2,],} thanks`, `{"a":[1,2]}`},
		{"{\n// note\n\"a\":1 /* x */}", "{\n\n\"a\":1 }"},
	}
	for _, tt := range tests {
		if got := sanitizeModelJSON(tt.in); got != tt.want {
			t.Errorf("sanitizeModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
