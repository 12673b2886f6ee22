// Package generation renders hand-drawn sketches into clean technical
// drawings through an external image-to-image service.
//
// The only implementation talks to a Stability-style sketch control
// endpoint over HTTP. Calls are made once; failures are returned to the
// caller and never retried.
package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("generation API key is not configured")

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Request is a single render call.
type Request struct {
	// Sketch is the PNG-encoded input sketch.
	Sketch []byte

	Prompt         string
	NegativePrompt string

	// Strength controls how closely the output follows the sketch
	// (0 = ignore, 1 = follow exactly).
	Strength float64
}

// Renderer turns a sketch into a rendered diagram.
type Renderer interface {
	Render(ctx context.Context, req Request) ([]byte, error)
}

// StatusError reports a non-2xx response from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("generation failed with status: %d", e.StatusCode)
	}
	return fmt.Sprintf("generation failed with status: %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	Endpoint     string
	APIKey       string
	Timeout      time.Duration
	OutputFormat string
	HTTPClient   *http.Client
}

// Client calls a sketch control endpoint.
type Client struct {
	endpoint     string
	apiKey       string
	outputFormat string
	http         *http.Client
}

// NewClient creates a Client. A nil HTTPClient gets one with opts.Timeout.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	format := opts.OutputFormat
	if format == "" {
		format = "png"
	}
	return &Client{
		endpoint:     opts.Endpoint,
		apiKey:       opts.APIKey,
		outputFormat: format,
		http:         hc,
	}
}

// Render posts the sketch as multipart form data and returns the image
// bytes from the response body.
func (c *Client) Render(ctx context.Context, req Request) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="sketch.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(req.Sketch)); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}

	fields := []struct{ name, value string }{
		{"prompt", req.Prompt},
		{"negative_prompt", req.NegativePrompt},
		{"control_strength", strconv.FormatFloat(req.Strength, 'f', -1, 64)},
		{"output_format", c.outputFormat},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := writer.WriteField(f.name, f.value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", f.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "image/*")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("generation returned an empty image")
	}
	return data, nil
}
