// Package ollama implements the detection backend against an Ollama server
// using the official API client.
package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/yolo-annotator/pkg/client"
	"github.com/menta2k/yolo-annotator/pkg/types"
)

// defaultTimeout bounds a single detection call when the caller's context has
// no deadline. Vision models on CPU can take minutes.
const defaultTimeout = 300 * time.Second

// Client wraps the Ollama API client.
type Client struct {
	client *api.Client
}

// NewClient creates a new Ollama client for the given server URL.
func NewClient(ollamaURL string) (*Client, error) {
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}

	// Base URL only; the API client appends its own paths.
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{client: api.NewClient(baseURL, http.DefaultClient)}, nil
}

// Detect sends the image and prompt to the model and parses the response
// into raw detections.
func (c *Client) Detect(ctx context.Context, model, prompt, imgB64 string) ([]types.RawDetection, error) {
	raw, err := c.chat(ctx, model, prompt, imgB64)
	if err != nil {
		return nil, err
	}
	return client.ParseDetections(raw)
}

// SimpleQuery performs a free-form query with an image, returning the model's
// text response unparsed. Useful for checking that a model can see images at
// all.
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.chat(ctx, model, prompt, imgB64)
}

func (c *Client) chat(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 image: %v", err)
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: prompt,
				Images:  []api.ImageData{api.ImageData(imgBytes)},
			},
		},
		Stream: &streamFalse,
	}

	var responseContent string
	err = c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		responseContent = resp.Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat error: %w", err)
	}
	if responseContent == "" {
		return "", fmt.Errorf("empty response from ollama")
	}
	return responseContent, nil
}

// BuildPrompt produces the detection prompt for the given label set. The
// model is asked for a JSON array of detections in [ymin, xmin, ymax, xmax]
// order, normalized; everything it returns is still validated downstream.
func BuildPrompt(labels []types.LabelClass) string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}

	return fmt.Sprintf(`You are an object detector for dataset labeling.

Detect every instance of these classes in the image: %s.

Return JSON only: an array of objects, one per detected instance:
[{"label": "string", "box_2d": [ymin, xmin, ymax, xmax], "confidence": 0.0, "description": "short phrase"}]

HARD RULES
- box_2d values are normalized to [0,1] (NOT pixels), in [ymin, xmin, ymax, xmax] order.
- label must be one of the listed classes, exactly as written.
- confidence is your certainty in [0,1].
- Include every visible instance, including partially occluded ones.
- If nothing matches, return [].
- JSON only. No markdown, no code fences, no comments, no trailing commas.`,
		strings.Join(names, ", "))
}
