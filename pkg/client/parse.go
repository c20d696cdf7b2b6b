package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/menta2k/yolo-annotator/pkg/types"
)

// ErrParse marks a model response that is not valid JSON even after the
// recovery extraction. It is terminal for the detection call that produced
// the response.
var ErrParse = errors.New("unparseable detection response")

// ParseDetections turns a raw model response into detections. The response
// is sanitized first (code fences, comments, trailing commas); if it still
// fails to parse, a best-effort recovery extracts the first bracket-delimited
// array substring and retries once before giving up.
func ParseDetections(raw string) ([]types.RawDetection, error) {
	raw = SanitizeModelJSON(raw)

	var dets []types.RawDetection
	if err := json.Unmarshal([]byte(raw), &dets); err == nil {
		return dets, nil
	}

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no array found in response", ErrParse)
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &dets); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return dets, nil
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from a
// model response. Vision models routinely wrap JSON in markdown despite being
// told not to.
func SanitizeModelJSON(raw string) string {
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

	// Remove /* ... */ block comments
	reBlock := regexp.MustCompile(`(?s)/\*.*?\*/`)
	raw = reBlock.ReplaceAllString(raw, "")

	// Remove // line/inline comments
	reLine := regexp.MustCompile(`(?m)^\s*//.*$`)
	raw = reLine.ReplaceAllString(raw, "")

	// Remove trailing commas before } or ]
	reTrailing := regexp.MustCompile(`,(\s*[}\]])`)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	return strings.TrimSpace(raw)
}
