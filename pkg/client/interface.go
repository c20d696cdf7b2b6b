// Package client defines the contract a vision backend must satisfy and the
// shared parsing of model responses into raw detections.
package client

import (
	"context"

	"github.com/menta2k/yolo-annotator/pkg/types"
)

// VisionClient is an object-detection backend. Detect sends one image (as
// base64) with a prompt and returns whatever detections the model reported,
// unvalidated; validation happens downstream in the ingest pipeline.
type VisionClient interface {
	Detect(ctx context.Context, model, prompt, imgB64 string) ([]types.RawDetection, error)
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
