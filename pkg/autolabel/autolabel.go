// Package autolabel orchestrates one auto-labeling call: it asks a vision
// backend for detections under the retry policy, runs the result through the
// ingest pipeline, and classifies terminal errors so the caller can present
// an actionable message instead of a raw transport failure.
package autolabel

import (
	"context"
	"fmt"

	"github.com/menta2k/yolo-annotator/pkg/client"
	"github.com/menta2k/yolo-annotator/pkg/ingest"
	"github.com/menta2k/yolo-annotator/pkg/ollama"
	"github.com/menta2k/yolo-annotator/pkg/retry"
	"github.com/menta2k/yolo-annotator/pkg/types"
)

// FallbackModel is the known-stable model used for remaining attempts when
// the configured model is unavailable.
const FallbackModel = "qwen2.5vl:7b"

// Labeler runs auto-label requests against a vision backend.
type Labeler struct {
	Client        client.VisionClient
	Policy        retry.Policy
	Model         string
	FallbackModel string
}

// New returns a labeler with the default retry policy and fallback model.
func New(c client.VisionClient, model string) *Labeler {
	p := retry.Default()
	p.ShouldFallback = IsModelUnavailable
	return &Labeler{
		Client:        c,
		Policy:        p,
		Model:         model,
		FallbackModel: FallbackModel,
	}
}

// Run performs one auto-labeling call for an image and returns the validated
// annotations plus the ingest report. The image's pixel dimensions come from
// img; imgB64 is the encoded image content sent to the model. Run never
// mutates img — applying the returned boxes is the caller's job, after it has
// re-checked that the image is still the one being edited.
func (l *Labeler) Run(ctx context.Context, imgB64 string, img *types.DatasetImage, labels []types.LabelClass, opts ingest.Options) ([]types.BBox, ingest.Report, error) {
	if len(labels) == 0 {
		return nil, ingest.Report{}, fmt.Errorf("no label classes defined")
	}
	prompt := ollama.BuildPrompt(labels)

	var dets []types.RawDetection
	err := l.Policy.DoWithFallback(ctx, l.Model, l.FallbackModel, func(ctx context.Context, model string) error {
		var derr error
		dets, derr = l.Client.Detect(ctx, model, prompt, imgB64)
		return derr
	})
	if err != nil {
		return nil, ingest.Report{}, Classify(err)
	}

	boxes, rep := ingest.Process(dets, labels, img.Width, img.Height, opts)
	return boxes, rep, nil
}
