package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/menta2k/yolo-annotator/internal/config"
	"github.com/menta2k/yolo-annotator/internal/utils"
	"github.com/menta2k/yolo-annotator/pkg/autolabel"
	"github.com/menta2k/yolo-annotator/pkg/client"
	"github.com/menta2k/yolo-annotator/pkg/dataset"
	"github.com/menta2k/yolo-annotator/pkg/export"
	"github.com/menta2k/yolo-annotator/pkg/ingest"
	"github.com/menta2k/yolo-annotator/pkg/llamacpp"
	"github.com/menta2k/yolo-annotator/pkg/ollama"
	"github.com/menta2k/yolo-annotator/pkg/processing"
	"github.com/menta2k/yolo-annotator/pkg/types"
	"github.com/menta2k/yolo-annotator/pkg/vision"
)

func main() {
	var in, outDir, labelList, backend, url, model, fallback, cfgPath string
	var minConf float64
	var includeDesc, propose, overlay, crops bool

	flag.StringVar(&in, "in", "", "input image file or directory")
	flag.StringVar(&outDir, "out", "out", "output directory for label files and data.yaml")
	flag.StringVar(&labelList, "labels", "", "comma-separated label class names (e.g. person,car,dog)")
	flag.StringVar(&backend, "backend", "", "detection backend: ollama or llamacpp")
	flag.StringVar(&url, "url", "", "detector server URL")
	flag.StringVar(&model, "model", "", "model name")
	flag.StringVar(&fallback, "fallback", "", "fallback model when the primary is unavailable")
	flag.StringVar(&cfgPath, "config", "", "config file path (JSON)")
	flag.Float64Var(&minConf, "minconf", -1, "minimum detection confidence (overrides config)")
	flag.BoolVar(&includeDesc, "desc", false, "keep model descriptions on annotations")
	flag.BoolVar(&propose, "propose", false, "use the offline saliency proposer instead of a model")
	flag.BoolVar(&overlay, "overlay", false, "write annotated overlay images for review")
	flag.BoolVar(&crops, "crops", false, "write per-annotation image patches")
	flag.Parse()

	if in == "" || labelList == "" {
		log.Fatalf("usage: %s -in image.jpg|dir -labels person,car [-backend ollama|llamacpp] [-propose] [-out outdir]",
			filepath.Base(os.Args[0]))
	}

	cfg := loadConfig(cfgPath)
	if backend != "" {
		cfg.Detector.Backend = backend
	}
	if url != "" {
		cfg.Detector.ServerURL = url
	}
	if model != "" {
		cfg.Detector.Model = model
	}
	if fallback != "" {
		cfg.Detector.FallbackModel = fallback
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	opts := ingest.Options{
		MinConfidence:      cfg.Ingest.MinConfidence,
		IncludeDescription: cfg.Ingest.IncludeDescription || includeDesc,
	}
	if minConf >= 0 {
		opts.MinConfidence = minConf
	}

	ds := dataset.New()
	colors := []string{"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231", "#911eb4"}
	for i, name := range strings.Split(labelList, ",") {
		ds.AddLabel(strings.TrimSpace(name), colors[i%len(colors)])
	}

	files := collectImages(in)
	if len(files) == 0 {
		log.Fatalf("no image files found under %s", in)
	}
	if err := utils.EnsureDir(outDir); err != nil {
		log.Fatal(err)
	}

	var labeler *autolabel.Labeler
	if !propose {
		labeler = newLabeler(cfg)
	}
	proc := processing.NewProcessor()
	proposer := vision.New()
	ctx := context.Background()

	for _, path := range files {
		img := ds.AddImage(filepath.Base(path), path)

		decoded, err := proc.LoadImage(path)
		if err != nil {
			log.Printf("skipping %s: %v", path, err)
			continue
		}
		proc.DecodeDimensions(img, decoded)

		var rep ingest.Report
		if propose {
			boxes, r := ingest.Process(proposer.Propose(decoded), ds.Labels, img.Width, img.Height, opts)
			img.Boxes = boxes
			rep = r
		} else {
			b64, err := proc.PrepareImageForModel(decoded, "jpg", cfg.Detector.SendMaxDim, cfg.Detector.SendQuality)
			if err != nil {
				log.Printf("skipping %s: %v", path, err)
				continue
			}
			boxes, r, err := labeler.Run(ctx, b64, img, ds.Labels, opts)
			if err != nil {
				log.Printf("detection failed for %s: %v", path, err)
				continue
			}
			img.Boxes = boxes
			rep = r
		}
		dataset.Refresh(img)

		labelFile := filepath.Join(outDir, utils.LabelPath(img.Name))
		content := export.LabelLines(img.Boxes, ds.Labels)
		if err := os.WriteFile(labelFile, []byte(content+"\n"), 0o644); err != nil {
			log.Fatalf("failed to write %s: %v", labelFile, err)
		}
		log.Printf("%s: %s", img.Name, rep)

		if overlay {
			out := filepath.Join(outDir, strings.TrimSuffix(img.Name, filepath.Ext(img.Name))+"_overlay.jpg")
			if err := proc.SaveImage(proc.RenderAnnotations(decoded, img.Boxes, ds.Labels), out, 92); err != nil {
				log.Printf("overlay failed for %s: %v", img.Name, err)
			}
		}
		if crops {
			writeCrops(proc, decoded, img.Name, img.Boxes, outDir)
		}
	}

	manifest, err := export.Manifest(ds.Labels, cfg.Export.TrainPath, cfg.Export.ValPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "data.yaml"), manifest, 0o644); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d label files and data.yaml to %s", len(files), outDir)
}

func loadConfig(path string) *config.Config {
	if path == "" {
		if utils.FileExists(config.GetConfigPath()) {
			path = config.GetConfigPath()
		} else {
			return config.Default()
		}
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func newLabeler(cfg *config.Config) *autolabel.Labeler {
	var vc client.VisionClient
	var err error
	switch cfg.Detector.Backend {
	case "llamacpp":
		vc, err = llamacpp.NewClient(cfg.Detector.ServerURL)
	default:
		vc, err = ollama.NewClient(cfg.Detector.ServerURL)
	}
	if err != nil {
		log.Fatalf("failed to create %s client: %v", cfg.Detector.Backend, err)
	}

	l := autolabel.New(vc, cfg.Detector.Model)
	if cfg.Detector.FallbackModel != "" {
		l.FallbackModel = cfg.Detector.FallbackModel
	}
	l.Policy.MaxAttempts = cfg.Detector.MaxRetries
	l.Policy.BaseDelay = time.Duration(cfg.Detector.BaseDelayMS) * time.Millisecond
	return l
}

func collectImages(in string) []string {
	info, err := os.Stat(in)
	if err != nil {
		log.Fatalf("cannot stat %s: %v", in, err)
	}
	if !info.IsDir() {
		return []string{in}
	}
	files, err := utils.ListImageFiles(in)
	if err != nil {
		log.Fatalf("failed to list images: %v", err)
	}
	return files
}

func writeCrops(proc *processing.Processor, decoded image.Image, name string, boxes []types.BBox, outDir string) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for i := range boxes {
		patch, err := proc.CropAnnotation(decoded, boxes[i].Box)
		if err != nil {
			log.Printf("crop failed for %s box %d: %v", name, i, err)
			continue
		}
		out := filepath.Join(outDir, fmt.Sprintf("%s_crop%02d.jpg", base, i))
		if err := proc.SaveImage(patch, out, 92); err != nil {
			log.Printf("crop save failed for %s: %v", out, err)
		}
	}
}
