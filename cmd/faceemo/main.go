// Command faceemo runs a single face emotion command on an image file and
// prints the JSON result.
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	jsoniter "github.com/json-iterator/go"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"faceemotion/internal/config"
	"faceemotion/internal/geometry"
	"faceemotion/internal/handler"
	"faceemotion/internal/logger"
	"faceemotion/internal/service"
	"faceemotion/internal/service/ai"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	command := flag.String("command", "detect_and_classify", "detect, classify or detect_and_classify")
	imagePath := flag.String("image", "", "Input image path")
	crop := flag.String("crop", "", "Normalized box xmin,ymin,xmax,ymax to crop before running the command")
	annotate := flag.String("annotate", "", "Write an annotated JPEG to this path")
	flag.Parse()

	if *imagePath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cmd, ok := handler.LookupCommand(*command)
	if !ok {
		log.Fatalf("Unknown command %q", *command)
	}

	img, err := imaging.Open(*imagePath, imaging.AutoOrientation(true))
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}

	if *crop != "" {
		box, err := parseCrop(*crop)
		if err != nil {
			log.Fatalf("Invalid -crop: %v", err)
		}
		img, err = cropImage(img, box)
		if err != nil {
			log.Fatalf("Failed to crop image: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logs, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	engine, err := ai.NewEngine(ai.OptionsFromConfig(cfg), logs)
	if err != nil {
		log.Fatalf("Failed to load models: %v", err)
	}
	defer engine.Close()

	pipeline := service.NewPipeline(engine, engine, engine, logs)

	result, err := cmd.Run(pipeline, img)
	if err != nil {
		log.Fatalf("%s failed: %v", cmd.Name, err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(out))

	if *annotate != "" {
		jpg, _, err := pipeline.Annotate(img)
		if err != nil {
			log.Fatalf("Failed to annotate image: %v", err)
		}
		if err := os.WriteFile(*annotate, jpg, 0644); err != nil {
			log.Fatalf("Failed to write %s: %v", *annotate, err)
		}
	}
}

// parseCrop reads "xmin,ymin,xmax,ymax".
func parseCrop(s string) (geometry.NormalizedBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.NormalizedBox{}, fmt.Errorf("expected 4 comma separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.NormalizedBox{}, err
		}
		v[i] = f
	}
	if v[0] >= v[2] || v[1] >= v[3] {
		return geometry.NormalizedBox{}, fmt.Errorf("box %v has no area", v)
	}
	return geometry.NormalizedBox{XMin: v[0], YMin: v[1], XMax: v[2], YMax: v[3]}, nil
}

// cropImage converts box to pixels and cuts it out of img.
func cropImage(img image.Image, box geometry.NormalizedBox) (image.Image, error) {
	b := img.Bounds()
	px, err := geometry.ToPixel(box, b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	r := px.Rect().Add(b.Min).Intersect(b)
	if r.Empty() {
		return nil, geometry.ErrEmptyRegion
	}
	return imaging.Crop(img, r), nil
}
