// Package service composes face detection and emotion classification into
// the detect, classify and detect_and_classify commands.
package service

import (
	"errors"
	"fmt"
	"image"

	"faceemotion/internal/dto"
	"faceemotion/internal/emotion"
	"faceemotion/internal/geometry"
	"faceemotion/internal/logger"
)

// ErrResultMismatch is returned when the classifier does not return one
// probability vector per face.
var ErrResultMismatch = errors.New("classifier result count mismatch")

// FaceDetector finds faces in a grayscale image.
type FaceDetector interface {
	DetectFaces(gray *image.Gray) ([]geometry.PixelBox, error)
}

// EmotionClassifier returns one probability vector per grayscale crop.
type EmotionClassifier interface {
	PredictEmotions(faces []*image.Gray) ([]emotion.Probabilities, error)
}

// Annotator renders boxes and labels onto an image and encodes it.
type Annotator interface {
	Annotate(img image.Image, boxes []geometry.PixelBox, labels []string) ([]byte, error)
}

type Pipeline struct {
	detector   FaceDetector
	classifier EmotionClassifier
	annotator  Annotator
	logger     *logger.Logger
}

// NewPipeline wires the models together. annotator may be nil, which disables Annotate.
func NewPipeline(detector FaceDetector, classifier EmotionClassifier, annotator Annotator, logger *logger.Logger) *Pipeline {
	return &Pipeline{
		detector:   detector,
		classifier: classifier,
		annotator:  annotator,
		logger:     logger,
	}
}

// grayscale converts img and rejects images without pixels.
func grayscale(img image.Image) (*image.Gray, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", geometry.ErrInvalidDimensions, b.Dx(), b.Dy())
	}
	return geometry.Grayscale(img), nil
}

// detect returns the grayscale image and its face boxes, largest first.
func (p *Pipeline) detect(img image.Image) (*image.Gray, []geometry.PixelBox, error) {
	gray, err := grayscale(img)
	if err != nil {
		return nil, nil, err
	}

	boxes, err := p.detector.DetectFaces(gray)
	if err != nil {
		return nil, nil, fmt.Errorf("face detection failed: %w", err)
	}
	geometry.SortByArea(boxes)
	return gray, boxes, nil
}

func normalize(boxes []geometry.PixelBox, w, h int) ([]geometry.NormalizedBox, error) {
	faces := make([]geometry.NormalizedBox, 0, len(boxes))
	for _, b := range boxes {
		n, err := geometry.ToNormalized(b, w, h)
		if err != nil {
			return nil, err
		}
		faces = append(faces, n)
	}
	return faces, nil
}

// Detect returns the faces in img sorted largest to smallest.
func (p *Pipeline) Detect(img image.Image) (*dto.DetectResponse, error) {
	gray, boxes, err := p.detect(img)
	if err != nil {
		return nil, err
	}

	faces, err := normalize(boxes, gray.Bounds().Dx(), gray.Bounds().Dy())
	if err != nil {
		return nil, err
	}

	p.logger.Debug("detect: %d face(s)", len(faces))
	return &dto.DetectResponse{Faces: faces}, nil
}

// Classify treats the whole image as one face crop.
func (p *Pipeline) Classify(img image.Image) (*dto.ClassifyResponse, error) {
	gray, err := grayscale(img)
	if err != nil {
		return nil, err
	}

	probs, err := p.classifier.PredictEmotions([]*image.Gray{gray})
	if err != nil {
		return nil, fmt.Errorf("emotion classification failed: %w", err)
	}
	if len(probs) != 1 {
		return nil, fmt.Errorf("%w: expected 1, got %d", ErrResultMismatch, len(probs))
	}

	p.logger.Debug("classify: %s", probs[0].MostLikely())
	return &dto.ClassifyResponse{
		Probabilities:   probs[0],
		MostLikelyClass: probs[0].MostLikely(),
	}, nil
}

// DetectAndClassify detects faces and classifies each crop. The three result
// sequences are index aligned in detector order.
func (p *Pipeline) DetectAndClassify(img image.Image) (*dto.DetectAndClassifyResponse, error) {
	resp, _, err := p.detectAndClassify(img)
	return resp, err
}

func (p *Pipeline) detectAndClassify(img image.Image) (*dto.DetectAndClassifyResponse, []geometry.PixelBox, error) {
	gray, boxes, err := p.detect(img)
	if err != nil {
		return nil, nil, err
	}

	crops := make([]*image.Gray, len(boxes))
	for i, b := range boxes {
		crops[i] = geometry.ExtractROI(gray, b)
	}

	probs, err := p.classifier.PredictEmotions(crops)
	if err != nil {
		return nil, nil, fmt.Errorf("emotion classification failed: %w", err)
	}
	if len(probs) != len(boxes) {
		return nil, nil, fmt.Errorf("%w: expected %d, got %d", ErrResultMismatch, len(boxes), len(probs))
	}

	faces, err := normalize(boxes, gray.Bounds().Dx(), gray.Bounds().Dy())
	if err != nil {
		return nil, nil, err
	}

	classes := make([]string, len(probs))
	for i, pr := range probs {
		classes[i] = pr.MostLikely()
	}

	p.logger.Debug("detect_and_classify: %d face(s) %v", len(faces), classes)
	return &dto.DetectAndClassifyResponse{
		Faces:             faces,
		Probabilities:     probs,
		MostLikelyClasses: classes,
	}, boxes, nil
}

// Annotate runs DetectAndClassify and draws the result onto img as JPEG.
// Boxes are relative to the top-left corner of img.
func (p *Pipeline) Annotate(img image.Image) ([]byte, *dto.DetectAndClassifyResponse, error) {
	if p.annotator == nil {
		return nil, nil, errors.New("annotation is not available")
	}

	resp, boxes, err := p.detectAndClassify(img)
	if err != nil {
		return nil, nil, err
	}

	labels := make([]string, len(boxes))
	for i, pr := range resp.Probabilities {
		labels[i] = fmt.Sprintf("%s (%.2f)", resp.MostLikelyClasses[i], pr[pr.ArgMax()])
	}

	out, err := p.annotator.Annotate(img, boxes, labels)
	if err != nil {
		return nil, nil, fmt.Errorf("annotation failed: %w", err)
	}
	return out, resp, nil
}
