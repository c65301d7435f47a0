package ai

import (
	"errors"
	"fmt"
	"image"
	"os"

	jsoniter "github.com/json-iterator/go"

	"faceemotion/internal/emotion"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Layout is the memory order of the classifier input tensor.
type Layout int

const (
	LayoutNHWC Layout = iota
	LayoutNCHW
)

func (l Layout) String() string {
	if l == LayoutNCHW {
		return "NCHW"
	}
	return "NHWC"
}

// sizes returns the blob dimensions for a batch of n single channel h x w crops.
func (l Layout) sizes(n, h, w int) []int {
	if l == LayoutNCHW {
		return []int{n, 1, h, w}
	}
	return []int{n, h, w, 1}
}

// Metadata describes the exported emotion model. It is read from a JSON file
// stored next to the model, e.g.
//
//	{"input_shape": [-1, 48, 48, 1], "classes": ["angry", ...]}
type Metadata struct {
	InputShape []int    `json:"input_shape"`
	Classes    []string `json:"classes"`
}

var ErrInvalidMetadata = errors.New("invalid model metadata")

// LoadMetadata reads and validates the metadata file at path.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that the class list matches the emotion labels and that the
// input shape describes a single channel image.
func (m *Metadata) Validate() error {
	if len(m.Classes) != emotion.NumClasses {
		return fmt.Errorf("%w: expected %d classes, got %d", ErrInvalidMetadata, emotion.NumClasses, len(m.Classes))
	}
	for i, c := range m.Classes {
		if c != emotion.Labels[i] {
			return fmt.Errorf("%w: class %d is %q, expected %q", ErrInvalidMetadata, i, c, emotion.Labels[i])
		}
	}
	_, _, err := m.Input()
	return err
}

// Input returns the crop size (X is width) and tensor layout from input_shape.
func (m *Metadata) Input() (image.Point, Layout, error) {
	s := m.InputShape
	if len(s) != 4 {
		return image.Point{}, 0, fmt.Errorf("%w: input_shape must have 4 dimensions, got %v", ErrInvalidMetadata, s)
	}

	var (
		h, w   int
		layout Layout
	)
	switch {
	case s[3] == 1:
		h, w, layout = s[1], s[2], LayoutNHWC
	case s[1] == 1:
		h, w, layout = s[2], s[3], LayoutNCHW
	default:
		return image.Point{}, 0, fmt.Errorf("%w: input_shape %v is not single channel", ErrInvalidMetadata, s)
	}
	if h <= 0 || w <= 0 {
		return image.Point{}, 0, fmt.Errorf("%w: input_shape %v has no fixed spatial size", ErrInvalidMetadata, s)
	}
	return image.Pt(w, h), layout, nil
}
