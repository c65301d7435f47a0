// Package geometry converts face boxes between pixel and normalized
// coordinates and prepares grayscale crops for the classifier.
package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrInvalidDimensions is returned when an image width or height is not positive.
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	// ErrEmptyRegion marks a face crop without pixels, e.g. a box clipped away entirely.
	ErrEmptyRegion = errors.New("face region is empty")
)

// PixelBox is a detector box (x, y, width, height) in image pixels, origin top-left.
type PixelBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NormalizedBox is (xmin, ymin, xmax, ymax) as fractions of the image size.
// It marshals to a four element JSON array.
type NormalizedBox struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

// FromRect converts an image.Rectangle to a PixelBox.
func FromRect(r image.Rectangle) PixelBox {
	return PixelBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect converts the box back to an image.Rectangle.
func (b PixelBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Area is Width*Height.
func (b PixelBox) Area() int {
	return b.Width * b.Height
}

// SortByArea orders boxes largest first. Equal areas keep their detector order.
func SortByArea(boxes []PixelBox) {
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Area() > boxes[j].Area()
	})
}

// ToNormalized converts a pixel box to normalized coordinates for an image of the given size.
func ToNormalized(b PixelBox, imageWidth, imageHeight int) (NormalizedBox, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return NormalizedBox{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, imageWidth, imageHeight)
	}
	w, h := float64(imageWidth), float64(imageHeight)
	return NormalizedBox{
		XMin: float64(b.X) / w,
		YMin: float64(b.Y) / h,
		XMax: float64(b.X+b.Width) / w,
		YMax: float64(b.Y+b.Height) / h,
	}, nil
}

// ToPixel converts a normalized box back to pixels. Components are rounded
// half to even.
func ToPixel(b NormalizedBox, imageWidth, imageHeight int) (PixelBox, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return PixelBox{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, imageWidth, imageHeight)
	}
	w, h := float64(imageWidth), float64(imageHeight)
	return PixelBox{
		X:      int(math.RoundToEven(b.XMin * w)),
		Y:      int(math.RoundToEven(b.YMin * h)),
		Width:  int(math.RoundToEven((b.XMax - b.XMin) * w)),
		Height: int(math.RoundToEven((b.YMax - b.YMin) * h)),
	}, nil
}

// MarshalJSON encodes the box as [xmin, ymin, xmax, ymax].
func (b NormalizedBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.XMin, b.YMin, b.XMax, b.YMax})
}

// UnmarshalJSON decodes a [xmin, ymin, xmax, ymax] array.
func (b *NormalizedBox) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if len(v) != 4 {
		return fmt.Errorf("bounding box needs 4 values, got %d", len(v))
	}
	b.XMin, b.YMin, b.XMax, b.YMax = v[0], v[1], v[2], v[3]
	return nil
}
