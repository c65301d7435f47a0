package ai

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"faceemotion/internal/geometry"
)

var (
	boxColor   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	labelColor = color.RGBA{R: 255, G: 255, B: 0, A: 0}
)

// Annotate draws each box with its label onto a copy of img and returns it as JPEG.
// labels may be shorter than boxes; missing labels are left out.
func (e *Engine) Annotate(img image.Image, boxes []geometry.PixelBox, labels []string) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	for i, box := range boxes {
		err = gocv.Rectangle(&mat, box.Rect(), boxColor, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}

		if i >= len(labels) || labels[i] == "" {
			continue
		}
		pt := image.Pt(box.X, box.Y-5)
		if pt.Y < 10 {
			pt.Y = box.Y + box.Height + 15
		}
		err = gocv.PutText(&mat, labels[i], pt, gocv.FontHersheySimplex, 0.5, labelColor, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		e.logger.Error("Failed to encode image: %v", err)
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
