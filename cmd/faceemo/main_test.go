package main

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faceemotion/internal/geometry"
)

func TestParseCrop(t *testing.T) {
	box, err := parseCrop("0.1, 0.2,0.5,0.6")
	require.NoError(t, err)
	assert.Equal(t, geometry.NormalizedBox{XMin: 0.1, YMin: 0.2, XMax: 0.5, YMax: 0.6}, box)

	for _, bad := range []string{"", "0.1,0.2,0.3", "a,b,c,d", "0.5,0.1,0.2,0.9"} {
		_, err := parseCrop(bad)
		assert.Error(t, err, bad)
	}
}

func TestCropImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))

	out, err := cropImage(img, geometry.NormalizedBox{XMin: 0.05, YMin: 0.1, XMax: 0.3, YMax: 0.3})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 50, 20), out.Bounds())

	_, err = cropImage(img, geometry.NormalizedBox{XMin: 1.5, YMin: 1.5, XMax: 2, YMax: 2})
	assert.ErrorIs(t, err, geometry.ErrEmptyRegion)
}
