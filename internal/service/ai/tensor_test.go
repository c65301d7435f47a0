package ai

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"faceemotion/internal/emotion"
)

func TestBlobFromFaces_ScalesAndPacks(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
		sizes  []int
	}{
		{"nhwc", LayoutNHWC, []int{2, 4, 4, 1}},
		{"nchw", LayoutNCHW, []int{2, 1, 4, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Engine{inputSize: image.Pt(4, 4), layout: tt.layout}

			blob, err := e.blobFromFaces([]*image.Gray{uniformGray(8, 6, 200), uniformGray(3, 5, 51)})
			require.NoError(t, err)
			defer blob.Close()

			assert.Equal(t, tt.sizes, blob.Size())

			data, err := blob.DataPtrFloat32()
			require.NoError(t, err)
			require.Len(t, data, 32)
			for i, v := range data[:16] {
				assert.InDelta(t, 200.0/255, v, 1e-6, "face 0 value %d", i)
			}
			for i, v := range data[16:] {
				assert.InDelta(t, 51.0/255, v, 1e-6, "face 1 value %d", i)
			}
		})
	}
}

func TestBlobFromFaces_EmptyCrop(t *testing.T) {
	e := &Engine{inputSize: image.Pt(4, 4), layout: LayoutNHWC}

	_, err := e.blobFromFaces([]*image.Gray{uniformGray(4, 4, 10), image.NewGray(image.Rectangle{})})
	assert.ErrorIs(t, err, ErrEmptyRegion)
}

func outputMat(t *testing.T, rows int) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSizes([]int{rows, emotion.NumClasses}, gocv.MatTypeCV32F)
	data, err := m.DataPtrFloat32()
	require.NoError(t, err)
	for i := range data {
		data[i] = 0.01
	}
	// Row i peaks at class i.
	for i := 0; i < rows; i++ {
		data[i*emotion.NumClasses+i%emotion.NumClasses] = 0.94
	}
	return m
}

func TestParseOutput_RowsStayAligned(t *testing.T) {
	out := outputMat(t, 3)
	defer out.Close()

	probs, err := parseOutput(out, 3)
	require.NoError(t, err)
	require.Len(t, probs, 3)
	for i, p := range probs {
		assert.Equal(t, i, p.ArgMax())
		assert.Equal(t, emotion.Labels[i], p.MostLikely())
		assert.InDelta(t, 1.0, p.Sum(), 1e-5)
	}
}

func TestParseOutput_WrongShape(t *testing.T) {
	out := outputMat(t, 3)
	defer out.Close()

	_, err := parseOutput(out, 2)
	assert.ErrorIs(t, err, ErrModelOutput)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = parseOutput(empty, 1)
	assert.ErrorIs(t, err, ErrModelOutput)
}

func TestGrayToMat_CopiesSubImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 6, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	sub := img.SubImage(image.Rect(1, 1, 4, 3)).(*image.Gray)

	mat, err := grayToMat(sub)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 2, mat.Rows())
	assert.Equal(t, 3, mat.Cols())
	assert.Equal(t, []byte{7, 8, 9, 13, 14, 15}, mat.ToBytes())
}
