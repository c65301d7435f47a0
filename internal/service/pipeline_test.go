package service

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faceemotion/internal/emotion"
	"faceemotion/internal/geometry"
	"faceemotion/internal/logger"
)

type fakeDetector struct {
	boxes []geometry.PixelBox
	err   error
	calls int
}

func (d *fakeDetector) DetectFaces(gray *image.Gray) ([]geometry.PixelBox, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	out := make([]geometry.PixelBox, len(d.boxes))
	copy(out, d.boxes)
	return out, nil
}

// fakeClassifier derives a deterministic vector from each crop's size and
// mean intensity so identical crops always get identical results.
type fakeClassifier struct {
	err   error
	extra int
	seen  [][2]int
}

func (c *fakeClassifier) PredictEmotions(faces []*image.Gray) ([]emotion.Probabilities, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([]emotion.Probabilities, 0, len(faces)+c.extra)
	for _, f := range faces {
		b := f.Bounds()
		c.seen = append(c.seen, [2]int{b.Dx(), b.Dy()})

		var sum int
		for _, v := range f.Pix {
			sum += int(v)
		}
		mean := 0
		if len(f.Pix) > 0 {
			mean = sum / len(f.Pix)
		}

		var p emotion.Probabilities
		for i := range p {
			p[i] = 0.1 / 6
		}
		p[(b.Dx()+mean)%emotion.NumClasses] = 0.9
		out = append(out, p)
	}
	for i := 0; i < c.extra; i++ {
		out = append(out, emotion.Probabilities{})
	}
	return out, nil
}

type fakeAnnotator struct {
	boxes  []geometry.PixelBox
	labels []string
}

func (a *fakeAnnotator) Annotate(img image.Image, boxes []geometry.PixelBox, labels []string) ([]byte, error) {
	a.boxes = boxes
	a.labels = labels
	return []byte{0xFF, 0xD8, 0xFF, 0xD9}, nil
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter(&bytes.Buffer{}, "debug")
}

// grayRGBA returns a w x h image with R=G=B so its grayscale equals v(x, y).
func grayRGBA(w, h int, v func(x, y int) uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := v(x, y)
			img.Set(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return img
}

func pattern(x, y int) uint8 {
	return uint8((x*7 + y*13) % 256)
}

func TestDetect_SortsAndNormalizes(t *testing.T) {
	det := &fakeDetector{boxes: []geometry.PixelBox{
		{X: 10, Y: 10, Width: 20, Height: 20},  // 400
		{X: 100, Y: 20, Width: 30, Height: 30}, // 900
	}}
	p := NewPipeline(det, &fakeClassifier{}, nil, testLogger())

	resp, err := p.Detect(grayRGBA(200, 100, pattern))
	require.NoError(t, err)
	require.Len(t, resp.Faces, 2)

	assert.InDelta(t, 0.5, resp.Faces[0].XMin, 1e-12)
	assert.InDelta(t, 0.2, resp.Faces[0].YMin, 1e-12)
	assert.InDelta(t, 0.65, resp.Faces[0].XMax, 1e-12)
	assert.InDelta(t, 0.5, resp.Faces[0].YMax, 1e-12)

	assert.InDelta(t, 0.05, resp.Faces[1].XMin, 1e-12)
	assert.InDelta(t, 0.15, resp.Faces[1].XMax, 1e-12)
}

func TestDetect_KnownBox(t *testing.T) {
	det := &fakeDetector{boxes: []geometry.PixelBox{{X: 10, Y: 10, Width: 50, Height: 20}}}
	p := NewPipeline(det, &fakeClassifier{}, nil, testLogger())

	resp, err := p.Detect(grayRGBA(200, 100, pattern))
	require.NoError(t, err)
	require.Len(t, resp.Faces, 1)
	f := resp.Faces[0]
	assert.InDelta(t, 0.05, f.XMin, 1e-12)
	assert.InDelta(t, 0.1, f.YMin, 1e-12)
	assert.InDelta(t, 0.3, f.XMax, 1e-12)
	assert.InDelta(t, 0.3, f.YMax, 1e-12)
}

func TestDetect_BlankImageHasNoFaces(t *testing.T) {
	cls := &fakeClassifier{}
	p := NewPipeline(&fakeDetector{}, cls, nil, testLogger())
	blank := grayRGBA(100, 100, func(int, int) uint8 { return 255 })

	resp, err := p.Detect(blank)
	require.NoError(t, err)
	assert.NotNil(t, resp.Faces)
	assert.Empty(t, resp.Faces)

	both, err := p.DetectAndClassify(blank)
	require.NoError(t, err)
	assert.Empty(t, both.Faces)
	assert.Empty(t, both.Probabilities)
	assert.Empty(t, both.MostLikelyClasses)
	assert.Empty(t, cls.seen)
}

func TestPipeline_ZeroSizedImage(t *testing.T) {
	det := &fakeDetector{}
	p := NewPipeline(det, &fakeClassifier{}, &fakeAnnotator{}, testLogger())
	empty := image.NewRGBA(image.Rect(0, 0, 0, 10))

	_, err := p.Detect(empty)
	assert.ErrorIs(t, err, geometry.ErrInvalidDimensions)
	_, err = p.Classify(empty)
	assert.ErrorIs(t, err, geometry.ErrInvalidDimensions)
	_, err = p.DetectAndClassify(empty)
	assert.ErrorIs(t, err, geometry.ErrInvalidDimensions)
	_, _, err = p.Annotate(empty)
	assert.ErrorIs(t, err, geometry.ErrInvalidDimensions)

	assert.Equal(t, 0, det.calls)
}

func TestDetectAndClassify_TwoFacesLargestFirst(t *testing.T) {
	det := &fakeDetector{boxes: []geometry.PixelBox{
		{X: 0, Y: 0, Width: 20, Height: 20},   // 400
		{X: 50, Y: 50, Width: 30, Height: 30}, // 900
	}}
	cls := &fakeClassifier{}
	p := NewPipeline(det, cls, nil, testLogger())

	resp, err := p.DetectAndClassify(grayRGBA(100, 100, func(int, int) uint8 { return 0 }))
	require.NoError(t, err)

	require.Len(t, resp.Faces, 2)
	require.Len(t, resp.Probabilities, 2)
	require.Len(t, resp.MostLikelyClasses, 2)

	assert.Equal(t, [][2]int{{30, 30}, {20, 20}}, cls.seen)
	assert.InDelta(t, 0.5, resp.Faces[0].XMin, 1e-12)
	assert.InDelta(t, 0.0, resp.Faces[1].XMin, 1e-12)

	// width 30 -> index 2, width 20 -> index 6
	assert.Equal(t, []string{"scared", "neutral"}, resp.MostLikelyClasses)
	for i, pr := range resp.Probabilities {
		assert.Equal(t, emotion.Labels[pr.ArgMax()], resp.MostLikelyClasses[i])
		assert.InDelta(t, 1.0, pr.Sum(), 1e-6)
	}
}

func TestDetectAndClassify_ClipsBoxesAtBorder(t *testing.T) {
	det := &fakeDetector{boxes: []geometry.PixelBox{{X: 80, Y: 90, Width: 40, Height: 30}}}
	cls := &fakeClassifier{}
	p := NewPipeline(det, cls, nil, testLogger())

	resp, err := p.DetectAndClassify(grayRGBA(100, 100, pattern))
	require.NoError(t, err)
	require.Len(t, resp.Faces, 1)
	assert.Equal(t, [][2]int{{20, 10}}, cls.seen)
	assert.InDelta(t, 1.2, resp.Faces[0].XMax, 1e-12)
}

func TestClassify_AgreesWithDetectAndClassify(t *testing.T) {
	box := geometry.PixelBox{X: 12, Y: 7, Width: 48, Height: 52}
	full := grayRGBA(120, 90, pattern)
	crop := grayRGBA(box.Width, box.Height, func(x, y int) uint8 { return pattern(x+box.X, y+box.Y) })

	p := NewPipeline(&fakeDetector{boxes: []geometry.PixelBox{box}}, &fakeClassifier{}, nil, testLogger())

	both, err := p.DetectAndClassify(full)
	require.NoError(t, err)
	require.Len(t, both.Probabilities, 1)

	single, err := p.Classify(crop)
	require.NoError(t, err)

	assert.Equal(t, both.Probabilities[0], single.Probabilities)
	assert.Equal(t, both.MostLikelyClasses[0], single.MostLikelyClass)
}

func TestClassify_WholeImage(t *testing.T) {
	cls := &fakeClassifier{}
	p := NewPipeline(&fakeDetector{}, cls, nil, testLogger())

	resp, err := p.Classify(grayRGBA(48, 48, func(int, int) uint8 { return 0 }))
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{48, 48}}, cls.seen)
	assert.Equal(t, emotion.Labels[48%emotion.NumClasses], resp.MostLikelyClass)
}

func TestPipeline_ClassifierErrors(t *testing.T) {
	errModel := errors.New("model exploded")
	box := []geometry.PixelBox{{X: 0, Y: 0, Width: 10, Height: 10}}
	img := grayRGBA(20, 20, pattern)

	p := NewPipeline(&fakeDetector{boxes: box}, &fakeClassifier{err: errModel}, nil, testLogger())
	_, err := p.DetectAndClassify(img)
	assert.ErrorIs(t, err, errModel)
	_, err = p.Classify(img)
	assert.ErrorIs(t, err, errModel)

	p = NewPipeline(&fakeDetector{boxes: box}, &fakeClassifier{extra: 1}, nil, testLogger())
	_, err = p.DetectAndClassify(img)
	assert.ErrorIs(t, err, ErrResultMismatch)
	_, err = p.Classify(img)
	assert.ErrorIs(t, err, ErrResultMismatch)
}

func TestPipeline_DetectorError(t *testing.T) {
	errCascade := errors.New("cascade failed")
	p := NewPipeline(&fakeDetector{err: errCascade}, &fakeClassifier{}, nil, testLogger())

	_, err := p.Detect(grayRGBA(20, 20, pattern))
	assert.ErrorIs(t, err, errCascade)
}

func TestAnnotate(t *testing.T) {
	det := &fakeDetector{boxes: []geometry.PixelBox{
		{X: 0, Y: 0, Width: 20, Height: 20},
		{X: 50, Y: 50, Width: 30, Height: 30},
	}}
	ann := &fakeAnnotator{}
	p := NewPipeline(det, &fakeClassifier{}, ann, testLogger())

	out, resp, err := p.Annotate(grayRGBA(100, 100, func(int, int) uint8 { return 0 }))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xD9}, out)
	require.Len(t, resp.Faces, 2)

	assert.Equal(t, []geometry.PixelBox{
		{X: 50, Y: 50, Width: 30, Height: 30},
		{X: 0, Y: 0, Width: 20, Height: 20},
	}, ann.boxes)
	assert.Equal(t, []string{"scared (0.90)", "neutral (0.90)"}, ann.labels)

	p = NewPipeline(det, &fakeClassifier{}, nil, testLogger())
	_, _, err = p.Annotate(grayRGBA(10, 10, pattern))
	assert.Error(t, err)
}
