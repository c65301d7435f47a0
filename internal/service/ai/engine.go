package ai

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"faceemotion/internal/config"
	"faceemotion/internal/emotion"
	"faceemotion/internal/geometry"
	"faceemotion/internal/logger"
)

// Haar cascade parameters.
const (
	ScaleFactor  = 1.1
	MinNeighbors = 5
	MinFaceSize  = 30

	// cv::CASCADE_SCALE_IMAGE
	cascadeScaleImage = 2
)

var (
	ErrEmptyRegion = geometry.ErrEmptyRegion
	ErrModelOutput = errors.New("unexpected model output")
)

// Options locate the model files and tune the DNN runtime.
type Options struct {
	CascadePath     string
	ModelPath       string
	ModelConfigPath string
	MetadataPath    string
	// InputSize is used when no metadata file exists.
	InputSize image.Point
	Workers   int
	Backend   gocv.NetBackendType
	Target    gocv.NetTargetType
}

// OptionsFromConfig maps the service configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CascadePath:     cfg.CascadePath,
		ModelPath:       cfg.ModelPath,
		ModelConfigPath: cfg.ModelConfigPath,
		MetadataPath:    cfg.MetadataPath,
		InputSize:       image.Pt(cfg.InputSize, cfg.InputSize),
		Workers:         cfg.InferenceWorkers,
		Backend:         gocv.ParseNetBackend(cfg.NetBackend),
		Target:          gocv.ParseNetTarget(cfg.NetTarget),
	}
}

// session is one cascade and one network. SetInput/Forward mutate the net,
// so a session is used by a single call at a time.
type session struct {
	cascade gocv.CascadeClassifier
	net     gocv.Net
}

func (s *session) close() {
	s.cascade.Close()
	s.net.Close()
}

// Engine runs face detection and emotion classification on a pool of sessions.
type Engine struct {
	sessions  chan *session
	inputSize image.Point
	size      int
	layout    Layout
	logger    *logger.Logger
	closeOnce sync.Once
}

// NewEngine loads the cascade, the emotion network and its metadata. Any
// failure is returned; the caller is expected to stop.
func NewEngine(opts Options, log *logger.Logger) (*Engine, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	inputSize, layout, err := resolveInput(opts, log)
	if err != nil {
		return nil, err
	}

	for _, p := range []string{opts.CascadePath, opts.ModelPath} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("model file not found: %s: %w", p, err)
		}
	}

	e := &Engine{
		sessions:  make(chan *session, opts.Workers),
		inputSize: inputSize,
		layout:    layout,
		logger:    log,
	}

	for i := 0; i < opts.Workers; i++ {
		s, err := newSession(opts)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		e.sessions <- s
		e.size++
	}

	log.Info("Inference engine ready: %d session(s), input %dx%d %s", opts.Workers, inputSize.X, inputSize.Y, layout)
	return e, nil
}

func resolveInput(opts Options, log *logger.Logger) (image.Point, Layout, error) {
	if opts.MetadataPath != "" {
		m, err := LoadMetadata(opts.MetadataPath)
		switch {
		case err == nil:
			return m.Input()
		case !os.IsNotExist(err):
			return image.Point{}, 0, fmt.Errorf("failed to load model metadata %s: %w", opts.MetadataPath, err)
		}
		log.Warning("Model metadata %s not found, using input size %dx%d", opts.MetadataPath, opts.InputSize.X, opts.InputSize.Y)
	}
	if opts.InputSize.X <= 0 || opts.InputSize.Y <= 0 {
		return image.Point{}, 0, fmt.Errorf("invalid classifier input size %v", opts.InputSize)
	}
	return opts.InputSize, LayoutNHWC, nil
}

func newSession(opts Options) (*session, error) {
	cascade := gocv.NewCascadeClassifier()
	if !cascade.Load(opts.CascadePath) {
		cascade.Close()
		return nil, fmt.Errorf("failed to load cascade %s", opts.CascadePath)
	}

	net := gocv.ReadNet(opts.ModelPath, opts.ModelConfigPath)
	if net.Empty() {
		cascade.Close()
		return nil, fmt.Errorf("failed to load network %s", opts.ModelPath)
	}

	errBackend := net.SetPreferableBackend(opts.Backend)
	errTarget := net.SetPreferableTarget(opts.Target)
	if errBackend != nil || errTarget != nil {
		cascade.Close()
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target: %v", errors.Join(errBackend, errTarget))
	}

	return &session{cascade: cascade, net: net}, nil
}

func (e *Engine) acquire() *session {
	return <-e.sessions
}

func (e *Engine) release(s *session) {
	e.sessions <- s
}

// InputSize is the classifier crop size, X being the width.
func (e *Engine) InputSize() image.Point {
	return e.inputSize
}

// DetectFaces returns the face boxes found in gray, largest first.
func (e *Engine) DetectFaces(gray *image.Gray) ([]geometry.PixelBox, error) {
	b := gray.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", geometry.ErrInvalidDimensions, b.Dx(), b.Dy())
	}

	mat, err := grayToMat(gray)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	s := e.acquire()
	rects := s.cascade.DetectMultiScaleWithParams(mat, ScaleFactor, MinNeighbors, cascadeScaleImage,
		image.Pt(MinFaceSize, MinFaceSize), image.Point{})
	e.release(s)

	boxes := make([]geometry.PixelBox, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, geometry.FromRect(r))
	}
	geometry.SortByArea(boxes)

	e.logger.Debug("Detected %d face(s) in %dx%d image", len(boxes), b.Dx(), b.Dy())
	return boxes, nil
}

// PredictEmotions classifies every crop in one forward pass. The result is
// aligned with faces.
func (e *Engine) PredictEmotions(faces []*image.Gray) ([]emotion.Probabilities, error) {
	if len(faces) == 0 {
		return []emotion.Probabilities{}, nil
	}

	blob, err := e.blobFromFaces(faces)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	s := e.acquire()
	defer e.release(s)

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	return parseOutput(output, len(faces))
}

// blobFromFaces resizes each crop to the input size, scales it to [0, 1] and
// packs the batch into a single float32 tensor.
func (e *Engine) blobFromFaces(faces []*image.Gray) (gocv.Mat, error) {
	w, h := e.inputSize.X, e.inputSize.Y
	plane := w * h

	blob := gocv.NewMatWithSizes(e.layout.sizes(len(faces), h, w), gocv.MatTypeCV32F)
	data, err := blob.DataPtrFloat32()
	if err != nil {
		blob.Close()
		return gocv.Mat{}, fmt.Errorf("failed to access input tensor: %w", err)
	}
	if len(data) != len(faces)*plane {
		blob.Close()
		return gocv.Mat{}, fmt.Errorf("input tensor has %d values, expected %d", len(data), len(faces)*plane)
	}

	for i, face := range faces {
		pix, err := e.resizeFace(face)
		if err != nil {
			blob.Close()
			return gocv.Mat{}, fmt.Errorf("face %d: %w", i, err)
		}
		dst := data[i*plane : (i+1)*plane]
		for j, v := range pix {
			dst[j] = float32(v) / 255
		}
	}
	return blob, nil
}

func (e *Engine) resizeFace(face *image.Gray) ([]byte, error) {
	b := face.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyRegion
	}

	src, err := grayToMat(face)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	if err := gocv.Resize(src, &dst, e.inputSize, 0, 0, gocv.InterpolationLinear); err != nil {
		return nil, fmt.Errorf("failed to resize %dx%d crop: %w", b.Dx(), b.Dy(), err)
	}
	if dst.Empty() {
		return nil, fmt.Errorf("failed to resize %dx%d crop", b.Dx(), b.Dy())
	}

	pix := dst.ToBytes()
	if len(pix) != e.inputSize.X*e.inputSize.Y {
		return nil, fmt.Errorf("resized crop has %d bytes", len(pix))
	}
	return pix, nil
}

// parseOutput expects an n x NumClasses float32 matrix.
func parseOutput(output gocv.Mat, n int) ([]emotion.Probabilities, error) {
	if output.Empty() {
		return nil, fmt.Errorf("%w: empty output", ErrModelOutput)
	}
	if output.Total() != n*emotion.NumClasses {
		return nil, fmt.Errorf("%w: %d values for %d faces", ErrModelOutput, output.Total(), n)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelOutput, err)
	}

	results := make([]emotion.Probabilities, n)
	for i := range results {
		p, err := emotion.FromSlice(data[i*emotion.NumClasses : (i+1)*emotion.NumClasses])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelOutput, err)
		}
		results[i] = p
	}
	return results, nil
}

// grayToMat copies gray into a CV_8UC1 matrix.
func grayToMat(gray *image.Gray) (gocv.Mat, error) {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()

	pix := gray.Pix
	if gray.Stride != w || len(pix) != w*h {
		pix = make([]byte, w*h)
		for y := 0; y < h; y++ {
			off := gray.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pix[y*w:(y+1)*w], gray.Pix[off:off+w])
		}
	}

	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to create matrix: %w", err)
	}
	return mat, nil
}

// Close releases every session. In-flight calls finish first.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		for i := 0; i < e.size; i++ {
			s := <-e.sessions
			s.close()
		}
	})
}
