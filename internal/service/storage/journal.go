package storage

import (
	"sync"
	"time"

	"faceemotion/internal/config"
	"faceemotion/internal/dto"
	"faceemotion/internal/geometry"
	"faceemotion/internal/logger"
	"faceemotion/internal/model"
	"faceemotion/internal/repository"
)

const (
	DefaultPageSize = 24
	MaxPageSize     = 200
)

// Journal buffers inference records in memory and periodically writes them
// to the repository. A nil *Journal is valid and records nothing.
type Journal struct {
	repo          repository.InferenceRepository
	buffer        []model.Inference
	bufferLimit   int
	flushInterval time.Duration
	mu            sync.Mutex
	stopped       bool
	logger        *logger.Logger

	flush    chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewJournal creates a Journal writing to repo.
func NewJournal(cfg *config.Config, logger *logger.Logger, repo repository.InferenceRepository) *Journal {
	return &Journal{
		repo:          repo,
		buffer:        make([]model.Inference, 0, cfg.JournalBufferLimit),
		bufferLimit:   cfg.JournalBufferLimit,
		flushInterval: time.Duration(cfg.JournalFlushInterval) * time.Second,
		logger:        logger,
		flush:         make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start runs the flush loop in the background until Stop is called.
func (j *Journal) Start() {
	if j == nil {
		return
	}
	j.wg.Add(1)
	go j.run()
}

func (j *Journal) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Flush()
		case <-j.flush:
			j.Flush()
		case <-j.done:
			j.Flush()
			return
		}
	}
}

// Stop flushes what is left and ends the loop started by Start. Later calls
// are no-ops and later records are dropped.
func (j *Journal) Stop() {
	if j == nil {
		return
	}
	j.stopOnce.Do(func() {
		j.mu.Lock()
		j.stopped = true
		j.mu.Unlock()

		close(j.done)
		j.wg.Wait()
		j.Flush()
	})
}

// Record queues an inference. Reaching the buffer limit triggers a flush.
func (j *Journal) Record(requestID, command string, width, height int, duration time.Duration, result dto.Result) {
	if j == nil {
		return
	}

	inf := model.Inference{
		RequestID:  requestID,
		Command:    command,
		Width:      width,
		Height:     height,
		DurationMs: duration.Milliseconds(),
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Faces:      facesFromSummary(result),
	}

	j.mu.Lock()
	if j.stopped {
		j.mu.Unlock()
		j.logger.Warning("Journal stopped, dropping inference %s", requestID)
		return
	}
	j.buffer = append(j.buffer, inf)
	full := len(j.buffer) >= j.bufferLimit
	j.mu.Unlock()

	if full {
		select {
		case j.flush <- struct{}{}:
		default:
		}
	}
}

// facesFromSummary turns a command result into journal faces. A classify
// result has no box and is stored as one face covering the whole image.
func facesFromSummary(result dto.Result) []model.Face {
	if result == nil {
		return nil
	}
	s := result.Summarize()

	n := len(s.Faces)
	if n == 0 && len(s.Labels) > 0 {
		s.Faces = []geometry.NormalizedBox{{XMin: 0, YMin: 0, XMax: 1, YMax: 1}}
		n = 1
	}

	faces := make([]model.Face, n)
	for i, b := range s.Faces {
		faces[i] = model.Face{Position: i, XMin: b.XMin, YMin: b.YMin, XMax: b.XMax, YMax: b.YMax}
		if i < len(s.Labels) {
			faces[i].Label = s.Labels[i]
		}
		if i < len(s.Scores) {
			faces[i].Confidence = float64(s.Scores[i])
		}
	}
	return faces
}

// Flush writes buffered inferences to the repository. On failure the batch
// is dropped and logged.
func (j *Journal) Flush() {
	if j == nil {
		return
	}

	j.mu.Lock()
	if len(j.buffer) == 0 {
		j.mu.Unlock()
		return
	}
	batch := j.buffer
	j.buffer = make([]model.Inference, 0, j.bufferLimit)
	j.mu.Unlock()

	if err := j.repo.InsertBatch(batch); err != nil {
		j.logger.Error("Error saving %d inference(s) to journal: %v", len(batch), err)
		return
	}
	j.logger.Info("Flushed %d inference(s) to journal", len(batch))
}

// Enabled reports whether inferences are being journaled.
func (j *Journal) Enabled() bool {
	return j != nil
}

// History returns one page of journaled inferences, newest first. Page is 1-based.
func (j *Journal) History(filter *dto.HistoryFilter, page int) (*dto.HistoryData, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	if page < 1 {
		page = 1
	}
	filter.Offset = (page - 1) * filter.Limit

	inferences, err := j.repo.GetRecent(filter)
	if err != nil {
		return nil, err
	}

	total, err := j.repo.GetTotalCount(filter)
	if err != nil {
		j.logger.Error("Error counting inferences: %v", err)
		total = len(inferences)
	}

	items := make([]dto.InferenceInfo, 0, len(inferences))
	for _, inf := range inferences {
		items = append(items, toInfo(inf))
	}

	return &dto.HistoryData{
		Inferences:  items,
		Length:      total,
		TotalPages:  (total + filter.Limit - 1) / filter.Limit,
		CurrentPage: page,
		Limit:       filter.Limit,
	}, nil
}

// Stats counts journaled faces per label.
func (j *Journal) Stats() (*dto.HistoryStats, error) {
	total, err := j.repo.GetTotalCount(&dto.HistoryFilter{})
	if err != nil {
		return nil, err
	}
	counts, err := j.repo.CountByLabel()
	if err != nil {
		return nil, err
	}
	return &dto.HistoryStats{TotalInferences: total, LabelCounts: counts}, nil
}

func toInfo(inf model.Inference) dto.InferenceInfo {
	faces := make([]dto.FaceInfo, 0, len(inf.Faces))
	for _, f := range inf.Faces {
		faces = append(faces, dto.FaceInfo{
			Box:        geometry.NormalizedBox{XMin: f.XMin, YMin: f.YMin, XMax: f.XMax, YMax: f.YMax},
			Label:      f.Label,
			Confidence: float32(f.Confidence),
		})
	}
	return dto.InferenceInfo{
		RequestID:  inf.RequestID,
		Command:    inf.Command,
		Width:      inf.Width,
		Height:     inf.Height,
		DurationMs: inf.DurationMs,
		CreatedAt:  inf.CreatedAt,
		Faces:      faces,
	}
}
