package service

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faceemotion/internal/config"
	"faceemotion/internal/dto"
	"faceemotion/internal/geometry"
	"faceemotion/internal/model"
	"faceemotion/internal/service/storage"
)

type memoryRepository struct {
	mu     sync.Mutex
	stored []model.Inference
}

func (r *memoryRepository) InsertBatch(inferences []model.Inference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, inferences...)
	return nil
}

func (r *memoryRepository) GetRecent(*dto.HistoryFilter) ([]model.Inference, error) { return nil, nil }
func (r *memoryRepository) GetTotalCount(*dto.HistoryFilter) (int, error) { return 0, nil }
func (r *memoryRepository) CountByLabel() (map[string]int, error) { return nil, nil }
func (r *memoryRepository) DeleteOlderThan(time.Time) (int64, error) { return 0, nil }

func newTestManager(t *testing.T, repo *memoryRepository) *Manager {
	t.Helper()
	det := &fakeDetector{boxes: []geometry.PixelBox{{X: 0, Y: 0, Width: 20, Height: 20}}}
	p := NewPipeline(det, &fakeClassifier{}, &fakeAnnotator{}, testLogger())

	cfg := &config.Config{JournalBufferLimit: 100, JournalFlushInterval: 3600}
	m := NewManager(p, storage.NewJournal(cfg, testLogger(), repo), testLogger())
	return m
}

func runDetectAndClassify(p *Pipeline, img image.Image) (dto.Result, error) {
	return p.DetectAndClassify(img)
}

func TestManager_ProcessJournalsResult(t *testing.T) {
	repo := &memoryRepository{}
	m := newTestManager(t, repo)

	result, err := m.Process("req-1", "detect_and_classify", grayRGBA(40, 30, pattern), runDetectAndClassify)
	require.NoError(t, err)
	assert.IsType(t, &dto.DetectAndClassifyResponse{}, result)

	_, err = m.Annotate("req-2", grayRGBA(40, 30, pattern))
	require.NoError(t, err)

	m.Stop()

	require.Len(t, repo.stored, 2)
	assert.Equal(t, "req-1", repo.stored[0].RequestID)
	assert.Equal(t, "detect_and_classify", repo.stored[0].Command)
	assert.Equal(t, 40, repo.stored[0].Width)
	assert.Equal(t, 30, repo.stored[0].Height)
	require.Len(t, repo.stored[0].Faces, 1)
	assert.NotEmpty(t, repo.stored[0].Faces[0].Label)
	assert.Equal(t, "annotate", repo.stored[1].Command)
}

func TestManager_FailedCommandNotJournaled(t *testing.T) {
	repo := &memoryRepository{}
	m := newTestManager(t, repo)

	_, err := m.Process("req-1", "classify", grayRGBA(10, 10, pattern), func(*Pipeline, image.Image) (dto.Result, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)

	m.Stop()
	assert.Empty(t, repo.stored)
}

func TestManager_WithoutJournal(t *testing.T) {
	p := NewPipeline(&fakeDetector{}, &fakeClassifier{}, nil, testLogger())
	m := NewManager(p, nil, testLogger())

	result, err := m.Process("req-1", "detect_and_classify", grayRGBA(10, 10, pattern), runDetectAndClassify)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.False(t, m.GetJournal().Enabled())
	m.Stop()
}
