package service

import (
	"image"
	"time"

	"faceemotion/internal/dto"
	"faceemotion/internal/logger"
	"faceemotion/internal/service/storage"
)

// RunFunc executes one command against the pipeline.
type RunFunc func(p *Pipeline, img image.Image) (dto.Result, error)

// Manager runs commands and records each successful one in the journal.
type Manager struct {
	pipeline *Pipeline
	journal  *storage.Journal
	logger   *logger.Logger
}

// NewManager creates a Manager. journal may be nil.
func NewManager(pipeline *Pipeline, journal *storage.Journal, logger *logger.Logger) *Manager {
	journal.Start()
	return &Manager{
		pipeline: pipeline,
		journal:  journal,
		logger:   logger,
	}
}

func (m *Manager) GetPipeline() *Pipeline {
	return m.pipeline
}

func (m *Manager) GetJournal() *storage.Journal {
	return m.journal
}

// Process runs command on img and journals the result.
func (m *Manager) Process(requestID, command string, img image.Image, run RunFunc) (dto.Result, error) {
	start := time.Now()
	result, err := run(m.pipeline, img)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	m.logger.WithFields(logger.Fields{
		"request_id": requestID,
		"command":    command,
		"width":      b.Dx(),
		"height":     b.Dy(),
		"elapsed":    elapsed.String(),
	}).Info("Command completed")

	m.journal.Record(requestID, command, b.Dx(), b.Dy(), elapsed, result)
	return result, nil
}

// Annotate renders detections onto img and journals them as "annotate".
func (m *Manager) Annotate(requestID string, img image.Image) ([]byte, error) {
	start := time.Now()
	out, result, err := m.pipeline.Annotate(img)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	m.journal.Record(requestID, "annotate", b.Dx(), b.Dy(), time.Since(start), result)
	return out, nil
}

// Stop flushes the journal.
func (m *Manager) Stop() {
	m.journal.Stop()
	m.logger.Info("Manager stopped")
}
