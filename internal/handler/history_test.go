package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faceemotion/internal/geometry"
	"faceemotion/internal/logger"
	"faceemotion/internal/repository/sqlite"
	"faceemotion/internal/service"
	"faceemotion/internal/service/storage"
)

func journaledManager(t *testing.T) (*service.Manager, *storage.Journal) {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	log := logger.NewWithWriter(&bytes.Buffer{}, "debug")
	journal := storage.NewJournal(testConfig(), log, sqlite.NewInferenceRepository(db))

	p := service.NewPipeline(&stubDetector{boxes: []geometry.PixelBox{{X: 10, Y: 10, Width: 50, Height: 20}}},
		&stubClassifier{}, stubAnnotator{}, log)
	m := service.NewManager(p, journal, log)
	t.Cleanup(func() {
		m.Stop()
		db.Close()
	})
	return m, journal
}

func TestHistoryHandler_ListsJournaledInferences(t *testing.T) {
	m, journal := journaledManager(t)
	log := logger.NewWithWriter(&bytes.Buffer{}, "debug")

	for _, name := range []string{"detect", "detect_and_classify"} {
		req := httptest.NewRequest(http.MethodPost, "/"+name, bytes.NewReader(pngBytes(t, 200, 100)))
		req.Header.Set("Content-Type", "image/png")
		rec := serve(commandHandler(t, name, m), req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	journal.Flush()

	rec := serve(HistoryHandler(m, log), httptest.NewRequest(http.MethodGet, "/history?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.Bytes()
	assert.Equal(t, 2, jsoniter.Get(body, "length").ToInt())
	assert.Equal(t, 2, jsoniter.Get(body, "total_pages").ToInt())
	assert.Equal(t, 1, jsoniter.Get(body, "page_size").ToInt())
	assert.Equal(t, "detect_and_classify", jsoniter.Get(body, "inferences", 0, "command").ToString())
	assert.Equal(t, "happy", jsoniter.Get(body, "inferences", 0, "faces", 0, "label").ToString())

	rec = serve(HistoryHandler(m, log), httptest.NewRequest(http.MethodGet, "/history?command=detect", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, jsoniter.Get(rec.Body.Bytes(), "length").ToInt())

	rec = serve(HistoryStatsHandler(m, log), httptest.NewRequest(http.MethodGet, "/history/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, jsoniter.Get(rec.Body.Bytes(), "total_inferences").ToInt())
	assert.Equal(t, 1, jsoniter.Get(rec.Body.Bytes(), "label_counts", "happy").ToInt())
}

func TestHistoryHandler_UnknownLabel(t *testing.T) {
	m, _ := journaledManager(t)
	log := logger.NewWithWriter(&bytes.Buffer{}, "debug")

	rec := serve(HistoryHandler(m, log), httptest.NewRequest(http.MethodGet, "/history?label=bored", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, atoiDefault(tt.input, tt.def), "atoiDefault(%q, %d)", tt.input, tt.def)
	}
}
