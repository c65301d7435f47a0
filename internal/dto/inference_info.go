package dto

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"faceemotion/internal/geometry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FaceInfo is one journaled face.
type FaceInfo struct {
	Box        geometry.NormalizedBox `json:"box"`
	Label      string                 `json:"label,omitempty"`
	Confidence float32                `json:"confidence,omitempty"`
}

// InferenceInfo is one journaled command invocation.
type InferenceInfo struct {
	RequestID  string     `json:"request_id"`
	Command    string     `json:"command"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	DurationMs int64      `json:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at"`
	Faces      []FaceInfo `json:"faces"`
}

// MarshalJSON formats CreatedAt as RFC 3339 in UTC.
func (i InferenceInfo) MarshalJSON() ([]byte, error) {
	type Alias InferenceInfo
	return json.Marshal(&struct {
		CreatedAt string `json:"created_at"`
		Alias
	}{
		CreatedAt: i.CreatedAt.UTC().Format(time.RFC3339),
		Alias:     (Alias)(i),
	})
}

// HistoryData is a paginated journal listing.
type HistoryData struct {
	Inferences  []InferenceInfo `json:"inferences"`
	Length      int             `json:"length"`
	TotalPages  int             `json:"total_pages"`
	CurrentPage int             `json:"current_page"`
	Limit       int             `json:"page_size"`
}

// HistoryStats counts journaled faces per most likely label.
type HistoryStats struct {
	TotalInferences int            `json:"total_inferences"`
	LabelCounts     map[string]int `json:"label_counts"`
}
