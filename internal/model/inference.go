package model

import "time"

// Inference is one journaled command invocation.
type Inference struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id"`
	Command    string    `json:"command"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
	Faces      []Face    `json:"faces"`
}

// Face is a single face result of an inference. Box coordinates are normalized.
type Face struct {
	ID          int64   `json:"id"`
	InferenceID int64   `json:"inference_id"`
	Position    int     `json:"position"`
	XMin        float64 `json:"xmin"`
	YMin        float64 `json:"ymin"`
	XMax        float64 `json:"xmax"`
	YMax        float64 `json:"ymax"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
}
