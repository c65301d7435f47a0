package dto

import (
	"faceemotion/internal/emotion"
	"faceemotion/internal/geometry"
)

// ImageRequest is the JSON body accepted by every command. Image holds
// base64 data, optionally as a data URI.
type ImageRequest struct {
	Image string `json:"image" validate:"required"`
}

// Summary is the part of a command result kept in the inference journal.
type Summary struct {
	Faces  []geometry.NormalizedBox
	Labels []string
	Scores []float32
}

// Result is implemented by every command response.
type Result interface {
	Summarize() Summary
}

// DetectResponse lists face boxes sorted largest to smallest.
type DetectResponse struct {
	Faces []geometry.NormalizedBox `json:"faces"`
}

func (r *DetectResponse) Summarize() Summary {
	return Summary{Faces: r.Faces}
}

// ClassifyResponse classifies a whole image as a single face.
type ClassifyResponse struct {
	Probabilities   emotion.Probabilities `json:"probabilities"`
	MostLikelyClass string                `json:"most_likely_class"`
}

func (r *ClassifyResponse) Summarize() Summary {
	return Summary{
		Labels: []string{r.MostLikelyClass},
		Scores: []float32{r.Probabilities[r.Probabilities.ArgMax()]},
	}
}

// DetectAndClassifyResponse holds three index-aligned sequences in detector order.
type DetectAndClassifyResponse struct {
	Faces             []geometry.NormalizedBox `json:"faces"`
	Probabilities     []emotion.Probabilities  `json:"probabilities"`
	MostLikelyClasses []string                 `json:"most_likely_classes"`
}

func (r *DetectAndClassifyResponse) Summarize() Summary {
	scores := make([]float32, len(r.Probabilities))
	for i, p := range r.Probabilities {
		scores[i] = p[p.ArgMax()]
	}
	return Summary{Faces: r.Faces, Labels: r.MostLikelyClasses, Scores: scores}
}
