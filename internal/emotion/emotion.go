// Package emotion holds the fixed emotion label list and the probability
// vector produced for a single face.
package emotion

import (
	"fmt"
	"strings"
)

// NumClasses is the number of emotion categories the classifier emits.
const NumClasses = 7

// Labels is positionally aligned with every Probabilities value.
// Consumers index into it, so the order must never change.
var Labels = [NumClasses]string{"angry", "disgust", "scared", "happy", "sad", "surprised", "neutral"}

// Probabilities is one softmax output, aligned with Labels.
type Probabilities [NumClasses]float32

// FromSlice copies a classifier output row into a Probabilities value.
func FromSlice(values []float32) (Probabilities, error) {
	var p Probabilities
	if len(values) != NumClasses {
		return p, fmt.Errorf("expected %d probabilities, got %d", NumClasses, len(values))
	}
	copy(p[:], values)
	return p, nil
}

// ArgMax returns the index of the largest probability; ties go to the lowest index.
func (p Probabilities) ArgMax() int {
	best := 0
	for i := 1; i < NumClasses; i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// MostLikely returns the label of ArgMax.
func (p Probabilities) MostLikely() string {
	return Labels[p.ArgMax()]
}

// Sum is the total probability mass, ~1.0 for a softmax output.
func (p Probabilities) Sum() float32 {
	var s float32
	for _, v := range p {
		s += v
	}
	return s
}

// Describe joins the labels in order, used in command descriptions.
func Describe() string {
	return strings.Join(Labels[:], ", ")
}

// IsLabel reports whether s is one of Labels.
func IsLabel(s string) bool {
	for _, l := range Labels {
		if l == s {
			return true
		}
	}
	return false
}
