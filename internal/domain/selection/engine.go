package selection

import (
	"fmt"
	"image"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

const DefaultThreshold = 0.02

type Decision struct {
	Keep  bool
	Score float64
}

// Engine holds the reference raster of the most recently kept frame.
// It is not safe for concurrent use; one engine serves one run.
type Engine struct {
	threshold float64
	reference *image.RGBA
}

func NewEngine(threshold float64) (*Engine, error) {
	if !(threshold > 0 && threshold < 1) {
		return nil, fmt.Errorf("similarity threshold %v outside (0,1): %w", threshold, entity.ErrInvalidArgument)
	}
	return &Engine{threshold: threshold}, nil
}

func (e *Engine) Threshold() float64 { return e.threshold }

// Decide keeps the first candidate unconditionally. Later candidates are kept
// only when their score against the reference is strictly above the threshold.
func (e *Engine) Decide(candidate *image.RGBA) (Decision, error) {
	if candidate == nil {
		return Decision{}, fmt.Errorf("decide on nil raster: %w", entity.ErrInvalidArgument)
	}
	if e.reference == nil {
		e.reference = candidate
		return Decision{Keep: true}, nil
	}

	score, err := Compare(e.reference, candidate)
	if err != nil {
		return Decision{}, err
	}
	if score > e.threshold {
		e.reference = candidate
		return Decision{Keep: true, Score: score}, nil
	}
	return Decision{Score: score}, nil
}

func (e *Engine) HasReference() bool { return e.reference != nil }

func (e *Engine) Reset() { e.reference = nil }
