// Package diagnosis runs one eye image through the classifier and turns the
// scores into a displayable prediction.
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/Brownie44l1/eye-diagnosis/internal/preprocess"
)

var (
	ErrScoreWidth   = errors.New("score vector width does not match labels")
	ErrInvalidScore = errors.New("score vector contains NaN or Inf")
)

// Scorer maps one preprocessed image to per-class scores.
type Scorer interface {
	Score(input []float32) ([]float32, error)
}

type PredictionResult struct {
	Index          int       `json:"index"`
	Label          string    `json:"label"`
	RawLabel       string    `json:"raw_label"`
	Confidence     float64   `json:"confidence"`
	ConfidenceText string    `json:"confidence_text"`
	Scores         []float32 `json:"scores"`
	Symptoms       []string  `json:"symptoms"`
}

type Diagnoser struct {
	scorer  Scorer
	labels  []string
	catalog Catalog
	prep    preprocess.Options
	logger  *slog.Logger
}

func NewDiagnoser(scorer Scorer, labels []string, catalog Catalog, prep preprocess.Options, logger *slog.Logger) *Diagnoser {
	return &Diagnoser{
		scorer:  scorer,
		labels:  labels,
		catalog: catalog,
		prep:    prep,
		logger:  logger,
	}
}

// Diagnose decodes, fits and scores one uploaded image. Decode failures wrap
// preprocess.ErrDecode. The fitted image is returned for display.
func (d *Diagnoser) Diagnose(ctx context.Context, data []byte) (*PredictionResult, image.Image, error) {
	tensor, fitted, err := d.prep.Prepare(data)
	if err != nil {
		return nil, nil, err
	}

	result, err := d.Classify(ctx, tensor)
	if err != nil {
		return nil, nil, err
	}
	return result, fitted, nil
}

// Classify scores an already preprocessed tensor.
func (d *Diagnoser) Classify(ctx context.Context, tensor []float32) (*PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores, err := d.scorer.Score(tensor)
	if err != nil {
		return nil, fmt.Errorf("scoring failed: %w", err)
	}
	if len(scores) == 0 || len(scores) != len(d.labels) {
		return nil, fmt.Errorf("%w: %d scores, %d labels", ErrScoreWidth, len(scores), len(d.labels))
	}

	for i, v := range scores {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: index %d is %v", ErrInvalidScore, i, v)
		}
	}

	idx := Argmax(scores)
	name := d.catalog.Name(idx, d.labels[idx])
	confidence := float64(scores[idx]) * 100

	d.logger.Debug("prediction", "index", idx, "label", name, "confidence", confidence)

	return &PredictionResult{
		Index:          idx,
		Label:          name,
		RawLabel:       d.labels[idx],
		Confidence:     confidence,
		ConfidenceText: FormatConfidence(scores[idx]),
		Scores:         scores,
		Symptoms:       d.catalog.SymptomList(name),
	}, nil
}

// Argmax returns the index of the largest score; the first one wins ties.
// It returns -1 for an empty slice. NaN scores never win; callers reject
// them first.
func Argmax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i, v := range scores[1:] {
		if v > scores[best] {
			best = i + 1
		}
	}
	return best
}

// FormatConfidence renders a probability as a percentage with two decimals.
func FormatConfidence(score float32) string {
	return fmt.Sprintf("%.2f", float64(score)*100)
}
