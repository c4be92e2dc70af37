// Package scoring turns raw result records into cumulative scores, grades,
// class positions and class statistics. Everything here is pure and
// synchronous; callers load the inputs and decide what to do with the view.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/sma-results-api/internal/models"
)

// ScorePolicy decides what happens to component scores outside [0, max].
type ScorePolicy string

const (
	// PolicyReject fails normalisation for out-of-range components.
	PolicyReject ScorePolicy = "reject"
	// PolicyClamp pulls out-of-range components back into [0, max].
	PolicyClamp ScorePolicy = "clamp"
	// PolicyPermissive accepts any component value unchanged.
	PolicyPermissive ScorePolicy = "permissive"
)

// ErrScoreOutOfRange is matched by every RangeError.
var ErrScoreOutOfRange = errors.New("score out of range")

// RangeError describes the offending component.
type RangeError struct {
	Component string
	Value     float64
	Max       float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s score %.2f outside 0..%.2f", e.Component, e.Value, e.Max)
}

// Is lets errors.Is match ErrScoreOutOfRange.
func (e *RangeError) Is(target error) bool {
	return target == ErrScoreOutOfRange
}

// ParseScorePolicy resolves a configured policy name; empty means reject.
func ParseScorePolicy(raw string) (ScorePolicy, error) {
	switch ScorePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyReject:
		return PolicyReject, nil
	case PolicyClamp:
		return PolicyClamp, nil
	case PolicyPermissive:
		return PolicyPermissive, nil
	default:
		return "", fmt.Errorf("unknown score policy %q", raw)
	}
}

// Maxima holds the per-component maximum scores of a subject.
type Maxima struct {
	Test1 float64 `json:"test1"`
	Test2 float64 `json:"test2"`
	Exam  float64 `json:"exam"`
}

// DefaultMaxima is the 20/20/60 split used for unconfigured subjects.
func DefaultMaxima() Maxima {
	return Maxima{Test1: models.DefaultTest1Max, Test2: models.DefaultTest2Max, Exam: models.DefaultExamMax}
}

// MaximaFor reads the subject's configured maxima, falling back to the defaults
// when nothing has been configured.
func MaximaFor(subject models.Subject) Maxima {
	m := Maxima{Test1: subject.Test1Max, Test2: subject.Test2Max, Exam: subject.ExamMax}
	if m.Total() <= 0 {
		return DefaultMaxima()
	}
	return m
}

// Total is the maximum possible total score.
func (m Maxima) Total() float64 {
	return m.Test1 + m.Test2 + m.Exam
}

// Scores are the raw component scores of one assessment.
type Scores struct {
	Test1 float64 `json:"test1"`
	Test2 float64 `json:"test2"`
	Exam  float64 `json:"exam"`
}

// Normalized is the outcome of normalising component scores.
type Normalized struct {
	Scores     Scores  `json:"scores"`
	Total      float64 `json:"total"`
	Percentage int     `json:"percentage"`
}

// Normalizer converts component scores into totals and percentages.
type Normalizer struct {
	policy ScorePolicy
}

// NewNormalizer constructs a normalizer; an empty policy rejects out-of-range input.
func NewNormalizer(policy ScorePolicy) *Normalizer {
	if policy == "" {
		policy = PolicyReject
	}
	return &Normalizer{policy: policy}
}

// Policy returns the active out-of-range policy.
func (n *Normalizer) Policy() ScorePolicy {
	return n.policy
}

// Normalize computes total and percentage for the scores against the maxima.
func (n *Normalizer) Normalize(scores Scores, maxima Maxima) (Normalized, error) {
	components := []struct {
		name  string
		value *float64
		max   float64
	}{
		{"test1", &scores.Test1, maxima.Test1},
		{"test2", &scores.Test2, maxima.Test2},
		{"exam", &scores.Exam, maxima.Exam},
	}
	for _, c := range components {
		if *c.value >= 0 && *c.value <= c.max {
			continue
		}
		switch n.policy {
		case PolicyReject:
			return Normalized{}, &RangeError{Component: c.name, Value: *c.value, Max: c.max}
		case PolicyClamp:
			*c.value = math.Min(math.Max(*c.value, 0), c.max)
		}
	}
	total := scores.Test1 + scores.Test2 + scores.Exam
	return Normalized{Scores: scores, Total: total, Percentage: Percentage(total, maxima.Total())}, nil
}

// Percentage returns round(total / maxPossible * 100); a zero denominator yields 0.
func Percentage(total, maxPossible float64) int {
	if maxPossible <= 0 {
		return 0
	}
	return roundInt(total / maxPossible * 100)
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
