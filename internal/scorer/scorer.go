// Package scorer ranks candidate models for a classified task using their
// static profiles and observed performance.
package scorer

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/LexHelios/Lexworking-sub001/internal/classifier"
	"github.com/LexHelios/Lexworking-sub001/internal/registry"
	"github.com/LexHelios/Lexworking-sub001/internal/tracker"
)

// DocumentConfidence is reported when the document-analysis preferred list
// picks the model.
const DocumentConfidence = 0.95

// ErrNoCandidates is returned by Select for an empty candidate list.
var ErrNoCandidates = errors.New("no candidate models")

// largeModelMarkers identify large general-purpose models by name.
var largeModelMarkers = []string{"70b", "72b", "405b", "32b", "8x7b", "8x22b"}

// PerformanceSource supplies observed counters. *tracker.Tracker satisfies it.
type PerformanceSource interface {
	Record(model string) (tracker.Record, bool)
}

// Entry is one scored candidate.
type Entry struct {
	Model string  `json:"model"`
	Score float64 `json:"score"`
}

// Selection is the outcome of Select.
type Selection struct {
	Model      string  `json:"model"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Ranking    []Entry `json:"ranking"`

	// Preferred is true when the document preferred list chose the model
	// and the weighted formula was skipped.
	Preferred bool `json:"preferred"`
}

// DefaultDocumentPreferred is the default priority list for document analysis.
func DefaultDocumentPreferred() []string {
	return []string{
		"qwen2.5:72b",
		"llama-3.3-70b-versatile",
		"meta-llama/Llama-3.3-70B-Instruct-Turbo",
		"llama3.1:70b",
	}
}

// Scorer computes weighted scores. It holds no mutable state, so identical
// inputs always produce identical rankings.
type Scorer struct {
	documentPreferred []string
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithDocumentPreferred sets the document-analysis priority list.
func WithDocumentPreferred(models []string) Option {
	return func(s *Scorer) {
		if len(models) > 0 {
			s.documentPreferred = append([]string(nil), models...)
		}
	}
}

// New creates a scorer.
func New(opts ...Option) *Scorer {
	s := &Scorer{documentPreferred: DefaultDocumentPreferred()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score ranks candidates by the weighted formula, highest first. Equal
// scores keep the order in which candidates were given. perf may be nil.
func (s *Scorer) Score(task classifier.TaskProfile, candidates []registry.ModelProfile, perf PerformanceSource) []Entry {
	entries := make([]Entry, len(candidates))
	for i, c := range candidates {
		entries[i] = Entry{Model: c.Name, Score: scoreModel(task, c, perf)}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return entries
}

// Select picks the model to dispatch. Document-analysis tasks take the first
// preferred model present in candidates with DocumentConfidence. Otherwise
// the top-ranked candidate wins and its score, clamped to [0, 1], is the
// confidence. Negative scores are kept, so a heavily penalized candidate is
// still selected when it is the only one.
func (s *Scorer) Select(task classifier.TaskProfile, candidates []registry.ModelProfile, perf PerformanceSource) (Selection, error) {
	if len(candidates) == 0 {
		return Selection{}, ErrNoCandidates
	}

	if task.TaskType == classifier.TaskDocumentAnalysis {
		for _, preferred := range s.documentPreferred {
			for _, c := range candidates {
				if c.Name == preferred {
					return Selection{
						Model:      c.Name,
						Score:      DocumentConfidence,
						Confidence: DocumentConfidence,
						Ranking:    []Entry{{Model: c.Name, Score: DocumentConfidence}},
						Preferred:  true,
					}, nil
				}
			}
		}
	}

	ranking := s.Score(task, candidates, perf)
	top := ranking[0]
	return Selection{
		Model:      top.Model,
		Score:      top.Score,
		Confidence: clamp01(top.Score),
		Ranking:    ranking,
	}, nil
}

// scoreModel applies the weighted formula to one candidate. Terms accumulate
// without intermediate clamping and only the upper bound is enforced.
func scoreModel(task classifier.TaskProfile, m registry.ModelProfile, perf PerformanceSource) float64 {
	score := m.QualityScore * 0.3

	if task.RequiresSpeed {
		score += m.SpeedScore * 0.4
	} else {
		score += m.SpeedScore * 0.1
	}

	if task.RequiresAccuracy {
		score += m.QualityScore * 0.3
	}

	if task.RequiresCreativity && m.HasStrength("creative") {
		score += 0.2
	}

	if task.IsSensitive {
		if m.Uncensored {
			score += 0.8
		} else {
			score -= 0.8
		}
	}

	score += taskBonus(task, m)

	if float64(task.EstimatedTokens) > float64(m.ContextLength)*0.5 {
		score -= 0.2
	}

	score += 0.1 * float64(matchingSpecialties(m.Specialties, task.Keywords))

	if perf != nil {
		if rec, ok := perf.Record(m.Name); ok {
			score *= 0.8 + 0.4*rec.SuccessRate()
		}
	}

	return math.Min(1.0, score)
}

// taskBonus returns the task-type specific adjustment.
func taskBonus(task classifier.TaskProfile, m registry.ModelProfile) float64 {
	switch task.TaskType {
	case classifier.TaskCoding, classifier.TaskAnalysis, classifier.TaskMath:
		if task.Complexity > 0.6 && isLargeModel(m.Name) {
			return 0.2
		}
	case classifier.TaskQuick:
		if m.SpeedScore > 0.8 {
			return 0.3
		}
	case classifier.TaskDocumentAnalysis:
		if m.ContextLength >= 32768 {
			return 0.2
		}
	case classifier.TaskCreative:
		if m.HasSpecialty("creative") {
			return 0.1
		}
	}
	return 0
}

func isLargeModel(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range largeModelMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// matchingSpecialties counts specialties sharing at least one word with the
// task keywords.
func matchingSpecialties(specialties, keywords []string) int {
	if len(specialties) == 0 || len(keywords) == 0 {
		return 0
	}

	words := make(map[string]bool)
	for _, kw := range keywords {
		for _, w := range splitWords(kw) {
			words[w] = true
		}
	}

	n := 0
	for _, spec := range specialties {
		for _, w := range splitWords(spec) {
			if words[w] {
				n++
				break
			}
		}
	}
	return n
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
