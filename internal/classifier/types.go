// Package classifier turns raw request text into a TaskProfile: the task
// category, an estimated complexity, the qualities the answer needs and the
// programming languages the request mentions.
package classifier

// TaskType identifies the category of a request.
type TaskType string

const (
	TaskCoding           TaskType = "coding"
	TaskCreative         TaskType = "creative"
	TaskAdult            TaskType = "adult"
	TaskDocumentAnalysis TaskType = "document_analysis"
	TaskAnalysis         TaskType = "analysis"
	TaskMath             TaskType = "math"
	TaskQuick            TaskType = "quick"
	TaskGeneral          TaskType = "general"
)

// AllTaskTypes returns every task type in classification order, general last.
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskCoding,
		TaskCreative,
		TaskAdult,
		TaskDocumentAnalysis,
		TaskAnalysis,
		TaskMath,
		TaskQuick,
		TaskGeneral,
	}
}

// TaskProfile is the structured classification of one request.
// Complexity is always within [0, 1].
type TaskProfile struct {
	TaskType           TaskType `json:"task_type"`
	Complexity         float64  `json:"complexity"`
	RequiresCreativity bool     `json:"requires_creativity"`
	RequiresAccuracy   bool     `json:"requires_accuracy"`
	RequiresSpeed      bool     `json:"requires_speed"`
	IsSensitive        bool     `json:"is_sensitive"`
	EstimatedTokens    int      `json:"estimated_tokens"`
	DetectedLanguages  []string `json:"detected_languages"`

	// Keywords holds every matched keyword in detection order, without duplicates.
	Keywords []string `json:"keywords"`
}

// HasKeyword reports whether kw was detected.
func (p TaskProfile) HasKeyword(kw string) bool {
	for _, k := range p.Keywords {
		if k == kw {
			return true
		}
	}
	return false
}
