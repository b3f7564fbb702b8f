package tracker

import (
	"sync"
	"time"

	"github.com/LexHelios/Lexworking-sub001/internal/classifier"
)

// DefaultDecisionCapacity is the number of routing decisions retained.
const DefaultDecisionCapacity = 100

// Decision is an immutable record of one completed request.
type Decision struct {
	RequestID     string              `json:"request_id"`
	Timestamp     time.Time           `json:"timestamp"`
	TaskType      classifier.TaskType `json:"task_type"`
	Complexity    float64             `json:"complexity"`
	ModelSelected string              `json:"model_selected"`
	Confidence    float64             `json:"confidence"`
	Success       bool                `json:"success"`
	Attempts      int                 `json:"attempts"`
	Error         string              `json:"error,omitempty"`
}

// DecisionLog is a fixed-capacity ring buffer of decisions. Once full, each
// Append overwrites the oldest entry.
type DecisionLog struct {
	mu    sync.Mutex
	buf   []Decision
	next  int
	count int
	total int64
}

// NewDecisionLog creates a log holding up to capacity decisions.
// Non-positive capacities use DefaultDecisionCapacity.
func NewDecisionLog(capacity int) *DecisionLog {
	if capacity <= 0 {
		capacity = DefaultDecisionCapacity
	}
	return &DecisionLog{buf: make([]Decision, capacity)}
}

// Append adds d, evicting the oldest decision when full.
func (l *DecisionLog) Append(d Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.next] = d
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}
	l.total++
}

// Recent returns up to n of the newest decisions, oldest first.
// n <= 0 returns everything retained.
func (l *DecisionLog) Recent(n int) []Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > l.count {
		n = l.count
	}
	out := make([]Decision, n)
	start := (l.next - n + len(l.buf)) % len(l.buf)
	for i := 0; i < n; i++ {
		out[i] = l.buf[(start+i)%len(l.buf)]
	}
	return out
}

// Len returns the number of retained decisions.
func (l *DecisionLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Total returns how many decisions were ever appended.
func (l *DecisionLog) Total() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Capacity returns the maximum number of retained decisions.
func (l *DecisionLog) Capacity() int {
	return len(l.buf)
}
