package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LexHelios/Lexworking-sub001/internal/classifier"
	"github.com/LexHelios/Lexworking-sub001/internal/llm"
	"github.com/LexHelios/Lexworking-sub001/internal/tracker"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FAKES
// ═══════════════════════════════════════════════════════════════════════════════

type reply struct {
	text   string
	tokens int
	err    error
	block  bool
}

type scriptedAdapter struct {
	name   string
	vision bool

	mu       sync.Mutex
	replies  []reply
	requests []*llm.GenerateRequest
}

func (a *scriptedAdapter) Name() string          { return a.name }
func (a *scriptedAdapter) Kind() llm.BackendKind { return llm.KindOllama }
func (a *scriptedAdapter) SupportsVision() bool  { return a.vision }

func (a *scriptedAdapter) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	a.mu.Lock()
	a.requests = append(a.requests, req)
	if len(a.replies) == 0 {
		a.mu.Unlock()
		return nil, errors.New("no scripted reply")
	}
	r := a.replies[0]
	a.replies = a.replies[1:]
	a.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return nil, &llm.BackendError{Kind: llm.ErrTimeout, Backend: a.name, Model: req.Model, Err: ctx.Err()}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &llm.GenerateResponse{Text: r.text, Model: req.Model, CompletionTokens: r.tokens}, nil
}

func (a *scriptedAdapter) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

func (a *scriptedAdapter) calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

type staticResolver map[string]string

func (r staticResolver) Backend(model string) (string, bool) {
	b, ok := r[model]
	return b, ok
}

func newTestDispatcher(t *testing.T, adapter *scriptedAdapter, cfg Config) (*Dispatcher, *tracker.Tracker) {
	t.Helper()
	tr := tracker.New()
	d := New(
		map[string]llm.Adapter{adapter.name: adapter},
		staticResolver{"m": adapter.name, "orphan": "missing"},
		tr,
		cfg,
	)
	return d, tr
}

func long(n int) string {
	return strings.Repeat("word ", n/5+1)[:n]
}

// ═══════════════════════════════════════════════════════════════════════════════
// REQUEST SHAPING
// ═══════════════════════════════════════════════════════════════════════════════

func TestTemperature(t *testing.T) {
	tests := []struct {
		name string
		task classifier.TaskProfile
		want float64
	}{
		{"default", classifier.TaskProfile{}, 0.7},
		{"accuracy", classifier.TaskProfile{RequiresAccuracy: true}, 0.3},
		{"creativity", classifier.TaskProfile{RequiresCreativity: true}, 0.9},
		{"both", classifier.TaskProfile{RequiresAccuracy: true, RequiresCreativity: true}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Temperature(tt.task), 1e-9)
		})
	}
}

func TestDispatch_RequestShaping(t *testing.T) {
	adapter := &scriptedAdapter{name: "ollama", replies: []reply{{text: "ok"}, {text: long(600)}}}
	d, _ := newTestDispatcher(t, adapter, DefaultConfig())

	_, err := d.Dispatch(context.Background(), Call{
		Model:  "m",
		Prompt: "fix the bug",
		System: "sys",
		Task:   classifier.TaskProfile{TaskType: classifier.TaskCoding, RequiresAccuracy: true},
	})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), Call{
		Model:  "m",
		Prompt: "read this",
		Task:   classifier.TaskProfile{TaskType: classifier.TaskDocumentAnalysis},
	})
	require.NoError(t, err)

	require.Len(t, adapter.requests, 2)
	first := adapter.requests[0]
	assert.Equal(t, "sys", first.System)
	assert.InDelta(t, 0.3, first.Options.Temperature, 1e-9)
	assert.Equal(t, 2048, first.Options.MaxTokens)
	assert.InDelta(t, 0.9, first.Options.TopP, 1e-9)

	assert.Equal(t, 4096, adapter.requests[1].Options.MaxTokens)
}

// ═══════════════════════════════════════════════════════════════════════════════
// OUTCOME REPORTING
// ═══════════════════════════════════════════════════════════════════════════════

func TestDispatch_ReportsSuccess(t *testing.T) {
	adapter := &scriptedAdapter{name: "ollama", replies: []reply{
		{text: "four", tokens: 7},
		{text: "one two three four five six seven eight nine ten"},
	}}
	d, tr := newTestDispatcher(t, adapter, DefaultConfig())

	res, err := d.Dispatch(context.Background(), Call{Model: "m", Prompt: "2+2"})
	require.NoError(t, err)
	assert.Equal(t, "four", res.Text)
	assert.Equal(t, "ollama", res.Backend)
	assert.Equal(t, 1, res.Calls)
	assert.False(t, res.Repair.Attempted)

	_, err = d.Dispatch(context.Background(), Call{Model: "m", Prompt: "count"})
	require.NoError(t, err)

	rec, ok := tr.Record("m")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, 2, rec.Successes)
	assert.Equal(t, 7+13, rec.TotalTokens, "provider count, then 10 words * 1.3")
}

func TestDispatch_BackendFailure(t *testing.T) {
	httpErr := &llm.BackendError{Kind: llm.ErrHTTPStatus, Backend: "ollama", Model: "m", StatusCode: 500, Err: errors.New("boom")}
	adapter := &scriptedAdapter{name: "ollama", replies: []reply{{err: httpErr}, {err: errors.New("socket closed")}, {text: "   "}}}
	d, tr := newTestDispatcher(t, adapter, DefaultConfig())

	_, err := d.Dispatch(context.Background(), Call{Model: "m"})
	be, ok := llm.AsBackendError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrHTTPStatus, be.Kind)

	_, err = d.Dispatch(context.Background(), Call{Model: "m"})
	be, ok = llm.AsBackendError(err)
	require.True(t, ok, "plain errors are wrapped")
	assert.Equal(t, llm.ErrUnavailable, be.Kind)

	_, err = d.Dispatch(context.Background(), Call{Model: "m"})
	be, ok = llm.AsBackendError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrMalformed, be.Kind, "blank text is a failed call")

	rec, _ := tr.Record("m")
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, 0, rec.Successes)
}

func TestDispatch_TimeoutReportedAsFailure(t *testing.T) {
	adapter := &scriptedAdapter{name: "ollama", replies: []reply{{block: true}}}
	cfg := DefaultConfig()
	cfg.Timeout = 20 * time.Millisecond
	d, tr := newTestDispatcher(t, adapter, cfg)

	_, err := d.Dispatch(context.Background(), Call{Model: "m"})
	be, ok := llm.AsBackendError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrTimeout, be.Kind)

	rec, ok := tr.Record("m")
	require.True(t, ok)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, 0, rec.Successes)
}

func TestDispatch_UnknownBackend(t *testing.T) {
	adapter := &scriptedAdapter{name: "ollama"}
	d, tr := newTestDispatcher(t, adapter, DefaultConfig())

	for _, model := range []string{"orphan", "not-registered"} {
		_, err := d.Dispatch(context.Background(), Call{Model: model})
		be, ok := llm.AsBackendError(err)
		require.True(t, ok)
		assert.Equal(t, llm.ErrUnavailable, be.Kind)
	}
	assert.Zero(t, adapter.calls())

	for _, model := range []string{"orphan", "not-registered"} {
		rec, ok := tr.Record(model)
		require.True(t, ok, model)
		assert.Equal(t, 1, rec.Attempts)
		assert.Zero(t, rec.Successes)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// REPAIR
// ═══════════════════════════════════════════════════════════════════════════════

func docCall() Call {
	return Call{
		Model:  "m",
		Prompt: "Summarize this document: ...",
		Task:   classifier.TaskProfile{TaskType: classifier.TaskDocumentAnalysis},
	}
}

func TestRepair_RetrySucceeds(t *testing.T) {
	full := long(700)
	adapter := &scriptedAdapter{name: "ollama", replies: []reply{{text: "too short"}, {text: full}}}
	d, tr := newTestDispatcher(t, adapter, DefaultConfig())

	res, err := d.Dispatch(context.Background(), docCall())
	require.NoError(t, err)

	assert.Equal(t, full, res.Text)
	assert.Equal(t, 2, res.Calls)
	assert.Equal(t, []RepairStage{StageDraft, StageRetry, StageFinal}, res.Repair.Path)
	assert.True(t, res.Repair.Complete)
	assert.True(t, res.Repair.Repaired())

	retry := adapter.requests[1]
	assert.Equal(t, 8192, retry.Options.MaxTokens)
	assert.Contains(t, retry.Prompt, "Summarize this document")
	assert.Contains(t, retry.Prompt, "complete")

	rec, _ := tr.Record("m")
	assert.Equal(t, 2, rec.Attempts, "repair calls are reported too")
}

func TestRepair_ContinuationAppends(t *testing.T) {
	adapter := &scriptedAdapter{name: "ollama", replies: []reply{
		{text: "short"},
		{text: "a longer partial"},
		{text: "and the rest"},
		{text: "never requested"},
	}}
	d, _ := newTestDispatcher(t, adapter, DefaultConfig())

	res, err := d.Dispatch(context.Background(), docCall())
	require.NoError(t, err)

	assert.Equal(t, "a longer partial\n\nand the rest", res.Text)
	assert.Equal(t, 3, res.Calls)
	assert.Equal(t, 3, adapter.calls(), "budget is two extra calls")
	assert.Equal(t, []RepairStage{StageDraft, StageRetry, StageContinuation, StageFinal}, res.Repair.Path)
	assert.False(t, res.Repair.Complete)

	cont := adapter.requests[2]
	assert.Contains(t, cont.Prompt, "a longer partial")
	assert.Contains(t, cont.Prompt, "Continue")
}

func TestRepair_CompleteRetryReplacesLongerHedgingDraft(t *testing.T) {
	draft := "As an AI, I cannot see the document you are referring to. " + long(860)
	answer := long(573)
	adapter := &scriptedAdapter{name: "ollama", replies: []reply{
		{text: draft},
		{text: answer},
		{text: "never requested"},
	}}
	d, _ := newTestDispatcher(t, adapter, DefaultConfig())

	res, err := d.Dispatch(context.Background(), docCall())
	require.NoError(t, err)

	assert.Equal(t, answer, res.Text)
	assert.Equal(t, 2, res.Calls)
	assert.Equal(t, 2, adapter.calls(), "no continuation after a complete retry")
	assert.Equal(t, []RepairStage{StageDraft, StageRetry, StageFinal}, res.Repair.Path)
	assert.True(t, res.Repair.Complete)
	assert.NotContains(t, res.Text, "As an AI")
}

func TestRepair_RetryFailureKeepsDraft(t *testing.T) {
	adapter := &scriptedAdapter{name: "ollama", replies: []reply{
		{text: "draft"},
		{err: errors.New("connection reset")},
		{text: "continued"},
	}}
	d, tr := newTestDispatcher(t, adapter, DefaultConfig())

	res, err := d.Dispatch(context.Background(), docCall())
	require.NoError(t, err, "a failed repair never fails the request")

	assert.Equal(t, "draft\n\ncontinued", res.Text)
	assert.Equal(t, 1, res.Repair.Failures)
	assert.True(t, res.Repair.Repaired())

	rec, _ := tr.Record("m")
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, 2, rec.Successes)
}

func TestRepair_AllRepairCallsFail(t *testing.T) {
	adapter := &scriptedAdapter{name: "ollama", replies: []reply{
		{text: "draft"},
		{err: errors.New("x")},
		{err: errors.New("y")},
	}}
	d, _ := newTestDispatcher(t, adapter, DefaultConfig())

	res, err := d.Dispatch(context.Background(), docCall())
	require.NoError(t, err)
	assert.Equal(t, "draft", res.Text)
	assert.False(t, res.Repair.Repaired())
	assert.Equal(t, 3, adapter.calls())
}

func TestRepair_Triggers(t *testing.T) {
	tests := []struct {
		name      string
		call      Call
		draft     string
		wantCalls int
	}{
		{
			name:      "general short answer is left alone",
			call:      Call{Model: "m", Prompt: "hi"},
			draft:     "hello",
			wantCalls: 1,
		},
		{
			name:      "summary keyword in prompt",
			call:      Call{Model: "m", Prompt: "give me a summary of the meeting"},
			draft:     "short",
			wantCalls: 2,
		},
		{
			name:      "summary keyword in task",
			call:      Call{Model: "m", Prompt: "x", Task: classifier.TaskProfile{Keywords: []string{"tl;dr"}}},
			draft:     "short",
			wantCalls: 2,
		},
		{
			name:      "long hedging answer",
			call:      docCall(),
			draft:     long(600) + " I cannot see the document you attached.",
			wantCalls: 2,
		},
		{
			name:      "long complete answer",
			call:      docCall(),
			draft:     long(600),
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &scriptedAdapter{name: "ollama", replies: []reply{{text: tt.draft}, {text: long(800)}}}
			d, _ := newTestDispatcher(t, adapter, DefaultConfig())

			_, err := d.Dispatch(context.Background(), tt.call)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, adapter.calls())
		})
	}
}

func TestRepair_Disabled(t *testing.T) {
	adapter := &scriptedAdapter{name: "ollama", replies: []reply{{text: "short"}}}
	cfg := DefaultConfig()
	cfg.RepairEnabled = false
	d, _ := newTestDispatcher(t, adapter, cfg)

	res, err := d.Dispatch(context.Background(), docCall())
	require.NoError(t, err)
	assert.Equal(t, "short", res.Text)
	assert.Equal(t, 1, adapter.calls())
}

// ═══════════════════════════════════════════════════════════════════════════════
// VISION
// ═══════════════════════════════════════════════════════════════════════════════

func TestDispatchVision(t *testing.T) {
	adapter := &scriptedAdapter{name: "ollama", vision: true, replies: []reply{{text: "a red bicycle"}}}
	d, tr := newTestDispatcher(t, adapter, DefaultConfig())

	res, err := d.DispatchVision(context.Background(), Call{Model: "m", Prompt: "describe"}, []string{"aW1n"})
	require.NoError(t, err)
	assert.Equal(t, "a red bicycle", res.Text)
	assert.Equal(t, []string{"aW1n"}, adapter.requests[0].Images)
	assert.Equal(t, 1.0, tr.SuccessRate("m"))
}

func TestDispatchVision_Unsupported(t *testing.T) {
	adapter := &scriptedAdapter{name: "ollama", vision: false}
	d, _ := newTestDispatcher(t, adapter, DefaultConfig())

	_, err := d.DispatchVision(context.Background(), Call{Model: "m"}, []string{"aW1n"})
	be, ok := llm.AsBackendError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrUnsupported, be.Kind)
	assert.Zero(t, adapter.calls())
}
