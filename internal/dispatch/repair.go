package dispatch

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/LexHelios/Lexworking-sub001/internal/classifier"
	"github.com/LexHelios/Lexworking-sub001/internal/llm"
)

// RepairBudget is the maximum number of extra calls spent on one request.
const RepairBudget = 2

// RepairStage is a state of the incomplete-response repair machine:
// Draft → Retry → Continuation → Final.
type RepairStage string

const (
	StageDraft        RepairStage = "draft"
	StageRetry        RepairStage = "retry"
	StageContinuation RepairStage = "continuation"
	StageFinal        RepairStage = "final"
)

// RepairInfo records the path a repaired dispatch took.
type RepairInfo struct {
	Attempted bool          `json:"attempted"`
	Path      []RepairStage `json:"path,omitempty"`
	Complete  bool          `json:"complete"`
	Failures  int           `json:"failures,omitempty"`
}

// Repaired reports whether at least one repair call succeeded.
func (r RepairInfo) Repaired() bool {
	return r.Attempted && len(r.Path)-2 > r.Failures
}

var summaryMarkers = []string{"summarize", "summarise", "summary", "tl;dr", "tldr"}

var hedgingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi\s+(cannot|can't|am unable to|'m unable to)\s+(see|access|read|view|open)\b`),
	regexp.MustCompile(`(?i)\bi\s+don'?t\s+have\s+access\b`),
	regexp.MustCompile(`(?i)\bas an ai\b`),
	regexp.MustCompile(`(?i)\bplease\s+(provide|share|upload|paste)\s+(the|more|a)\b`),
	regexp.MustCompile(`(?i)\b(document|file|text)\s+(appears|seems)\s+to\s+be\s+(empty|incomplete|truncated)\b`),
	regexp.MustCompile(`(?i)\bwithout\s+(seeing|access\s+to)\s+the\s+(document|file|text)\b`),
	regexp.MustCompile(`(?i)(to\s+be\s+continued|\(continued\))\s*$`),
	regexp.MustCompile(`\.\.\.\s*$`),
}

// needsRepair reports whether the call is a document or summary request.
func needsRepair(call Call) bool {
	if call.Task.TaskType == classifier.TaskDocumentAnalysis {
		return true
	}
	for _, m := range summaryMarkers {
		if call.Task.HasKeyword(m) {
			return true
		}
	}
	lower := strings.ToLower(call.Prompt)
	for _, m := range summaryMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// incomplete reports whether text is too short or hedges instead of answering.
func (d *Dispatcher) incomplete(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < d.cfg.RepairMinChars {
		return true
	}
	for _, re := range hedgingPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// repair runs the bounded Draft → Retry → Continuation → Final machine on
// res. A failed repair call never discards the draft.
func (d *Dispatcher) repair(ctx context.Context, adapter llm.Adapter, req *llm.GenerateRequest, res *Result) {
	res.Repair.Attempted = true
	res.Repair.Path = []RepairStage{StageDraft}

	best := res.Text
	next := StageRetry

	for used := 0; used < RepairBudget && next != StageFinal; used++ {
		stage := next
		var r *llm.GenerateRequest
		if stage == StageRetry {
			r = d.retryRequest(req)
		} else {
			r = d.continuationRequest(req, best)
		}

		res.Repair.Path = append(res.Repair.Path, stage)
		res.Calls++

		resp, err := d.generate(ctx, adapter, r)
		if err != nil {
			res.Repair.Failures++
			log.Warn().Err(err).Str("model", req.Model).Str("stage", string(stage)).Msg("repair call failed")
			if stage == StageRetry && ctx.Err() == nil {
				next = StageContinuation
				continue
			}
			break
		}

		res.PromptTokens += resp.PromptTokens
		res.CompletionTokens += resp.CompletionTokens

		switch stage {
		case StageRetry:
			// A complete retry wins outright. Otherwise keep the longer of the
			// two and continue it.
			if !d.incomplete(resp.Text) {
				best = resp.Text
				next = StageFinal
				break
			}
			if len(strings.TrimSpace(resp.Text)) >= len(strings.TrimSpace(best)) {
				best = resp.Text
			}
			next = StageContinuation
		case StageContinuation:
			best = strings.TrimRight(best, " \n\t") + "\n\n" + strings.TrimSpace(resp.Text)
			next = StageFinal
		}
	}

	res.Repair.Path = append(res.Repair.Path, StageFinal)
	res.Repair.Complete = !d.incomplete(best)
	res.Text = best

	log.Info().
		Str("model", req.Model).
		Int("calls", res.Calls).
		Bool("complete", res.Repair.Complete).
		Msg("incomplete response repaired")
}

func (d *Dispatcher) retryRequest(req *llm.GenerateRequest) *llm.GenerateRequest {
	r := *req
	r.Prompt = "Answer the following request completely and in detail. " +
		"Work only with the content provided, do not ask for more input and do not stop early.\n\n" +
		req.Prompt +
		"\n\nGive a thorough, well-structured and complete response."
	r.Options.MaxTokens = d.cfg.RepairMaxTokens
	return &r
}

func (d *Dispatcher) continuationRequest(req *llm.GenerateRequest, partial string) *llm.GenerateRequest {
	r := *req
	r.Prompt = req.Prompt +
		"\n\nHere is the answer written so far:\n\n" + strings.TrimSpace(partial) +
		"\n\nContinue the answer from exactly where it stops. Do not repeat what is already written."
	r.Options.MaxTokens = d.cfg.RepairMaxTokens
	return &r
}
