// Package a2a exposes the orchestrator as an A2A protocol agent using the
// a2a-go SDK: agent card discovery plus JSON-RPC message/send and streaming.
package a2a

import (
	"context"
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"github.com/rs/zerolog/log"

	"github.com/LexHelios/Lexworking-sub001/internal/orchestrator"
)

func init() {
	// Task state is gob encoded; data parts carry these nested types.
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// Processor runs one orchestration request. *orchestrator.Service satisfies it.
type Processor interface {
	Process(ctx context.Context, req orchestrator.Request) *orchestrator.Response
}

// eventWriter is the part of eventqueue.Queue the executor uses.
type eventWriter interface {
	Write(ctx context.Context, event a2a.Event) error
}

// Executor adapts the orchestrator to a2asrv.AgentExecutor.
type Executor struct {
	proc Processor
}

// NewExecutor creates an executor.
func NewExecutor(p Processor) *Executor {
	return &Executor{proc: p}
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	return e.execute(ctx, reqCtx, queue)
}

// Cancel implements a2asrv.AgentExecutor.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	log.Info().Str("task_id", string(reqCtx.TaskID)).Msg("a2a task canceled")

	cancelEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	cancelEvent.Final = true
	return queue.Write(ctx, cancelEvent)
}

func (e *Executor) execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventWriter) error {
	workingEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)
	if err := queue.Write(ctx, workingEvent); err != nil {
		return fmt.Errorf("failed to write state working: %w", err)
	}

	req := requestFromMessage(reqCtx.Message)
	if strings.TrimSpace(req.Text) == "" {
		return writeFailure(ctx, reqCtx, queue, "message contains no text", nil)
	}

	resp := e.proc.Process(ctx, req)
	metadata := responseMetadata(resp)

	if !resp.Succeeded() {
		return writeFailure(ctx, reqCtx, queue, resp.Error, metadata)
	}

	routingEvent := a2a.NewArtifactEvent(reqCtx, a2a.DataPart{Data: map[string]any{
		"type":       "routing",
		"task_type":  string(resp.TaskAnalysis.TaskType),
		"complexity": resp.TaskAnalysis.Complexity,
		"model_used": resp.ModelUsed,
	}})
	if err := queue.Write(ctx, routingEvent); err != nil {
		log.Warn().Err(err).Str("request_id", resp.RequestID).Msg("failed to write routing artifact")
	}

	responseMsg := a2a.NewMessage(a2a.MessageRoleAgent,
		a2a.TextPart{Text: resp.ResponseText},
		a2a.DataPart{Data: metadata},
	)
	completeEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, responseMsg)
	completeEvent.Final = true
	if err := queue.Write(ctx, completeEvent); err != nil {
		return fmt.Errorf("failed to write state completed: %w", err)
	}

	log.Debug().
		Str("task_id", string(reqCtx.TaskID)).
		Str("model", resp.ModelUsed).
		Msg("a2a task completed")
	return nil
}

func writeFailure(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventWriter, reason string, metadata map[string]any) error {
	parts := []a2a.Part{a2a.TextPart{Text: "Error: " + reason}}
	if metadata != nil {
		parts = append(parts, a2a.DataPart{Data: metadata})
	}
	failEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, a2a.NewMessage(a2a.MessageRoleAgent, parts...))
	failEvent.Final = true
	return queue.Write(ctx, failEvent)
}

// requestFromMessage joins text parts and reads userId and sessionId metadata.
func requestFromMessage(msg *a2a.Message) orchestrator.Request {
	var req orchestrator.Request
	if msg == nil {
		return req
	}

	var texts []string
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case a2a.TextPart:
			texts = append(texts, p.Text)
		case *a2a.TextPart:
			texts = append(texts, p.Text)
		}
	}
	req.Text = strings.TrimSpace(strings.Join(texts, "\n"))

	if msg.Metadata != nil {
		if uid, ok := msg.Metadata["userId"].(string); ok {
			req.UserID = uid
		}
		if sid, ok := msg.Metadata["sessionId"].(string); ok {
			req.SessionID = sid
		}
	}
	return req
}

func responseMetadata(resp *orchestrator.Response) map[string]any {
	caps := make([]any, len(resp.CapabilitiesUsed))
	for i, c := range resp.CapabilitiesUsed {
		caps[i] = c
	}
	return map[string]any{
		"request_id":   resp.RequestID,
		"model_used":   resp.ModelUsed,
		"task_type":    string(resp.TaskAnalysis.TaskType),
		"confidence":   resp.Confidence,
		"attempts":     resp.Attempts,
		"repaired":     resp.Repaired,
		"capabilities": caps,
	}
}
