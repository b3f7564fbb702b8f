package a2a

import (
	"net/http"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
)

// RPCPath is where the JSON-RPC endpoint is mounted.
const RPCPath = "/a2a"

// CardConfig describes the advertised agent.
type CardConfig struct {
	Name        string
	Description string
	Version     string

	// URL is the public base URL clients use to reach RPCPath.
	URL string
}

// DefaultCardConfig returns the card for a local deployment.
func DefaultCardConfig() CardConfig {
	return CardConfig{
		Name:        "orchestrator",
		Description: "Routes each request to the best available language model and returns its answer.",
		Version:     "0.1.0",
		URL:         "http://127.0.0.1:8085" + RPCPath,
	}
}

// NewAgentCard builds the agent card. Skills mirror the task categories the
// router distinguishes.
func NewAgentCard(cfg CardConfig) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               cfg.Name,
		Description:        cfg.Description,
		Version:            cfg.Version,
		ProtocolVersion:    "0.3",
		URL:                cfg.URL,
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Capabilities: a2a.AgentCapabilities{
			Streaming: true,
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text", "application/json"},
		Skills: []a2a.AgentSkill{
			{
				ID:          "coding",
				Name:        "Software Development",
				Description: "Write, debug and explain code, routed to a code-specialised model.",
				Tags:        []string{"code", "programming", "debugging"},
				Examples:    []string{"Write a Python function to sort a list", "Debug this Go code"},
				InputModes:  []string{"text"},
				OutputModes: []string{"text"},
			},
			{
				ID:          "analysis",
				Name:        "Analysis and Math",
				Description: "Reasoning, comparisons and calculations, routed to a large model.",
				Tags:        []string{"analysis", "math", "reasoning"},
				Examples:    []string{"Compare these two architectures", "Solve this equation"},
				InputModes:  []string{"text"},
				OutputModes: []string{"text"},
			},
			{
				ID:          "creative",
				Name:        "Creative Writing",
				Description: "Stories, poems and brainstorming at a higher sampling temperature.",
				Tags:        []string{"creative", "writing"},
				Examples:    []string{"Write a short story about a lighthouse"},
				InputModes:  []string{"text"},
				OutputModes: []string{"text"},
			},
			{
				ID:          "quick",
				Name:        "Quick Answers",
				Description: "Short factual questions, routed to a fast model.",
				Tags:        []string{"quick", "facts"},
				Examples:    []string{"What is the capital of France?"},
				InputModes:  []string{"text"},
				OutputModes: []string{"text"},
			},
		},
	}
}

// Register mounts the JSON-RPC endpoint and the well-known agent card on mux.
func Register(mux *http.ServeMux, p Processor, cfg CardConfig) {
	handler := a2asrv.NewHandler(NewExecutor(p))
	card := a2asrv.NewStaticAgentCardHandler(NewAgentCard(cfg))

	mux.Handle(RPCPath, a2asrv.NewJSONRPCHandler(handler))
	mux.Handle(a2asrv.WellKnownAgentCardPath, card)
}
