package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LexHelios/Lexworking-sub001/internal/a2a"
	"github.com/LexHelios/Lexworking-sub001/internal/attachment"
	"github.com/LexHelios/Lexworking-sub001/internal/classifier"
	"github.com/LexHelios/Lexworking-sub001/internal/logging"
	"github.com/LexHelios/Lexworking-sub001/internal/orchestrator"
	"github.com/LexHelios/Lexworking-sub001/internal/server"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SERVE
// ═══════════════════════════════════════════════════════════════════════════════

func serveCmd() *cobra.Command {
	var (
		addr      string
		enableA2A bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srvCfg := server.DefaultConfig()
			srvCfg.Addr = cfg.Server.Addr
			srvCfg.APIKeyHash = cfg.Server.APIKeyHash
			if cfg.Server.ReadTimeout > 0 {
				srvCfg.ReadTimeout = cfg.Server.ReadTimeout
			}
			if cfg.Server.WriteTimeout > 0 {
				srvCfg.WriteTimeout = cfg.Server.WriteTimeout
			}
			if addr != "" {
				srvCfg.Addr = addr
			}

			opts := []server.Option{server.WithVersion(version)}
			if a.store != nil {
				opts = append(opts, server.WithAudit(a.store))
			}
			if enableA2A || cfg.Server.A2A {
				card := a2a.DefaultCardConfig()
				card.Version = version
				card.URL = publicURL(cfg.Server.PublicURL, srvCfg.Addr) + a2a.RPCPath
				opts = append(opts, server.WithRoutes(func(mux *http.ServeMux) {
					a2a.Register(mux, a.service, card)
				}))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.Component("serve")
			if avail, err := a.registry.Refresh(ctx); err != nil {
				logger.Warn().Err(err).Msg("initial availability probe failed")
			} else {
				logger.Info().Int("available_models", len(avail)).Msg("backends probed")
			}

			fmt.Println(titleStyle.Render("orchestrator") + " " + dimStyle.Render("listening on "+srvCfg.Addr))
			return server.New(a.service, srvCfg, opts...).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&enableA2A, "a2a", false, "serve the A2A agent endpoint (overrides server.a2a)")
	return cmd
}

// publicURL returns base, or an http URL for the listen address.
func publicURL(base, addr string) string {
	if base != "" {
		return strings.TrimRight(base, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

// ═══════════════════════════════════════════════════════════════════════════════
// ASK
// ═══════════════════════════════════════════════════════════════════════════════

func askCmd() *cobra.Command {
	var (
		files   []string
		asJSON  bool
		raw     bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Route a single request and print the answer",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" && len(files) == 0 {
				return fmt.Errorf("a prompt or --file is required")
			}

			proc := attachment.New()
			var records []orchestrator.FileRecord
			for _, f := range files {
				rec, err := proc.Process(f)
				if err != nil {
					return fmt.Errorf("attach %s: %w", f, err)
				}
				records = append(records, rec)
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp := a.service.Process(ctx, orchestrator.Request{Text: text, Attachments: records})

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			if resp.Error != "" {
				fmt.Println(errorStyle.Render("Request failed: " + resp.Error))
			} else if raw {
				fmt.Println(boxStyle.Render(strings.TrimSpace(resp.ResponseText)))
			} else {
				fmt.Println(renderMarkdown(resp.ResponseText, noColor))
			}
			fmt.Println(field("model", resp.ModelUsed))
			fmt.Println(field("task", resp.TaskAnalysis.TaskType))
			fmt.Println(field("confidence", percent(resp.Confidence)))
			fmt.Println(field("attempts", resp.Attempts))
			fmt.Println(field("capabilities", list(resp.CapabilitiesUsed)))
			if resp.Error != "" {
				return fmt.Errorf("no model produced an answer")
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "attach a file (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the answer without markdown rendering")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall request timeout")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// CLASSIFY
// ═══════════════════════════════════════════════════════════════════════════════

func classifyCmd() *cobra.Command {
	var showMatches bool

	cmd := &cobra.Command{
		Use:   "classify [text]",
		Short: "Show the task profile for a prompt without dispatching",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, matches := classifier.New().ClassifyWithMatches(strings.Join(args, " "))

			fmt.Println(titleStyle.Render("Task profile"))
			fmt.Println(field("type", profile.TaskType))
			fmt.Println(field("complexity", fmt.Sprintf("%.2f", profile.Complexity)))
			fmt.Println(field("creativity", status(profile.RequiresCreativity, "yes", "no")))
			fmt.Println(field("accuracy", status(profile.RequiresAccuracy, "yes", "no")))
			fmt.Println(field("speed", status(profile.RequiresSpeed, "yes", "no")))
			fmt.Println(field("sensitive", status(!profile.IsSensitive, "no", "yes")))
			fmt.Println(field("tokens", profile.EstimatedTokens))
			fmt.Println(field("languages", list(profile.DetectedLanguages)))
			fmt.Println(field("keywords", list(profile.Keywords)))

			if showMatches {
				fmt.Println()
				fmt.Println(titleStyle.Render("Pattern matches"))
				for _, m := range matches {
					fmt.Println("  " + dimStyle.Render(m))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showMatches, "matches", false, "list the category patterns that matched")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// MODELS
// ═══════════════════════════════════════════════════════════════════════════════

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List registered models and their live availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			available, err := a.registry.Refresh(cmd.Context())
			if err != nil {
				fmt.Println(errorStyle.Render("Probe failed: " + err.Error()))
			}
			present := make(map[string]bool, len(available))
			for _, name := range available {
				present[name] = true
			}

			fmt.Println(titleStyle.Render(fmt.Sprintf("Models (%d available)", len(available))))
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tBACKEND\tSTATUS\tSTRENGTHS")
			for _, p := range a.registry.Profiles() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Backend, status(present[p.Name], "up", "down"), list(p.Strengths))
			}
			for _, v := range a.registry.VisionModels() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.Name, v.Backend, status(present[v.Name], "up", "down"), "vision: "+list(v.Supports))
			}
			return tw.Flush()
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// AUDIT
// ═══════════════════════════════════════════════════════════════════════════════

func decisionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Show recent routing decisions from the audit store",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			decisions, err := st.RecentDecisions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(decisions) == 0 {
				fmt.Println(dimStyle.Render("No decisions recorded yet."))
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTASK\tMODEL\tCONFIDENCE\tATTEMPTS\tRESULT")
			for _, d := range decisions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					d.Timestamp.Local().Format("01-02 15:04:05"),
					d.TaskType,
					d.ModelSelected,
					percent(d.Confidence),
					d.Attempts,
					status(d.Success, "ok", "failed"),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of decisions to show")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-model outcome totals from the audit store",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			summary, err := st.ModelSummary(cmd.Context())
			if err != nil {
				return err
			}
			if len(summary) == 0 {
				fmt.Println(dimStyle.Render("No dispatch outcomes recorded yet."))
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MODEL\tCALLS\tSUCCESS\tTIME\tTOKENS")
			for _, m := range summary {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%.1fs\t%d\n", m.Model, m.Attempts, percent(m.SuccessRate), m.TotalTimeSeconds, m.TotalTokens)
			}
			return tw.Flush()
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// ADMIN
// ═══════════════════════════════════════════════════════════════════════════════

func hashKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Print the bcrypt hash to use as server.api_key_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := server.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (API keys masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			masked := *cfg
			masked.Backends.Groq.APIKey = mask(masked.Backends.Groq.APIKey)
			masked.Backends.Together.APIKey = mask(masked.Backends.Together.APIKey)

			out, err := yaml.Marshal(&masked)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("configuration is valid"))
			return nil
		},
	})

	return cmd
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
