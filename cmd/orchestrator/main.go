// Package main is the entry point for the orchestrator CLI. The orchestrator
// classifies each request, scores the available models and dispatches to the
// best one with a single bounded fallback.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/LexHelios/Lexworking-sub001/internal/config"
	"github.com/LexHelios/Lexworking-sub001/internal/logging"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	noColor bool

	// cfg is loaded once in initLogging and shared by every command.
	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Multi-model task orchestration engine",
		Long: `Routes each request to the best available model:
  • Keyword and pattern task classification
  • Weighted model scoring with live performance feedback
  • Ollama, Groq and Together backends
  • Vision routing for image attachments
  • One bounded fallback when a backend fails

Start the API:      orchestrator serve
One-shot request:   orchestrator ask "summarize this" --file notes.md
Inspect routing:    orchestrator classify "write a python script"`,
		PersistentPreRunE: initLogging,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Close()
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.orchestrator/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("orchestrator v%s\n", version)
		},
	})

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(decisionsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(hashKeyCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGING INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

func initLogging(cmd *cobra.Command, args []string) error {
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	var err error
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.Config{
		Level:    cfg.Logging.Level,
		FilePath: cfg.Logging.File,
		Console:  cfg.Logging.Console,
		NoColor:  noColor,
	}
	if verbose {
		logCfg.Level = "debug"
		logCfg.Console = true
	}
	if err := logging.SetGlobal(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
		logCfg.FilePath = ""
		if err := logging.SetGlobal(logCfg); err != nil {
			return err
		}
	}

	zlog.Debug().Str("command", cmd.Name()).Str("config", cfgPath).Msg("session started")
	return nil
}
