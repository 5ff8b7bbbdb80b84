package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pdfchat/internal/config"
	"pdfchat/internal/domain"
	"pdfchat/internal/logger"
	"pdfchat/internal/service"
	"pdfchat/internal/tui"
)

var (
	cfgPath  string
	logLevel string
	topK     int
)

var rootCmd = &cobra.Command{
	Use:   "pdfchat [file]",
	Short: "Chat with a PDF using retrieval-augmented generation",
	Long: `Launch the chat UI. When a file is given it is indexed first.

Controls:
  Enter   - Send
  /open <path> - Index a document and switch to it
  Tab     - Switch between document and simple chat
  Ctrl+L  - Clear the current chat history
  Ctrl+X  - Clear the loaded document
  Ctrl+C  - Quit`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

var askCmd = &cobra.Command{
	Use:   "ask <file> <question>",
	Short: "Index a file and stream one grounded answer",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsk,
}

var indexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Index a file and print its collection and summary",
	Long: `Index a file and print its collection, chunk counts and summary.

No language model is contacted, so no API key is needed. With the default
memory vector store the index is discarded when the command exits; configure
vector_store.type: qdrant to keep the collection for later "ask" runs.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/pdfchat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")
	rootCmd.PersistentFlags().IntVar(&topK, "top-k", 0, "number of chunks that ground each answer")
	rootCmd.AddCommand(askCmd, indexCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, domain.ErrModelLoad) {
			fmt.Fprintln(os.Stderr, "The embedding model could not be loaded; check embedder settings or network access.")
		}
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if topK > 0 {
		cfg.Retrieval.TopK = topK
	}
	return cfg, nil
}

// newLogger writes to out, or to the configured log file when out is nil.
func newLogger(cfg *config.AppConfig, out io.Writer) (logger.Logger, func(), error) {
	closer := func() {}
	if out == nil {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closer = func() { _ = f.Close() }
	}
	lc := logger.DefaultConfig()
	lc.Level = logger.ParseLevel(cfg.Log.Level)
	lc.JSON = cfg.Log.JSON
	lc.Output = out
	log := logger.NewLogger(lc)
	logger.SetDefault(log)
	return log, closer, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, closeLog, err := newLogger(cfg, nil)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	svc, err := build(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer svc.Close(context.WithoutCancel(ctx))

	if len(args) == 1 {
		cmd.PrintErrf("Indexing %s...\n", args[0])
		if _, err := svc.IngestFile(ctx, args[0]); err != nil {
			return fmt.Errorf("index %s: %w", args[0], err)
		}
	}

	p := tea.NewProgram(tui.New(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, _, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, err := build(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer svc.Close(context.WithoutCancel(ctx))

	if _, err := svc.IngestFile(ctx, args[0]); err != nil {
		return fmt.Errorf("index %s: %w", args[0], err)
	}
	out := cmd.OutOrStdout()
	_, err = svc.Answer(ctx, args[1], func(tok string) { fmt.Fprint(out, tok) })
	fmt.Fprintln(out)
	for _, w := range svc.Warnings() {
		cmd.PrintErrln("Warning:", w)
	}
	if errors.Is(err, domain.ErrNoRelevantContent) {
		cmd.Println(tui.NoRelevantContent)
		return nil
	}
	return err
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, _, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	svc, err := build(ctx, cfg, log, false)
	if err != nil {
		return err
	}

	res, err := svc.IngestFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("index %s: %w", args[0], err)
	}
	cmd.Printf("Collection: %s\n", res.Collection)
	if res.Skipped {
		cmd.Printf("Chunks: %d (already indexed)\n", res.Chunks)
	} else {
		cmd.Printf("Chunks: %d (%d inserted)\n", res.Chunks, res.Inserted)
	}
	if res.Summary != "" {
		cmd.Printf("Summary: %s\n", res.Summary)
	}
	for _, w := range svc.Warnings() {
		cmd.PrintErrln("Warning:", w)
	}
	return nil
}

var _ tui.ChatPort = (*service.RAGService)(nil)
