package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/seanpile/limner/internal/backend"
	"github.com/seanpile/limner/internal/book"
	"github.com/seanpile/limner/internal/calls"
	"github.com/seanpile/limner/internal/config"
	"github.com/seanpile/limner/internal/home"
	"github.com/seanpile/limner/internal/pipeline"
	"github.com/seanpile/limner/version"
)

var (
	cfgFile string
	homeDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "limner",
	Short: "AI illustration pipeline for parsed books",
	Long: `Limner generates illustrations for chapters of parsed books and
anchors them at narratively meaningful points in the text.

The pipeline includes:
  - Scene analysis of chapter text with structured-output parsing
  - Image generation per scene with validation and retries
  - Fuzzy anchoring of images to paragraphs in the rendered content
  - Cached, idempotent results and resumable multi-chapter batches`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.limner/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "limner home directory (default: ~/.limner)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// A local .env can supply GEMINI_API_KEY during development.
		_ = godotenv.Load()
	}

	rootCmd.AddCommand(versionCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// env assembles the shared collaborators every command needs.
type env struct {
	home   *home.Dir
	cfg    *config.Config
	logger *slog.Logger
}

func newEnv() (*env, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	cm, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}

	return &env{
		home:   h,
		cfg:    cm.Get(),
		logger: newLogger(),
	}, nil
}

// newService opens a book and wires the full pipeline over the Gemini
// backend. The API key is resolved here, before any work is scheduled.
// Overrides apply command flags on top of the loaded config.
func newService(cmd *cobra.Command, bookID string, overrides ...func(*config.Config)) (*pipeline.Service, *env, error) {
	e, err := newEnv()
	if err != nil {
		return nil, nil, err
	}
	for _, fn := range overrides {
		fn(e.cfg)
	}

	key, err := e.cfg.ResolveAPIKey()
	if err != nil {
		return nil, nil, err
	}

	lib := book.NewLibrary(e.home)
	b, err := lib.Open(bookID)
	if err != nil {
		return nil, nil, err
	}

	recorder := calls.NewRecorder(e.home.CallLogPath(bookID), e.logger)
	gemini, err := backend.NewGemini(cmd.Context(), backend.GeminiConfig{
		APIKey:     key,
		TextModel:  e.cfg.Backend.TextModel,
		ImageModel: e.cfg.Backend.ImageModel,
		Timeout:    time.Duration(e.cfg.Backend.TimeoutSeconds) * time.Second,
		RateLimit:  e.cfg.Backend.RateLimit,
		Recorder:   recorder,
		BookID:     bookID,
		Logger:     e.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	svc := pipeline.New(e.cfg, e.home, bookID, b, gemini, gemini, e.logger)
	return svc, e, nil
}
