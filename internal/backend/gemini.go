package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/seanpile/limner/internal/calls"
)

// ErrEmptyResponse is returned when the backend answers with no candidates.
var ErrEmptyResponse = errors.New("backend returned no candidates")

// Gemini wraps the genai client behind the generator interfaces.
// A single limiter bounds in-flight requests across every caller sharing
// the client, which is the process-wide backpressure toward the API.
type Gemini struct {
	client     *genai.Client
	textModel  string
	imageModel string
	timeout    time.Duration
	limiter    *rate.Limiter
	recorder   *calls.Recorder
	bookID     string
	logger     *slog.Logger

	// invoke performs the raw model call; tests substitute it.
	invoke func(ctx context.Context, model, prompt string) ([]Part, error)
}

// GeminiConfig configures a Gemini backend client.
type GeminiConfig struct {
	APIKey     string
	TextModel  string
	ImageModel string
	Timeout    time.Duration

	// RateLimit is the request rate ceiling in requests per second.
	// Zero means no limiting.
	RateLimit float64

	// Recorder, if set, receives a record of every call.
	Recorder *calls.Recorder
	BookID   string

	Logger *slog.Logger
}

// NewGemini creates a Gemini backend client.
// A missing API key fails here, before any work is scheduled.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		// Burst 2 lets a batch start two requests back to back before
		// settling into the steady rate.
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 2)
	}

	g := &Gemini{
		client:     client,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		timeout:    timeout,
		limiter:    limiter,
		recorder:   cfg.Recorder,
		bookID:     cfg.BookID,
		logger:     logger,
	}
	g.invoke = g.invokeGenai
	return g, nil
}

// GenerateText sends a text prompt and concatenates the text parts of the reply.
func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	rec := g.newCall(ctx, calls.KindText, g.textModel)
	rec.PromptChars = len(prompt)
	start := time.Now()

	parts, err := g.generate(ctx, g.textModel, prompt)
	rec.LatencyMs = int(time.Since(start).Milliseconds())
	if err != nil {
		rec.Error = err.Error()
		g.record(rec)
		return "", err
	}

	var text string
	for _, p := range parts {
		text += p.Text
	}

	rec.Success = true
	rec.ResponseChars = len(text)
	g.record(rec)
	return text, nil
}

// GenerateImage sends a text prompt to the image model and returns all
// response parts. Selecting the image part is the caller's concern.
func (g *Gemini) GenerateImage(ctx context.Context, prompt string) ([]Part, error) {
	rec := g.newCall(ctx, calls.KindImage, g.imageModel)
	rec.PromptChars = len(prompt)
	start := time.Now()

	parts, err := g.generate(ctx, g.imageModel, prompt)
	rec.LatencyMs = int(time.Since(start).Milliseconds())
	if err != nil {
		rec.Error = err.Error()
		g.record(rec)
		return nil, err
	}

	rec.Success = true
	for _, p := range parts {
		if len(p.Data) > 0 && rec.ImageBytes == 0 {
			rec.ImageBytes = len(p.Data)
		}
	}
	g.record(rec)
	return parts, nil
}

// generate performs one rate-limited, timeout-bounded model call.
func (g *Gemini) generate(ctx context.Context, model, prompt string) ([]Part, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return g.invoke(callCtx, model, prompt)
}

// invokeGenai is the production invoke: one GenerateContent call.
func (g *Gemini) invokeGenai(ctx context.Context, model, prompt string) ([]Part, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("generate content failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrEmptyResponse
	}

	var parts []Part
	for _, p := range resp.Candidates[0].Content.Parts {
		part := Part{Text: p.Text}
		if p.InlineData != nil {
			part.Data = p.InlineData.Data
			part.MIMEType = p.InlineData.MIMEType
		}
		parts = append(parts, part)
	}
	return parts, nil
}

func (g *Gemini) newCall(ctx context.Context, kind calls.Kind, model string) *calls.Call {
	rec := calls.New(kind, model)
	rec.BookID = g.bookID
	meta := MetaFrom(ctx)
	rec.ChapterIndex = meta.ChapterIndex
	rec.SceneIndex = meta.SceneIndex
	rec.JobID = meta.JobID
	return rec
}

func (g *Gemini) record(rec *calls.Call) {
	if g.recorder != nil {
		g.recorder.Record(rec)
	}
}
