// Package backend abstracts the generative AI backend.
// The pipeline consumes the TextGenerator and ImageGenerator interfaces;
// the Gemini implementation lives in gemini.go.
package backend

import (
	"context"
)

// Part is one piece of a multi-part backend response. Image responses mix
// descriptive text parts and binary data parts in arbitrary order.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// TextGenerator produces a text response for a text prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator produces a multi-part response for a text prompt.
// Callers scan the parts for binary image data.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]Part, error)
}

// Meta carries per-call context for recording, threaded through the
// context so the pipeline doesn't have to plumb it into every signature.
type Meta struct {
	ChapterIndex int
	SceneIndex   int
	JobID        string
}

type metaKey struct{}

// WithMeta returns a context with call metadata attached.
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// MetaFrom retrieves call metadata from the context.
// Returns a zero Meta if none is attached.
func MetaFrom(ctx context.Context) Meta {
	m, ok := ctx.Value(metaKey{}).(Meta)
	if !ok {
		return Meta{}
	}
	return m
}
