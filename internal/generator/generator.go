package generator

import (
	"context"
	"log/slog"
	"time"
)

const generateTimeout = 60 * time.Second

// Completer is the single-turn completion call the Generator depends on.
// Implemented by Client.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator produces unverified candidates from the generative text service.
type Generator struct {
	client Completer
}

// New creates a Generator using the given completion client.
func New(client Completer) *Generator {
	return &Generator{client: client}
}

// Generate builds the prompt, calls the service, and parses the output.
// On any failure (timeout, service error, no parseable array) it returns
// nil — a failed round must never abort the recommendation request.
func (g *Generator) Generate(ctx context.Context, profileText string, exclusions []Entry, f Filters) []Candidate {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	prompt := BuildPrompt(profileText, exclusions, f)

	raw, err := g.client.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("generation call failed", "error", err)
		return nil
	}

	candidates := ParseCandidates(raw)
	if len(candidates) == 0 {
		slog.Warn("generator output contained no valid candidates", "response_bytes", len(raw))
	}
	return candidates
}
