package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"suggestd/internal/storage"
)

// JobStore abstracts the job queue operations the worker needs.
// Implemented by storage.Store.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	SetProfile(userKey, summary string) error
}

// Completer is the generation call used to summarize taste.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Worker processes profile_refresh jobs from the SQLite job queue.
type Worker struct {
	store     JobStore
	completer Completer
	poll      time.Duration
	logger    *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 2s.
func NewWorker(store JobStore, completer Completer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Worker{
		store:     store,
		completer: completer,
		poll:      pollInterval,
		logger:    slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("profile worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job
// was processed, so the caller can poll again immediately.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeRefresh})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.process(ctx, job); err != nil {
		w.logger.Warn("profile refresh failed", "job", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			return true, fmt.Errorf("recording job failure: %w", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job: %w", err)
	}
	return true, nil
}

func (w *Worker) process(ctx context.Context, job *storage.Job) error {
	var payload refreshPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}
	if payload.UserKey == "" {
		return fmt.Errorf("payload missing userKey")
	}

	summary, err := w.summarize(ctx, payload)
	if err != nil {
		return err
	}

	if err := w.store.SetProfile(payload.UserKey, summary); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	w.logger.Info("taste profile refreshed", "user", payload.UserKey, "chars", len(summary))
	return nil
}

func (w *Worker) summarize(ctx context.Context, payload refreshPayload) (string, error) {
	if len(payload.Liked) == 0 {
		// Nothing rated highly yet; a short generic profile still beats
		// re-queuing forever.
		return "New viewer with no strong rating signal yet; lean on broad, well-reviewed picks across genres.", nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	raw, err := w.completer.Complete(ctx, buildSummaryPrompt(payload.Liked))
	if err != nil {
		return "", fmt.Errorf("summarizing taste: %w", err)
	}

	summary := strings.TrimSpace(raw)
	if summary == "" {
		return "", fmt.Errorf("generator returned empty summary")
	}
	return summary, nil
}

// buildSummaryPrompt asks for a compact prose description of the viewer's
// taste from their highest-rated titles.
func buildSummaryPrompt(liked []likedTitle) string {
	var sb strings.Builder
	sb.WriteString("Describe this viewer's movie and TV taste in 3 to 5 plain sentences, based on titles they rated highly. ")
	sb.WriteString("Mention recurring genres, tones, and eras. Respond with prose only, no lists or headers.\n\nHighly rated titles:\n")
	for _, t := range liked {
		if t.Year > 0 {
			fmt.Fprintf(&sb, "- %s (%d, %s)\n", t.Title, t.Year, t.MediaType)
		} else {
			fmt.Fprintf(&sb, "- %s (%s)\n", t.Title, t.MediaType)
		}
	}
	return sb.String()
}
