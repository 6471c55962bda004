package llmcall

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/promptpal/internal/optimizer"
)

// Recorder writes optimizer results to a Store.
type Recorder struct {
	store    *Store
	provider string
	logger   *slog.Logger
}

// NewRecorder creates a new recorder. A nil store makes Record a no-op.
func NewRecorder(store *Store, provider string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, provider: provider, logger: logger}
}

// Record stores res. Idle results are skipped; write failures are logged.
func (r *Recorder) Record(res optimizer.Result) {
	if r.store == nil || res.State == optimizer.StateIdle {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	call := FromResult(res, RecordOptions{Provider: r.provider})
	if err := r.store.Record(ctx, call); err != nil {
		r.logger.Warn("failed to record optimization", "error", err, "state", call.State)
	}
}

// Notifier adapts the recorder to an optimizer notification hook.
func (r *Recorder) Notifier() optimizer.Notifier {
	return r.Record
}
