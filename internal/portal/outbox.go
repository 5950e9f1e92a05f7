package portal

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"pecportal/internal/platform/metrics"
)

// MaxOutboxAttempts is the number of remote attempts after which a write is dropped.
const MaxOutboxAttempts = 5

// WriteKind names the remote operation behind a PendingWrite.
type WriteKind string

const (
	KindNotice          WriteKind = "notice"
	KindEvent           WriteKind = "event"
	KindClubMember      WriteKind = "club_member"
	KindClubDescription WriteKind = "club_description"
	KindClubMentor      WriteKind = "club_mentor"
)

// PendingWrite is a remote write that has not reached the store yet. It carries
// no credentials; replays borrow the owning client's session.
type PendingWrite struct {
	ClientID   string          `json:"clientId"`
	Kind       WriteKind       `json:"kind"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// Outbox queues failed writes for replay.
type Outbox interface {
	Push(ctx context.Context, w PendingWrite) error
	// PopBatch removes and returns up to n writes in FIFO order.
	PopBatch(ctx context.Context, n int) ([]PendingWrite, error)
	Len(ctx context.Context) (int, error)
}

// MemoryOutbox is a process-local Outbox.
type MemoryOutbox struct {
	mu    sync.Mutex
	queue []PendingWrite
}

// NewMemoryOutbox constructs an empty outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{}
}

// Push appends w.
func (o *MemoryOutbox) Push(_ context.Context, w PendingWrite) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, w)
	return nil
}

// PopBatch removes up to n writes from the head of the queue.
func (o *MemoryOutbox) PopBatch(_ context.Context, n int) ([]PendingWrite, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if n > len(o.queue) {
		n = len(o.queue)
	}
	batch := make([]PendingWrite, n)
	copy(batch, o.queue[:n])
	o.queue = o.queue[n:]
	return batch, nil
}

// Len returns the queue length.
func (o *MemoryOutbox) Len(_ context.Context) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue), nil
}

// Applier performs a PendingWrite against the remote store.
type Applier interface {
	Apply(ctx context.Context, w PendingWrite) error
}

// ReplayStats summarises one replay pass.
type ReplayStats struct {
	Synced  int
	Retried int
	Dropped int
}

// Owners connects queued writes back to the clients that made them.
type Owners interface {
	// RemoteContext attaches clientID's current credentials to ctx.
	RemoteContext(ctx context.Context, clientID string) context.Context
	MarkSynced(w PendingWrite)
}

// Replayer drains the outbox, re-applying writes until they succeed or run out of attempts.
type Replayer struct {
	outbox  Outbox
	applier Applier
	owners  Owners
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewReplayer constructs a Replayer. owners may be nil, in which case writes
// are replayed without credentials and nobody is told when they land.
func NewReplayer(outbox Outbox, applier Applier, logger *slog.Logger, m *metrics.Metrics, owners Owners) *Replayer {
	return &Replayer{outbox: outbox, applier: applier, owners: owners, logger: logger, metrics: m}
}

// ReplayOnce re-applies every write queued when the pass starts.
func (r *Replayer) ReplayOnce(ctx context.Context) (ReplayStats, error) {
	var stats ReplayStats

	n, err := r.outbox.Len(ctx)
	if err != nil || n == 0 {
		return stats, err
	}
	batch, err := r.outbox.PopBatch(ctx, n)
	if err != nil {
		return stats, err
	}

	for _, w := range batch {
		writeCtx := ctx
		if r.owners != nil {
			writeCtx = r.owners.RemoteContext(ctx, w.ClientID)
		}
		err := r.applier.Apply(writeCtx, w)
		if err == nil {
			stats.Synced++
			r.metrics.RemoteWrite(string(w.Kind), "ok")
			if r.owners != nil {
				r.owners.MarkSynced(w)
			}
			continue
		}

		r.metrics.RemoteWrite(string(w.Kind), "failed")
		w.Attempts++
		if w.Attempts >= MaxOutboxAttempts {
			stats.Dropped++
			r.logger.Error("dropping remote write after repeated failures",
				"kind", w.Kind, "entity_id", w.EntityID, "attempts", w.Attempts, "error", err)
			continue
		}
		if pushErr := r.outbox.Push(ctx, w); pushErr != nil {
			stats.Dropped++
			r.logger.Error("requeue remote write failed", "kind", w.Kind, "entity_id", w.EntityID, "error", pushErr)
			continue
		}
		stats.Retried++
	}

	if depth, err := r.outbox.Len(ctx); err == nil {
		r.metrics.SetOutboxDepth(depth)
	}
	return stats, nil
}

// Run replays the outbox every interval until ctx is cancelled.
func (r *Replayer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := r.ReplayOnce(ctx)
			if err != nil {
				r.logger.Warn("outbox replay failed", "error", err)
				continue
			}
			if stats != (ReplayStats{}) {
				r.logger.Info("outbox replayed", "synced", stats.Synced, "retried", stats.Retried, "dropped", stats.Dropped)
			}
		}
	}
}
