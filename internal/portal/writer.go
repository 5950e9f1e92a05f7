package portal

import (
	"context"
	"encoding/json"
	"fmt"

	"pecportal/internal/clubs"
	"pecportal/internal/events"
	"pecportal/internal/notices"
)

// RemoteWriter applies pending writes to the data store repositories.
type RemoteWriter struct {
	notices notices.Repository
	events  events.Repository
	clubs   clubs.Repository
}

// NewRemoteWriter constructs a RemoteWriter.
func NewRemoteWriter(n notices.Repository, e events.Repository, c clubs.Repository) *RemoteWriter {
	return &RemoteWriter{notices: n, events: e, clubs: c}
}

type clubFieldPatch struct {
	ClubID string `json:"clubId"`
	Value  string `json:"value"`
}

// Apply decodes w and performs it with the credentials carried by ctx. Inserts ignore rows that already exist,
// so a write replayed after an ambiguous failure is not duplicated.
func (rw *RemoteWriter) Apply(ctx context.Context, w PendingWrite) error {
	switch w.Kind {
	case KindNotice:
		var n notices.Notice
		if err := json.Unmarshal(w.Payload, &n); err != nil {
			return fmt.Errorf("decode notice: %w", err)
		}
		return rw.notices.Insert(ctx, n)
	case KindEvent:
		var e events.Event
		if err := json.Unmarshal(w.Payload, &e); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		return rw.events.Insert(ctx, e)
	case KindClubMember:
		var m clubs.Member
		if err := json.Unmarshal(w.Payload, &m); err != nil {
			return fmt.Errorf("decode club member: %w", err)
		}
		return rw.clubs.AddMember(ctx, m)
	case KindClubDescription:
		var p clubFieldPatch
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return fmt.Errorf("decode club description: %w", err)
		}
		return rw.clubs.UpdateDescription(ctx, p.ClubID, p.Value)
	case KindClubMentor:
		var p clubFieldPatch
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return fmt.Errorf("decode club mentor: %w", err)
		}
		return rw.clubs.SetMentor(ctx, p.ClubID, p.Value)
	default:
		return fmt.Errorf("unknown write kind %q", w.Kind)
	}
}
