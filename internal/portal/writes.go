package portal

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"pecportal/internal/clubs"
	"pecportal/internal/events"
	"pecportal/internal/ids"
	"pecportal/internal/notices"
	"pecportal/internal/profiles"
	"pecportal/internal/syncstate"
)

// remoteWriteTimeout bounds one background write.
const remoteWriteTimeout = 30 * time.Second

const dateLayout = "2006-01-02"

func today() string {
	return time.Now().Format(dateLayout)
}

// PostNotice prepends n to the notice board and persists it in the background.
func (a *App) PostNotice(ctx context.Context, n notices.Notice) (notices.Notice, error) {
	n.Title = strings.TrimSpace(n.Title)
	n.Content = strings.TrimSpace(n.Content)
	if n.Title == "" {
		return notices.Notice{}, invalid("title is required")
	}
	if n.Content == "" {
		return notices.Notice{}, invalid("content is required")
	}
	if n.Category == "" {
		n.Category = notices.CategoryGeneral
	}
	if !n.Category.Valid() {
		return notices.Notice{}, invalid("category %q is not supported", n.Category)
	}
	if n.Date == "" {
		n.Date = today()
	}
	if n.ID == "" {
		n.ID = ids.NewTemporary()
	}
	n.CreatedAt = time.Now().UTC()
	n.SyncState = syncstate.Pending

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return notices.Notice{}, ErrClosed
	}
	if !CapabilitiesFor(a.user).CanPost {
		err := deny(a.user, "post notices")
		a.mu.Unlock()
		return notices.Notice{}, err
	}
	a.notices = append([]notices.Notice{n}, a.notices...)
	a.persistLocked(KindNotice, n.ID, n)
	a.mu.Unlock()
	return n, nil
}

// PostEvent prepends e to the events list and persists it in the background.
// The organizer defaults to the poster's name.
func (a *App) PostEvent(ctx context.Context, e events.Event) (events.Event, error) {
	e.Title = strings.TrimSpace(e.Title)
	e.Location = strings.TrimSpace(e.Location)
	if e.Title == "" {
		return events.Event{}, invalid("title is required")
	}
	if strings.TrimSpace(e.Date) == "" {
		return events.Event{}, invalid("date is required")
	}
	if e.Location == "" {
		return events.Event{}, invalid("location is required")
	}
	if e.RegisteredCount < 0 {
		return events.Event{}, invalid("registered count cannot be negative")
	}
	if e.ID == "" {
		e.ID = ids.NewTemporary()
	}
	e.CreatedAt = time.Now().UTC()
	e.SyncState = syncstate.Pending

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return events.Event{}, ErrClosed
	}
	if !CapabilitiesFor(a.user).CanPost {
		err := deny(a.user, "post events")
		a.mu.Unlock()
		return events.Event{}, err
	}
	if strings.TrimSpace(e.Organizer) == "" {
		e.Organizer = a.user.Name
	}
	a.events = append([]events.Event{e}, a.events...)
	a.persistLocked(KindEvent, e.ID, e)
	a.mu.Unlock()
	return e, nil
}

// AddClubMember appends a member to the lead's club roster.
func (a *App) AddClubMember(ctx context.Context, name string, role clubs.MemberRole) (clubs.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return clubs.Member{}, invalid("member name is required")
	}
	if role == "" {
		role = clubs.MemberRoleMember
	}
	if role != clubs.MemberRoleMember && role != clubs.MemberRoleExecutive {
		return clubs.Member{}, invalid("member role %q is not supported", role)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return clubs.Member{}, ErrClosed
	}
	if !CapabilitiesFor(a.user).CanManageClub {
		return clubs.Member{}, deny(a.user, "manage club members")
	}

	m := clubs.Member{
		ID:        ids.NewTemporary(),
		ClubID:    a.user.ClubID,
		Name:      name,
		Role:      role,
		Status:    clubs.StatusActive,
		JoinedOn:  today(),
		SyncState: syncstate.Pending,
		CreatedAt: time.Now().UTC(),
	}
	a.roster = append(a.roster, m)
	a.persistLocked(KindClubMember, m.ID, m)
	return m, nil
}

// RequestJoinClub records a pending membership for the signed-in user.
// Repeated requests for the same club return the first one.
func (a *App) RequestJoinClub(ctx context.Context, clubID string) (clubs.Member, error) {
	clubID = strings.TrimSpace(clubID)
	if clubID == "" {
		return clubs.Member{}, invalid("club is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return clubs.Member{}, ErrClosed
	}
	if a.user == nil {
		return clubs.Member{}, deny(nil, "join clubs")
	}
	if existing, ok := a.joinRequests[clubID]; ok {
		return existing, nil
	}

	profileID := a.user.ID
	m := clubs.Member{
		ID:        ids.NewTemporary(),
		ClubID:    clubID,
		ProfileID: &profileID,
		Name:      a.user.Name,
		Role:      clubs.MemberRoleMember,
		Status:    clubs.StatusPending,
		JoinedOn:  today(),
		SyncState: syncstate.Pending,
		CreatedAt: time.Now().UTC(),
	}
	a.joinRequests[clubID] = m
	a.persistLocked(KindClubMember, m.ID, m)
	return m, nil
}

// JoinRequest returns the user's pending request for clubID, if any.
func (a *App) JoinRequest(clubID string) (clubs.Member, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.joinRequests[clubID]
	return m, ok
}

// UpdateClubDescription edits the lead's club description.
func (a *App) UpdateClubDescription(ctx context.Context, description string) (clubs.Club, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return clubs.Club{}, invalid("description is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return clubs.Club{}, ErrClosed
	}
	if !CapabilitiesFor(a.user).CanManageClub {
		return clubs.Club{}, deny(a.user, "edit the club")
	}

	clubID := a.user.ClubID
	club := a.updateClubLocked(clubID, func(c *clubs.Club) { c.Description = description })
	a.persistLocked(KindClubDescription, clubID, clubFieldPatch{ClubID: clubID, Value: description})
	return club, nil
}

// MentorClub records the signed-in faculty member as mentor of clubID.
func (a *App) MentorClub(ctx context.Context, clubID string) (clubs.Club, error) {
	clubID = strings.TrimSpace(clubID)
	if clubID == "" {
		return clubs.Club{}, invalid("club is required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return clubs.Club{}, ErrClosed
	}
	if !CapabilitiesFor(a.user).CanMentor {
		return clubs.Club{}, deny(a.user, "mentor clubs")
	}

	mentor := a.user.Name
	club := a.updateClubLocked(clubID, func(c *clubs.Club) { c.Mentor = &mentor })
	a.persistLocked(KindClubMentor, clubID, clubFieldPatch{ClubID: clubID, Value: mentor})
	return club, nil
}

// updateClubLocked applies fn to the local copies of a club and returns the result.
func (a *App) updateClubLocked(clubID string, fn func(*clubs.Club)) clubs.Club {
	updated := clubs.Club{ID: clubID}
	found := false
	for i := range a.clubs {
		if a.clubs[i].ID == clubID {
			fn(&a.clubs[i])
			updated = a.clubs[i]
			found = true
		}
	}
	if a.selectedClub != nil && a.selectedClub.ID == clubID {
		fn(a.selectedClub)
		if !found {
			updated = *a.selectedClub
			found = true
		}
	}
	if !found {
		fn(&updated)
	}
	return updated
}

// persistLocked writes value to the store in the background. A failed write
// keeps the local entry, marks it unsynced and queues it for replay.
func (a *App) persistLocked(kind WriteKind, entityID string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		a.logger.Error("encode remote write", "kind", kind, "entity_id", entityID, "error", err)
		return
	}

	w := PendingWrite{
		ClientID:   a.clientID,
		Kind:       kind,
		EntityID:   entityID,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	a.wg.Add(1)
	go a.persist(w)
}

func (a *App) persist(w PendingWrite) {
	defer a.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
	defer cancel()

	err := a.deps.Writer.Apply(a.remoteContext(ctx), w)
	if err == nil {
		a.deps.Metrics.RemoteWrite(string(w.Kind), "ok")
		a.markSynced(w.Kind, w.EntityID, syncstate.Synced)
		return
	}

	a.deps.Metrics.RemoteWrite(string(w.Kind), "failed")
	a.logger.Error("remote write failed", "kind", w.Kind, "entity_id", w.EntityID, "error", err)
	a.markSynced(w.Kind, w.EntityID, syncstate.Unsynced)

	w.Attempts = 1
	if err := a.deps.Outbox.Push(context.Background(), w); err != nil {
		a.logger.Error("queue remote write failed", "kind", w.Kind, "entity_id", w.EntityID, "error", err)
	}
}

// markSynced sets the sync state of the local entry behind a write.
// Club field edits carry no per-entry state.
func (a *App) markSynced(kind WriteKind, entityID string, state syncstate.State) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch kind {
	case KindNotice:
		for i := range a.notices {
			if a.notices[i].ID == entityID {
				a.notices[i].SyncState = state
			}
		}
	case KindEvent:
		for i := range a.events {
			if a.events[i].ID == entityID {
				a.events[i].SyncState = state
			}
		}
	case KindClubMember:
		for i := range a.roster {
			if a.roster[i].ID == entityID {
				a.roster[i].SyncState = state
			}
		}
		for clubID, m := range a.joinRequests {
			if m.ID == entityID {
				m.SyncState = state
				a.joinRequests[clubID] = m
			}
		}
	}
}

// userClubID returns the club managed by the current user.
func (a *App) userClubID() (string, *profiles.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return "", nil
	}
	u := *a.user
	return u.ClubID, &u
}
