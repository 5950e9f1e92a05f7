package portal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"pecportal/internal/clubs"
	"pecportal/internal/events"
	"pecportal/internal/exporter"
	"pecportal/internal/feedback"
	"pecportal/internal/importer"
	"pecportal/internal/profiles"
	"pecportal/internal/syncstate"
)

// AllDepartments selects every department in a directory query.
const AllDepartments = "All"

// DirectoryQuery filters the student directory.
type DirectoryQuery struct {
	Department string `json:"department"`
	Query      string `json:"query"`
}

// DirectoryStats summarise the campus on the dashboard.
type DirectoryStats struct {
	TotalStudents   int `json:"totalStudents"`
	Matching        int `json:"matching"`
	DepartmentCount int `json:"departmentCount"`
	ClubCount       int `json:"clubCount"`
}

// Directory is the dashboard's student listing.
type Directory struct {
	Students []profiles.Profile `json:"students"`
	Stats    DirectoryStats     `json:"stats"`
}

// Directory lists students matching q. Only admins and faculty may search it.
func (a *App) Directory(ctx context.Context, q DirectoryQuery) (Directory, error) {
	user := a.User()
	if err := Authorize(user, ViewDashboard); err != nil {
		return Directory{}, err
	}
	ctx = a.remoteContext(ctx)

	opts := profiles.ListOptions{Role: profiles.RoleStudent, Query: q.Query}
	if d := strings.TrimSpace(q.Department); d != "" && d != AllDepartments {
		opts.Department = d
	}
	students, err := a.deps.Profiles.List(ctx, opts)
	if err != nil {
		return Directory{}, fmt.Errorf("list students: %w", err)
	}

	total := len(students)
	if opts != (profiles.ListOptions{Role: profiles.RoleStudent}) {
		all, err := a.deps.Profiles.List(ctx, profiles.ListOptions{Role: profiles.RoleStudent})
		if err != nil {
			return Directory{}, fmt.Errorf("count students: %w", err)
		}
		total = len(all)
	}

	clubCount := len(a.Clubs())
	if clubCount == 0 {
		if list, err := a.deps.Clubs.List(ctx); err == nil {
			clubCount = len(list)
		} else {
			a.logger.Warn("count clubs failed", "error", err)
		}
	}

	return Directory{
		Students: students,
		Stats: DirectoryStats{
			TotalStudents:   total,
			Matching:        len(students),
			DepartmentCount: len(profiles.Departments),
			ClubCount:       clubCount,
		},
	}, nil
}

// ExportDirectory writes the students matching q as CSV.
func (a *App) ExportDirectory(ctx context.Context, w io.Writer, q DirectoryQuery) error {
	dir, err := a.Directory(ctx, q)
	if err != nil {
		return err
	}
	return exporter.NewCSVExporter().ExportStudents(w, dir.Students)
}

// MyClubView is the lead's club page.
type MyClubView struct {
	Club   clubs.Club     `json:"club"`
	Roster []clubs.Member `json:"roster"`
	Events []events.Event `json:"events"`
}

// MyClub loads the lead's club with its roster. Members added locally that
// the store has not confirmed yet are listed after the stored roster.
func (a *App) MyClub(ctx context.Context) (MyClubView, error) {
	clubID, user := a.userClubID()
	if err := Authorize(user, ViewMyClub); err != nil {
		return MyClubView{}, err
	}
	if clubID == "" {
		return MyClubView{}, deny(user, "manage a club without an assigned club")
	}
	ctx = a.remoteContext(ctx)

	club, err := a.deps.Clubs.Get(ctx, clubID)
	if err != nil {
		return MyClubView{}, fmt.Errorf("load club %s: %w", clubID, err)
	}
	remote, err := a.deps.Clubs.Repository().Members(ctx, clubID)
	if err != nil {
		return MyClubView{}, fmt.Errorf("load roster of %s: %w", clubID, err)
	}

	seen := make(map[string]struct{}, len(remote))
	roster := make([]clubs.Member, 0, len(remote))
	for _, m := range remote {
		seen[m.ID] = struct{}{}
		m.SyncState = syncstate.Synced
		roster = append(roster, m)
	}

	a.mu.Lock()
	kept := a.roster[:0]
	for _, m := range a.roster {
		if m.ClubID != clubID {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		kept = append(kept, m)
		roster = append(roster, m)
	}
	a.roster = kept
	a.mu.Unlock()

	return MyClubView{
		Club:   club,
		Roster: roster,
		Events: a.ClubEvents(club.Name),
	}, nil
}

// ExportRoster writes the lead's club roster as CSV.
func (a *App) ExportRoster(ctx context.Context, w io.Writer) error {
	view, err := a.MyClub(ctx)
	if err != nil {
		return err
	}
	return exporter.NewCSVExporter().ExportRoster(w, view.Roster)
}

// ImportRoster adds the members listed in a CSV upload to the lead's club.
// Each accepted row goes through AddClubMember, so imported members are
// optimistic writes like any other.
func (a *App) ImportRoster(ctx context.Context, r io.Reader) (importer.Summary, error) {
	return importer.NewCSVImporter(appRoster{a}).Import(ctx, r)
}

type appRoster struct{ app *App }

func (r appRoster) Members(ctx context.Context) ([]clubs.Member, error) {
	view, err := r.app.MyClub(ctx)
	if err != nil {
		return nil, err
	}
	return view.Roster, nil
}

func (r appRoster) Add(ctx context.Context, name string, role clubs.MemberRole) (clubs.Member, error) {
	return r.app.AddClubMember(ctx, name, role)
}

// ClubEvents returns the locally loaded events organised by the club called clubName.
func (a *App) ClubEvents(clubName string) []events.Event {
	return events.OrganizedBy(a.Events(), clubName)
}

// SubmitFeedback stores a rating from 1 to 5 with an optional comment.
// Anonymous feedback is accepted.
func (a *App) SubmitFeedback(ctx context.Context, rating int, comment string) (feedback.Entry, error) {
	if rating < 1 || rating > 5 {
		return feedback.Entry{}, invalid("rating must be between 1 and 5")
	}

	entry := feedback.Entry{
		ID:        uuid.NewString(),
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
		CreatedAt: time.Now().UTC(),
	}
	if user := a.User(); user != nil {
		id := user.ID
		entry.UserID = &id
	}

	if err := a.deps.Feedback.Create(a.remoteContext(ctx), entry); err != nil {
		return feedback.Entry{}, fmt.Errorf("store feedback: %w", err)
	}
	return entry, nil
}
