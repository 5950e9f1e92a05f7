package portal

import "pecportal/internal/profiles"

// View is one screen of the portal.
type View string

const (
	ViewHome       View = "home"
	ViewEvents     View = "events"
	ViewClubs      View = "clubs"
	ViewClubDetail View = "club-detail"
	ViewDashboard  View = "dashboard"
	ViewMyClub     View = "my-club"
)

var knownViews = map[View]struct{}{
	ViewHome:       {},
	ViewEvents:     {},
	ViewClubs:      {},
	ViewClubDetail: {},
	ViewDashboard:  {},
	ViewMyClub:     {},
}

// viewRoles lists the roles allowed into guarded views. Unlisted views are open to everyone.
var viewRoles = map[View][]profiles.Role{
	ViewDashboard: {profiles.RoleAdmin, profiles.RoleFaculty},
	ViewMyClub:    {profiles.RoleLead},
}

// Navigation is the outcome of a navigation request.
type Navigation struct {
	View        View   `json:"view"`
	Requested   string `json:"requested"`
	ScrollReset bool   `json:"scrollReset"`
	Reason      string `json:"reason,omitempty"`

	// Denied is set when a guarded view was refused.
	Denied *PermissionDeniedError `json:"-"`
}

// Authorize reports whether user may open view. A nil user is anonymous.
func Authorize(user *profiles.User, view View) error {
	roles, guarded := viewRoles[view]
	if !guarded {
		return nil
	}
	if user != nil && hasRole(user, roles...) {
		return nil
	}
	return deny(user, "open "+string(view))
}

// Route maps a requested view to the view that is actually shown.
// Guarded views fall back to home, club-detail without a selected club falls
// back to clubs, and unknown views go home. Every transition resets scroll.
func Route(user *profiles.User, requested string, clubSelected bool) Navigation {
	nav := Navigation{View: ViewHome, Requested: requested, ScrollReset: true}

	view := View(requested)
	if _, ok := knownViews[view]; !ok {
		nav.Reason = "unknown view"
		return nav
	}

	if err := Authorize(user, view); err != nil {
		pd := err.(*PermissionDeniedError)
		nav.Denied = pd
		nav.Reason = pd.Error()
		return nav
	}

	if view == ViewClubDetail && !clubSelected {
		nav.View = ViewClubs
		nav.Reason = "no club selected"
		return nav
	}

	nav.View = view
	return nav
}

func hasRole(user *profiles.User, roles ...profiles.Role) bool {
	if user == nil {
		return false
	}
	for _, r := range roles {
		if user.Role == r {
			return true
		}
	}
	return false
}

// Capabilities are the role-dependent actions offered to a user.
type Capabilities struct {
	CanPost          bool `json:"canPost"`
	CanMentor        bool `json:"canMentor"`
	CanManageMembers bool `json:"canManageMembers"`
	CanJoinClubs     bool `json:"canJoinClubs"`
	CanViewDashboard bool `json:"canViewDashboard"`
	CanManageClub    bool `json:"canManageClub"`
}

// CapabilitiesFor derives the capabilities of user. A nil user has none.
func CapabilitiesFor(user *profiles.User) Capabilities {
	return Capabilities{
		CanPost:          hasRole(user, profiles.RoleAdmin, profiles.RoleFaculty, profiles.RoleLead),
		CanMentor:        hasRole(user, profiles.RoleFaculty),
		CanManageMembers: hasRole(user, profiles.RoleAdmin, profiles.RoleLead),
		CanJoinClubs:     user != nil,
		CanViewDashboard: Authorize(user, ViewDashboard) == nil,
		CanManageClub:    Authorize(user, ViewMyClub) == nil && user.ClubID != "",
	}
}
