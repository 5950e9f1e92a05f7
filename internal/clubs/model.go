package clubs

import (
	"errors"
	"time"

	"pecportal/internal/syncstate"
)

// ErrNotFound is returned when a club does not exist.
var ErrNotFound = errors.New("club not found")

// Club is a student club. MemberCount is derived from affiliated profiles, never stored.
type Club struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	LogoInitial string  `json:"logoInitial"`
	MemberCount int     `json:"memberCount"`
	Mentor      *string `json:"mentor,omitempty"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
}

// MemberRole is a member's position in the club roster.
type MemberRole string

const (
	MemberRoleMember    MemberRole = "Member"
	MemberRoleExecutive MemberRole = "Executive"
)

// MemberStatus distinguishes confirmed members from join requests.
type MemberStatus string

const (
	StatusActive  MemberStatus = "active"
	StatusPending MemberStatus = "pending"
)

// Member is one entry of a club roster.
type Member struct {
	ID        string          `json:"id"`
	ClubID    string          `json:"clubId"`
	ProfileID *string         `json:"profileId,omitempty"`
	Name      string          `json:"name"`
	Role      MemberRole      `json:"role"`
	Status    MemberStatus    `json:"status"`
	JoinedOn  string          `json:"joined"`
	SyncState syncstate.State `json:"syncState,omitempty"`
	CreatedAt time.Time       `json:"-"`
}
