package profiles

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when no profile row matches.
var ErrNotFound = errors.New("profile not found")

// Role gates which views a user may open.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleLead    Role = "lead"
	RoleStudent Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleLead, RoleStudent:
		return true
	default:
		return false
	}
}

// DefaultLeadClubID is assigned to leads who sign up before an admin links them to a club.
const DefaultLeadClubID = "c1"

// Departments lists the campus departments offered at signup.
var Departments = []string{
	"Computer Science",
	"Electronics & Communication",
	"Electrical & Electronics",
	"Mechanical Engineering",
	"Civil Engineering",
}

// Profile is the remote profile row, created by the backend at signup.
type Profile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Role       Role      `json:"role"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	ClubID     *string   `json:"clubId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User is the application's read-only mirror of a profile.
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	Email      string `json:"email"`
	Department string `json:"department"`
	ClubID     string `json:"clubId,omitempty"`
}

// ToUser builds the application user, using fallbackEmail when the row has none.
func (p Profile) ToUser(fallbackEmail string) User {
	email := p.Email
	if strings.TrimSpace(email) == "" {
		email = fallbackEmail
	}
	user := User{
		ID:         p.ID,
		Name:       p.Name,
		Role:       p.Role,
		Email:      email,
		Department: p.Department,
	}
	if p.ClubID != nil {
		user.ClubID = *p.ClubID
	}
	return user
}

// ListOptions narrows a directory listing. Zero values match everything.
type ListOptions struct {
	Role       Role
	Department string
	Query      string
	ClubID     string
}

// Matches applies opts to p the way the directory search does: exact role,
// department and club, and a case-insensitive substring over name and email.
func (opts ListOptions) Matches(p Profile) bool {
	if opts.Role != "" && p.Role != opts.Role {
		return false
	}
	if opts.Department != "" && p.Department != opts.Department {
		return false
	}
	if opts.ClubID != "" && (p.ClubID == nil || *p.ClubID != opts.ClubID) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(opts.Query)); q != "" {
		return strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Email), q)
	}
	return true
}
