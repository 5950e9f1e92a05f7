package events

import (
	"time"

	"pecportal/internal/syncstate"
)

// Event is a campus event, organised by a club or a campus body.
type Event struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Date            string          `json:"date"`
	Location        string          `json:"location"`
	Organizer       string          `json:"organizer"`
	ImageURL        *string         `json:"imageUrl,omitempty"`
	RegisteredCount int             `json:"registeredCount"`
	Category        string          `json:"category,omitempty"`
	SyncState       syncstate.State `json:"syncState,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// OrganizedBy returns the events in list whose organizer equals name, keeping order.
func OrganizedBy(list []Event, name string) []Event {
	out := make([]Event, 0)
	for _, e := range list {
		if e.Organizer == name {
			out = append(out, e)
		}
	}
	return out
}
