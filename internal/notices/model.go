package notices

import (
	"time"

	"pecportal/internal/syncstate"
)

// Category classifies a notice on the board.
type Category string

const (
	CategoryGeneral Category = "general"
	CategoryExam    Category = "exam"
	CategoryEvent   Category = "event"
	CategoryUrgent  Category = "urgent"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryExam, CategoryEvent, CategoryUrgent:
		return true
	default:
		return false
	}
}

// Notice is a campus announcement.
type Notice struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Date      string          `json:"date"`
	Category  Category        `json:"category"`
	SyncState syncstate.State `json:"syncState,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
