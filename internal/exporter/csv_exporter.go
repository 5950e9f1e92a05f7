package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"pecportal/internal/clubs"
	"pecportal/internal/profiles"
)

// SchemaVersion identifies the CSV export format version.
// Increment it when adding columns or changing the format.
const SchemaVersion = "1"

// studentColumns defines the column order of the student directory export.
var studentColumns = []string{
	"schemaVersion",
	"id",
	"name",
	"email",
	"department",
	"role",
	"clubId",
	"createdAt",
}

// rosterColumns defines the column order of the club roster export.
var rosterColumns = []string{
	"schemaVersion",
	"id",
	"name",
	"role",
	"status",
	"joined",
}

// CSVExporter writes directory listings as CSV.
type CSVExporter struct{}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ExportStudents writes the dashboard's filtered student list.
func (e *CSVExporter) ExportStudents(w io.Writer, students []profiles.Profile) error {
	rows := make([][]string, 0, len(students))
	for _, p := range students {
		rows = append(rows, e.studentToRow(p))
	}
	return writeAll(w, studentColumns, rows)
}

// ExportRoster writes a club's member roster.
func (e *CSVExporter) ExportRoster(w io.Writer, members []clubs.Member) error {
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{SchemaVersion, m.ID, m.Name, string(m.Role), string(m.Status), m.JoinedOn})
	}
	return writeAll(w, rosterColumns, rows)
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// studentToRow converts a profile to a CSV row following the column order.
func (e *CSVExporter) studentToRow(p profiles.Profile) []string {
	row := make([]string, len(studentColumns))

	row[0] = SchemaVersion
	row[1] = p.ID
	row[2] = p.Name
	row[3] = p.Email
	row[4] = p.Department
	row[5] = string(p.Role)
	row[6] = formatOptionalString(p.ClubID)
	row[7] = formatTime(p.CreatedAt)

	return row
}

// formatOptionalString formats an optional string pointer.
func formatOptionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// formatTime formats a time to RFC3339 string.
func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format(time.RFC3339)
}
