package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"pecportal/internal/clubs"
)

// RosterStore is the club roster an import appends to.
type RosterStore interface {
	Members(ctx context.Context) ([]clubs.Member, error)
	Add(ctx context.Context, name string, role clubs.MemberRole) (clubs.Member, error)
}

type Summary struct {
	TotalRows         int             `json:"totalRows"`
	Imported          int             `json:"imported"`
	SkippedDuplicates []SkippedRecord `json:"skippedDuplicates"`
	Failed            []FailedRecord  `json:"failed"`
	TruncatedRecords  bool            `json:"truncatedRecords,omitempty"`
}

type SkippedRecord struct {
	Row    int    `json:"row"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

type FailedRecord struct {
	Row   int    `json:"row"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

var ErrInvalidCSV = errors.New("invalid csv upload")

// MaxImportRows limits the number of data rows processed per CSV import.
const MaxImportRows = 500

// MaxFailedRecords caps the failed/skipped records kept in the summary.
const MaxFailedRecords = 100

var requiredColumns = []string{"name"}

// CSVImporter adds club members from a CSV upload. The roster export is a
// valid import file: unknown columns such as id or schemaVersion are ignored.
type CSVImporter struct {
	roster RosterStore
}

func NewCSVImporter(roster RosterStore) *CSVImporter {
	return &CSVImporter{roster: roster}
}

// Import reads the whole upload before adding anyone, so a malformed or
// oversized file leaves the roster untouched.
func (i *CSVImporter) Import(ctx context.Context, reader io.Reader) (Summary, error) {
	if i.roster == nil {
		return Summary{}, fmt.Errorf("%w: roster is not configured", ErrInvalidCSV)
	}

	rows, err := readRows(reader)
	if err != nil {
		return Summary{}, err
	}

	existing, err := i.roster.Members(ctx)
	if err != nil {
		return Summary{}, err
	}
	seen := newNameSet(existing)

	summary := Summary{TotalRows: len(rows)}
	for _, row := range rows {
		name := row.get("name")
		role, err := parseRole(row.get("role"))
		switch {
		case err != nil:
			summary.fail(row.line, name, err)
			continue
		case name == "":
			summary.fail(row.line, name, errors.New("name is required"))
			continue
		case strings.EqualFold(row.get("status"), string(clubs.StatusPending)):
			summary.skip(row.line, name, "pending join request")
			continue
		case seen.has(name):
			summary.skip(row.line, name, "duplicate name")
			continue
		}

		if _, err := i.roster.Add(ctx, name, role); err != nil {
			summary.fail(row.line, name, err)
			continue
		}
		seen.add(name)
		summary.Imported++
	}
	return summary, nil
}

// csvRow is one non-blank data row keyed by lower-case column name.
type csvRow struct {
	line   int
	values map[string]string
}

func (r csvRow) get(column string) string {
	return strings.TrimSpace(r.values[column])
}

func readRows(reader io.Reader) ([]csvRow, error) {
	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header", ErrInvalidCSV)
	}
	columns, err := headerColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []csvRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read row %d", ErrInvalidCSV, line)
		}

		row := csvRow{line: line, values: make(map[string]string, len(columns))}
		blank := true
		for idx, value := range record {
			column, ok := columns[idx]
			if !ok {
				continue
			}
			row.values[column] = value
			if strings.TrimSpace(value) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if len(rows) == MaxImportRows {
			return nil, fmt.Errorf("%w: CSV exceeds maximum of %d rows", ErrInvalidCSV, MaxImportRows)
		}
		rows = append(rows, row)
	}
}

func (s *Summary) fail(row int, name string, err error) {
	if len(s.Failed) >= MaxFailedRecords {
		s.TruncatedRecords = true
		return
	}
	s.Failed = append(s.Failed, FailedRecord{Row: row, Name: name, Error: err.Error()})
}

func (s *Summary) skip(row int, name, reason string) {
	if len(s.SkippedDuplicates) >= MaxFailedRecords {
		s.TruncatedRecords = true
		return
	}
	s.SkippedDuplicates = append(s.SkippedDuplicates, SkippedRecord{Row: row, Name: name, Reason: reason})
}

func parseRole(value string) (clubs.MemberRole, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "member":
		return clubs.MemberRoleMember, nil
	case "executive":
		return clubs.MemberRoleExecutive, nil
	default:
		return "", fmt.Errorf("role must be Member or Executive")
	}
}

// headerColumns maps column positions to lower-case names, ignoring a UTF-8 BOM.
func headerColumns(header []string) (map[int]string, error) {
	columns := make(map[int]string, len(header))
	present := make(map[string]bool, len(header))
	for idx, raw := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if name == "" {
			continue
		}
		columns[idx] = name
		present[name] = true
	}

	var missing []string
	for _, column := range requiredColumns {
		if !present[column] {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", ErrInvalidCSV, strings.Join(missing, ", "))
	}
	return columns, nil
}

// nameSet matches member names case-insensitively with collapsed whitespace.
// Pending join requests do not count as roster names.
type nameSet map[string]struct{}

func newNameSet(members []clubs.Member) nameSet {
	set := nameSet{}
	for _, m := range members {
		if m.Status != clubs.StatusPending {
			set.add(m.Name)
		}
	}
	return set
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func (s nameSet) has(name string) bool {
	_, ok := s[nameKey(name)]
	return ok
}

func (s nameSet) add(name string) {
	if key := nameKey(name); key != "" {
		s[key] = struct{}{}
	}
}
