package migrate

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestExistingTablesSortsMatches(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT tablename FROM pg_tables").
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("profiles").AddRow("clubs"))

	found, err := existingTables(context.Background(), db, coreTables)
	if err != nil {
		t.Fatalf("existingTables: %v", err)
	}
	if strings.Join(found, ",") != "clubs,profiles" {
		t.Fatalf("unexpected tables %v", found)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdoptHostedSchemaSkipsFreshDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT tablename FROM pg_tables").WillReturnRows(sqlmock.NewRows([]string{"tablename"}))

	if err := adoptHostedSchema(context.Background(), db, discardLogger()); err != nil {
		t.Fatalf("adoptHostedSchema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdoptHostedSchemaRejectsPartialSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT tablename FROM pg_tables").
		WillReturnRows(sqlmock.NewRows([]string{"tablename"}).AddRow("profiles"))

	err = adoptHostedSchema(context.Background(), db, discardLogger())
	if err == nil || !strings.Contains(err.Error(), "partial portal schema, found only profiles") {
		t.Fatalf("expected partial schema error, got %v", err)
	}
}

func TestGooseLoggerWritesThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	l := gooseSlogLogger{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Printf("OK   00001_baseline.sql (%s)\n", "12ms")
	l.Fatalf("failed to run migration %d", 2)

	out := buf.String()
	if !strings.Contains(out, "OK   00001_baseline.sql (12ms)") || !strings.Contains(out, "component=goose") {
		t.Fatalf("unexpected debug output %q", out)
	}
	if !strings.Contains(out, "level=ERROR") {
		t.Fatalf("expected error level for Fatalf, got %q", out)
	}
}
