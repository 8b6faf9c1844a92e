package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	if err := notFound(pgx.ErrNoRows); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	other := errors.New("timeout")
	if err := notFound(other); err != other {
		t.Errorf("Expected error to pass through, got %v", err)
	}
}

func TestNullString(t *testing.T) {
	if nullString("") != nil {
		t.Error("Expected nil for empty string")
	}
	if v := nullString("tx"); v == nil || *v != "tx" {
		t.Errorf("Expected pointer to tx, got %v", v)
	}
}
