// Package backend builds the mirror a worker writes expenses to.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"gastos/internal/sheets"
	gsheet "gastos/internal/sheets/google"
	"gastos/internal/sheets/memory"
)

// MirrorType selects where mirrored expenses go.
type MirrorType string

const (
	MemoryMirror MirrorType = "memory"
	SheetsMirror MirrorType = "sheets"
)

func (t MirrorType) String() string {
	return string(t)
}

// IsValid returns true if the mirror type is known.
func (t MirrorType) IsValid() bool {
	switch t {
	case MemoryMirror, SheetsMirror:
		return true
	default:
		return false
	}
}

// Config holds what the mirror types need.
type Config struct {
	Type MirrorType

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// sheetsFactory is swapped in tests to avoid Google credentials.
var sheetsFactory = func(ctx context.Context, spreadsheetID, sheet string) (sheets.ExpenseMirror, error) {
	return gsheet.New(ctx, spreadsheetID, sheet)
}

// NewMirror creates the mirror selected by cfg.Type.
func NewMirror(ctx context.Context, cfg Config, logger *slog.Logger) (sheets.ExpenseMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("invalid mirror type: %q", cfg.Type)
	}

	switch cfg.Type {
	case SheetsMirror:
		m, err := sheetsFactory(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets mirror: %w", err)
		}
		logger.Info("Initialized Google Sheets mirror",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
		return m, nil
	default:
		logger.Info("Initialized in-memory mirror")
		return memory.New(), nil
	}
}
