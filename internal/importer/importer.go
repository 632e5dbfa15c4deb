// Package importer loads flashcards into a deck from .xlsx or .csv files.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/abhisek/prepdeck/internal/flashcard"
)

// Config defines where the card fields live in the source file.
type Config struct {
	FilePath       string
	SheetName      string // .xlsx only; empty means the first sheet
	IDColumn       string
	FrontColumn    string
	BackColumn     string
	CategoryColumn string // optional
	SkipHeader     bool
}

// DefaultConfig expects id, front, back, category in columns A to D with
// a header row.
func DefaultConfig(path string) Config {
	return Config{
		FilePath:       path,
		IDColumn:       "A",
		FrontColumn:    "B",
		BackColumn:     "C",
		CategoryColumn: "D",
		SkipHeader:     true,
	}
}

// Result holds the outcome of an import.
type Result struct {
	Processed int
	Created   int
	Skipped   int // already in the deck
	Errors    []string
}

type columns struct {
	id, front, back, category int
}

// ImportDeck adds every row of cfg.FilePath to deck. Rows that fail
// validation are reported in Result.Errors and do not stop the import.
func ImportDeck(ctx context.Context, deck *flashcard.Deck, cfg Config, now time.Time) (*Result, error) {
	cols, err := resolveColumns(cfg)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(cfg.FilePath)) {
	case ".csv":
		rows, err = readCSV(cfg.FilePath)
	case ".xlsx", ".xlsm":
		rows, err = readExcel(cfg.FilePath, cfg.SheetName)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(cfg.FilePath))
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Errors: make([]string, 0)}
	for i, row := range rows {
		if i == 0 && cfg.SkipHeader {
			continue
		}
		if blank(row) {
			continue
		}
		result.Processed++

		card := flashcard.Card{
			ID:       cell(row, cols.id),
			Front:    cell(row, cols.front),
			Back:     cell(row, cols.back),
			Category: cell(row, cols.category),
		}
		_, err := deck.Add(ctx, card, now)
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, flashcard.ErrDuplicateCard):
			result.Skipped++
		default:
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
		}
	}
	return result, nil
}

func resolveColumns(cfg Config) (columns, error) {
	idx := func(name string, required bool) (int, error) {
		if name == "" {
			if required {
				return -1, fmt.Errorf("column is required")
			}
			return -1, nil
		}
		n, err := excelize.ColumnNameToNumber(name)
		if err != nil {
			return -1, fmt.Errorf("column %q: %w", name, err)
		}
		return n - 1, nil
	}

	var c columns
	var err error
	if c.id, err = idx(cfg.IDColumn, true); err != nil {
		return c, fmt.Errorf("id %w", err)
	}
	if c.front, err = idx(cfg.FrontColumn, true); err != nil {
		return c, fmt.Errorf("front %w", err)
	}
	if c.back, err = idx(cfg.BackColumn, true); err != nil {
		return c, fmt.Errorf("back %w", err)
	}
	if c.category, err = idx(cfg.CategoryColumn, false); err != nil {
		return c, fmt.Errorf("category %w", err)
	}
	return c, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
