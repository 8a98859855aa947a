// Package inventory reads the spreadsheet of part numbers and album URLs.
package inventory

import (
	"encoding/csv"
	"fmt"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	errs "albumzip/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// WorkItem is one album to export
type WorkItem struct {
	Identifier string
	AlbumURL   string
	// Row is the 1-based spreadsheet row the item came from
	Row int
}

// Options tells the reader where to find the work items
type Options struct {
	Sheet            string
	IdentifierColumn string
	URLColumn        string
	// Strict turns invalid rows into a load error instead of skipping them
	Strict bool
}

// RowError describes a row that was rejected during validation
type RowError struct {
	Row    int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// Inventory is the validated, read-only list of work items of one spreadsheet
type Inventory struct {
	Source  string
	items   []WorkItem
	Invalid []RowError
}

// Load reads path (.xlsx, .xlsm or .csv) and validates every row before
// returning. Failures are typed input errors.
func Load(path string, opts Options) (*Inventory, error) {
	rows, err := readRows(path, opts.Sheet)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeInput, "read", path, err)
	}

	inv, err := Parse(rows, opts)
	if err != nil {
		return nil, err
	}
	inv.Source = path
	return inv, nil
}

// Parse validates rows whose first entry is the header row
func Parse(rows [][]string, opts Options) (*Inventory, error) {
	if len(rows) == 0 {
		return nil, errs.New(errs.ErrorTypeInput, "parse", "spreadsheet is empty", nil)
	}

	header := rows[0]
	idCol := columnIndex(header, opts.IdentifierColumn)
	urlCol := columnIndex(header, opts.URLColumn)

	var missing []string
	if idCol < 0 {
		missing = append(missing, opts.IdentifierColumn)
	}
	if urlCol < 0 {
		missing = append(missing, opts.URLColumn)
	}
	if len(missing) > 0 {
		return nil, errs.New(errs.ErrorTypeInput, "parse",
			fmt.Sprintf("missing column(s) %q in header %q", missing, header), nil)
	}

	inv := &Inventory{}
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlank(row) {
			continue
		}

		item := WorkItem{
			Identifier: cell(row, idCol),
			AlbumURL:   cell(row, urlCol),
			Row:        rowNum,
		}
		if reason := validate(item); reason != "" {
			inv.Invalid = append(inv.Invalid, RowError{Row: rowNum, Reason: reason})
			continue
		}
		inv.items = append(inv.items, item)
	}

	if opts.Strict && len(inv.Invalid) > 0 {
		return nil, errs.New(errs.ErrorTypeInput, "validate",
			fmt.Sprintf("%d invalid row(s), first: %s", len(inv.Invalid), inv.Invalid[0]), nil)
	}
	if len(inv.items) == 0 {
		return nil, errs.New(errs.ErrorTypeInput, "validate", "no valid rows found", nil)
	}

	return inv, nil
}

// Len returns the number of valid work items
func (inv *Inventory) Len() int {
	return len(inv.items)
}

// Items yields the work items in spreadsheet order
func (inv *Inventory) Items() iter.Seq[WorkItem] {
	return func(yield func(WorkItem) bool) {
		for _, item := range inv.items {
			if !yield(item) {
				return
			}
		}
	}
}

func validate(item WorkItem) string {
	if item.Identifier == "" {
		return "missing identifier"
	}
	if item.AlbumURL == "" {
		return "missing album url"
	}
	u, err := url.Parse(item.AlbumURL)
	if err != nil {
		return fmt.Sprintf("invalid album url: %v", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Sprintf("album url %q is not an absolute http(s) url", item.AlbumURL)
	}
	return ""
}

func readRows(path, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(path)
	case ".xlsx", ".xlsm":
		return readExcel(path, sheet)
	default:
		return nil, fmt.Errorf("unsupported spreadsheet format %q", filepath.Ext(path))
	}
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q (available: %v): %w", sheet, f.GetSheetList(), err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func columnIndex(header []string, name string) int {
	want := strings.TrimSpace(name)
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), want) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
