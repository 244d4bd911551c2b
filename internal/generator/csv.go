package generator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"budgetsense/internal/core"
)

// Writer writes budget records as corpus CSV rows.
type Writer struct {
	w           *csv.Writer
	wroteHeader bool
}

// NewWriter returns a Writer on w. The header is written before the first row.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// WriteHeader writes the header row if it has not been written yet.
func (w *Writer) WriteHeader() error {
	if w.wroteHeader {
		return nil
	}
	w.wroteHeader = true
	return w.w.Write(core.CorpusHeader)
}

// Write writes records, preceded by the header on first use.
func (w *Writer) Write(records ...core.BudgetRecord) error {
	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		if err := w.w.Write(row(r)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	return nil
}

// Flush flushes buffered rows and reports any write error.
func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

func row(r core.BudgetRecord) []string {
	return []string{
		r.Ministry,
		r.PriorityLevel,
		strconv.Itoa(r.ProjectsCount),
		r.RegionImpact,
		formatFloat(r.DevIndex),
		formatFloat(r.PrevBudget),
		formatFloat(r.GDPImpact),
		formatFloat(r.AllocatedBudget),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadCorpus reads every row of a corpus file. Columns are matched by
// header name, so their order does not matter. Rows that fail to parse are
// reported as warnings and skipped.
func ReadCorpus(r io.Reader) ([]core.BudgetRecord, []string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read header: %w", err)
	}
	index := mapHeaders(header)

	var missing []string
	for _, col := range core.CorpusHeader {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("missing required headers: %s", strings.Join(missing, ", "))
	}

	var records []core.BudgetRecord
	var warnings []string
	line := 1
	for {
		line++
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		rec, err := parseRecord(fields, index)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		records = append(records, rec)
	}

	return records, warnings, nil
}

func mapHeaders(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	return index
}

func parseRecord(fields []string, index map[string]int) (core.BudgetRecord, error) {
	get := func(col string) string {
		pos := index[col]
		if pos >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[pos])
	}
	num := func(col string) (float64, error) {
		v, err := strconv.ParseFloat(get(col), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s", col)
		}
		return v, nil
	}

	rec := core.BudgetRecord{
		Ministry:      get(core.ColMinistry),
		PriorityLevel: get(core.ColPriorityLevel),
		RegionImpact:  get(core.ColRegionImpact),
	}
	projects, err := strconv.Atoi(get(core.ColProjectsCount))
	if err != nil {
		return rec, fmt.Errorf("invalid %s", core.ColProjectsCount)
	}
	rec.ProjectsCount = projects
	if rec.DevIndex, err = num(core.ColDevIndex); err != nil {
		return rec, err
	}
	if rec.PrevBudget, err = num(core.ColPrevBudget); err != nil {
		return rec, err
	}
	if rec.GDPImpact, err = num(core.ColGDPImpact); err != nil {
		return rec, err
	}
	if rec.AllocatedBudget, err = num(core.ColAllocatedBudget); err != nil {
		return rec, err
	}
	return rec, nil
}
