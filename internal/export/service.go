package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-desk/internal/formengine"
	"github.com/joseph-ayodele/invoice-desk/internal/invoice"
)

// maxCellLen is the longest text an XLSX cell holds.
const maxCellLen = 32767

// Document is one invoice to export.
type Document struct {
	Filename string
	Record   *formengine.Mapping
}

// Service turns invoice records into spreadsheets.
type Service struct {
	renderer *formengine.Renderer
	logger   *slog.Logger
}

func NewService(renderer *formengine.Renderer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if renderer == nil {
		renderer = formengine.NewRenderer()
	}
	return &Service{renderer: renderer, logger: logger}
}

const (
	fieldsSheet = "Fields"
	totalsSheet = "Totals"
)

// FieldsXLSX returns a workbook with one row per editable field of every document,
// and a second sheet comparing line item sums with declared totals.
func (s *Service) FieldsXLSX(docs []Document) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", fieldsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(totalsSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(fieldsSheet)
	f.SetActiveSheet(activeIndex)

	writeRow(f, fieldsSheet, 1, "File", "Section", "Field", "Path", "Value")
	writeRow(f, totalsSheet, 1, "File", "Line Items", "Line Sum", "Declared Total", "Matches")

	row := 2
	for i, d := range docs {
		for _, field := range s.renderer.Render(d.Record) {
			writeRow(f, fieldsSheet, row, d.Filename, field.Section, field.Label, field.Path.String(), truncate(field.Value, maxCellLen))
			row++
		}

		t := invoice.CheckTotals(d.Record)
		declared := ""
		if t.HasDeclared {
			declared = t.Declared.StringFixed(2)
		}
		matches := ""
		if t.HasDeclared && t.Lines > 0 {
			matches = fmt.Sprint(t.Matches)
		}
		writeRow(f, totalsSheet, i+2, d.Filename, t.Lines, t.LineSum.StringFixed(2), declared, matches)
	}

	_ = f.SetColWidth(fieldsSheet, "A", "A", 28) // file
	_ = f.SetColWidth(fieldsSheet, "B", "B", 24) // section
	_ = f.SetColWidth(fieldsSheet, "C", "C", 28) // field
	_ = f.SetColWidth(fieldsSheet, "D", "D", 36) // path
	_ = f.SetColWidth(fieldsSheet, "E", "E", 48) // value
	_ = f.SetColWidth(totalsSheet, "A", "A", 28)
	_ = f.SetColWidth(totalsSheet, "B", "E", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"documents", len(docs),
		"rows", row-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
