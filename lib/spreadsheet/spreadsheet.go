// Package spreadsheet reads a downloaded backoffice export into rows
// keyed by the verbatim header text. The headers carry whatever stray
// whitespace and typos the source system has; tolerating those is the
// transformers' job, not ours.
package spreadsheet

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("lib/spreadsheet")

// Row maps a column header to the raw cell value: string, float64 or
// bool. Numeric cells keep their raw serial value so the normalizer
// can tell a date serial from formatted text.
type Row map[string]any

// Read parses the export at path. The first sheet's first row is taken
// as the header row; the remaining rows become Row values. Fully empty
// rows are skipped. The file is read as a binary buffer, never through
// a text stream, because the container format is a binary archive.
func Read(ctx context.Context, path string) ([]Row, error) {
	ctx, span := tracer.Start(ctx, "Read")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	buf, err := os.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read export file")
		return nil, fmt.Errorf("export file missing or unreadable: %s: %w", path, err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open spreadsheet")
		return nil, fmt.Errorf("unreadable spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}

	// raw values keep date serials as numbers instead of whatever
	// display format the export happened to apply
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to enumerate rows")
		return nil, fmt.Errorf("unreadable spreadsheet %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := rows[0]
	var out []Row
	for _, cells := range rows[1:] {
		row := Row{}
		empty := true
		for i, cell := range cells {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			if cell == "" {
				continue
			}
			empty = false
			row[headers[i]] = typed(cell)
		}
		if !empty {
			out = append(out, row)
		}
	}

	span.SetAttributes(attribute.Int("rows", len(out)))
	return out, nil
}

// raw cell values all arrive as text; recover the numeric and boolean
// cells so the normalizer sees the same shapes the source stored
func typed(cell string) any {
	switch strings.ToUpper(cell) {
	case "TRUE":
		return true
	case "FALSE":
		return false
	}
	if n, err := strconv.ParseFloat(cell, 64); err == nil {
		// only coerce when the float can reproduce the text: natural
		// keys like "00123" must keep their leading zeros
		if strconv.FormatFloat(n, 'f', -1, 64) == cell {
			return n
		}
	}
	return cell
}
