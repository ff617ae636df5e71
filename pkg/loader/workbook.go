package loader

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/vanderheijden86/expview/pkg/debug"
	"github.com/vanderheijden86/expview/pkg/metrics"
	"github.com/vanderheijden86/expview/pkg/model"
)

// ParseWorkbook parses the first sheet of an .xlsx workbook with the same
// header and inference rules as ParseRows. Cells are read as their
// formatted text, so a percentage-formatted 0.5 arrives as "50%" and stays
// Text.
func ParseWorkbook(r io.Reader, opts ParseOptions) ([]model.Row, error) {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		metrics.WorkbookParse.Record(d)
		debug.LogTiming("ParseWorkbook "+opts.Source, d)
	}()

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &IngestError{Source: opts.Source, Err: fmt.Errorf("opening workbook: %w", err)}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &IngestError{Source: opts.Source, Err: fmt.Errorf("workbook has no sheets")}
	}

	it, err := f.Rows(sheet)
	if err != nil {
		return nil, &IngestError{Source: opts.Source, Err: fmt.Errorf("reading sheet %q: %w", sheet, err)}
	}
	defer it.Close()

	var b *rowBuilder
	line := 0
	for it.Next() {
		line++
		cols, err := it.Columns()
		if err != nil {
			return nil, &IngestError{Source: opts.Source, Line: line, Err: err}
		}
		if b == nil {
			// Leading empty rows are not a header.
			if len(cols) == 0 {
				continue
			}
			b = newRowBuilder(normalizeHeaders(cols, opts.warn()), opts)
			continue
		}
		if err := b.add(cols, line); err != nil {
			return nil, err
		}
	}
	if err := it.Error(); err != nil {
		return nil, &IngestError{Source: opts.Source, Line: line, Err: err}
	}
	if b == nil {
		return []model.Row{}, nil
	}
	return b.rows, nil
}
