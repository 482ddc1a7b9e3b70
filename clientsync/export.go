package clientsync

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	mismatchSheet = "Mismatches"
	unlinkedSheet = "Unlinked"
)

// ExportMismatches writes the current report as an xlsx workbook.
func (s *Service) ExportMismatches(ctx context.Context, w io.Writer) error {
	report, err := s.Reconcile(ctx)
	if err != nil {
		return err
	}
	f, err := buildWorkbook(report)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func buildWorkbook(report *Report) (_ *excelize.File, err error) {
	f := excelize.NewFile()
	defer func() {
		if err != nil {
			f.Close()
		}
	}()

	if err := f.SetSheetName("Sheet1", mismatchSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(unlinkedSheet); err != nil {
		return nil, err
	}

	// Add headers
	if err := setRow(f, mismatchSheet, 1, "Client ID", "WordPress User ID", "Field", "Client Value", "WordPress Value"); err != nil {
		return nil, err
	}
	if err := setRow(f, unlinkedSheet, 1, "Client ID", "Email", "Suggested WordPress User ID"); err != nil {
		return nil, err
	}

	// Add data
	for i, m := range report.Mismatches {
		if err := setRow(f, mismatchSheet, i+2, m.ClientID, m.WpUserID, m.FieldName.Label(), m.ValueFromClient, m.ValueFromWP); err != nil {
			return nil, err
		}
	}
	for i, c := range report.Unlinked {
		var suggested any
		if c.SuggestedUserID > 0 {
			suggested = c.SuggestedUserID
		}
		if err := setRow(f, unlinkedSheet, i+2, c.ClientID, c.Email, suggested); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func setRow(f *excelize.File, sheet string, rowNo int, values ...any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNo)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
