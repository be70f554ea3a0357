// Package testutil builds consumption workbooks for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the sheet name used by WriteConsumption
const DefaultSheet = "base_de_dados"

// Header is the standard consumption sheet header
var Header = []any{"NOME_EMPRESARIAL", "Data", "Consumo Médio Total"}

// WriteWorkbook saves rows to sheet of a new workbook in t.TempDir and returns its path
func WriteWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	return writeWorkbook(t, sheet, rows, nil)
}

// WriteWorkbook1904 is WriteWorkbook for a workbook using the 1904 date system
func WriteWorkbook1904(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	date1904 := true
	return writeWorkbook(t, sheet, rows, &excelize.WorkbookPropsOptions{Date1904: &date1904})
}

func writeWorkbook(t *testing.T, sheet string, rows [][]any, props *excelize.WorkbookPropsOptions) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	// dates written below are converted with the workbook's date system
	if props != nil {
		if err := f.SetWorkbookProps(props); err != nil {
			t.Fatalf("setting workbook properties: %v", err)
		}
	}

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		t.Fatalf("renaming sheet: %v", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("writing row %d: %v", i+1, err)
		}
	}

	path := filepath.Join(t.TempDir(), "consumption.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving workbook: %v", err)
	}
	return path
}

// WriteConsumption writes Header followed by rows to DefaultSheet
func WriteConsumption(t *testing.T, rows ...[]any) string {
	t.Helper()
	all := append([][]any{Header}, rows...)
	return WriteWorkbook(t, DefaultSheet, all)
}
