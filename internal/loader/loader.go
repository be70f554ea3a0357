package loader

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jgoulah/gridflex/pkg/models"
	"github.com/xuri/excelize/v2"
)

// Column headers the consumption sheet must provide
const (
	ColumnCompany     = "NOME_EMPRESARIAL"
	ColumnDate        = "Data"
	ColumnConsumption = "Consumo Médio Total"
)

// ErrDataLoad is the sentinel matched by every DataLoadError
var ErrDataLoad = errors.New("data load failed")

// DataLoadError reports a missing or malformed spreadsheet resource
type DataLoadError struct {
	Path  string
	Sheet string
	Msg   string
	Err   error
}

func (e *DataLoadError) Error() string {
	msg := fmt.Sprintf("loading %s (sheet %q): %s", e.Path, e.Sheet, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *DataLoadError) Unwrap() error {
	return e.Err
}

// Is matches ErrDataLoad
func (e *DataLoadError) Is(target error) bool {
	return target == ErrDataLoad
}

// Table is the in-memory content of a consumption sheet
type Table struct {
	Path    string
	Sheet   string
	Records []models.ConsumptionRecord
	// Date1904 is set when numeric dates count days from 1904-01-01
	Date1904 bool
}

// Companies returns the sorted distinct non-empty company names
func (t *Table) Companies() []string {
	seen := make(map[string]struct{})
	for _, r := range t.Records {
		if r.Company == "" {
			continue
		}
		seen[r.Company] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForCompany returns the records whose company matches name exactly
func (t *Table) ForCompany(name string) []models.ConsumptionRecord {
	var out []models.ConsumptionRecord
	for _, r := range t.Records {
		if r.Company == name {
			out = append(out, r)
		}
	}
	return out
}

// Load reads the consumption sheet of an .xlsx workbook
func Load(path, sheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &DataLoadError{Path: path, Sheet: sheet, Msg: "opening workbook", Err: err}
	}
	defer f.Close()

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &DataLoadError{Path: path, Sheet: sheet, Msg: "reading sheet", Err: err}
	}

	table, err := parseRows(path, sheet, rows)
	if err != nil {
		return nil, err
	}

	props, err := f.GetWorkbookProps()
	if err != nil {
		return nil, &DataLoadError{Path: path, Sheet: sheet, Msg: "reading workbook properties", Err: err}
	}
	if props.Date1904 != nil {
		table.Date1904 = *props.Date1904
	}
	return table, nil
}

func parseRows(path, sheet string, rows [][]string) (*Table, error) {
	// The header is the first row with any content
	headerRow := -1
	for i, row := range rows {
		if !isBlank(row) {
			headerRow = i
			break
		}
	}
	if headerRow == -1 {
		return nil, &DataLoadError{Path: path, Sheet: sheet, Msg: "sheet is empty"}
	}

	columns := make(map[string]int)
	for j, header := range rows[headerRow] {
		name := strings.TrimSpace(header)
		if _, exists := columns[name]; !exists {
			columns[name] = j
		}
	}

	required := []string{ColumnCompany, ColumnDate, ColumnConsumption}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, &DataLoadError{Path: path, Sheet: sheet, Msg: fmt.Sprintf("missing column %q", name)}
		}
	}
	companyCol := columns[ColumnCompany]
	dateCol := columns[ColumnDate]
	consumptionCol := columns[ColumnConsumption]

	table := &Table{Path: path, Sheet: sheet}
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowNum := i + 1

		consumption, err := parseConsumption(cell(row, consumptionCol))
		if err != nil {
			return nil, &DataLoadError{
				Path:  path,
				Sheet: sheet,
				Msg:   fmt.Sprintf("row %d column %q", rowNum, ColumnConsumption),
				Err:   err,
			}
		}

		table.Records = append(table.Records, models.ConsumptionRecord{
			Company:     cell(row, companyCol),
			Date:        strings.TrimSpace(cell(row, dateCol)),
			Consumption: consumption,
			Row:         rowNum,
		})
	}

	return table, nil
}

// parseConsumption returns NaN for blank cells
func parseConsumption(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
