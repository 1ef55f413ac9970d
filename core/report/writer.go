package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	maxSheetName = 31
)

var sheetNameReplacer = strings.NewReplacer(":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")

// reportBase returns the extension-less path of a report for class name and kind ("class" or "module").
func reportBase(root string, lastMonth time.Time, name, kind string) string {
	file := fmt.Sprintf("%d_%d_%d_%s_%s_report", lastMonth.Year(), lastMonth.Month(), lastMonth.Day(), fileSafe(name), kind)
	return filepath.Join(root, file)
}

func fileSafe(name string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(name)
}

// SheetName turns name into a valid worksheet name.
func SheetName(name string) string {
	name = strings.Trim(sheetNameReplacer.Replace(name), "'")
	if name == "" {
		name = "report"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

// writeCSV writes headings and rows to path.
func writeCSV(path string, headings []string, rows []row) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err = w.Write(headings); err != nil {
		return err
	}
	for _, r := range rows {
		if err = w.Write(record(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// writeXLSX writes headings and rows to a single-sheet workbook at path.
func writeXLSX(path, sheet string, headings []string, rows []row) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	sheet = SheetName(sheet)
	if err = f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	for i, h := range headings {
		if err = setCell(f, sheet, i+1, 1, h); err != nil {
			return err
		}
	}
	for y, r := range rows {
		for x, v := range r.cells() {
			if err = setCell(f, sheet, x+1, y+2, v); err != nil {
				return err
			}
		}
	}
	return f.SaveAs(path)
}

func setCell(f *excelize.File, sheet string, col, row int, v interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, v)
}
