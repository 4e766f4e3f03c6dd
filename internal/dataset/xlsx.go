package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

type xlsxLoader struct{}

func (xlsxLoader) CanLoad(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xlsx")
}

func (xlsxLoader) Load(path string, opt Options) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet, err := pickSheet(f.GetSheetList(), path, opt)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	name := filepath.Base(path)
	if opt.SheetName != "" || opt.SheetIndex > 1 {
		name = fmt.Sprintf("%s (sheet: %s)", name, sheet)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q in %s is empty", sheet, filepath.Base(path))
	}
	b, err := newBuilder(name, rows[0], opt)
	if err != nil {
		return nil, err
	}
	for i, row := range rows[1:] {
		b.add(row, i+2)
	}
	return b.done(), nil
}

func pickSheet(sheets []string, path string, opt Options) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook %s has no sheets", filepath.Base(path))
	}
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.SheetName) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet '%s' not found in workbook '%s'.\nAvailable sheets: %s",
			opt.SheetName, filepath.Base(path), strings.Join(sheets, ", "))
	}
	idx := opt.SheetIndex
	if idx <= 0 {
		idx = 1
	}
	if idx > len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range: workbook '%s' has %d sheet(s)", idx, filepath.Base(path), len(sheets))
	}
	return sheets[idx-1], nil
}
