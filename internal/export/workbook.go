package export

import (
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/ada-portal/internal/models"
)

type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]string
}

type Workbook struct {
	File *excelize.File
}

func NewWorkbook(sheets []SheetSpec) (*Workbook, error) {
	f := excelize.NewFile()
	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	for i, s := range sheets {
		name := s.Title
		if i == 0 {
			// стандартный Sheet1 переименовываем в первый лист
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("new sheet: %w", err)
		}

		for col, h := range s.Header {
			cell := fmt.Sprintf("%s1", colName(col+1))
			if err := f.SetCellStr(name, cell, h); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		if len(s.Header) > 0 {
			end := colName(len(s.Header)) + "1"
			_ = f.SetCellStyle(name, "A1", end, bold)
			_ = f.AutoFilter(name, "A1:"+end, nil)
		}

		for r, row := range s.Rows {
			for c, val := range row {
				cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
				if err := f.SetCellStr(name, cell, val); err != nil {
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}

		// эвристическая ширина: по длине заголовка и первых строк
		for c := 1; c <= len(s.Header); c++ {
			width := utf8.RuneCountInString(s.Header[c-1])
			for r := 0; r < min(50, len(s.Rows)); r++ {
				if c-1 < len(s.Rows[r]) {
					width = max(width, utf8.RuneCountInString(s.Rows[r][c-1]))
				}
			}
			w := min(max(float64(width)*1.1, 12), 40)
			_ = f.SetColWidth(name, colName(c), colName(c), w)
		}
	}
	return &Workbook{File: f}, nil
}

func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	return w.File.WriteTo(out)
}

func (w *Workbook) Close() error { return w.File.Close() }

func Filename(now time.Time) string {
	return fmt.Sprintf("ada_portal_%s.xlsx", now.Format("2006-01-02"))
}

// AccountsWorkbook — лист аккаунтов со сводкой и лист прогресса (аккаунт × занятие).
func AccountsWorkbook(accounts []models.Account, progress map[string]models.ProgressMap, modules []models.Module) (*Workbook, error) {
	accRows := make([][]string, 0, len(accounts))
	progRows := make([][]string, 0, len(accounts)*models.TotalClasses(modules))

	for _, a := range accounts {
		p := progress[a.Email]
		sum := p.Summary(modules)
		accRows = append(accRows, []string{
			a.Email,
			a.DisplayName,
			string(a.Role),
			strconv.Itoa(a.Skills.Prompting),
			strconv.Itoa(a.Skills.Tools),
			strconv.Itoa(a.Skills.Analysis),
			strconv.Itoa(sum.Percentage),
			strconv.Itoa(sum.Completed),
			strconv.Itoa(sum.Pending),
		})
		for _, m := range modules {
			for _, c := range m.Classes {
				done := "no"
				if p[c.ID] {
					done = "yes"
				}
				progRows = append(progRows, []string{a.Email, m.Title, c.Title, done})
			}
		}
	}

	return NewWorkbook([]SheetSpec{
		{
			Title:  "Accounts",
			Header: []string{"Email", "Name", "Role", "Prompting", "Tools", "Analysis", "Progress %", "Completed", "Pending"},
			Rows:   accRows,
		},
		{
			Title:  "Progress",
			Header: []string{"Email", "Module", "Class", "Completed"},
			Rows:   progRows,
		},
	})
}

// colName: 1 -> A; 27 -> AA
func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}
