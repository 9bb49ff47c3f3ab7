// Package journal maintains the xlsx attendance journal: one row per user,
// one column per class day, a status marker per cell. The sqlite store is
// authoritative; the journal is a derived view and can be rebuilt from it.
package journal

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"rollcall/internal/dates"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName = "Журнал посещаемости"

	// Колонки 1-3 фиксированные, даты начинаются с четвертой
	firstDateColumn = 4
	headerRow       = 1
)

const (
	fixedHeaderColor = "366092"
	dateHeaderColor  = "95B3D7"
	presentColor     = "C6EFCE"
	absentColor      = "FFC7CE"
)

// ErrCellNotResolved means the user row or date column could not be found.
// Callers log it and move on: the store write has already succeeded and the
// journal catches up on the next sync.
var ErrCellNotResolved = errors.New("journal cell not resolved")

// Journal serializes all mutations through its mutex: every operation is a
// full load-mutate-save of the file, so a single writer is required.
type Journal struct {
	mu     sync.Mutex
	path   string
	logger *zerolog.Logger
}

func New(path string, logger *zerolog.Logger) *Journal {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Journal{path: path, logger: logger}
}

func (j *Journal) Path() string {
	return j.path
}

// load opens the journal file, creating it with the base structure if missing.
func (j *Journal) load() (*excelize.File, error) {
	if _, err := os.Stat(j.path); os.IsNotExist(err) {
		return j.create()
	}

	f, err := excelize.OpenFile(j.path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return f, nil
}

func (j *Journal) create() (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"ID", "Имя", "Юзернейм"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		_ = f.SetCellValue(SheetName, cell, header)
	}

	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{fixedHeaderColor}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		_ = f.SetCellStyle(SheetName, "A1", "C1", style)
	}

	_ = f.SetColWidth(SheetName, "A", "A", 12)
	_ = f.SetColWidth(SheetName, "B", "B", 25)
	_ = f.SetColWidth(SheetName, "C", "C", 20)

	j.logger.Info().Str("path", j.path).Msg("Создан файл журнала")
	return f, nil
}

func (j *Journal) save(f *excelize.File) error {
	if err := f.SaveAs(j.path); err != nil {
		return fmt.Errorf("save journal: %w", err)
	}
	return nil
}

// EnsureDateColumns гарантирует колонки для всех учебных дней окна
// [ref, ref+lookaheadDays). Вставка упорядоченная: новая дата встает перед
// первой более поздней колонкой, поэтому заголовок всегда отсортирован.
// Возвращает число добавленных колонок.
func (j *Journal) EnsureDateColumns(ref time.Time, lookaheadDays int) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := j.load()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	added, err := ensureDateColumns(f, ref, lookaheadDays)
	if err != nil {
		return 0, err
	}
	if added == 0 {
		return 0, nil
	}

	if err := j.save(f); err != nil {
		return 0, err
	}

	j.logger.Info().Int("added", added).Msg("Добавлены учебные даты в журнал")
	return added, nil
}

func ensureDateColumns(f *excelize.File, ref time.Time, lookaheadDays int) (int, error) {
	existing := make(map[string]bool)
	cols, err := headerDateColumns(f)
	if err != nil {
		return 0, err
	}
	for _, c := range cols {
		existing[c.text] = true
	}

	added := 0
	for _, day := range dates.ClassDays(ref, lookaheadDays) {
		text := dates.Canonical(day)
		if existing[text] {
			continue
		}

		if err := insertDateColumn(f, day, text); err != nil {
			return added, err
		}
		existing[text] = true
		added++
	}

	return added, nil
}

type dateColumn struct {
	col  int
	text string
	date time.Time
}

// headerDateColumns читает колонки дат из заголовка слева направо.
func headerDateColumns(f *excelize.File) ([]dateColumn, error) {
	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read journal rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var cols []dateColumn
	header := rows[headerRow-1]
	for i := firstDateColumn - 1; i < len(header); i++ {
		text := header[i]
		if text == "" {
			continue
		}
		d, err := dates.ParseCanonical(text)
		if err != nil {
			continue
		}
		cols = append(cols, dateColumn{col: i + 1, text: text, date: d})
	}
	return cols, nil
}

func insertDateColumn(f *excelize.File, day time.Time, text string) error {
	cols, err := headerDateColumns(f)
	if err != nil {
		return err
	}

	// Колонка для вставки: перед первой хронологически более поздней датой,
	// иначе сразу за последней.
	insertCol := firstDateColumn
	inserting := false
	for _, c := range cols {
		if day.Before(c.date) {
			insertCol = c.col
			inserting = true
			break
		}
		insertCol = c.col + 1
	}

	colName, err := excelize.ColumnNumberToName(insertCol)
	if err != nil {
		return err
	}

	if inserting {
		if err := f.InsertCols(SheetName, colName, 1); err != nil {
			return fmt.Errorf("insert column %s: %w", colName, err)
		}
	}

	cell, _ := excelize.CoordinatesToCellName(insertCol, headerRow)
	if err := f.SetCellValue(SheetName, cell, text); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{dateHeaderColor}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		_ = f.SetCellStyle(SheetName, cell, cell, style)
	}
	_ = f.SetColWidth(SheetName, colName, colName, 15)

	return nil
}

// EnsureUserRow гарантирует ровно одну строку пользователя. Имя и юзернейм
// обновляются по месту: журнал всегда отражает текущее состояние БД.
func (j *Journal) EnsureUserRow(userID int64, name, username string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := j.load()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := ensureUserRow(f, userID, name, username); err != nil {
		return err
	}

	return j.save(f)
}

func ensureUserRow(f *excelize.File, userID int64, name, username string) error {
	row, err := findUserRow(f, userID)
	if err != nil {
		return err
	}

	if row == 0 {
		rows, err := f.GetRows(SheetName)
		if err != nil {
			return fmt.Errorf("read journal rows: %w", err)
		}
		row = len(rows) + 1
		if row <= headerRow {
			row = headerRow + 1
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetCellValue(SheetName, cell, userID); err != nil {
			return err
		}
	}

	nameCell, _ := excelize.CoordinatesToCellName(2, row)
	if err := f.SetCellValue(SheetName, nameCell, name); err != nil {
		return err
	}

	handleCell, _ := excelize.CoordinatesToCellName(3, row)
	return f.SetCellValue(SheetName, handleCell, displayUsername(username))
}

// findUserRow ищет строку пользователя линейным проходом по первой колонке.
// Ноль — не найдено. O(строк), приемлемо для десятков пользователей.
func findUserRow(f *excelize.File, userID int64) (int, error) {
	rows, err := f.GetRows(SheetName)
	if err != nil {
		return 0, fmt.Errorf("read journal rows: %w", err)
	}

	want := fmt.Sprintf("%d", userID)
	for i := headerRow; i < len(rows); i++ {
		if len(rows[i]) > 0 && rows[i][0] == want {
			return i + 1, nil
		}
	}
	return 0, nil
}

// SetAttendanceCell записывает статус в ячейку (строка пользователя, колонка
// даты). Промах по строке или колонке — ErrCellNotResolved: вызывающий логирует
// и продолжает, падать из-за расхождения представления нельзя.
func (j *Journal) SetAttendanceCell(userID int64, dateText string, present bool, reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := j.load()
	if err != nil {
		return err
	}
	defer f.Close()

	row, err := findUserRow(f, userID)
	if err != nil {
		return err
	}
	if row == 0 {
		j.logger.Warn().Int64("user_id", userID).Msg("Пользователь не найден в журнале")
		return ErrCellNotResolved
	}

	col := 0
	cols, err := headerDateColumns(f)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if c.text == dateText {
			col = c.col
			break
		}
	}
	if col == 0 {
		j.logger.Warn().Str("date", dateText).Msg("Дата не найдена в журнале")
		return ErrCellNotResolved
	}

	value := "✅"
	fill := presentColor
	if !present {
		value = "❌"
		fill = absentColor
		if reason != "" {
			value += fmt.Sprintf("\n(%s)", reason)
		}
	}

	cell, _ := excelize.CoordinatesToCellName(col, row)
	if err := f.SetCellValue(SheetName, cell, value); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
	})
	if err == nil {
		_ = f.SetCellStyle(SheetName, cell, cell, style)
	}

	return j.save(f)
}

// Refresh создает файл при отсутствии и дотягивает окно дат. Используется
// перед отправкой журнала админу.
func (j *Journal) Refresh(ref time.Time, lookaheadDays int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := j.load()
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := ensureDateColumns(f, ref, lookaheadDays); err != nil {
		return err
	}

	return j.save(f)
}

func displayUsername(username string) string {
	if username == "" {
		return ""
	}
	return "@" + username
}
