// Package sheettest provides an in-memory spreadsheet service for tests.
package sheettest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/onnwee/battlesheet/gateway"
)

type worksheet struct {
	id    int64
	title string
	rows  [][]string
}

type spreadsheet struct {
	id     string
	title  string
	shared bool
	bold   map[int64]int
	sheets []*worksheet
}

// Remote is an in-memory stand-in for the spreadsheet service. Values are
// stored as the service would display them.
type Remote struct {
	mu      sync.Mutex
	nextID  int
	nextWS  int64
	byID    map[string]*spreadsheet
	calls   map[string]int
	failing map[string][]error
}

func New() *Remote {
	return &Remote{
		byID:    make(map[string]*spreadsheet),
		calls:   make(map[string]int),
		failing: make(map[string][]error),
	}
}

// FailNext makes the next call of op (e.g. "AppendRow") return err.
// Repeated calls queue further failures.
func (r *Remote) FailNext(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing[op] = append(r.failing[op], err)
}

// Calls reports how many times op was called.
func (r *Remote) Calls(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *Remote) enter(op string) error {
	r.calls[op]++
	if q := r.failing[op]; len(q) > 0 {
		r.failing[op] = q[1:]
		return q[0]
	}
	return nil
}

// Seed creates a spreadsheet directly, bypassing call accounting. rows maps a
// worksheet title to its rows, header included.
func (r *Remote) Seed(title string, rows map[string][][]string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ss := r.create(title, []string{"Subs", "Not subs"})
	for _, ws := range ss.sheets {
		for _, row := range rows[ws.title] {
			ws.rows = append(ws.rows, append([]string(nil), row...))
		}
	}
	return ss.id
}

func (r *Remote) create(title string, worksheets []string) *spreadsheet {
	r.nextID++
	ss := &spreadsheet{id: fmt.Sprintf("ss-%d", r.nextID), title: title, bold: make(map[int64]int)}
	for _, t := range worksheets {
		ss.sheets = append(ss.sheets, &worksheet{id: r.nextWS, title: t})
		r.nextWS += 100
	}
	r.byID[ss.id] = ss
	return ss
}

// Rows returns a copy of a worksheet's rows, header included, with trailing
// empty rows dropped.
func (r *Remote) Rows(id, title string) [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ss, ok := r.byID[id]
	if !ok {
		return nil
	}
	ws := ss.worksheet(title)
	if ws == nil {
		return nil
	}
	var out [][]string
	for _, row := range ws.rows[:ws.used()] {
		out = append(out, trimRow(row))
	}
	return out
}

// Shared reports whether the spreadsheet was shared with anyone.
func (r *Remote) Shared(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ss, ok := r.byID[id]
	return ok && ss.shared
}

// Bold returns the bolded header width of a worksheet.
func (r *Remote) Bold(id, title string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	ss, ok := r.byID[id]
	if !ok {
		return 0
	}
	ws := ss.worksheet(title)
	if ws == nil {
		return 0
	}
	return ss.bold[ws.id]
}

// Exists reports whether a spreadsheet with id exists.
func (r *Remote) Exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byID[id]
	return ok
}

func (ss *spreadsheet) worksheet(title string) *worksheet {
	for _, ws := range ss.sheets {
		if ws.title == title {
			return ws
		}
	}
	return nil
}

func (ss *spreadsheet) meta() *gateway.Spreadsheet {
	out := &gateway.Spreadsheet{ID: ss.id, Title: ss.title, URL: "https://docs.google.com/spreadsheets/d/" + ss.id}
	for _, ws := range ss.sheets {
		out.Worksheets = append(out.Worksheets, gateway.Worksheet{ID: ws.id, Title: ws.title})
	}
	return out
}

// used is the number of rows up to the last non-empty one.
func (ws *worksheet) used() int {
	n := len(ws.rows)
	for n > 0 && len(trimRow(ws.rows[n-1])) == 0 {
		n--
	}
	return n
}

func trimRow(row []string) []string {
	n := len(row)
	for n > 0 && row[n-1] == "" {
		n--
	}
	return append([]string(nil), row[:n]...)
}

func (r *Remote) lookup(id string) (*spreadsheet, error) {
	ss, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("spreadsheet %s: %w", id, gateway.ErrNotFound)
	}
	return ss, nil
}

// parseRange splits 'Title'!B3:D3 into the worksheet, the zero-based start
// column and the 1-based start row (0 when the range has no row).
func parseRange(a1 string) (title string, col, row int, err error) {
	cells := ""
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		title, cells = a1[:i], a1[i+1:]
	} else {
		title = a1
	}
	if strings.HasPrefix(title, "'") && strings.HasSuffix(title, "'") && len(title) >= 2 {
		title = strings.ReplaceAll(title[1:len(title)-1], "''", "'")
	}
	if cells == "" {
		return title, 0, 0, nil
	}
	start, _, _ := strings.Cut(cells, ":")
	i := 0
	for i < len(start) && start[i] >= 'A' && start[i] <= 'Z' {
		col = col*26 + int(start[i]-'A'+1)
		i++
	}
	col--
	if i < len(start) {
		row, err = strconv.Atoi(start[i:])
		if err != nil {
			return "", 0, 0, fmt.Errorf("bad range %q", a1)
		}
	}
	return title, col, row, nil
}

func (ws *worksheet) set(row, col int, vals []any) {
	for len(ws.rows) < row {
		ws.rows = append(ws.rows, nil)
	}
	r := ws.rows[row-1]
	for len(r) < col+len(vals) {
		r = append(r, "")
	}
	for i, v := range vals {
		r[col+i] = fmt.Sprint(v)
	}
	ws.rows[row-1] = r
}

func (r *Remote) OpenByID(ctx context.Context, id string) (*gateway.Spreadsheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("OpenByID"); err != nil {
		return nil, err
	}
	ss, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return ss.meta(), nil
}

func (r *Remote) OpenByTitle(ctx context.Context, title string) (*gateway.Spreadsheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("OpenByTitle"); err != nil {
		return nil, err
	}
	for _, ss := range r.byID {
		if ss.title == title {
			return ss.meta(), nil
		}
	}
	return nil, fmt.Errorf("title %q: %w", title, gateway.ErrNotFound)
}

func (r *Remote) Create(ctx context.Context, title string, worksheets []string) (*gateway.Spreadsheet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Create"); err != nil {
		return nil, err
	}
	return r.create(title, worksheets).meta(), nil
}

func (r *Remote) ShareAnyone(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ShareAnyone"); err != nil {
		return err
	}
	ss, err := r.lookup(id)
	if err != nil {
		return err
	}
	ss.shared = true
	return nil
}

func (r *Remote) Delete(ctx context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("Delete"); err != nil {
		return err
	}
	delete(r.byID, id)
	return nil
}

func (r *Remote) UpdateValues(ctx context.Context, id string, ranges []gateway.ValueRange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("UpdateValues"); err != nil {
		return err
	}
	ss, err := r.lookup(id)
	if err != nil {
		return err
	}
	for _, vr := range ranges {
		title, col, row, err := parseRange(vr.Range)
		if err != nil {
			return err
		}
		ws := ss.worksheet(title)
		if ws == nil {
			return fmt.Errorf("worksheet %q: %w", title, gateway.ErrNotFound)
		}
		if row == 0 {
			row = 1
		}
		for i, vals := range vr.Values {
			ws.set(row+i, col, vals)
		}
	}
	return nil
}

func (r *Remote) BoldHeader(ctx context.Context, id string, worksheetIDs []int64, columns int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("BoldHeader"); err != nil {
		return err
	}
	ss, err := r.lookup(id)
	if err != nil {
		return err
	}
	for _, wsID := range worksheetIDs {
		ss.bold[wsID] = columns
	}
	return nil
}

func (r *Remote) AppendRow(ctx context.Context, id, worksheet string, values []any) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("AppendRow"); err != nil {
		return 0, err
	}
	ss, err := r.lookup(id)
	if err != nil {
		return 0, err
	}
	ws := ss.worksheet(worksheet)
	if ws == nil {
		return 0, fmt.Errorf("worksheet %q: %w", worksheet, gateway.ErrNotFound)
	}
	row := ws.used() + 1
	ws.rows = ws.rows[:ws.used()]
	ws.set(row, 0, values)
	return row, nil
}

func (r *Remote) ReadColumns(ctx context.Context, id string, ranges []string) ([][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ReadColumns"); err != nil {
		return nil, err
	}
	ss, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	out := make([][]string, len(ranges))
	for i, a1 := range ranges {
		title, col, _, err := parseRange(a1)
		if err != nil {
			return nil, err
		}
		ws := ss.worksheet(title)
		if ws == nil {
			return nil, fmt.Errorf("worksheet %q: %w", title, gateway.ErrNotFound)
		}
		var vals []string
		for _, row := range ws.rows {
			v := ""
			if col < len(row) {
				v = row[col]
			}
			vals = append(vals, v)
		}
		for len(vals) > 0 && vals[len(vals)-1] == "" {
			vals = vals[:len(vals)-1]
		}
		out[i] = vals
	}
	return out, nil
}

func (r *Remote) ClearValues(ctx context.Context, id string, ranges []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("ClearValues"); err != nil {
		return err
	}
	ss, err := r.lookup(id)
	if err != nil {
		return err
	}
	for _, a1 := range ranges {
		title, _, _, err := parseRange(a1)
		if err != nil {
			return err
		}
		if ws := ss.worksheet(title); ws != nil {
			ws.rows = nil
		}
	}
	return nil
}

func (r *Remote) DeleteRow(ctx context.Context, id string, worksheetID int64, row int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enter("DeleteRow"); err != nil {
		return err
	}
	ss, err := r.lookup(id)
	if err != nil {
		return err
	}
	for _, ws := range ss.sheets {
		if ws.id != worksheetID {
			continue
		}
		if row < 1 || row > len(ws.rows) {
			return fmt.Errorf("row %d out of range", row)
		}
		ws.rows = append(ws.rows[:row-1], ws.rows[row:]...)
		return nil
	}
	return fmt.Errorf("worksheet %d: %w", worksheetID, gateway.ErrNotFound)
}
