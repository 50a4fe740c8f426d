package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/allegro/bigcache/v3"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMime = "application/vnd.google-apps.spreadsheet"

// Worksheet is one page of a spreadsheet.
type Worksheet struct {
	ID    int64
	Title string
}

// Spreadsheet is the metadata the bot needs about a remote spreadsheet.
type Spreadsheet struct {
	ID         string
	Title      string
	URL        string
	Worksheets []Worksheet
}

// Worksheet looks up a worksheet by title.
func (s *Spreadsheet) Worksheet(title string) (Worksheet, bool) {
	for _, ws := range s.Worksheets {
		if ws.Title == title {
			return ws, true
		}
	}
	return Worksheet{}, false
}

// ValueRange is a block of values addressed in A1 notation.
type ValueRange struct {
	Range  string
	Values [][]any
}

// A1 qualifies a cell range with a worksheet title, e.g. 'Not subs'!A2:D2.
// An empty cells string addresses the whole worksheet.
func A1(worksheet, cells string) string {
	q := "'" + strings.ReplaceAll(worksheet, "'", "''") + "'"
	if cells == "" {
		return q
	}
	return q + "!" + cells
}

var trailingRow = regexp.MustCompile(`(\d+)$`)

// RowOf extracts the row number an A1 range ends on ('Subs'!A5:F5 -> 5).
func RowOf(a1 string) (int, error) {
	m := trailingRow.FindStringSubmatch(a1)
	if m == nil {
		return 0, fmt.Errorf("no row number in range %q", a1)
	}
	return strconv.Atoi(m[1])
}

func fromAPI(ss *sheets.Spreadsheet) *Spreadsheet {
	out := &Spreadsheet{ID: ss.SpreadsheetId, URL: ss.SpreadsheetUrl}
	if ss.Properties != nil {
		out.Title = ss.Properties.Title
	}
	for _, sh := range ss.Sheets {
		if sh.Properties == nil {
			continue
		}
		out.Worksheets = append(out.Worksheets, Worksheet{ID: sh.Properties.SheetId, Title: sh.Properties.Title})
	}
	return out
}

func (g *Gateway) remember(title, id string) {
	if title == "" || id == "" {
		return
	}
	if err := g.titles.Set(title, []byte(id)); err != nil {
		g.log.Debug("title cache set failed", slog.String("title", title), slog.Any("err", err))
	}
}

// Forget evicts a title from the process-wide title cache.
func (g *Gateway) Forget(title string) {
	if err := g.titles.Delete(title); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		g.log.Debug("title cache delete failed", slog.String("title", title), slog.Any("err", err))
	}
}

// cachedID returns the id cached for title, if any.
func (g *Gateway) cachedID(title string) (string, bool) {
	b, err := g.titles.Get(title)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// OpenByID fetches spreadsheet metadata by id.
func (g *Gateway) OpenByID(ctx context.Context, id string) (*Spreadsheet, error) {
	out, err := call(ctx, g, "open", func(ctx context.Context, c *client) (*Spreadsheet, error) {
		ss, err := c.sheets.Spreadsheets.Get(id).
			Fields("spreadsheetId", "spreadsheetUrl", "properties.title", "sheets.properties").
			Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return fromAPI(ss), nil
	})
	if err != nil {
		return nil, err
	}
	g.remember(out.Title, out.ID)
	return out, nil
}

// OpenByTitle finds a spreadsheet owned by the service account by its title.
// It returns ErrNotFound when none exists.
func (g *Gateway) OpenByTitle(ctx context.Context, title string) (*Spreadsheet, error) {
	if id, ok := g.cachedID(title); ok {
		ss, err := g.OpenByID(ctx, id)
		if err == nil {
			return ss, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		g.Forget(title)
	}
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(title), spreadsheetMime)
	id, err := call(ctx, g, "find", func(ctx context.Context, c *client) (string, error) {
		fl, err := c.drive.Files.List().Q(q).Fields("files(id,name)").PageSize(10).Context(ctx).Do()
		if err != nil {
			return "", err
		}
		for _, f := range fl.Files {
			if f.Name == title {
				return f.Id, nil
			}
		}
		return "", ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return g.OpenByID(ctx, id)
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// Create makes a new spreadsheet with the given worksheets, in order.
func (g *Gateway) Create(ctx context.Context, title string, worksheets []string) (*Spreadsheet, error) {
	req := &sheets.Spreadsheet{Properties: &sheets.SpreadsheetProperties{Title: title}}
	for _, ws := range worksheets {
		req.Sheets = append(req.Sheets, &sheets.Sheet{Properties: &sheets.SheetProperties{
			Title:          ws,
			GridProperties: &sheets.GridProperties{RowCount: 100, ColumnCount: 28},
		}})
	}
	out, err := call(ctx, g, "create", func(ctx context.Context, c *client) (*Spreadsheet, error) {
		ss, err := c.sheets.Spreadsheets.Create(req).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		return fromAPI(ss), nil
	})
	if err != nil {
		return nil, err
	}
	g.remember(out.Title, out.ID)
	return out, nil
}

// ShareAnyone grants read access to anyone holding the link.
func (g *Gateway) ShareAnyone(ctx context.Context, id string) error {
	_, err := call(ctx, g, "share", func(ctx context.Context, c *client) (struct{}, error) {
		_, err := c.drive.Permissions.Create(id, &drive.Permission{Type: "anyone", Role: "reader"}).
			Context(ctx).Do()
		return struct{}{}, err
	})
	return err
}

// Delete removes the spreadsheet and always evicts its title from the cache.
// Deleting a spreadsheet that is already gone is not an error.
func (g *Gateway) Delete(ctx context.Context, id, title string) error {
	defer g.Forget(title)
	_, err := call(ctx, g, "delete", func(ctx context.Context, c *client) (struct{}, error) {
		return struct{}{}, c.drive.Files.Delete(id).Context(ctx).Do()
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// UpdateValues writes every range in one request.
func (g *Gateway) UpdateValues(ctx context.Context, id string, ranges []ValueRange) error {
	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: "USER_ENTERED"}
	for _, r := range ranges {
		req.Data = append(req.Data, &sheets.ValueRange{Range: r.Range, Values: r.Values})
	}
	_, err := call(ctx, g, "update_values", func(ctx context.Context, c *client) (struct{}, error) {
		_, err := c.sheets.Spreadsheets.Values.BatchUpdate(id, req).Context(ctx).Do()
		return struct{}{}, err
	})
	return err
}

// BoldHeader bolds the first row, columns [0, columns), of each worksheet.
func (g *Gateway) BoldHeader(ctx context.Context, id string, worksheetIDs []int64, columns int) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{}
	for _, wsID := range worksheetIDs {
		req.Requests = append(req.Requests, &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{
				SheetId:          wsID,
				StartRowIndex:    0,
				EndRowIndex:      1,
				StartColumnIndex: 0,
				EndColumnIndex:   int64(columns),
				ForceSendFields:  []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
			},
			Cell:   &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}}},
			Fields: "userEnteredFormat.textFormat.bold",
		}})
	}
	_, err := call(ctx, g, "format", func(ctx context.Context, c *client) (struct{}, error) {
		_, err := c.sheets.Spreadsheets.BatchUpdate(id, req).Context(ctx).Do()
		return struct{}{}, err
	})
	return err
}

// AppendRow appends values after the last row of the worksheet's table and
// returns the 1-based row number the service wrote to.
func (g *Gateway) AppendRow(ctx context.Context, id, worksheet string, values []any) (int, error) {
	vr := &sheets.ValueRange{Values: [][]any{values}}
	return call(ctx, g, "append", func(ctx context.Context, c *client) (int, error) {
		resp, err := c.sheets.Spreadsheets.Values.Append(id, A1(worksheet, "A1"), vr).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return 0, err
		}
		if resp.Updates == nil {
			return 0, errors.New("append response without updates")
		}
		return RowOf(resp.Updates.UpdatedRange)
	})
}

// ReadColumns reads each range as columns in one request. Result i holds the
// first column of ranges[i]; trailing empty cells are not returned by the service.
func (g *Gateway) ReadColumns(ctx context.Context, id string, ranges []string) ([][]string, error) {
	return call(ctx, g, "read_columns", func(ctx context.Context, c *client) ([][]string, error) {
		resp, err := c.sheets.Spreadsheets.Values.BatchGet(id).
			Ranges(ranges...).
			MajorDimension("COLUMNS").
			Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		out := make([][]string, len(ranges))
		for i, vr := range resp.ValueRanges {
			if i >= len(out) || vr == nil || len(vr.Values) == 0 {
				continue
			}
			col := make([]string, len(vr.Values[0]))
			for j, v := range vr.Values[0] {
				col[j] = fmt.Sprint(v)
			}
			out[i] = col
		}
		return out, nil
	})
}

// ClearValues empties the given ranges in one request. Formatting is kept.
func (g *Gateway) ClearValues(ctx context.Context, id string, ranges []string) error {
	_, err := call(ctx, g, "clear", func(ctx context.Context, c *client) (struct{}, error) {
		_, err := c.sheets.Spreadsheets.Values.BatchClear(id, &sheets.BatchClearValuesRequest{Ranges: ranges}).
			Context(ctx).Do()
		return struct{}{}, err
	})
	return err
}

// DeleteRow removes the 1-based row from a worksheet, shifting later rows up.
func (g *Gateway) DeleteRow(ctx context.Context, id string, worksheetID int64, row int) error {
	if row < 1 {
		return fmt.Errorf("delete row: invalid row %d", row)
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		DeleteDimension: &sheets.DeleteDimensionRequest{Range: &sheets.DimensionRange{
			SheetId:         worksheetID,
			Dimension:       "ROWS",
			StartIndex:      int64(row - 1),
			EndIndex:        int64(row),
			ForceSendFields: []string{"SheetId", "StartIndex"},
		}},
	}}}
	_, err := call(ctx, g, "delete_row", func(ctx context.Context, c *client) (struct{}, error) {
		_, err := c.sheets.Spreadsheets.BatchUpdate(id, req).Context(ctx).Do()
		return struct{}{}, err
	})
	return err
}

// ListTitles returns the titles of every spreadsheet the service account can see.
func (g *Gateway) ListTitles(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf("mimeType = '%s' and trashed = false", spreadsheetMime)
	return call(ctx, g, "list", func(ctx context.Context, c *client) ([]string, error) {
		var titles []string
		pageToken := ""
		for {
			req := c.drive.Files.List().Q(q).Fields("nextPageToken", "files(id,name)").PageSize(100).Context(ctx)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			fl, err := req.Do()
			if err != nil {
				return nil, err
			}
			for _, f := range fl.Files {
				titles = append(titles, f.Name)
			}
			if fl.NextPageToken == "" {
				return titles, nil
			}
			pageToken = fl.NextPageToken
		}
	})
}
