package sheet

import (
	"fmt"
	"strings"
)

// Worksheet titles. Privileged users go to Subs.
const (
	SubsWorksheet    = "Subs"
	NotSubsWorksheet = "Not subs"
)

// Worksheets lists both worksheets in creation order.
var Worksheets = []string{SubsWorksheet, NotSubsWorksheet}

// maxColumns is the width of the widest header (chess.com).
const maxColumns = 6

// HeaderSpec is the column schema for a site and game, and the A1 range of
// the header row.
type HeaderSpec struct {
	Columns []string
	Range   string
	LastCol string
}

// HeaderFor derives the header for a site and game.
func HeaderFor(site Site, game Game) HeaderSpec {
	rating := capitalize(string(game)) + " rating"
	var cols []string
	switch site {
	case SiteLichess:
		cols = []string{"Twitch", "Lichess", rating, "Formatted"}
	default:
		cols = []string{"Twitch", "Chess.com", rating, "Formatted", "Peak rating", "Peak date"}
	}
	last := columnLetter(len(cols))
	return HeaderSpec{Columns: cols, Range: fmt.Sprintf("A1:%s1", last), LastCol: last}
}

// Width is the number of columns in the header.
func (h HeaderSpec) Width() int { return len(h.Columns) }

// RowRange is the A1 cell range of a data row, header width wide.
func (h HeaderSpec) RowRange(row int) string {
	return fmt.Sprintf("A%d:%s%d", row, h.LastCol, row)
}

// padded returns the header values padded with blanks to the widest schema so
// a narrower header overwrites the cells of a wider one.
func (h HeaderSpec) padded() (string, []any) {
	vals := make([]any, maxColumns)
	for i := range vals {
		vals[i] = ""
	}
	for i, c := range h.Columns {
		vals[i] = c
	}
	return fmt.Sprintf("A1:%s1", columnLetter(maxColumns)), vals
}

func columnLetter(n int) string { return string(rune('A' + n - 1)) }

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
