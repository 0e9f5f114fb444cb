// Package transfer reads and writes the assignment table as CSV.
package transfer

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/joeblew999/plat-comunas/internal/dataset"
	"github.com/joeblew999/plat-comunas/internal/palette"
)

// Header is the fixed column list, in order.
var Header = []string{"comuna", "cut", "region_num", "region_codigo", "color_id", "color_hex", "grupo"}

// DefaultFilename is used when no export title is configured.
const DefaultFilename = "comunas_coloreadas.csv"

const (
	colName  = 0
	colCode  = 1
	colColor = 4
	colGroup = 6
)

var (
	// ErrEmpty is returned for input without any non-blank line.
	ErrEmpty = errors.New("the CSV file is empty")
	// ErrHeader is returned when the first row is not the expected header.
	ErrHeader = errors.New("the CSV file does not have the expected columns")
)

// FormatError reports input that cannot be imported. Nothing is applied when
// it is returned.
type FormatError struct {
	Line int
	Err  error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("csv line %d: %v", e.Line, e.Err)
	}
	return e.Err.Error()
}

func (e *FormatError) Unwrap() error { return e.Err }

// Export writes the header and one row per assigned region present in index,
// ordered by region code. It returns the number of data rows written.
func Export(w io.Writer, assignments map[string]string, index map[string]dataset.Region, labels map[string]string, p *palette.Palette) (int, error) {
	type row struct {
		region  dataset.Region
		colorID string
	}
	rows := make([]row, 0, len(assignments))
	for id, colorID := range assignments {
		if colorID == "" {
			continue
		}
		r, ok := index[id]
		if !ok {
			continue
		}
		rows = append(rows, row{r, colorID})
	}
	slices.SortFunc(rows, func(a, b row) int { return cmp.Compare(a.region.Code, b.region.Code) })

	var b strings.Builder
	b.WriteString(strings.Join(Header, ","))
	b.WriteByte('\n')
	for _, r := range rows {
		var hex, label string
		if c, ok := p.ByID(r.colorID); ok {
			hex, label = c.Hex, c.DefaultLabel
		}
		if l, ok := labels[r.colorID]; ok {
			label = l
		}
		writeRow(&b,
			r.region.Name,
			r.region.ID(),
			strconv.Itoa(r.region.ParentCode),
			r.region.ParentName,
			r.colorID,
			hex,
			label,
		)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func writeRow(b *strings.Builder, fields ...string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote(f))
	}
	b.WriteByte('\n')
}

// quote wraps a field in double quotes only when it holds a comma, a quote or
// a newline.
func quote(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Result is a parsed CSV file.
type Result struct {
	Assignments map[string]string
	Labels      map[string]string
	// Names holds the commune column as written, by code.
	Names map[string]string
	// Rows counts the data rows applied; Skipped the ones ignored.
	Rows    int
	Skipped int
}

// Import parses a file written by Export or edited by hand. Rows with fewer
// than seven columns, an empty code or color, or a color outside p are
// skipped. A non-empty group column sets the label of its color; colors
// without a label get the palette default.
func Import(r io.Reader, p *palette.Palette) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, &FormatError{Err: ErrEmpty}
	}

	cr := csv.NewReader(strings.NewReader(protectCR(text)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	res := &Result{Assignments: map[string]string{}, Labels: map[string]string{}, Names: map[string]string{}}
	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		for i := range rec {
			rec[i] = restoreCR(rec[i])
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &FormatError{Line: line, Err: err}
		}
		if blank(rec) {
			continue
		}
		if header {
			if !slices.Equal(trimAll(rec), Header) {
				line, _ := cr.FieldPos(0)
				return nil, &FormatError{Line: line, Err: ErrHeader}
			}
			header = false
			continue
		}

		if len(rec) < len(Header) {
			res.Skipped++
			continue
		}
		code := strings.TrimSpace(rec[colCode])
		colorID := strings.TrimSpace(rec[colColor])
		if code == "" || colorID == "" || !p.Contains(colorID) {
			res.Skipped++
			continue
		}
		res.Assignments[code] = colorID
		res.Names[code] = rec[colName]
		if g := rec[colGroup]; strings.TrimSpace(g) != "" {
			res.Labels[colorID] = g
		}
		res.Rows++
	}
	if header {
		return nil, &FormatError{Err: ErrEmpty}
	}

	for _, c := range p.Colors() {
		if _, ok := res.Labels[c.ID]; !ok {
			res.Labels[c.ID] = c.DefaultLabel
		}
	}
	return res, nil
}

// crMark stands in for a carriage return inside a quoted field while
// encoding/csv reads the file, which would otherwise fold "\r\n" into "\n".
const crMark = '\uE000'

// protectCR replaces carriage returns inside quoted fields with crMark.
// A quote opens a quoted field only at the start of a field, as in
// encoding/csv.
func protectCR(text string) string {
	if !strings.ContainsRune(text, '\r') {
		return text
	}
	const (
		plain = iota
		quoted
		quoteEnd
	)
	var b strings.Builder
	b.Grow(len(text))
	state, atStart := plain, true
	for _, c := range text {
		switch state {
		case quoted:
			if c == '"' {
				state = quoteEnd
			} else if c == '\r' {
				c = crMark
			}
		case quoteEnd:
			// "" is an escaped quote
			if c == '"' {
				state = quoted
			} else {
				state = plain
			}
		default:
			if c == '"' && atStart {
				state = quoted
			}
		}
		atStart = state == plain && (c == ',' || c == '\n' || c == '\r')
		b.WriteRune(c)
	}
	return b.String()
}

func restoreCR(f string) string {
	return strings.ReplaceAll(f, string(crMark), "\r")
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func trimAll(rec []string) []string {
	out := make([]string, len(rec))
	for i, f := range rec {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

// Filename turns an export title into a snake_case .csv file name.
func Filename(title string) string {
	name := strcase.ToSnake(strings.TrimSpace(title))
	if name == "" {
		return DefaultFilename
	}
	return name + ".csv"
}
