package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
)

// TableFormatter aligns records into columns for terminals. A single
// record is printed as "Label: value" lines.
type TableFormatter struct{}

func NewTableFormatter() *TableFormatter { return &TableFormatter{} }

func (f *TableFormatter) Name() string        { return "table" }
func (f *TableFormatter) Description() string { return "Aligned columns for terminals" }

func (f *TableFormatter) FormatList(w io.Writer, l Listing, records []map[string]any, opts FormatOptions) error {
	if len(records) == 0 {
		kind := l.Kind
		if kind == "" {
			kind = "records"
		}
		_, err := fmt.Fprintf(w, "No %s found.\n", kind)
		return err
	}

	cols := opts.Columns
	if len(cols) == 0 {
		cols = l.Columns
	}
	tw := newTabWriter(w)
	row := make([]string, len(cols))
	if !opts.NoHeader {
		for i, c := range cols {
			row[i] = strings.ToUpper(c)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	for _, rec := range records {
		for i, c := range cols {
			row[i] = f.formatValue(rec[c], opts.MaxWidth)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (f *TableFormatter) FormatRecord(w io.Writer, l Listing, record map[string]any, opts FormatOptions) error {
	if record == nil {
		_, err := io.WriteString(w, "Record not found.\n")
		return err
	}

	cols := opts.Columns
	if len(cols) == 0 {
		cols = l.Columns
	}
	tw := newTabWriter(w)
	for _, c := range cols {
		fmt.Fprintf(tw, "%s:\t%s\n", f.formatLabel(c), f.formatValue(record[c], 0))
	}
	return tw.Flush()
}

func (f *TableFormatter) FormatError(w io.Writer, err error) error {
	_, werr := fmt.Fprintf(w, "Error: %s\n", err)
	return werr
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// formatLabel turns a snake_case column into "Title Case".
func (f *TableFormatter) formatLabel(col string) string {
	words := strings.Fields(strings.ReplaceAll(col, "_", " "))
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// formatValue renders one cell. Empty values print as "-".
func (f *TableFormatter) formatValue(v any, maxWidth int) string {
	s := cell(v)
	if maxWidth > 3 && len(s) > maxWidth {
		s = s[:maxWidth-3] + "..."
	}
	return s
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case string:
		if v == "" {
			return "-"
		}
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case []string:
		if len(v) == 0 {
			return "-"
		}
		return strings.Join(v, ", ")
	case []byte:
		return "[binary]"
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', 2, 64)
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
