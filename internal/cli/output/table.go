package output

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// TableFormatter prints structs and slices of structs as aligned
// columns. Column names come from json tags, upper-cased. Field tags
// control rendering:
//
//	table:"-"       never shown
//	table:"wide"    shown only with --wide
//	table:"millis"  unix milliseconds printed as local time
//
// Anonymous struct fields are flattened into the parent's columns.
// Values that do not tabulate fall back to JSON.
type TableFormatter struct {
	Wide bool
}

// Format implements Formatter.
func (f TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}
	if t, ok := data.(*Table); ok {
		return t.Render(w)
	}

	v := reflect.Indirect(reflect.ValueOf(data))
	var t *Table
	switch {
	case v.Kind() == reflect.Slice && isStruct(v.Type().Elem()):
		t = f.rows(v)
	case v.Kind() == reflect.Struct:
		t = f.fields(v)
	default:
		return JSONFormatter{}.Format(w, data)
	}
	return t.Render(w)
}

type column struct {
	name   string
	index  []int
	millis bool
}

// columns lists the visible fields of struct type t.
func (f TableFormatter) columns(t reflect.Type) []column {
	var cols []column
	for _, sf := range reflect.VisibleFields(t) {
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		opts := strings.Split(sf.Tag.Get("table"), ",")
		if has(opts, "-") || (has(opts, "wide") && !f.Wide) {
			continue
		}
		name := sf.Name
		if tag, _, _ := strings.Cut(sf.Tag.Get("json"), ","); tag != "" && tag != "-" {
			name = tag
		}
		cols = append(cols, column{name: strings.ToUpper(name), index: sf.Index, millis: has(opts, "millis")})
	}
	return cols
}

func (f TableFormatter) rows(v reflect.Value) *Table {
	cols := f.columns(elemType(v.Type().Elem()))
	t := &Table{}
	for _, c := range cols {
		t.Headers = append(t.Headers, c.name)
	}
	for i := 0; i < v.Len(); i++ {
		elem := reflect.Indirect(v.Index(i))
		if !elem.IsValid() {
			continue
		}
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = cell(elem.FieldByIndex(c.index), c.millis)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// fields renders one struct as FIELD/VALUE pairs.
func (f TableFormatter) fields(v reflect.Value) *Table {
	t := &Table{Headers: []string{"FIELD", "VALUE"}}
	for _, c := range f.columns(v.Type()) {
		t.AddRow(strings.ToLower(c.name), cell(v.FieldByIndex(c.index), c.millis))
	}
	return t
}

var durationType = reflect.TypeOf(time.Duration(0))

// cell formats one value. Empty strings and collections print as "-".
func cell(v reflect.Value, millis bool) string {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}

	switch {
	case v.Type() == durationType:
		return time.Duration(v.Int()).Round(time.Millisecond).String()
	case millis && v.CanInt():
		if v.Int() == 0 {
			return "-"
		}
		return time.UnixMilli(v.Int()).Local().Format(time.DateTime)
	}

	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', 2, 64)
	case reflect.Slice, reflect.Array, reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.String {
			parts := make([]string, v.Len())
			for i := range parts {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, ",")
		}
		return fmt.Sprintf("(%d)", v.Len())
	default:
		return fmt.Sprint(v)
	}
}

func elemType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func isStruct(t reflect.Type) bool {
	return elemType(t).Kind() == reflect.Struct
}

func has(opts []string, want string) bool {
	for _, o := range opts {
		if strings.TrimSpace(o) == want {
			return true
		}
	}
	return false
}

// Table is pre-built tabular output.
type Table struct {
	Headers []string
	Rows    [][]string
}

// SetHeaders sets the header row.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Render writes the table with two-space column gaps. A table with no
// rows prints only its header.
func (t *Table) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(t.Headers) > 0 {
		fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
	}
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
