package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	_ "github.com/marcboeker/go-duckdb"
	_ "modernc.org/sqlite"

	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/form"
)

// Drivers that WriteTable is tested against. Both take ? placeholders.
const (
	DriverSQLite = "sqlite"
	DriverDuckDB = "duckdb"
)

// ValueColumn names the single column of a table written from an array
// that is not a record.
const ValueColumn = "value"

// Column is one column of an exported table.
type Column struct {
	Name string
	Type string
}

// Columns returns the table layout WriteTable creates for c: one column per
// record field, or a single value column.
func Columns(c content.Content) []Column {
	if r, ok := unwrapRecord(c); ok {
		cols := make([]Column, len(r.Contents))
		for i, f := range r.F.Fields {
			cols[i] = Column{Name: f, Type: sqlType(r.Contents[i].Form())}
		}
		return cols
	}
	return []Column{{Name: ValueColumn, Type: sqlType(c.Form())}}
}

// WriteTable creates table and inserts one row per element of c inside a
// single transaction. Lists and records nested below the columns are stored
// as JSON text.
func WriteTable(ctx context.Context, db *sql.DB, table string, c content.Content) error {
	cols := Columns(c)
	names := make([]string, len(cols))
	defs := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		names[i] = quote(col.Name)
		defs[i] = quote(col.Name) + " " + col.Type
		marks[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("export: begin: %w", err)
	}
	defer tx.Rollback()

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quote(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("export: creating table %s: %w", table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table), strings.Join(names, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("export: preparing insert: %w", err)
	}
	defer stmt.Close()

	r, isRecord := unwrapRecord(c)
	args := make([]any, len(cols))
	for i := range c.Len() {
		if isRecord {
			row, ok := c.Value(i).(map[string]any)
			if !ok {
				// a missing record fills its row with nulls
				row = map[string]any{}
			}
			for j, f := range r.F.Fields {
				if args[j], err = sqlValue(row[f]); err != nil {
					return fmt.Errorf("export: row %d, column %s: %w", i, f, err)
				}
			}
		} else if args[0], err = sqlValue(c.Value(i)); err != nil {
			return fmt.Errorf("export: row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("export: inserting row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("export: commit: %w", err)
	}
	return nil
}

// unwrapRecord finds a named record under option and virtual wrappers.
func unwrapRecord(c content.Content) (*content.RecordArray, bool) {
	for {
		switch a := c.(type) {
		case *content.RecordArray:
			return a, !a.F.IsTuple()
		case *content.ByteMaskedArray:
			c = a.Content
		case *content.BitMaskedArray:
			c = a.Content
		case *content.UnmaskedArray:
			c = a.Content
		case *content.IndexedOptionArray:
			c = a.Content
		case *content.IndexedArray:
			c = a.Content
		case *content.VirtualArray:
			inner, err := a.Array()
			if err != nil {
				return nil, false
			}
			c = inner
		default:
			return nil, false
		}
	}
}

func sqlType(f form.Form) string {
	for {
		switch t := f.(type) {
		case *form.ByteMaskedForm:
			f = t.Content
		case *form.BitMaskedForm:
			f = t.Content
		case *form.UnmaskedForm:
			f = t.Content
		case *form.IndexedForm:
			f = t.Content
		case *form.IndexedOptionForm:
			f = t.Content
		case *form.VirtualForm:
			f = t.Form
		case *form.NumpyForm:
			switch {
			case t.DType.IsBool():
				return "BOOLEAN"
			case t.DType.IsInteger():
				return "BIGINT"
			case t.DType.IsFloat():
				return "DOUBLE"
			}
			return "TEXT"
		case *form.RawForm:
			return "BLOB"
		default:
			switch {
			case form.IsString(f):
				return "TEXT"
			case form.IsBytestring(f):
				return "BLOB"
			}
			return "TEXT"
		}
	}
}

// sqlValue converts a materialized value to a driver argument.
func sqlValue(v any) (any, error) {
	switch v := v.(type) {
	case nil, bool, int64, float64, string, []byte:
		return v, nil
	case uint64:
		if v > 1<<63-1 {
			return nil, fmt.Errorf("%d overflows BIGINT", v)
		}
		return int64(v), nil
	}
	text, err := json.Marshal(normalize(v))
	if err != nil {
		return nil, err
	}
	return string(text), nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
