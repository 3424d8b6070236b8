package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/chazu/typedbuilder/export"
	"github.com/chazu/typedbuilder/forth"
)

const sample = `{"a": 1, "b": "x"}
{"a": 2, "b": null}
`

func setup(t *testing.T) (options, *os.File) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jsonl")
	if err := os.WriteFile(in, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := os.Create(filepath.Join(dir, "out"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { out.Close() })
	return options{inputPaths: []string{in}, configDir: dir, verbosity: -1}, out
}

func output(t *testing.T, out *os.File) []byte {
	t.Helper()
	data, err := os.ReadFile(out.Name())
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestRunJSON(t *testing.T) {
	o, out := setup(t)
	if err := run(o, strings.NewReader(""), out); err != nil {
		t.Fatal(err)
	}
	var got []any
	if err := json.Unmarshal(output(t, out), &got); err != nil {
		t.Fatal(err)
	}
	want := []any{
		map[string]any{"a": 1.0, "b": "x"},
		map[string]any{"a": 2.0, "b": nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestRunStdinCBOR(t *testing.T) {
	o, out := setup(t)
	o.inputPaths = nil
	o.asCBOR = true
	if err := run(o, strings.NewReader(`[1, 2] []`), out); err != nil {
		t.Fatal(err)
	}
	got, err := export.UnmarshalCBOR(output(t, out))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{[]any{int64(1), int64(2)}, []any{}}, got); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}
}

func TestRunChunkAndSQL(t *testing.T) {
	o, out := setup(t)
	dir := filepath.Dir(out.Name())
	o.quiet = true
	o.showVM = true
	o.chunkPath = filepath.Join(dir, "fill.chunk")
	o.sqlDriver = export.DriverSQLite
	o.sqlDSN = filepath.Join(dir, "out.db")
	o.table = "rows"
	if err := run(o, strings.NewReader(""), out); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(output(t, out)), "input events") {
		t.Error("program text was not printed")
	}

	data, err := os.ReadFile(o.chunkPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := forth.UnmarshalChunk(data); err != nil {
		t.Errorf("chunk does not decode: %v", err)
	}

	db, err := sql.Open(export.DriverSQLite, o.sqlDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM "rows" WHERE b IS NULL`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("%d null rows, want 1", n)
	}
}

func TestRunBadInput(t *testing.T) {
	o, out := setup(t)
	o.inputPaths = nil
	if err := run(o, strings.NewReader(`{"a": `), out); err == nil {
		t.Error("truncated input was accepted")
	}
}
