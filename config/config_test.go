package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[buffers]
initial = 64
resize = 2.0

[machine]
stack-depth = 32
return-depth = 16
trace = true

[log]
verbosity = 2
file = "build.log"

[export]
driver = "duckdb"
dsn = "out.db"
table = "points"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Buffers.Initial != 64 || c.Buffers.Resize != 2.0 {
		t.Errorf("buffers = %+v", c.Buffers)
	}
	if c.Machine.StackDepth != 32 || c.Machine.ReturnDepth != 16 || !c.Machine.Trace {
		t.Errorf("machine = %+v", c.Machine)
	}
	if c.Export.Driver != "duckdb" || c.Export.DSN != "out.db" || c.Export.Table != "points" {
		t.Errorf("export = %+v", c.Export)
	}
	if got, want := c.LogFile(), filepath.Join(c.Dir, "build.log"); got != want {
		t.Errorf("log file = %q, want %q", got, want)
	}

	opts := c.MachineOptions()
	if opts.StackDepth != 32 || opts.Buffers.Initial != 64 || !opts.Trace {
		t.Errorf("machine options = %+v", opts)
	}
	if c.BuilderOptions().Machine == nil {
		t.Error("builder options have no machine")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[log]\nverbosity = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	d := Default()
	if c.Buffers != d.Buffers || c.Machine != d.Machine || c.Export.Driver != "sqlite" {
		t.Errorf("defaults not applied: %+v", c)
	}
	if c.LogFile() != "" {
		t.Errorf("log file = %q, want stderr", c.LogFile())
	}
}

func TestLoadConfigParseError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[buffers\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected a parse error")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[export]\ntable = \"t\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c == nil || c.Export.Table != "t" {
		t.Fatalf("config = %+v", c)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadMissing(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	// A typedbuilder.toml above the temp dir would be found; only check the
	// result is consistent.
	if c != nil && c.Dir == "" {
		t.Error("loaded config without a directory")
	}
}
