// typedbuild - infers a form for JSON values and builds them into an array
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/typedbuilder/builder"
	"github.com/chazu/typedbuilder/config"
	"github.com/chazu/typedbuilder/content"
	"github.com/chazu/typedbuilder/discover"
	"github.com/chazu/typedbuilder/export"
	"github.com/chazu/typedbuilder/forth"
)

var (
	errorColor = color.New(color.FgRed, color.Bold).SprintFunc()
	noteColor  = color.New(color.FgCyan).SprintFunc()
)

type options struct {
	showVM     bool
	disasm     bool
	chunkPath  string
	asCBOR     bool
	quiet      bool
	verbosity  int
	configDir  string
	sqlDriver  string
	sqlDSN     string
	table      string
	inputPaths []string
}

func main() {
	var o options
	flag.BoolVar(&o.showVM, "vm", false, "Print the generated program")
	flag.BoolVar(&o.disasm, "disasm", false, "Print the disassembled program")
	flag.StringVar(&o.chunkPath, "chunk", "", "Write the compiled program as CBOR to this file")
	flag.BoolVar(&o.asCBOR, "cbor", false, "Write the array as CBOR instead of JSON")
	flag.BoolVar(&o.quiet, "q", false, "Do not print the array")
	flag.IntVar(&o.verbosity, "v", -1, "Log verbosity (overrides typedbuilder.toml)")
	flag.StringVar(&o.configDir, "config", ".", "Directory to search upward for typedbuilder.toml")
	flag.StringVar(&o.sqlDriver, "sql-driver", "", "SQL driver for -sql-dsn: sqlite or duckdb")
	flag.StringVar(&o.sqlDSN, "sql-dsn", "", "Write the array to this database")
	flag.StringVar(&o.table, "table", "", "Table name for -sql-dsn")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: typedbuild [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Reads JSON values from file or stdin, infers their form and builds them\n")
		fmt.Fprintf(os.Stderr, "into a typed array.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  typedbuild data.jsonl                   # Print the array as JSON\n")
		fmt.Fprintf(os.Stderr, "  typedbuild -vm -q data.jsonl            # Show the generated program\n")
		fmt.Fprintf(os.Stderr, "  typedbuild -sql-dsn out.db -table t data.jsonl\n")
	}
	flag.Parse()
	o.inputPaths = flag.Args()

	if err := run(o, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorColor("Error:"), err)
		os.Exit(1)
	}
}

func run(o options, stdin io.Reader, stdout *os.File) error {
	cfg, err := config.FindAndLoad(o.configDir)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if o.verbosity >= 0 {
		cfg.Log.Verbosity = o.verbosity
	}
	if o.sqlDriver != "" {
		cfg.Export.Driver = o.sqlDriver
	}
	if o.sqlDSN != "" {
		cfg.Export.DSN = o.sqlDSN
	}
	if o.table != "" {
		cfg.Export.Table = o.table
	}
	configureLogging(cfg)

	values, err := readValues(o.inputPaths, stdin)
	if err != nil {
		return err
	}
	f, err := discover.Infer(values)
	if err != nil {
		return err
	}
	b, err := builder.New(f, cfg.BuilderOptions())
	if err != nil {
		return err
	}

	if o.showVM {
		fmt.Fprintln(stdout, b.ToVM())
	}
	if o.disasm || o.chunkPath != "" {
		if err := writeChunk(o, b, stdout); err != nil {
			return err
		}
	}

	if err := discover.ReplayAll(b, values); err != nil {
		return err
	}
	c, err := b.Snapshot()
	if err != nil {
		return err
	}
	if cfg.Log.Verbosity > 0 {
		fmt.Fprintf(os.Stderr, "%s %d elements as %s\n", noteColor("Built"), c.Len(), b)
	}

	if cfg.Export.DSN != "" {
		if err := writeSQL(cfg.Export, c); err != nil {
			return err
		}
	}
	if o.quiet {
		return nil
	}
	return writeArray(o, c, stdout)
}

func configureLogging(cfg *config.Config) {
	if path := cfg.LogFile(); path != "" {
		commonlog.Configure(cfg.Log.Verbosity, &path)
		return
	}
	commonlog.Configure(cfg.Log.Verbosity, nil)
}

func readValues(paths []string, stdin io.Reader) ([]any, error) {
	if len(paths) == 0 {
		return discover.ReadJSONLines(stdin)
	}
	var all []any
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		values, err := discover.ReadJSONLines(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, values...)
	}
	return all, nil
}

func writeChunk(o options, b *builder.TypedArrayBuilder, stdout io.Writer) error {
	chunk, err := forth.Compile(b.ToVM())
	if err != nil {
		return err
	}
	if o.disasm {
		fmt.Fprint(stdout, chunk.Disassemble())
	}
	if o.chunkPath == "" {
		return nil
	}
	data, err := forth.MarshalChunk(chunk)
	if err != nil {
		return err
	}
	return os.WriteFile(o.chunkPath, data, 0o644)
}

func writeSQL(e config.Export, c content.Content) error {
	db, err := sql.Open(e.Driver, e.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	return export.WriteTable(context.Background(), db, e.Table, c)
}

func writeArray(o options, c content.Content, stdout *os.File) error {
	if o.asCBOR {
		data, err := export.MarshalCBOR(c)
		if err != nil {
			return err
		}
		_, err = stdout.Write(data)
		return err
	}

	var data []byte
	var err error
	if isatty.IsTerminal(stdout.Fd()) {
		data, err = json.MarshalIndent(export.Plain(c), "", "  ")
	} else {
		data, err = json.Marshal(export.Plain(c))
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(data))
	return err
}
