// Command mdledit reads and writes the heels offset attribute of a model
// attribute table (one attribute per line).
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/xtding233/heelshift/internal/attr"
)

var ErrHelp = errors.New("help requested")

const usage = `usage:
  mdledit show  -file <table>
  mdledit set   -file <table> -offset <value> [-safe=false]
  mdledit clear -file <table>
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, ErrHelp) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "mdledit: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return ErrHelp
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet("mdledit "+cmd, flag.ContinueOnError)
	fs.SetOutput(new(strings.Builder))
	file := fs.String("file", "", "attribute table file")
	offset := fs.Float64("offset", math.NaN(), "offset to encode (set only)")
	safe := fs.Bool("safe", true, "use the delimiter-free encoding (set only)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ErrHelp
		}
		return err
	}
	if strings.TrimSpace(*file) == "" {
		return errors.New("-file is required")
	}

	switch cmd {
	case "show":
		attrs, err := readTable(*file)
		if err != nil {
			return err
		}
		v, isSafe, ok := attr.Find(attrs)
		if !ok {
			fmt.Fprintln(out, "no offset")
			return nil
		}
		scheme := "direct"
		if isSafe {
			scheme = "safe"
		}
		fmt.Fprintf(out, "%v (%s)\n", v, scheme)
		return nil
	case "set":
		if math.IsNaN(*offset) {
			return errors.New("-offset is required")
		}
		attrs, err := readTable(*file)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		attrs, err = attr.Set(attrs, *offset, *safe)
		if err != nil {
			return err
		}
		if err := writeTable(*file, attrs); err != nil {
			return err
		}
		fmt.Fprintln(out, attrs[len(attrs)-1])
		return nil
	case "clear":
		attrs, err := readTable(*file)
		if err != nil {
			return err
		}
		return writeTable(*file, attr.Remove(attrs))
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func readTable(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return attr.ReadTable(f)
}

func writeTable(path string, attrs []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := attr.WriteTable(f, attrs); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
