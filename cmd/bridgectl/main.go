// Command bridgectl assigns configs to live entities through a running
// server's gRPC bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtding233/heelshift/internal/bridge"
	"github.com/xtding233/heelshift/internal/model"
	"github.com/xtding233/heelshift/internal/settings"
)

var ErrHelp = errors.New("help requested")

const usage = `usage:
  bridgectl assign -entity <id> [-source <name>] (-config <file.yaml> | -offset <value>) [-addr <host:port>]
  bridgectl revoke -entity <id> [-addr <host:port>]
  bridgectl list   [-addr <host:port>]
`

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, ErrHelp) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return ErrHelp
	}
	cmd, args := args[0], args[1:]

	defaults, err := settings.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("bridgectl "+cmd, flag.ContinueOnError)
	fs.SetOutput(new(strings.Builder))
	addr := fs.String("addr", defaults.GRPCAddr, "bridge address")
	entity := fs.Int64("entity", -1, "entity id (assign, revoke)")
	source := fs.String("source", "bridgectl", "assignment source name (assign)")
	cfgFile := fs.String("config", "", "YAML entity config to assign (assign)")
	offset := fs.Float64("offset", math.NaN(), "default offset of a rule-less config (assign)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ErrHelp
		}
		return err
	}

	switch cmd {
	case "assign", "revoke":
		if *entity < 0 || *entity > math.MaxUint32 {
			return errors.New("-entity is required")
		}
	case "list":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	c, err := bridge.Dial(*addr)
	if err != nil {
		return err
	}
	defer c.Close()

	switch cmd {
	case "assign":
		cfg, err := loadConfig(*cfgFile, *offset)
		if err != nil {
			return err
		}
		if err := c.Assign(ctx, uint32(*entity), *source, *cfg); err != nil {
			return fmt.Errorf("assign: %w", err)
		}
		fmt.Fprintf(out, "assigned %d\n", *entity)
	case "revoke":
		if err := c.Revoke(ctx, uint32(*entity)); err != nil {
			return fmt.Errorf("revoke: %w", err)
		}
		fmt.Fprintf(out, "revoked %d\n", *entity)
	case "list":
		ids, err := c.List(ctx)
		if err != nil {
			return fmt.Errorf("list: %w", err)
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
	}
	return nil
}

// loadConfig reads an entity config from path, or builds an empty one with
// the given default offset.
func loadConfig(path string, offset float64) (*model.EntityConfig, error) {
	switch {
	case path != "" && !math.IsNaN(offset):
		return nil, errors.New("-config and -offset are exclusive")
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		cfg := model.NewEntityConfig()
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		cfg.Normalize()
		return cfg, nil
	case !math.IsNaN(offset):
		cfg := model.NewEntityConfig()
		cfg.DefaultOffset = offset
		return cfg, nil
	}
	return nil, errors.New("-config or -offset is required")
}
