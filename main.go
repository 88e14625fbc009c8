// Command cocone evaluates a scene script, samples its point clouds and
// reconstructs a surface for each one, writing the meshes as JSON.
//
//	cocone -script scene.lisp [-config cocone.toml] [-out mesh.json]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/chazu/cocone/pkg/config"
)

var errFailed = errors.New("reconstruction reported errors")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "cocone:", err)
		}
		os.Exit(1)
	}
}

// run parses args, evaluates the script and writes the result to out, or
// to the -out file when given.
func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cocone", flag.ContinueOnError)
	fs.SetOutput(stderr)
	script := fs.String("script", "", "scene script to evaluate (required)")
	configPath := fs.String("config", "", "TOML configuration file")
	outPath := fs.String("out", "", "output JSON file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *script == "" {
		fs.Usage()
		return errors.New("-script is required")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	app, err := NewAppWithConfig(cfg)
	if err != nil {
		return err
	}

	source, err := os.ReadFile(*script)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	result := app.EvaluateContext(ctx, string(source))

	out := stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	for _, w := range result.Warnings {
		fmt.Fprintln(stderr, "warning:", w.Message)
	}
	for _, e := range result.Errors {
		if e.Line > 0 {
			fmt.Fprintf(stderr, "error: line %d: %s\n", e.Line, e.Message)
		} else {
			fmt.Fprintln(stderr, "error:", e.Message)
		}
	}
	if len(result.Errors) > 0 {
		return errFailed
	}
	return nil
}
