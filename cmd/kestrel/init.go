package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"kestrel/internal/config"
	"kestrel/internal/limits"
)

const starterProgram = `fn greet(name = "world") {
  return "hello, ${name}";
}

print(greet());
`

// runInit writes kestrel.toml and a starter entry script into -dir.
func (c cli) runInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dir := fs.String("dir", ".", "project directory")
	name := fs.String("name", "", "project name")
	entry := fs.String("entry", "main.kes", "entry file")
	force := fs.Bool("force", false, "overwrite existing files")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		fmt.Fprintln(c.stderr, "usage: kestrel init [-dir <dir>] [-name <name>] [-entry <file>] [-force]")
		return 2
	}
	if strings.TrimSpace(*entry) == "" {
		fmt.Fprintln(c.stderr, "init error: entry cannot be empty")
		return 1
	}
	if *name == "" {
		abs, err := filepath.Abs(*dir)
		if err == nil {
			*name = filepath.Base(abs)
		}
	}

	manifestPath := filepath.Join(*dir, config.FileName)
	if exists, err := pathExists(manifestPath); err != nil {
		fmt.Fprintln(c.stderr, "init error:", err)
		return 1
	} else if exists && !*force {
		fmt.Fprintf(c.stderr, "init error: %s already exists (use -force to overwrite)\n", config.FileName)
		return 1
	}

	data, err := buildManifest(*name, *entry)
	if err != nil {
		fmt.Fprintln(c.stderr, "init error:", err)
		return 1
	}
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		fmt.Fprintln(c.stderr, "init error:", err)
		return 1
	}
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		fmt.Fprintln(c.stderr, "init error:", err)
		return 1
	}

	entryPath := filepath.Join(*dir, *entry)
	if err := os.MkdirAll(filepath.Dir(entryPath), 0o755); err != nil {
		fmt.Fprintln(c.stderr, "init error:", err)
		return 1
	}
	exists, err := pathExists(entryPath)
	if err != nil {
		fmt.Fprintln(c.stderr, "init error:", err)
		return 1
	}
	if !exists || *force {
		if err := os.WriteFile(entryPath, []byte(starterProgram), 0o644); err != nil {
			fmt.Fprintln(c.stderr, "init error:", err)
			return 1
		}
	}
	fmt.Fprintf(c.stdout, "created %s\n", manifestPath)
	return 0
}

func buildManifest(name, entry string) ([]byte, error) {
	def := limits.Default()
	man := config.Manifest{
		Project: config.Project{Name: name, Entry: entry},
		Limits: config.LimitConfig{
			MaxFrames: def.MaxFrames,
			StackSize: def.StackSize,
		},
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(man); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
