package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRunWritesJSON(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "tet.lisp",
		`(defcloud "tet" (points (point 0 0 0) (point 1 0 0) (point 0 1 0) (point 0 0 1)))`)
	cfg := writeFile(t, dir, "cocone.toml", "[log]\nlevel = \"error\"\n[batch]\nworkers = 1\n")
	out := filepath.Join(dir, "mesh.json")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-script", script, "-config", cfg, "-out", out}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v (stderr: %s)", err, stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("output should go to the -out file, got stdout %q", stdout.String())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var result EvalResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(result.Meshes) != 1 || result.Meshes[0].PartName != "tet" || result.Meshes[0].FacetCount != 4 {
		t.Errorf("meshes = %+v", result.Meshes)
	}
}

func TestRunStdout(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "ring.lisp", `(defcloud "ring" (circle :count 16 :radius 1))`)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-script", script}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), `"partName": "ring"`) {
		t.Errorf("stdout = %s", stdout.String())
	}
}

func TestRunReportsErrors(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "bad.lisp", `(defcloud "s" (sample (sphere :radius 0)))`)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-script", script}, &stdout, &stderr)
	if !errors.Is(err, errFailed) {
		t.Fatalf("expected errFailed, got %v", err)
	}
	if !strings.Contains(stderr.String(), "sphere radius") {
		t.Errorf("stderr should carry the error: %s", stderr.String())
	}
}

func TestRunUsageErrors(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "ok.lisp", `(+ 1 2)`)
	badCfg := writeFile(t, dir, "bad.toml", "[cocone]\nquorum = -1\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing script", nil, "-script is required"},
		{"unknown flag", []string{"-nope"}, "not defined"},
		{"missing file", []string{"-script", filepath.Join(dir, "absent.lisp")}, "read script"},
		{"bad config", []string{"-script", script, "-config", badCfg}, "quorum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(tt.args, &stdout, &stderr)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}
