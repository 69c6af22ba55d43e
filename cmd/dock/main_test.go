package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "dock dev") {
		t.Errorf("expected output to contain 'dock dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "dock 1.0.0 (commit: abc123, built: 2026-01-01)") {
		t.Errorf("unexpected version output: %s", out)
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := run(t, "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, want := range []string{"Drydock", "plan", "conflict", "serve", "export"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help output to contain %q, got: %s", want, out)
		}
	}
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "plan", "list", "-c", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected load config error, got %v", err)
	}
}

const testDirectory = `
users:
  - id: 1
    name: Ana
    role: fitter
    shift: day
  - id: 2
    name: Ben
    role: electrician
    shift: day
equipment:
  - id: 1
    name: STS-1
    type: crane
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "drydock.db") + "\n"
	path := filepath.Join(dir, "drydock.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "directory.yaml"), []byte(testDirectory), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlanWorkflow(t *testing.T) {
	cfg := writeConfig(t)
	dirFile := filepath.Join(filepath.Dir(cfg), "directory.yaml")

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"db", "init"}, "initialized successfully"},
		{[]string{"db", "seed", dirFile}, "Seeded 2 users, 1 equipment"},
		{[]string{"plan", "create", "--week", "2026-03-04"}, "Created plan 1 for 2026-03-02 to 2026-03-08"},
		{[]string{"job", "add", "--day", "1", "--type", "preventive", "--hours", "4", "--equipment", "1"}, "Created job 1"},
		{[]string{"capacity", "check", "1", "1", "--hours", "13"}, "INVALID"},
		{[]string{"job", "assign", "1", "1", "--lead"}, "Assigned user 1 to job 1"},
		{[]string{"plan", "show", "1"}, "crew 1*"},
		{[]string{"conflict", "scan", "1"}, "0 errors"},
		{[]string{"validate", "plan", "1"}, "VALID"},
		{[]string{"plan", "publish", "1"}, "Published plan 1"},
		{[]string{"plan", "version", "list", "1"}, "publish"},
		{[]string{"export", "1", "-f", "csv"}, "Date,Job,Type"},
		{[]string{"report", "completion"}, "1 jobs"},
	}
	for _, s := range steps {
		out, err := run(t, append(s.args, "-c", cfg)...)
		if err != nil {
			t.Fatalf("%v failed: %v\n%s", s.args, err, out)
		}
		if !strings.Contains(out, s.want) {
			t.Errorf("%v: expected output to contain %q, got: %s", s.args, s.want, out)
		}
	}
}

func TestPublishRejectsInvalidPlan(t *testing.T) {
	cfg := writeConfig(t)
	for _, args := range [][]string{
		{"db", "init"},
		{"plan", "create", "--week", "2026-03-02"},
		{"job", "add", "--day", "2", "--type", "inspection", "--hours", "2"},
	} {
		if out, err := run(t, append(args, "-c", cfg)...); err != nil {
			t.Fatalf("%v failed: %v\n%s", args, err, out)
		}
	}

	out, err := run(t, "plan", "publish", "1", "-c", cfg)
	if err == nil {
		t.Fatalf("expected publish to fail, got: %s", out)
	}
	if !strings.Contains(out, "unassigned_job") {
		t.Errorf("expected verdict to list unassigned_job, got: %s", out)
	}
}

func TestParseParts(t *testing.T) {
	parts, err := parseParts([]string{"3:4", "4:2.5"})
	if err != nil {
		t.Fatalf("parseParts: %v", err)
	}
	if len(parts) != 2 || parts[0].DayID != 3 || parts[1].Hours != 2.5 {
		t.Errorf("unexpected parts: %+v", parts)
	}

	for _, bad := range []string{"3", "x:4", "3:many", "0:4"} {
		if _, err := parseParts([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestStartHousekeeping_BadSpec(t *testing.T) {
	if _, err := startHousekeeping(context.Background(), nil, "every tuesday"); err == nil {
		t.Fatal("expected error for malformed cron spec")
	}
}

func TestArchiveArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"plan", "archive", "1", "--elapsed"})
	var target *cobra.Command
	target, _, _ = cmd.Find([]string{"plan", "archive"})
	if target == nil || target.Name() != "archive" {
		t.Fatal("archive command not registered")
	}
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "either a plan id or --elapsed") {
		t.Fatalf("expected argument error, got %v", err)
	}
}
