package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestApplySectionCreate verifies that empty content gets a shebang and the
// sentinel-wrapped block.
func TestApplySectionCreate(t *testing.T) {
	t.Parallel()
	section := sentinelStart + "\nbody\n" + sentinelEnd
	got := applySection("", section)
	if !strings.HasPrefix(got, "#!/bin/sh\n") {
		t.Errorf("missing shebang:\n%s", got)
	}
	if !strings.Contains(got, section) {
		t.Error("missing section")
	}
}

// TestApplySectionAppend verifies that an existing hook without a codemap
// block is preserved and the block is appended.
func TestApplySectionAppend(t *testing.T) {
	t.Parallel()
	existing := "#!/bin/bash\nmake lint"
	section := sentinelStart + "\nnew content\n" + sentinelEnd
	got := applySection(existing, section)

	if !strings.HasPrefix(got, existing+"\n") {
		t.Errorf("existing content should be preserved at start:\n%s", got)
	}
	if !strings.HasSuffix(got, section+"\n") {
		t.Errorf("section should be appended:\n%s", got)
	}
}

// TestApplySectionUpdate verifies that an existing sentinel block is replaced
// precisely, leaving surrounding content intact.
func TestApplySectionUpdate(t *testing.T) {
	t.Parallel()
	before := "#!/bin/sh\n\nmake lint\n"
	after := "\n\necho done\n"
	old := before + sentinelStart + "\nold content\n" + sentinelEnd + after

	section := sentinelStart + "\nnew content\n" + sentinelEnd
	got := applySection(old, section)

	if got != before+section+after {
		t.Errorf("unexpected result:\n%s", got)
	}
}

func initGitDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".git", "hooks"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

// TestInstallHooksCreatesFile verifies that install-hooks writes an
// executable pre-commit hook.
func TestInstallHooksCreatesFile(t *testing.T) {
	t.Parallel()
	dir := initGitDir(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"install-hooks", "-C", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	path := filepath.Join(dir, ".git", "hooks", "pre-commit")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("hook not created: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("hook should be executable, mode %v", info.Mode())
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "codemap update --all") {
		t.Errorf("hook missing update command:\n%s", data)
	}
}

// TestInstallHooksPreservesExisting verifies that an existing hook keeps its
// content and that installing twice is idempotent.
func TestInstallHooksPreservesExisting(t *testing.T) {
	t.Parallel()
	dir := initGitDir(t)
	path := filepath.Join(dir, ".git", "hooks", "pre-commit")
	existing := "#!/bin/sh\nmake lint\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := run([]string{"install-hooks", "-C", dir}, &buf, &buf); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(first), existing) {
		t.Errorf("existing hook content lost:\n%s", first)
	}

	if err := run([]string{"install-hooks", "-C", dir}, &buf, &buf); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := os.ReadFile(path)
	if string(first) != string(second) {
		t.Errorf("install-hooks is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

// TestInstallHooksDryRun verifies that --dry-run prints the hook and leaves
// the file system alone.
func TestInstallHooksDryRun(t *testing.T) {
	t.Parallel()
	dir := initGitDir(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"install-hooks", "--dry-run", "-C", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git", "hooks", "pre-commit")); err == nil {
		t.Error("--dry-run should not create the hook")
	}
	if !strings.Contains(stdout.String(), sentinelStart) {
		t.Error("dry-run output missing sentinel start")
	}
}

// TestInstallHooksNotARepo verifies the error outside a git repository.
func TestInstallHooksNotARepo(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"install-hooks", "-C", t.TempDir()}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "git hooks directory not found") {
		t.Errorf("expected hooks directory error, got %v", err)
	}
}
