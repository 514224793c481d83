package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	sentinelStart = "# codemap:start"
	sentinelEnd   = "# codemap:end"
)

func newInstallHooksCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "install-hooks",
		Short: "Install a git pre-commit hook that keeps the map current",
		Long: `Write a codemap block to .git/hooks/pre-commit. The block is wrapped in
sentinel comments so it can be updated in place on subsequent runs without
touching the rest of an existing hook.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(""); err != nil {
				return err
			}

			hooksDir := filepath.Join(a.root, ".git", "hooks")
			if info, err := os.Stat(hooksDir); err != nil || !info.IsDir() {
				return fmt.Errorf("git hooks directory not found: %s (is this a git repository?)", hooksDir)
			}
			path := filepath.Join(hooksDir, "pre-commit")

			existing, err := os.ReadFile(path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			updated := applySection(string(existing), generateHook())

			if dryRun {
				_, _ = fmt.Fprint(a.stdout, updated)
				return nil
			}

			if err := os.WriteFile(path, []byte(updated), 0o755); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			// WriteFile keeps the mode of an existing file.
			if err := os.Chmod(path, 0o755); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(a.stderr, "installed codemap pre-commit hook in %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the resulting hook without writing it")
	return cmd
}

// generateHook returns the sentinel-wrapped hook block.
func generateHook() string {
	body := `if command -v codemap >/dev/null 2>&1 && [ -d .codemap ]; then
    codemap update --all --quiet || exit 1
fi`
	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. Empty content gets a shell shebang.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return "#!/bin/sh\n\n" + section + "\n"
	}

	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
