package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// ErrCancelled means the user closed the dialog without choosing.
var ErrCancelled = errors.New("directory selection cancelled")

type DirectoryPicker interface {
	Pick(ctx context.Context, title string) (string, error)
}

// StaticPicker answers with a fixed path. An empty path behaves like a
// cancelled dialog. Used in headless mode and tests.
type StaticPicker struct {
	Path string
}

func (p StaticPicker) Pick(ctx context.Context, title string) (string, error) {
	if p.Path == "" {
		return "", ErrCancelled
	}
	return p.Path, nil
}

// CommandPicker shows the platform's native folder dialog through a helper
// process: osascript on macOS, PowerShell on Windows, zenity elsewhere.
type CommandPicker struct{}

func (CommandPicker) Pick(ctx context.Context, title string) (string, error) {
	name, args := pickerCommand(runtime.GOOS, title)
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		// Every helper exits non-zero when the dialog is dismissed.
		if errors.As(err, &exitErr) {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("run %s: %w", name, err)
	}

	return cleanPickedPath(stdout.String())
}

// cleanPickedPath trims the helper's output. Trailing separators are dropped
// except for a filesystem or volume root, which keeps one.
func cleanPickedPath(out string) (string, error) {
	path := strings.TrimSpace(out)
	if path == "" {
		return "", ErrCancelled
	}
	trimmed := strings.TrimRight(path, "/\\")
	if trimmed == "" || strings.HasSuffix(trimmed, ":") {
		return path[:len(trimmed)+1], nil
	}
	return trimmed, nil
}

func pickerCommand(goos, title string) (string, []string) {
	if title == "" {
		title = "Choose a folder"
	}
	switch goos {
	case "darwin":
		script := fmt.Sprintf(`POSIX path of (choose folder with prompt %q)`, title)
		return "osascript", []string{"-e", script}
	case "windows":
		script := "Add-Type -AssemblyName System.Windows.Forms;" +
			"$d = New-Object System.Windows.Forms.FolderBrowserDialog;" +
			fmt.Sprintf("$d.Description = '%s';", strings.ReplaceAll(title, "'", "''")) +
			"if ($d.ShowDialog() -eq 'OK') { $d.SelectedPath } else { exit 1 }"
		return "powershell", []string{"-NoProfile", "-Command", script}
	default:
		return "zenity", []string{"--file-selection", "--directory", "--title=" + title}
	}
}
