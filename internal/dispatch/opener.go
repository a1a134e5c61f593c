package dispatch

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// systemOpener shells out to the platform's default-application
// launcher, the thin capability calls the pipeline delegates to.
type systemOpener struct{}

func (systemOpener) OpenFile(path string) Result {
	if !filepath.IsAbs(path) {
		return Result{Message: fmt.Sprintf("configured path must be absolute: %s", path)}
	}
	if _, err := os.Stat(path); err != nil {
		return Result{Message: fmt.Sprintf("file not found: %s", path)}
	}
	if err := launch(path); err != nil {
		return Result{Message: err.Error()}
	}
	return Result{Success: true, Message: fmt.Sprintf("opened %s", path)}
}

func (systemOpener) OpenWeb(raw string) Result {
	u, err := url.Parse(raw)
	if err != nil {
		return Result{Message: fmt.Sprintf("invalid URL: %s", raw)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Result{Message: fmt.Sprintf("unsupported URL scheme: %s", u.Scheme)}
	}
	if u.Host == "" {
		return Result{Message: fmt.Sprintf("invalid URL: %s", raw)}
	}
	if err := launch(raw); err != nil {
		return Result{Message: err.Error()}
	}
	return Result{Success: true, Message: fmt.Sprintf("opened %s", raw)}
}

func launch(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", target)
	case "darwin":
		cmd = exec.Command("open", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", target, err)
	}
	// Releases the child; the launcher exits on its own.
	go cmd.Wait()
	return nil
}
