// Package ui runs the system tray menu of the desktop agent.
package ui

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"
)

type Tray struct {
	logger *slog.Logger

	statusItem *systray.MenuItem
	folderItem *systray.MenuItem
	draftItem  *systray.MenuItem

	mu          sync.Mutex
	status      string
	draftFolder string
	lastDraftID string

	onChooseFolder func() (string, error)
	onQuit         func()
}

type TrayConfig struct {
	Logger      *slog.Logger
	DraftFolder string
	LastDraftID string
	// OnChooseFolder shows the folder dialog and stores the result. An empty
	// path with a nil error means the user cancelled.
	OnChooseFolder func() (string, error)
	OnQuit         func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		logger:         cfg.Logger,
		status:         "Idle",
		draftFolder:    cfg.DraftFolder,
		lastDraftID:    cfg.LastDraftID,
		onChooseFolder: cfg.OnChooseFolder,
		onQuit:         cfg.OnQuit,
	}
}

// SetHandlers replaces the menu callbacks. Call it before Run.
func (t *Tray) SetHandlers(onChooseFolder func() (string, error), onQuit func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChooseFolder = onChooseFolder
	t.onQuit = onQuit
}

// Run blocks until Quit is called. It must run on the main goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("DraftDesk")
	systray.SetTooltip("DraftDesk Agent")

	t.mu.Lock()
	t.statusItem = systray.AddMenuItem(statusTitle(t.status), "Current agent status")
	t.statusItem.Disable()
	t.folderItem = systray.AddMenuItem(folderTitle(t.draftFolder), "Folder new drafts are written to")
	t.folderItem.Disable()
	t.draftItem = systray.AddMenuItem(lastDraftTitle(t.lastDraftID), "Most recently generated draft")
	t.draftItem.Disable()
	t.mu.Unlock()

	systray.AddSeparator()

	chooseItem := systray.AddMenuItem("Choose Draft Folder…", "Pick the folder new drafts are written to")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit DraftDesk Agent")

	go func() {
		for {
			select {
			case <-chooseItem.ClickedCh:
				t.handleChooseFolder()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleChooseFolder() {
	if t.onChooseFolder == nil {
		return
	}
	path, err := t.onChooseFolder()
	if err != nil {
		t.logger.Error("failed to choose draft folder", "error", err)
		t.UpdateStatus("Error")
		return
	}
	if path != "" {
		t.UpdateDraftFolder(path)
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
	if t.statusItem != nil {
		t.statusItem.SetTitle(statusTitle(status))
	}
}

func (t *Tray) UpdateDraftFolder(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.draftFolder = path
	if t.folderItem != nil {
		t.folderItem.SetTitle(folderTitle(path))
	}
}

func (t *Tray) UpdateLastDraft(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastDraftID = id
	if t.draftItem != nil {
		t.draftItem.SetTitle(lastDraftTitle(id))
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

func statusTitle(status string) string {
	return "Status: " + status
}

// folderTitle shows only the last path element; the menu is too narrow for
// full paths.
func folderTitle(path string) string {
	if path == "" {
		return "Draft folder: not set"
	}
	return "Draft folder: " + filepath.Base(path)
}

func lastDraftTitle(id string) string {
	if id == "" {
		return "Last draft: none"
	}
	return "Last draft: " + id
}
