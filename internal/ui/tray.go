package ui

import (
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"github.com/heimdex/watermark-eraser/internal/transfer"
)

//go:embed icon.png
var iconBytes []byte

// pollInterval is how often the tray refreshes from the upload manager.
const pollInterval = time.Second

// Uploads is the part of the transfer manager the tray shows and controls.
type Uploads interface {
	Snapshot() transfer.Status
	Cancel()
}

// Access reports and clears the unlock state.
type Access interface {
	Unlocked() bool
	Clear()
}

type Tray struct {
	uploads Uploads
	access  Access
	logger  *slog.Logger

	statusItem *systray.MenuItem
	accessItem *systray.MenuItem
	cancelItem *systray.MenuItem
	lockItem   *systray.MenuItem

	mu   sync.Mutex
	done chan struct{}

	onQuit func()
}

type TrayConfig struct {
	Uploads Uploads
	Access  Access
	Logger  *slog.Logger
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		uploads: cfg.Uploads,
		access:  cfg.Access,
		logger:  cfg.Logger,
		onQuit:  cfg.OnQuit,
		done:    make(chan struct{}),
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Eraser")
	systray.SetTooltip("Watermark Eraser")

	t.statusItem = systray.AddMenuItem("Upload: idle", "Current upload")
	t.statusItem.Disable()

	t.accessItem = systray.AddMenuItem("Access: locked", "Access link state")
	t.accessItem.Disable()

	systray.AddSeparator()

	t.cancelItem = systray.AddMenuItem("Cancel Upload", "Stop the current upload")
	t.cancelItem.Disable()

	t.lockItem = systray.AddMenuItem("Forget Access Link", "Lock until a new access link is used")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Watermark Eraser")

	go t.poll()

	go func() {
		for {
			select {
			case <-t.cancelItem.ClickedCh:
				t.logger.Info("upload cancel requested from tray")
				t.uploads.Cancel()
				t.refresh()
			case <-t.lockItem.ClickedCh:
				t.logger.Info("access lock requested from tray")
				t.access.Clear()
				t.refresh()
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
	close(t.done)
	t.logger.Info("system tray exiting")
}

func (t *Tray) poll() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	t.refresh()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.refresh()
		}
	}
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := t.uploads.Snapshot()
	systray.SetTitle(trayTitle(status))
	t.statusItem.SetTitle(statusLine(status, time.Now()))

	if active(status.State) {
		t.cancelItem.Enable()
	} else {
		t.cancelItem.Disable()
	}

	if t.access.Unlocked() {
		t.accessItem.SetTitle("Access: unlocked")
		t.lockItem.Enable()
	} else {
		t.accessItem.SetTitle("Access: locked")
		t.lockItem.Disable()
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

func active(s transfer.State) bool {
	return s == transfer.StateCreatingRecord || s == transfer.StateSendingChunks
}

// trayTitle is the short text next to the icon.
func trayTitle(s transfer.Status) string {
	if active(s.State) {
		return fmt.Sprintf("Eraser %.0f%%", s.ProgressPercent)
	}
	return "Eraser"
}

// statusLine describes the upload in the menu.
func statusLine(s transfer.Status, now time.Time) string {
	switch s.State {
	case transfer.StateCreatingRecord:
		return fmt.Sprintf("Upload: preparing %s", s.FileName)
	case transfer.StateSendingChunks:
		return fmt.Sprintf("Upload: %s %.0f%% (%s of %s chunks)",
			s.FileName, s.ProgressPercent, humanize.Comma(int64(s.ChunksSent)), humanize.Comma(int64(s.ChunkCount)))
	case transfer.StateCompleted:
		return fmt.Sprintf("Upload: %s done %s", s.FileName, humanize.RelTime(s.UpdatedAt, now, "ago", "from now"))
	case transfer.StateCancelled:
		return fmt.Sprintf("Upload: %s cancelled", s.FileName)
	case transfer.StateFailed:
		if s.ErrorMessage != "" {
			return "Upload failed: " + s.ErrorMessage
		}
		return "Upload failed"
	default:
		return "Upload: idle"
	}
}
