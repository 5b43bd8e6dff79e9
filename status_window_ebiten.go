//go:build !headless

// status_window_ebiten.go - Ebiten status window for gbsengine

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"context"
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

const (
	statusWindowW = 480
	statusWindowH = 150
)

// StatusWindow shows the published player status and turns key presses into
// player commands. Run owns the calling goroutine until the window closes.
type StatusWindow struct {
	ctx    context.Context
	board  *statusBoard
	cmds   chan<- GBSCommand
	header GBSHeader

	mu         sync.Mutex
	status     GBSStatus
	fullscreen bool

	clipboardOnce sync.Once
	clipboardOK   bool
}

func NewStatusWindow(board *statusBoard, cmds chan<- GBSCommand, header GBSHeader) *StatusWindow {
	return &StatusWindow{board: board, cmds: cmds, header: header}
}

func (w *StatusWindow) Run(ctx context.Context) error {
	w.ctx = ctx
	ebiten.SetWindowSize(statusWindowW*2, statusWindowH*2)
	ebiten.SetWindowTitle(fmt.Sprintf("gbsengine - %s", w.header.Title))
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)
	if err := ebiten.RunGame(w); err != nil {
		return fmt.Errorf("status window: %w", err)
	}
	return nil
}

func (w *StatusWindow) Update() error {
	if ebiten.IsWindowBeingClosed() {
		sendCommand(w.cmds, GBSCommand{Kind: GBSCmdQuit})
		return ebiten.Termination
	}
	select {
	case <-w.ctx.Done():
		return ebiten.Termination
	default:
	}

	s := w.board.Snapshot()
	w.mu.Lock()
	w.status = s
	w.mu.Unlock()
	if s.Done {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		w.fullscreen = !w.fullscreen
		ebiten.SetFullscreen(w.fullscreen)
	}
	w.handleKeyboardInput(s)
	return nil
}

func (w *StatusWindow) handleKeyboardInput(s GBSStatus) {
	for _, r := range ebiten.AppendInputChars(nil) {
		if r == 'c' || r == 'C' {
			w.copyStatus(s)
			continue
		}
		if b, ok := runeToInputByte(r); ok {
			if cmd, ok := keyCommand(b); ok {
				sendCommand(w.cmds, cmd)
			}
		}
	}
	for _, key := range []ebiten.Key{ebiten.KeyArrowRight, ebiten.KeyArrowLeft, ebiten.KeyEscape} {
		if inpututil.IsKeyJustPressed(key) {
			if cmd, ok := translateSpecialKey(key); ok {
				sendCommand(w.cmds, cmd)
			}
		}
	}
}

func runeToInputByte(r rune) (byte, bool) {
	if r <= 0 || r > 0xFF {
		return 0, false
	}
	return byte(r), true
}

func translateSpecialKey(key ebiten.Key) (GBSCommand, bool) {
	switch key {
	case ebiten.KeyArrowRight:
		return GBSCommand{Kind: GBSCmdNext}, true
	case ebiten.KeyArrowLeft:
		return GBSCommand{Kind: GBSCmdPrev}, true
	case ebiten.KeyEscape:
		return GBSCommand{Kind: GBSCmdQuit}, true
	default:
		return GBSCommand{}, false
	}
}

// copyStatus puts the header and status line on the system clipboard
func (w *StatusWindow) copyStatus(s GBSStatus) {
	w.clipboardOnce.Do(func() {
		w.clipboardOK = clipboard.Init() == nil
	})
	if !w.clipboardOK {
		return
	}
	clipboard.Write(clipboard.FmtText, []byte(statusClipboardText(w.header, s)))
}

func statusClipboardText(h GBSHeader, s GBSStatus) string {
	return fmt.Sprintf("%s - %s (%s)\n%s\n", h.Title, h.Author, h.Copyright, formatStatusLine(s))
}

func (w *StatusWindow) Draw(screen *ebiten.Image) {
	w.mu.Lock()
	s := w.status
	w.mu.Unlock()

	face := basicfont.Face7x13
	labelColor := color.RGBA{190, 190, 190, 255}
	valueColor := color.RGBA{0, 220, 90, 255}

	text.Draw(screen, w.header.Title, face, 6, 16, valueColor)
	text.Draw(screen, w.header.Author, face, 6, 30, labelColor)
	text.Draw(screen, w.header.Copyright, face, 6, 44, labelColor)

	clock := formatClock(s.Elapsed)
	if s.Length > 0 {
		clock += "/" + formatClock(s.Length)
	}
	line := fmt.Sprintf("Song %d/%d  %s", s.Subsong, s.Songs, clock)
	if s.Paused {
		line += "  PAUSED"
	}
	text.Draw(screen, line, face, 6, 64, labelColor)
	if s.Title != "" && s.Title != w.header.Title {
		text.Draw(screen, s.Title, face, 6, 78, valueColor)
	}

	for i, ch := range s.Channels {
		y := 90 + i*12
		text.Draw(screen, fmt.Sprintf("%d", i+1), face, 6, y+9, labelColor)
		ebitenutil.DrawRect(screen, 20, float64(y), 16*15, 9, color.RGBA{40, 40, 40, 255})
		if ch.Mute {
			text.Draw(screen, "muted", face, 20, y+9, labelColor)
			continue
		}
		if ch.Active {
			ebitenutil.DrawRect(screen, 20, float64(y), float64(16*ch.Volume), 9, valueColor)
		}
	}

	legend := "N/P Song  Space Pause  1-4 Mute  Q Quit"
	legendX := max(statusWindowW-text.BoundString(face, legend).Dx()-6, 6)
	text.Draw(screen, legend, face, legendX, statusWindowH-4, color.RGBA{160, 160, 160, 255})
}

func (w *StatusWindow) Layout(_, _ int) (int, int) {
	return statusWindowW, statusWindowH
}
