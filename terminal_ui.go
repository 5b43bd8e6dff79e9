// terminal_ui.go - Keyboard control and a one-line status display on the
// controlling terminal.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// keyCommand maps a key to a player command
func keyCommand(b byte) (GBSCommand, bool) {
	switch b {
	case 'n', 'N', '.', '>':
		return GBSCommand{Kind: GBSCmdNext}, true
	case 'p', 'P', ',', '<':
		return GBSCommand{Kind: GBSCmdPrev}, true
	case ' ':
		return GBSCommand{Kind: GBSCmdPause}, true
	case '1', '2', '3', '4':
		return GBSCommand{Kind: GBSCmdMute, Channel: int(b - '1')}, true
	case 'q', 'Q', 0x03: // Ctrl-C arrives as a byte in raw mode
		return GBSCommand{Kind: GBSCmdQuit}, true
	}
	return GBSCommand{}, false
}

// sendCommand never blocks the caller; a full queue drops the key
func sendCommand(cmds chan<- GBSCommand, cmd GBSCommand) {
	select {
	case cmds <- cmd:
	default:
	}
}

func formatClock(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// channelGlyph shows a muted channel as '-', a silent one as '.', and an
// active one as its volume in hex
func channelGlyph(ch GBChannelStatus) byte {
	switch {
	case ch.Mute:
		return '-'
	case !ch.Active:
		return '.'
	}
	return "0123456789ABCDEF"[ch.Volume&0x0F]
}

func formatStatusLine(s GBSStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Song %3d/%3d  %s", s.Subsong, s.Songs, formatClock(s.Elapsed))
	if s.Length > 0 {
		fmt.Fprintf(&b, "/%s", formatClock(s.Length))
	}
	b.WriteString("  [")
	for i, ch := range s.Channels {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(channelGlyph(ch))
	}
	b.WriteByte(']')
	if s.Paused {
		b.WriteString("  PAUSED")
	}
	if s.Title != "" {
		fmt.Fprintf(&b, "  %s", s.Title)
	}
	return b.String()
}

func writeFileHeader(w io.Writer, h GBSHeader) {
	fmt.Fprintf(w, "Title:     %s\r\n", h.Title)
	fmt.Fprintf(w, "Author:    %s\r\n", h.Author)
	fmt.Fprintf(w, "Copyright: %s\r\n", h.Copyright)
	fmt.Fprintf(w, "Songs:     %d (default %d)\r\n", h.Songs, h.FirstSong)
	fmt.Fprintf(w, "Keys: n/p next/prev, space pause, 1-4 mute, q quit\r\n")
}

// terminalUI redraws the status line whenever the board changes, with at
// most one redraw per interval
type terminalUI struct {
	out      io.Writer
	board    *statusBoard
	cmds     chan<- GBSCommand
	interval time.Duration
	host     *TerminalHost
}

func newTerminalUI(out io.Writer, board *statusBoard, cmds chan<- GBSCommand) *terminalUI {
	ui := &terminalUI{
		out:      out,
		board:    board,
		cmds:     cmds,
		interval: 100 * time.Millisecond,
	}
	ui.host = NewTerminalHost(ui.key)
	return ui
}

func (ui *terminalUI) key(b byte) {
	if cmd, ok := keyCommand(b); ok {
		sendCommand(ui.cmds, cmd)
	}
}

// Run draws until the player publishes its final status or ctx ends. Key
// input is only read when stdin is a terminal.
func (ui *terminalUI) Run(ctx context.Context, header GBSHeader) error {
	writeFileHeader(ui.out, header)
	if err := ui.host.Start(); err == nil {
		defer ui.host.Stop()
	}

	ticker := time.NewTicker(ui.interval)
	defer ticker.Stop()
	dirty := false
	for {
		select {
		case <-ctx.Done():
			fmt.Fprint(ui.out, "\r\n")
			return nil
		case <-ui.board.Updated():
			dirty = true
		case <-ticker.C:
			if !dirty {
				continue
			}
			dirty = false
			s := ui.board.Snapshot()
			fmt.Fprintf(ui.out, "\r\x1b[K%s", formatStatusLine(s))
			if s.Done {
				fmt.Fprint(ui.out, "\r\n")
				return nil
			}
		}
	}
}
