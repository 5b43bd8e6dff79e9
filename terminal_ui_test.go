package main

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestKeyCommand(t *testing.T) {
	tests := []struct {
		key  byte
		want GBSCommand
	}{
		{'n', GBSCommand{Kind: GBSCmdNext}},
		{'>', GBSCommand{Kind: GBSCmdNext}},
		{'p', GBSCommand{Kind: GBSCmdPrev}},
		{' ', GBSCommand{Kind: GBSCmdPause}},
		{'1', GBSCommand{Kind: GBSCmdMute, Channel: 0}},
		{'4', GBSCommand{Kind: GBSCmdMute, Channel: 3}},
		{'q', GBSCommand{Kind: GBSCmdQuit}},
		{0x03, GBSCommand{Kind: GBSCmdQuit}},
	}
	for _, tt := range tests {
		got, ok := keyCommand(tt.key)
		if !ok || got != tt.want {
			t.Errorf("keyCommand(%q) = %+v, %v, want %+v", tt.key, got, ok, tt.want)
		}
	}
	for _, key := range []byte{'5', 'x', 0x1B} {
		if _, ok := keyCommand(key); ok {
			t.Errorf("keyCommand(%q) should be ignored", key)
		}
	}
}

func TestSendCommandDropsWhenFull(t *testing.T) {
	cmds := make(chan GBSCommand, 1)
	sendCommand(cmds, GBSCommand{Kind: GBSCmdNext})
	sendCommand(cmds, GBSCommand{Kind: GBSCmdQuit})
	if got := <-cmds; got.Kind != GBSCmdNext {
		t.Fatalf("queued command = %+v", got)
	}
	if len(cmds) != 0 {
		t.Fatal("second command should have been dropped")
	}
}

func TestFormatStatusLine(t *testing.T) {
	s := GBSStatus{
		Title:   "Overworld",
		Subsong: 3,
		Songs:   12,
		Elapsed: 75 * time.Second,
		Length:  2 * time.Minute,
		Paused:  true,
		Channels: [gbChannels]GBChannelStatus{
			{Active: true, Volume: 15},
			{Active: true, Volume: 7, Mute: true},
			{},
			{Active: true, Volume: 0},
		},
	}
	want := "Song   3/ 12  01:15/02:00  [F - . 0]  PAUSED  Overworld"
	if got := formatStatusLine(s); got != want {
		t.Fatalf("formatStatusLine() =\n%q\nwant\n%q", got, want)
	}

	s.Length = 0
	s.Paused = false
	s.Title = ""
	if got := formatStatusLine(s); strings.Contains(got, "/02:00") || strings.Contains(got, "PAUSED") {
		t.Fatalf("unbounded status = %q", got)
	}
}

func TestTerminalUIStopsOnDone(t *testing.T) {
	var out strings.Builder
	board := newStatusBoard()
	ui := newTerminalUI(&out, board, make(chan GBSCommand, 1))
	ui.interval = time.Millisecond
	board.Publish(GBSStatus{Subsong: 1, Songs: 1, Done: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ui.Run(ctx, GBSHeader{Title: "Tune", Songs: 1, FirstSong: 1}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run did not return on the final status")
	}
	if !strings.Contains(out.String(), "Title:     Tune") || !strings.Contains(out.String(), "Song   1/  1") {
		t.Errorf("output = %q", out.String())
	}
}
