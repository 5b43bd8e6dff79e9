//go:build !headless

package main

import (
	"strings"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

func TestKeyTranslation_Arrows(t *testing.T) {
	cmd, ok := translateSpecialKey(ebiten.KeyArrowRight)
	if !ok || cmd.Kind != GBSCmdNext {
		t.Fatalf("right arrow = %+v, %v", cmd, ok)
	}
	cmd, ok = translateSpecialKey(ebiten.KeyArrowLeft)
	if !ok || cmd.Kind != GBSCmdPrev {
		t.Fatalf("left arrow = %+v, %v", cmd, ok)
	}
	if _, ok := translateSpecialKey(ebiten.KeyEnter); ok {
		t.Fatal("enter should not map to a command")
	}
}

func TestRuneToInputByte(t *testing.T) {
	if b, ok := runeToInputByte('n'); !ok || b != 'n' {
		t.Fatalf("runeToInputByte('n') = %q, %v", b, ok)
	}
	if _, ok := runeToInputByte('é' + 0x100); ok {
		t.Fatal("runes above 0xFF should be rejected")
	}
}

func TestStatusClipboardText(t *testing.T) {
	got := statusClipboardText(GBSHeader{Title: "Game", Author: "Composer", Copyright: "1996"}, GBSStatus{Subsong: 1, Songs: 2})
	if !strings.HasPrefix(got, "Game - Composer (1996)\n") || !strings.Contains(got, "Song   1/  2") {
		t.Fatalf("clipboard text = %q", got)
	}
}
