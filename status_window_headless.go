//go:build headless

package main

import "context"

type StatusWindow struct{}

func NewStatusWindow(board *statusBoard, cmds chan<- GBSCommand, header GBSHeader) *StatusWindow {
	return &StatusWindow{}
}

func (w *StatusWindow) Run(ctx context.Context) error {
	return errNoStatusWindow
}
