package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrNoTerminal is returned by Fill when stdin is not an interactive
	// terminal and no prompt driver was supplied.
	ErrNoTerminal = errors.New("tui: stdin is not a terminal")
)
