// Package clipboard reads the system clipboard for the speak hotkey.
package clipboard

import "github.com/atotto/clipboard"

// Reader returns the current clipboard text.
type Reader interface {
	Read() (string, error)
}

// System reads the real OS clipboard.
type System struct{}

func (System) Read() (string, error) {
	return clipboard.ReadAll()
}

// Static returns fixed content. Used in tests.
type Static struct {
	Text string
	Err  error
}

func (s Static) Read() (string, error) {
	return s.Text, s.Err
}
