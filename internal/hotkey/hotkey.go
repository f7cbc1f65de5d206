// Package hotkey maps global key combinations to client actions. It is pure
// dispatch: retries, notifications, and error policy belong to the session
// layer it calls into.
package hotkey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.design/x/hotkey"
)

// Action runs when its combination is pressed.
type Action func()

// Binding ties a combo string like "ctrl+shift+s" to an action.
type Binding struct {
	Combo  string
	Action Action
}

// Listener registers bindings system-wide and dispatches presses.
type Listener struct {
	bindings []Binding
	log      *slog.Logger
}

// NewListener creates a listener for the given bindings.
func NewListener(bindings []Binding, log *slog.Logger) *Listener {
	return &Listener{
		bindings: bindings,
		log:      log.With(slog.String("component", "hotkey")),
	}
}

// Run registers all bindings and dispatches until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	for _, b := range l.bindings {
		mods, key, err := ParseCombo(b.Combo)
		if err != nil {
			return fmt.Errorf("binding %q: %w", b.Combo, err)
		}

		hk := hotkey.New(mods, key)
		if err := hk.Register(); err != nil {
			return fmt.Errorf("register %q: %w", b.Combo, err)
		}
		l.log.Info("registered hotkey", slog.String("combo", b.Combo))

		go func(b Binding, hk *hotkey.Hotkey) {
			defer hk.Unregister()
			for {
				select {
				case <-ctx.Done():
					return
				case <-hk.Keydown():
					l.log.Debug("hotkey pressed", slog.String("combo", b.Combo))
					b.Action()
				}
			}
		}(b, hk)
	}

	<-ctx.Done()
	return nil
}

// ParseCombo turns "ctrl+shift+s" into modifiers and a key. The last segment
// is the key (a letter or digit); everything before it is a modifier.
func ParseCombo(combo string) ([]hotkey.Modifier, hotkey.Key, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	if len(parts) < 2 {
		return nil, 0, fmt.Errorf("combo needs at least one modifier and a key")
	}

	var mods []hotkey.Modifier
	for _, part := range parts[:len(parts)-1] {
		mod, ok := modMap[part]
		if !ok {
			return nil, 0, fmt.Errorf("unknown modifier %q", part)
		}
		mods = append(mods, mod)
	}

	key, ok := keyMap[parts[len(parts)-1]]
	if !ok {
		return nil, 0, fmt.Errorf("unknown key %q", parts[len(parts)-1])
	}
	return mods, key, nil
}

var keyMap = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
}
