package keymap

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/isaacphi/mcpchat/internal/config"
)

// KeyMap holds the chat view bindings. It implements help.KeyMap.
type KeyMap struct {
	Quit            key.Binding
	Help            key.Binding
	Send            key.Binding
	Cancel          key.Binding
	ToggleReasoning key.Binding
	Clear           key.Binding
	ScrollUp        key.Binding
	ScrollDown      key.Binding
}

// New builds bindings from the configured keys
func New(cfg config.KeyMap) KeyMap {
	return KeyMap{
		Quit:            bind(&cfg, config.KeyActionQuit, "quit"),
		Help:            bind(&cfg, config.KeyActionToggleHelp, "toggle help"),
		Send:            bind(&cfg, config.KeyActionSendMessage, "send"),
		Cancel:          bind(&cfg, config.KeyActionCancelTurn, "cancel turn"),
		ToggleReasoning: bind(&cfg, config.KeyActionToggleReasoning, "show reasoning"),
		Clear:           bind(&cfg, config.KeyActionClearHistory, "clear chat"),
		ScrollUp:        bind(&cfg, config.KeyActionScrollUp, "scroll up"),
		ScrollDown:      bind(&cfg, config.KeyActionScrollDown, "scroll down"),
	}
}

func bind(cfg *config.KeyMap, action, desc string) key.Binding {
	keys := cfg.GetKeys(action)
	if len(keys) == 0 {
		return key.NewBinding(key.WithDisabled())
	}
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(strings.Join(keys, "/"), desc),
	)
}

// SetBusy switches the bindings that only make sense while a turn runs
func (k *KeyMap) SetBusy(busy bool) {
	k.Send.SetEnabled(!busy)
	k.Clear.SetEnabled(!busy)
	k.Cancel.SetEnabled(busy)
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Cancel, k.ToggleReasoning, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Cancel, k.Clear},
		{k.ToggleReasoning, k.ScrollUp, k.ScrollDown},
		{k.Help, k.Quit},
	}
}
