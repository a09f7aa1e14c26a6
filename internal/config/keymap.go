package config

import "encoding/json"

// Key binding actions of the chat TUI
const (
	KeyActionQuit            = "quit"
	KeyActionToggleHelp      = "toggleHelp"
	KeyActionSendMessage     = "sendMessage"
	KeyActionCancelTurn      = "cancelTurn"
	KeyActionToggleReasoning = "toggleReasoning"
	KeyActionClearHistory    = "clearHistory"
	KeyActionScrollUp        = "scrollUp"
	KeyActionScrollDown      = "scrollDown"
)

type KeyMap struct {
	Quit            []string `mapstructure:"quit" json:"quit" jsonschema:"description=Exit the application,default=ctrl+c"`
	ToggleHelp      []string `mapstructure:"toggleHelp" json:"toggleHelp" jsonschema:"description=Toggle help display,default=ctrl+h"`
	SendMessage     []string `mapstructure:"sendMessage" json:"sendMessage" jsonschema:"description=Send a message,default=enter"`
	CancelTurn      []string `mapstructure:"cancelTurn" json:"cancelTurn" jsonschema:"description=Cancel the running turn,default=esc"`
	ToggleReasoning []string `mapstructure:"toggleReasoning" json:"toggleReasoning" jsonschema:"description=Expand or collapse reasoning blocks,default=ctrl+r"`
	ClearHistory    []string `mapstructure:"clearHistory" json:"clearHistory" jsonschema:"description=Clear the conversation,default=ctrl+l"`
	ScrollUp        []string `mapstructure:"scrollUp" json:"scrollUp" jsonschema:"description=Scroll the transcript up,default=pgup"`
	ScrollDown      []string `mapstructure:"scrollDown" json:"scrollDown" jsonschema:"description=Scroll the transcript down,default=pgdown"`

	keyCache map[string][]string
}

// GetKeys returns the keys bound to an action
func (k *KeyMap) GetKeys(action string) []string {
	if k.keyCache == nil {
		k.keyCache = make(map[string][]string)
		jsonBytes, err := json.Marshal(k)
		if err != nil {
			return nil
		}
		if err := json.Unmarshal(jsonBytes, &k.keyCache); err != nil {
			return nil
		}
	}
	return k.keyCache[action]
}
