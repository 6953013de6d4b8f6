package telegram

import "fmt"

type ReplyMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// CallbackAction is the closed set of inline-menu actions. Callback payloads
// outside this set are answered and dropped.
type CallbackAction string

const (
	ActionFix      CallbackAction = "fix"
	ActionGenerate CallbackAction = "generate"
	ActionHelp     CallbackAction = "help"
	ActionContact  CallbackAction = "contact"
)

// ParseCallbackAction validates raw callback data against the action set.
func ParseCallbackAction(data string) (CallbackAction, error) {
	switch action := CallbackAction(data); action {
	case ActionFix, ActionGenerate, ActionHelp, ActionContact:
		return action, nil
	default:
		return "", fmt.Errorf("unknown callback action %q", data)
	}
}

// StartMenu is the inline keyboard attached to the /start welcome message.
func StartMenu() *ReplyMarkup {
	return &ReplyMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{
				{Text: "Fix my code", CallbackData: string(ActionFix)},
				{Text: "Generate code", CallbackData: string(ActionGenerate)},
			},
			{
				{Text: "Help", CallbackData: string(ActionHelp)},
				{Text: "Contact", CallbackData: string(ActionContact)},
			},
		},
	}
}

// menuPrompt is the follow-up text shown after a menu action is chosen.
func menuPrompt(action CallbackAction) string {
	switch action {
	case ActionFix:
		return "Paste the code you want me to fix, with a short note on what goes wrong."
	case ActionGenerate:
		return "Describe what you want me to build: language, inputs, outputs."
	case ActionHelp:
		return helpText
	case ActionContact:
		return contactText
	default:
		return helpText
	}
}
