package bot

import (
	"fmt"
	"strings"
)

// ActionKind is the closed set of button actions the conversation
// understands. Callback payloads are decoded once, at the transport
// boundary, into an Action.
type ActionKind int

const (
	ActionSelector ActionKind = iota + 1
	ActionCategory
	ActionSubcategory
	ActionBack
	ActionComment
	ActionCancel
)

var actionNames = map[ActionKind]string{
	ActionSelector:    "selector",
	ActionCategory:    "category",
	ActionSubcategory: "subcategory",
	ActionBack:        "back",
	ActionComment:     "comment",
	ActionCancel:      "cancel",
}

// Action is a decoded button press: a discriminant plus one
// action-specific argument.
type Action struct {
	Kind ActionKind
	Arg  string
}

// Encode renders the action as callback data ("kind|arg").
func (a Action) Encode() string {
	return actionNames[a.Kind] + "|" + a.Arg
}

// ParseAction decodes callback data. Unknown discriminants are an
// error, not a passthrough: the keyboard and the parser must agree.
func ParseAction(data string) (Action, error) {
	kind, arg, _ := strings.Cut(data, "|")
	for k, name := range actionNames {
		if name == kind {
			return Action{Kind: k, Arg: arg}, nil
		}
	}
	return Action{}, fmt.Errorf("bot: unknown action %q", data)
}
