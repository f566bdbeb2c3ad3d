package guidance

import "strings"

// Intent is the classification of an utterance.
type Intent int

const (
	IntentNone Intent = iota
	IntentActivate
	IntentDeactivate
	IntentQuery
)

func (i Intent) String() string {
	switch i {
	case IntentActivate:
		return "activate"
	case IntentDeactivate:
		return "deactivate"
	case IntentQuery:
		return "query"
	default:
		return "none"
	}
}

// CommandSet holds the control phrases. Matching is a case-insensitive
// substring test.
type CommandSet struct {
	Activate   []string `yaml:"activate" json:"activate"`
	Deactivate []string `yaml:"deactivate" json:"deactivate"`
}

// DefaultCommands returns "guide me" and "stop"/"exit".
func DefaultCommands() CommandSet {
	return CommandSet{
		Activate:   []string{"guide me"},
		Deactivate: []string{"stop", "exit"},
	}
}

// Classify maps an utterance to an intent given the current activation
// state. Control phrases are checked before anything else and consume the
// utterance, so a control phrase that does not apply to the current state
// (activation while active, stop while idle) yields IntentNone, never a query.
func (c CommandSet) Classify(utterance string, active bool) Intent {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return IntentNone
	}
	activate := containsAny(text, c.Activate)
	deactivate := containsAny(text, c.Deactivate)
	switch {
	case !active && activate:
		return IntentActivate
	case active && deactivate:
		return IntentDeactivate
	case activate || deactivate:
		return IntentNone
	case active:
		return IntentQuery
	default:
		return IntentNone
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
