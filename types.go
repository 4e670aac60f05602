package chizu

import "fmt"

// Kind says which collection an item belongs to.
// Entity and route selections are kept apart, so every gesture carries its Kind.
type Kind int

const (
	KindEntity Kind = iota
	KindRoute
)

func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindRoute:
		return "route"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "entity":
		return KindEntity, nil
	case "route":
		return KindRoute, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	if k != KindEntity && k != KindRoute {
		return nil, fmt.Errorf("unknown kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ItemRef references a single rendered item (a country shape/row or a route path/row).
type ItemRef struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (r ItemRef) String() string {
	return fmt.Sprintf("<%s:%s>", r.Kind, r.ID)
}

// Modifiers are the modifier keys held during a click.
// Ctrl also stands for the meta (command) key. No flags set means a plain click.
type Modifiers struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
}

// Rule is the selection rule picked by a set of Modifiers.
type Rule int

const (
	// RuleReplace makes the clicked item the only selected item.
	RuleReplace Rule = iota
	// RuleAdd adds the clicked item to the selection.
	RuleAdd
	// RuleToggle adds the clicked item if absent and removes it if present.
	RuleToggle
)

func (r Rule) String() string {
	switch r {
	case RuleReplace:
		return "replace"
	case RuleAdd:
		return "add"
	case RuleToggle:
		return "toggle"
	default:
		return fmt.Sprintf("rule(%d)", int(r))
	}
}

// Rule returns the rule for m. Shift wins over ctrl when both are held.
func (m Modifiers) Rule() Rule {
	switch {
	case m.Shift:
		return RuleAdd
	case m.Ctrl:
		return RuleToggle
	default:
		return RuleReplace
	}
}

// Gesture is a click on one item.
type Gesture struct {
	Target ItemRef   `json:"target"`
	Mods   Modifiers `json:"mods"`
}

func (g Gesture) String() string {
	return fmt.Sprintf("%s %s", g.Mods.Rule(), g.Target)
}
