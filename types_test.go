package chizu

import (
	"encoding/json"
	"testing"
)

func TestModifiersRule(t *testing.T) {
	cases := []struct {
		mods Modifiers
		want Rule
	}{
		{Modifiers{}, RuleReplace},
		{Modifiers{Shift: true}, RuleAdd},
		{Modifiers{Ctrl: true}, RuleToggle},
		{Modifiers{Shift: true, Ctrl: true}, RuleAdd},
	}
	for _, c := range cases {
		if got := c.mods.Rule(); got != c.want {
			t.Fatalf("%#v.Rule() = %s, want %s", c.mods, got, c.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindEntity, KindRoute} {
		got, err := ParseKind(k.String())
		if err != nil {
			t.Fatalf("ParseKind(%q): %s", k, err)
		}
		if got != k {
			t.Fatalf("ParseKind(%q) = %s", k, got)
		}
	}
	if _, err := ParseKind("airport"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestGestureJSON(t *testing.T) {
	var g Gesture
	err := json.Unmarshal([]byte(`{"target": {"kind": "route", "id": "AF-1-2-3-4"}, "mods": {"ctrl": true}}`), &g)
	if err != nil {
		t.Fatal(err)
	}
	want := Gesture{Target: ItemRef{Kind: KindRoute, ID: "AF-1-2-3-4"}, Mods: Modifiers{Ctrl: true}}
	if g != want {
		t.Fatalf("got %#v", g)
	}
	if err := json.Unmarshal([]byte(`{"target": {"kind": "airport"}}`), &g); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
