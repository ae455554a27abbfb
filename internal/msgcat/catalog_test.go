package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReject_KnownReasons(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, reason := range []string{
		"session_not_found", "session_finished", "not_your_turn",
		"illegal_move", "seat_occupied", "offer_already_pending",
		"no_offer_to_respond_to", "not_participant", "clock_still_running",
		"collaborator_unavailable", "invalid_command",
	} {
		msg := c.Reject(reason)
		if msg == "" || msg == reason {
			t.Fatalf("no message text for %q", reason)
		}
	}
}

func TestReject_UnknownFallsBackToCode(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Reject("mystery_reason"); got != "mystery_reason" {
		t.Fatalf("fallback = %q", got)
	}
}

func TestRender_TemplateData(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msg, err := c.Render("session.engine_ready", map[string]any{"Strength": 12})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(msg, "12") {
		t.Fatalf("strength not rendered: %q", msg)
	}
	if _, err := c.Render("nope.missing", nil); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := "reject:\n  not_your_turn: \"Wait for it.\"\n"
	if err := os.WriteFile(filepath.Join(dir, "local.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Reject("not_your_turn"); got != "Wait for it." {
		t.Fatalf("override ignored: %q", got)
	}
	// Untouched keys keep their defaults.
	if got := c.Reject("illegal_move"); got == "illegal_move" {
		t.Fatalf("default lost under override")
	}
}
