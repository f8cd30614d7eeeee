package core

import (
	"encoding/json"
	"testing"
)

func TestMessage_JSONOmitsEmptyCustomContent(t *testing.T) {
	b, err := json.Marshal(NewUserMessage("hi"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"role":"user","content":"hi"}` {
		t.Fatalf("unexpected json: %s", b)
	}

	msg := NewAssistantMessage("done", CustomContent{"id": 42})
	b, err = json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"role":"assistant","content":"done","custom_content":{"id":42}}` {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestCustomContent_CloneAndEmpty(t *testing.T) {
	var nilContent CustomContent
	if !nilContent.IsEmpty() || nilContent.Clone() != nil {
		t.Fatalf("nil custom content should be empty and clone to nil")
	}

	orig := CustomContent{"state": "a"}
	cp := orig.Clone()
	cp["state"] = "b"
	if orig["state"] != "a" {
		t.Fatalf("clone aliases the original map")
	}
	if !NewAssistantMessage("x", orig).HasCustomContent() {
		t.Fatalf("expected custom content to be reported")
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleUser, RoleAssistant} {
		if !r.Valid() {
			t.Errorf("role %q should be valid", r)
		}
	}
	if Role("tool").Valid() {
		t.Errorf("role tool should be rejected")
	}
}
