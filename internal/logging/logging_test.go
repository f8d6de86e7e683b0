package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestForAttachesComponentField(t *testing.T) {
	var buf bytes.Buffer
	Init()
	UseWriter(&buf)

	For("store.db").WithField("op", "upsert_image").Info("wrote row")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output not valid JSON: %v (%q)", err, buf.String())
	}
	if entry["component"] != "store.db" {
		t.Errorf("component = %v, want store.db", entry["component"])
	}
	if entry["op"] != "upsert_image" {
		t.Errorf("op = %v, want upsert_image", entry["op"])
	}
	if entry["msg"] != "wrote row" {
		t.Errorf("msg = %v, want %q", entry["msg"], "wrote row")
	}
}

func TestSetLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	Init()
	UseWriter(&buf)

	if err := SetLevel("warn"); err != nil {
		t.Fatal(err)
	}
	defer SetLevel("info")

	For("test").Debug("should not appear")
	if strings.Contains(buf.String(), "should not appear") {
		t.Fatalf("debug line leaked through warn threshold: %q", buf.String())
	}

	For("test").Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestSetLevelRejectsUnknown(t *testing.T) {
	Init()
	if err := SetLevel("not-a-level"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
