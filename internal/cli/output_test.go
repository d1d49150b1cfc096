// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyutils.
//
// go-keyutils is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/jeremyhahn/go-keyutils/pkg/keyring"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

func decodeJSON(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	return out
}

func TestPrintSerial(t *testing.T) {
	var buf bytes.Buffer

	p := NewPrinter("text", &buf)
	if err := p.PrintSerial(types.ID(12345)); err != nil {
		t.Fatalf("PrintSerial returned error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "12345" {
		t.Errorf("text output = %q, want 12345", got)
	}

	buf.Reset()
	p = NewPrinter("json", &buf)
	if err := p.PrintSerial(types.ID(12345)); err != nil {
		t.Fatalf("PrintSerial returned error: %v", err)
	}
	out := decodeJSON(t, &buf)
	if out["serial"].(float64) != 12345 {
		t.Errorf("json serial = %v, want 12345", out["serial"])
	}
}

func TestPrintKeyInfo(t *testing.T) {
	meta := types.Metadata{
		Type:        types.KeyTypeUser,
		UID:         1000,
		GID:         1000,
		Permissions: types.Permissions(0x3f010000),
		Description: "db-password",
	}

	var buf bytes.Buffer
	p := NewPrinter("text", &buf)
	if err := p.PrintKeyInfo(types.ID(777), meta); err != nil {
		t.Fatalf("PrintKeyInfo returned error: %v", err)
	}
	text := buf.String()
	for _, want := range []string{"777", "user", "db-password", "0x3f010000"} {
		if !strings.Contains(text, want) {
			t.Errorf("text output missing %q:\n%s", want, text)
		}
	}

	buf.Reset()
	p = NewPrinter("json", &buf)
	if err := p.PrintKeyInfo(types.ID(777), meta); err != nil {
		t.Fatalf("PrintKeyInfo returned error: %v", err)
	}
	out := decodeJSON(t, &buf)
	if out["serial"].(float64) != 777 {
		t.Errorf("json serial = %v, want 777", out["serial"])
	}
	if out["type"] != "user" {
		t.Errorf("json type = %v, want user", out["type"])
	}
	if out["permissions"] != "0x3f010000" {
		t.Errorf("json permissions = %v, want 0x3f010000", out["permissions"])
	}
}

func TestPrintDescribe(t *testing.T) {
	raw := "user;1000;1000;3f010000;db-password"

	var buf bytes.Buffer
	p := NewPrinter("text", &buf)
	if err := p.PrintDescribe(raw); err != nil {
		t.Fatalf("PrintDescribe returned error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != raw {
		t.Errorf("text output = %q, want %q", got, raw)
	}

	buf.Reset()
	p = NewPrinter("json", &buf)
	if err := p.PrintDescribe(raw); err != nil {
		t.Fatalf("PrintDescribe returned error: %v", err)
	}
	if out := decodeJSON(t, &buf); out["describe"] != raw {
		t.Errorf("json describe = %v, want %q", out["describe"], raw)
	}
}

func TestPrintLinkList(t *testing.T) {
	mock := withMockGateway(t)

	if _, err := mock.AddKey(types.KeyTypeUser, "first", []byte("1"), types.ID(types.KeyringSession)); err != nil {
		t.Fatal(err)
	}
	if _, err := mock.AddKey(types.KeyTypeKeyring, "box", nil, types.ID(types.KeyringSession)); err != nil {
		t.Fatal(err)
	}

	ring, err := keyring.FromSpecial(types.KeyringSession, false)
	if err != nil {
		t.Fatal(err)
	}
	links, err := ring.Links(512)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	p := NewPrinter("text", &buf)
	if err := p.PrintLinkList(ring.ID(), links.Nodes()); err != nil {
		t.Fatalf("PrintLinkList returned error: %v", err)
	}
	text := buf.String()
	if !strings.Contains(text, "2 link(s)") {
		t.Errorf("text output missing link count:\n%s", text)
	}
	if !strings.Contains(text, "first") || !strings.Contains(text, "box") {
		t.Errorf("text output missing descriptions:\n%s", text)
	}

	buf.Reset()
	p = NewPrinter("table", &buf)
	if err := p.PrintLinkList(ring.ID(), links.Nodes()); err != nil {
		t.Fatalf("PrintLinkList returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "SERIAL") {
		t.Errorf("table output missing header:\n%s", buf.String())
	}

	buf.Reset()
	p = NewPrinter("json", &buf)
	if err := p.PrintLinkList(ring.ID(), links.Nodes()); err != nil {
		t.Fatalf("PrintLinkList returned error: %v", err)
	}
	out := decodeJSON(t, &buf)
	if out["count"].(float64) != 2 {
		t.Errorf("json count = %v, want 2", out["count"])
	}
	if len(out["links"].([]interface{})) != 2 {
		t.Errorf("json links = %v, want 2 entries", out["links"])
	}
}

func TestPrintLinkList_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter("text", &buf)
	if err := p.PrintLinkList(types.ID(42), nil); err != nil {
		t.Fatalf("PrintLinkList returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "empty") {
		t.Errorf("text output = %q, want empty notice", buf.String())
	}
}

func TestPrintTree(t *testing.T) {
	entries := []TreeEntry{
		{Depth: 0, ID: 100, Kind: "keyring", Type: "keyring", Description: "_ses"},
		{Depth: 1, ID: 101, Kind: "key", Type: "user", Description: "secret"},
		{Depth: 1, ID: 102, Kind: "keyring", Type: "keyring", Description: "box"},
		{Depth: 2, ID: 103, Kind: "key", Type: "user", Description: "inner"},
	}

	var buf bytes.Buffer
	p := NewPrinter("text", &buf)
	if err := p.PrintTree(entries); err != nil {
		t.Fatalf("PrintTree returned error: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("text output has %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[3], "    ") {
		t.Errorf("depth 2 entry not indented: %q", lines[3])
	}

	buf.Reset()
	p = NewPrinter("json", &buf)
	if err := p.PrintTree(entries); err != nil {
		t.Fatalf("PrintTree returned error: %v", err)
	}
	out := decodeJSON(t, &buf)
	if len(out["tree"].([]interface{})) != 4 {
		t.Errorf("json tree = %v, want 4 entries", out["tree"])
	}
}

func TestPrintPayload(t *testing.T) {
	var buf bytes.Buffer

	p := NewPrinter("text", &buf)
	if err := p.PrintPayload([]byte("plain text")); err != nil {
		t.Fatalf("PrintPayload returned error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "plain text" {
		t.Errorf("printable payload = %q, want plain text", got)
	}

	buf.Reset()
	if err := p.PrintPayload([]byte{0x00, 0xde, 0xad}); err != nil {
		t.Fatalf("PrintPayload returned error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != ":hex:00dead" {
		t.Errorf("binary payload = %q, want :hex:00dead", got)
	}

	buf.Reset()
	p = NewPrinter("json", &buf)
	if err := p.PrintPayload([]byte("plain text")); err != nil {
		t.Fatalf("PrintPayload returned error: %v", err)
	}
	out := decodeJSON(t, &buf)
	if out["payload"] != "cGxhaW4gdGV4dA==" {
		t.Errorf("json payload = %v, want base64 of plain text", out["payload"])
	}
	if out["length"].(float64) != 10 {
		t.Errorf("json length = %v, want 10", out["length"])
	}
}

func TestPrintSuccessAndError(t *testing.T) {
	var buf bytes.Buffer

	p := NewPrinter("text", &buf)
	if err := p.PrintSuccess("Linked key 1 into keyring 2"); err != nil {
		t.Fatalf("PrintSuccess returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "Linked key") {
		t.Errorf("success output = %q", buf.String())
	}

	buf.Reset()
	if err := p.PrintError(errors.New("boom")); err != nil {
		t.Fatalf("PrintError returned error: %v", err)
	}
	if !strings.Contains(buf.String(), "Error: boom") {
		t.Errorf("error output = %q", buf.String())
	}

	buf.Reset()
	p = NewPrinter("json", &buf)
	if err := p.PrintError(errors.New("boom")); err != nil {
		t.Fatalf("PrintError returned error: %v", err)
	}
	out := decodeJSON(t, &buf)
	if out["status"] != "error" || out["error"] != "boom" {
		t.Errorf("json error output = %v", out)
	}
}

func TestPrinter_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter("yaml", &buf)

	if err := p.PrintSerial(types.ID(1)); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := p.PrintSuccess("hi"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestIsPrintable(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, true},
		{"ascii", []byte("hello"), true},
		{"newline and tab", []byte("a\nb\tc"), true},
		{"nul byte", []byte{0x00}, false},
		{"escape sequence", []byte("\x1b[31m"), false},
		{"high bytes", []byte{0xc3, 0xa9}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPrintable(tt.data); got != tt.want {
				t.Errorf("isPrintable(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestWalkKeyring(t *testing.T) {
	withMockGateway(t)

	session, err := keyring.FromSpecial(types.KeyringSession, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := session.AddKey("top", []byte("t")); err != nil {
		t.Fatal(err)
	}
	boxA, err := session.CreateKeyring("box-a")
	if err != nil {
		t.Fatal(err)
	}
	boxB, err := session.CreateKeyring("box-b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := boxA.AddKey("inner", []byte("i")); err != nil {
		t.Fatal(err)
	}
	// boxA reachable through both the session keyring and boxB
	if err := boxB.LinkKeyring(boxA); err != nil {
		t.Fatal(err)
	}

	var entries []TreeEntry
	walkKeyring(session, 1, map[types.ID]bool{}, &entries)

	inner := 0
	boxACount := 0
	for _, e := range entries {
		switch e.Description {
		case "inner":
			inner++
			if e.Depth != 2 {
				t.Errorf("inner at depth %d, want 2", e.Depth)
			}
		case "box-a":
			boxACount++
		}
	}

	// boxA is listed under both parents but descended into only once
	if boxACount != 2 {
		t.Errorf("box-a listed %d times, want 2", boxACount)
	}
	if inner != 1 {
		t.Errorf("inner listed %d times, want 1", inner)
	}
}
