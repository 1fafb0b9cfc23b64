package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/and161185/campus-vote/internal/model"
)

func Test_typedValue(t *testing.T) {
	t.Parallel()

	cases := map[string]any{
		"false": false,
		"true":  true,
		"3":     int64(3),
		"2.5":   2.5,
		"cs":    "cs",
		"":      "",
	}
	for in, want := range cases {
		if got := typedValue(in); got != want {
			t.Fatalf("typedValue(%q) = %#v, want %#v", in, got, want)
		}
	}
}

func Test_attrFlag_Set(t *testing.T) {
	t.Parallel()

	a := attrFlag{}
	if err := a.Set("allowed_to_vote=false"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := a.Set(" year = 3 "); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if a["allowed_to_vote"] != false || a["year"] != int64(3) {
		t.Fatalf("attrs mismatch: %v", a)
	}
	if err := a.Set("novalue"); err == nil {
		t.Fatalf("want error without '='")
	}
	if err := a.Set("=x"); err == nil {
		t.Fatalf("want error on empty key")
	}
	if a.String() == "" {
		t.Fatalf("String must render attrs")
	}
}

func Test_parseProfileArgs(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "attrs.json")
	_ = os.WriteFile(file, []byte(`{"faculty":"cs","allowed_to_vote":true}`), 0o600)

	req, err := parseProfileArgs([]string{
		"-user", "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11",
		"-role", "staff", "-status", "suspended",
		"-attrs-file", file, "-attr", "allowed_to_vote=false",
	})
	if err != nil {
		t.Fatalf("parseProfileArgs: %v", err)
	}
	if req.Role != "staff" || req.Status != "suspended" {
		t.Fatalf("role/status mismatch: %+v", req)
	}
	if req.Attributes["faculty"] != "cs" || req.Attributes["allowed_to_vote"] != false {
		t.Fatalf("-attr must override the file: %v", req.Attributes)
	}

	bad := [][]string{
		{"-user", "nope"},
		{"-user", "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11", "-role", "dean"},
		{"-user", "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11", "-status", "gone"},
		{"-user", "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11", "-attrs-file", filepath.Join(t.TempDir(), "missing.json")},
		{"-unknown"},
	}
	for _, args := range bad {
		if _, err := parseProfileArgs(args); err == nil {
			t.Fatalf("want error for %v", args)
		}
	}
}

func Test_runKeygen_Local(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var out bytes.Buffer
	if err := runKeygen(context.Background(), []string{"-purpose", "tally", "-keys-dir", dir}, &out); err != nil {
		t.Fatalf("runKeygen: %v", err)
	}
	var refs map[string]string
	if err := json.Unmarshal(out.Bytes(), &refs); err != nil {
		t.Fatalf("bad output %q: %v", out.String(), err)
	}
	if refs["backend"] != "local" || refs["purpose"] != "tally" {
		t.Fatalf("refs mismatch: %v", refs)
	}
	for _, k := range []string{"private_ref", "public_ref"} {
		if _, err := os.Stat(refs[k]); err != nil {
			t.Fatalf("%s not written: %v", k, err)
		}
	}
}

func Test_runKeygen_Rejects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cases := [][]string{
		{"-purpose", "ballot", "-keys-dir", dir},
		{"-bits", "1024", "-keys-dir", dir},
		{"-backend", "hsm", "-keys-dir", dir},
		{"-backend", "kms"},
	}
	for _, args := range cases {
		if err := runKeygen(context.Background(), args, &bytes.Buffer{}); err == nil {
			t.Fatalf("want error for %v", args)
		}
	}
}

func Test_printTally(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	res := &model.TallyResult{ElectionID: 3, Ballots: 4, Counts: map[int64]int{100: 2, 101: 1}, Mismatched: 1}
	if err := printTally(&out, res); err != nil {
		t.Fatalf("printTally: %v", err)
	}
	var got struct {
		ElectionID int64          `json:"election_id"`
		Counts     map[string]int `json:"counts"`
		Rejected   map[string]int `json:"rejected"`
	}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("bad output %q: %v", out.String(), err)
	}
	if got.ElectionID != 3 || got.Counts["100"] != 2 || got.Counts["101"] != 1 || got.Rejected["mismatched"] != 1 {
		t.Fatalf("tally mismatch: %+v", got)
	}
}

func Test_runTally_BadKeyBackend(t *testing.T) {
	t.Parallel()

	err := runTally(context.Background(), []string{"-dsn", "postgres://x", "-election", "1", "-backend", "hsm"}, &bytes.Buffer{})
	if err == nil {
		t.Fatalf("want error for unknown backend")
	}
}
