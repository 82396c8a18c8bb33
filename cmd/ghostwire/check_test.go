package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benaskins/ghostwire/internal/wire"
)

func TestCheckCommandDriverErrorJSON(t *testing.T) {
	body := `{"status": 7, "value": {"message": "no such element"}}`
	stdout, _, err := executeCLI(t, strings.NewReader(body), "check", "--json")
	if err == nil {
		t.Fatal("expected a non-nil error for a failed response")
	}
	if !strings.Contains(err.Error(), "no such element") {
		t.Errorf("error = %v", err)
	}

	var result checkResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if result.OK || result.Status != 7 || result.Kind != "no such element" || result.Message != "no such element" {
		t.Errorf("result = %+v", result)
	}
}

func TestCheckCommandSuccessHuman(t *testing.T) {
	stdout, _, err := executeCLI(t, strings.NewReader(`{"status": 0, "value": null}`), "check", "--json=false")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stdout != "OK    status 0\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestCheckCommandReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resp.json")
	if err := os.WriteFile(path, []byte(`{"status": 13, "value": "boom"}`), 0644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := executeCLI(t, nil, "check", "--json=false", path)
	if err == nil {
		t.Fatal("expected error for status 13")
	}
	if !strings.Contains(stdout, "FAIL  status 13: error in response") || !strings.Contains(stdout, "message: boom") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestCheckCommandMalformed(t *testing.T) {
	_, _, err := executeCLI(t, strings.NewReader(`{"value": 1}`), "check", "--json")
	if !errors.Is(err, wire.ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}
}
