package internal

import (
	"strings"
	"testing"
)

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestGenerateStateLength(t *testing.T) {
	t.Parallel()

	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState returned error: %v", err)
	}
	if len(state) < 16 {
		t.Errorf("state %q is shorter than 16 characters", state)
	}
}

func TestGenerateStateAlphabet(t *testing.T) {
	t.Parallel()

	state, err := GenerateState()
	if err != nil {
		t.Fatalf("GenerateState returned error: %v", err)
	}
	for _, r := range state {
		if !strings.ContainsRune(base64URLAlphabet, r) {
			t.Errorf("state %q contains unexpected character %q", state, r)
		}
	}
}

func TestGenerateStateUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		state, err := GenerateState()
		if err != nil {
			t.Fatalf("GenerateState returned error: %v", err)
		}
		if seen[state] {
			t.Fatalf("state %q repeated across attempts", state)
		}
		seen[state] = true
	}
}
