package knowledge

import (
	"testing"

	"pillscout/internal/model"
)

func TestDefault_LoadsTableInOrder(t *testing.T) {
	kb := Default()

	expected := []string{"dynapharm ibufen", "t mefenamic acid", "loramide", "deltacarbon", "paracetamol"}
	records := kb.Records()
	if len(records) != len(expected) {
		t.Fatalf("Expected %d records, got %d", len(expected), len(records))
	}
	for i, key := range expected {
		if records[i].Key != key {
			t.Errorf("Record %d: expected key %q, got %q", i, key, records[i].Key)
		}
		if records[i].Name == "" || records[i].Description == "" || records[i].Timing == "" || records[i].Advice == "" {
			t.Errorf("Record %q has empty fields: %+v", key, records[i])
		}
	}
}

func TestMatch_ExactKeys(t *testing.T) {
	kb := Default()

	for _, rec := range kb.Records() {
		got, ok := kb.Match(rec.Key)
		if !ok {
			t.Errorf("Match(%q) not found", rec.Key)
			continue
		}
		if got.Key != rec.Key {
			t.Errorf("Match(%q) returned %q", rec.Key, got.Key)
		}
	}
}

func TestMatch_Normalization(t *testing.T) {
	kb := Default()

	tests := []struct {
		input string
		key   string
	}{
		{"Paracetamol", "paracetamol"},
		{"  LORAMIDE ", "loramide"},
		{"Dynapharm Ibufen", "dynapharm ibufen"},
	}

	for _, tt := range tests {
		got, ok := kb.Match(tt.input)
		if !ok || got.Key != tt.key {
			t.Errorf("Match(%q) = %q, %v; expected %q", tt.input, got.Key, ok, tt.key)
		}
	}
}

func TestMatch_Substring(t *testing.T) {
	kb := Default()

	tests := []struct {
		input string
		key   string
	}{
		{"loramide 10mg", "loramide"},
		{"deltacarbon-tablet", "deltacarbon"},
		{"paracetamol 500", "paracetamol"},
		// label contained in a key
		{"ibufen", "dynapharm ibufen"},
		{"mefenamic", "t mefenamic acid"},
	}

	for _, tt := range tests {
		got, ok := kb.Match(tt.input)
		if !ok {
			t.Errorf("Match(%q) not found, expected %q", tt.input, tt.key)
			continue
		}
		if got.Key != tt.key {
			t.Errorf("Match(%q) = %q, expected %q", tt.input, got.Key, tt.key)
		}
	}
}

func TestMatch_NotFound(t *testing.T) {
	kb := Default()

	for _, input := range []string{"not-a-real-pill", "aspirin", "", "   "} {
		if got, ok := kb.Match(input); ok {
			t.Errorf("Match(%q) = %q, expected not found", input, got.Key)
		}
	}
}

func TestMatch_FirstKeyInTableOrderWins(t *testing.T) {
	kb, err := New([]model.MedicationRecord{
		{Key: "para", Name: "Short"},
		{Key: "paracetamol", Name: "Long"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// exact match beats the earlier fuzzy one
	if got, _ := kb.Match("paracetamol"); got.Name != "Long" {
		t.Errorf("Expected exact match, got %q", got.Name)
	}
	// fuzzy scan stops at the first key in definition order
	if got, _ := kb.Match("paracetamol 500mg"); got.Name != "Short" {
		t.Errorf("Expected first fuzzy key to win, got %q", got.Name)
	}
}

func TestNew_RejectsDuplicateAndEmptyKeys(t *testing.T) {
	if _, err := New([]model.MedicationRecord{{Key: "a"}, {Key: " A "}}); err == nil {
		t.Error("Expected error for duplicate normalized key")
	}
	if _, err := New([]model.MedicationRecord{{Key: "  "}}); err == nil {
		t.Error("Expected error for empty key")
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("key: [unclosed")); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestLookup(t *testing.T) {
	kb := Default()

	if _, ok := kb.Lookup("Loramide"); !ok {
		t.Error("Lookup should normalize the key")
	}
	if _, ok := kb.Lookup("lora"); ok {
		t.Error("Lookup must not apply fuzzy matching")
	}
}
