package analysis

import (
	"testing"

	"pillscout/internal/model"
)

func classes(dets []model.Detection) []string {
	out := make([]string, len(dets))
	for i, d := range dets {
		out[i] = d.Class
	}
	return out
}

func TestDedupe_LastSeenWins(t *testing.T) {
	input := []model.Detection{
		{Class: "a", Confidence: 0.5},
		{Class: "b", Confidence: 0.9},
		{Class: "a", Confidence: 0.7},
	}

	got := Dedupe(input)
	if len(got) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(got))
	}
	if got[0].Class != "a" || got[0].Confidence != 0.7 {
		t.Errorf("Expected a/0.7 first, got %s/%v", got[0].Class, got[0].Confidence)
	}
	if got[1].Class != "b" || got[1].Confidence != 0.9 {
		t.Errorf("Expected b/0.9 second, got %s/%v", got[1].Class, got[1].Confidence)
	}
}

func TestDedupe_IgnoresConfidence(t *testing.T) {
	input := []model.Detection{
		{Class: "loramide", Confidence: 0.95},
		{Class: "loramide", Confidence: 0.41},
	}

	got := Dedupe(input)
	if len(got) != 1 || got[0].Confidence != 0.41 {
		t.Errorf("Expected the later, lower-confidence detection, got %+v", got)
	}
}

func TestDedupe_EmptyAndUnique(t *testing.T) {
	if got := Dedupe(nil); len(got) != 0 {
		t.Errorf("Expected empty result, got %v", got)
	}

	input := []model.Detection{{Class: "x"}, {Class: "y"}, {Class: "z"}}
	got := Dedupe(input)
	want := []string{"x", "y", "z"}
	for i, c := range classes(got) {
		if c != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], c)
		}
	}
}

func TestDedupe_DoesNotMutateInput(t *testing.T) {
	input := []model.Detection{{Class: "a", Confidence: 0.1}, {Class: "a", Confidence: 0.2}}
	Dedupe(input)
	if input[0].Confidence != 0.1 || len(input) != 2 {
		t.Errorf("Input was modified: %+v", input)
	}
}

func TestDedupeHighestConfidence(t *testing.T) {
	input := []model.Detection{
		{Class: "a", Confidence: 0.5, DetectionID: "a1"},
		{Class: "b", Confidence: 0.9},
		{Class: "a", Confidence: 0.8, DetectionID: "a2"},
		{Class: "a", Confidence: 0.6, DetectionID: "a3"},
		{Class: "b", Confidence: 0.9, DetectionID: "tie"},
	}

	got := DedupeHighestConfidence(input)
	if len(got) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(got))
	}
	if got[0].DetectionID != "a2" {
		t.Errorf("Expected most confident a (a2), got %s", got[0].DetectionID)
	}
	if got[1].DetectionID == "tie" {
		t.Error("A tie must keep the earlier detection")
	}
}
