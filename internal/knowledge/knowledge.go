// Package knowledge holds the static medication table and the label matcher
// that maps detector class names onto it.
package knowledge

import (
	_ "embed"
	"fmt"
	"strings"

	"pillscout/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed medications.yaml
var embeddedMedications []byte

// Base is an immutable, ordered medication table. It is safe for
// concurrent use once constructed.
type Base struct {
	records []model.MedicationRecord
	byKey   map[string]int
}

// Default parses the embedded table. It panics on a malformed table since
// the table is compiled into the binary.
func Default() *Base {
	kb, err := Parse(embeddedMedications)
	if err != nil {
		panic(fmt.Sprintf("knowledge: embedded table is invalid: %v", err))
	}
	return kb
}

// Parse builds a Base from a YAML sequence of records. Keys are normalized
// and must be unique.
func Parse(data []byte) (*Base, error) {
	var records []model.MedicationRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode medication table: %w", err)
	}
	return New(records)
}

// New builds a Base from records, preserving their order.
func New(records []model.MedicationRecord) (*Base, error) {
	kb := &Base{
		records: make([]model.MedicationRecord, 0, len(records)),
		byKey:   make(map[string]int, len(records)),
	}

	for i, rec := range records {
		rec.Key = normalize(rec.Key)
		if rec.Key == "" {
			return nil, fmt.Errorf("record %d has an empty key", i)
		}
		if _, dup := kb.byKey[rec.Key]; dup {
			return nil, fmt.Errorf("duplicate key %q", rec.Key)
		}
		kb.byKey[rec.Key] = len(kb.records)
		kb.records = append(kb.records, rec)
	}

	return kb, nil
}

// Lookup returns the record stored under an exact (normalized) key.
func (b *Base) Lookup(key string) (model.MedicationRecord, bool) {
	idx, ok := b.byKey[normalize(key)]
	if !ok {
		return model.MedicationRecord{}, false
	}
	return b.records[idx], true
}

// Match maps a detected class label to a record.
//
// An exact key wins. Otherwise keys are scanned in table order and the
// first key that contains the label, or is contained in it, is returned.
// This is an approximate heuristic: a short key can match an unrelated
// longer label, and the result depends on table order. Whether the fuzzy
// step should survive a complete label taxonomy is an open product
// question.
func (b *Base) Match(detectedClass string) (model.MedicationRecord, bool) {
	label := normalize(detectedClass)
	if label == "" {
		return model.MedicationRecord{}, false
	}

	if idx, ok := b.byKey[label]; ok {
		return b.records[idx], true
	}

	for _, rec := range b.records {
		if strings.Contains(label, rec.Key) || strings.Contains(rec.Key, label) {
			return rec, true
		}
	}

	return model.MedicationRecord{}, false
}

// Records returns a copy of the table in definition order.
func (b *Base) Records() []model.MedicationRecord {
	out := make([]model.MedicationRecord, len(b.records))
	copy(out, b.records)
	return out
}

// Len reports the number of records.
func (b *Base) Len() int {
	return len(b.records)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
