package model

// MedicationRecord is one knowledge base entry.
type MedicationRecord struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description" yaml:"description"`
	Timing      string `json:"timing" yaml:"timing"`
	Advice      string `json:"advice" yaml:"advice"`
}
