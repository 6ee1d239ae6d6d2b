package pactengine

// Mismatch mirrors the engine's wire representation of a single
// matching failure.
type Mismatch struct {
	Path     string `json:"path"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Reason   string `json:"reason"`
}

type MatchResult struct {
	Matched    bool       `json:"matched"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

type InteractionList struct {
	Interactions []string `json:"interactions"`
}
