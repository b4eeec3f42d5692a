package domain

import "time"

type Turn struct {
	At       time.Time         `json:"at"`
	Query    string            `json:"query"`
	Answer   string            `json:"answer"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WellFacts holds remembered facts per well name, e.g. {"HAG-GT-01": {"depth": "2500"}}.
type WellFacts map[string]map[string]string
