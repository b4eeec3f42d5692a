package domain

type ClaimKind string

const (
	ClaimMeasurement ClaimKind = "measurement"
	ClaimDate        ClaimKind = "date"
	ClaimISODate     ClaimKind = "iso_date"
	ClaimIdentifier  ClaimKind = "identifier"
)

type Claim struct {
	Text string    `json:"text"`
	Kind ClaimKind `json:"kind"`
}

type VerdictStatus string

const (
	// VerdictValidated means at least one judge model responded.
	VerdictValidated VerdictStatus = "validated"
	// VerdictSkipped means the answer carried no checkable claims.
	VerdictSkipped VerdictStatus = "skipped"
	// VerdictDegraded means every judge model failed and a fallback confidence was used.
	VerdictDegraded VerdictStatus = "degraded"
)

type ModelVote struct {
	Model      string   `json:"model"`
	Valid      int      `json:"valid"`
	Uncertain  int      `json:"uncertain"`
	Invalid    int      `json:"invalid"`
	Confidence float64  `json:"confidence"`
	Issues     []string `json:"issues,omitempty"`
	Err        string   `json:"error,omitempty"`
}

func (v ModelVote) Failed() bool { return v.Err != "" }

type Verdict struct {
	Status     VerdictStatus `json:"status"`
	IsValid    bool          `json:"is_valid"`
	Confidence float64       `json:"confidence"`
	Issues     []string      `json:"issues,omitempty"`
	Claims     []Claim       `json:"claims,omitempty"`
	Votes      []ModelVote   `json:"votes,omitempty"`
}
