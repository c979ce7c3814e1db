package models

// Recipient kinds.
const (
	KindGuardian  = "guardian"
	KindAuthority = "authority"
)

// Recipient is someone an alert should be delivered to: either one of the
// subject's guardians or an authority user near the incident. A recipient may
// have several registered devices; each token is dispatched independently.
type Recipient struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Role       string   `json:"role,omitempty"`
	Platform   string   `json:"platform,omitempty"`
	Tokens     []string `json:"-"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// AuthorityCandidate is an authority-role account before geofencing. Candidates
// without a last-known position never make it into the recipient set.
type AuthorityCandidate struct {
	ID        string
	Name      string
	Role      string
	Latitude  *float64
	Longitude *float64
	Tokens    []string
}
