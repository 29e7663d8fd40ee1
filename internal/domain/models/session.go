package models

// Session labels a UTC trading window.
type Session string

const (
	SessionAsian   Session = "asian"
	SessionLondon  Session = "london"
	SessionOverlap Session = "overlap"
	SessionNewYork Session = "new_york"
	SessionLate    Session = "late"
)

// AllSessions lists sessions in UTC order.
var AllSessions = []Session{SessionAsian, SessionLondon, SessionOverlap, SessionNewYork, SessionLate}

// Valid reports whether s is a known session label.
func (s Session) Valid() bool {
	for _, k := range AllSessions {
		if k == s {
			return true
		}
	}
	return false
}

// Liquidity is the characteristic depth of a session.
type Liquidity string

const (
	LiquidityLow      Liquidity = "low"
	LiquidityHigh     Liquidity = "high"
	LiquidityVeryHigh Liquidity = "very_high"
)

// SessionInfo is the classification of one instant for one symbol.
type SessionInfo struct {
	Session    Session   `json:"session"`
	Liquidity  Liquidity `json:"liquidity"`
	Bias       float64   `json:"bias"`
	Applicable bool      `json:"applicable"`
}
