package models

// AssetClass groups instruments with similar session behaviour.
type AssetClass string

const (
	AssetCrypto AssetClass = "crypto"
	AssetMetal  AssetClass = "metal"
	AssetForex  AssetClass = "forex"
	AssetIndex  AssetClass = "index"
	AssetEnergy AssetClass = "energy"
)

// AssetProfile is the static calibration metadata for one symbol.
type AssetProfile struct {
	Symbol             string       `yaml:"symbol" json:"symbol"`
	AssetClass         AssetClass   `yaml:"asset_class" json:"asset_class"`
	BaseConfidence     float64      `yaml:"base_confidence" json:"base_confidence"`
	VolatilityWeight   float64      `yaml:"volatility_weight" json:"volatility_weight"`
	SessionWeight      float64      `yaml:"session_weight" json:"session_weight"`
	VWAPSigma          float64      `yaml:"vwap_sigma" json:"vwap_sigma"`
	PreferredStrategy  StrategyKind `yaml:"preferred_strategy" json:"preferred_strategy"`
	ApplicableSessions []Session    `yaml:"applicable_sessions" json:"applicable_sessions"`
	// AlwaysOpen instruments trade through weekends.
	AlwaysOpen     bool `yaml:"always_open" json:"always_open"`
	LowVolume      bool `yaml:"low_volume" json:"low_volume"`
	EventSensitive bool `yaml:"event_sensitive" json:"event_sensitive"`
}

// AppliesTo reports whether the profile trades in session s.
// An empty session list means every session applies.
func (p AssetProfile) AppliesTo(s Session) bool {
	if len(p.ApplicableSessions) == 0 {
		return true
	}
	for _, a := range p.ApplicableSessions {
		if a == s {
			return true
		}
	}
	return false
}
