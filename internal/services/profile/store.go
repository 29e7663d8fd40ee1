package profile

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"PlanSentry/internal/domain/models"
	"PlanSentry/pkg/util"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk profile file.
type Document struct {
	Profiles []models.AssetProfile `yaml:"profiles"`
	// SessionBias maps symbol -> session -> multiplier.
	SessionBias map[string]map[models.Session]float64 `yaml:"session_bias"`
}

// Store is a read-mostly lookup of asset profiles and the session-bias
// matrix. Contents only change through an explicit Reload.
type Store struct {
	path string

	mu       sync.RWMutex
	profiles map[string]models.AssetProfile
	bias     map[string]map[models.Session]float64
}

// Load reads and validates the profile document at path.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromDocument builds a store from an in-memory document.
func NewFromDocument(doc Document) (*Store, error) {
	s := &Store{}
	if err := s.apply(doc); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file. On error the previous contents stay.
func (s *Store) Reload() error {
	if s.path == "" {
		return fmt.Errorf("profile store has no backing file")
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("parse profiles: %w", err)
	}
	return s.apply(doc)
}

func (s *Store) apply(doc Document) error {
	profiles := make(map[string]models.AssetProfile, len(doc.Profiles))
	for i, p := range doc.Profiles {
		p.Symbol = util.NormalizeSymbol(p.Symbol)
		if p.VWAPSigma == 0 {
			p.VWAPSigma = 2
		}
		if err := validateProfile(p); err != nil {
			return fmt.Errorf("profile %d (%s): %w", i, p.Symbol, err)
		}
		if _, dup := profiles[p.Symbol]; dup {
			return fmt.Errorf("profile %s defined twice", p.Symbol)
		}
		profiles[p.Symbol] = p
	}

	bias := make(map[string]map[models.Session]float64, len(doc.SessionBias))
	for sym, row := range doc.SessionBias {
		sym = util.NormalizeSymbol(sym)
		out := make(map[models.Session]float64, len(row))
		for sess, v := range row {
			if !sess.Valid() {
				return fmt.Errorf("session_bias %s: unknown session %q", sym, sess)
			}
			if v <= 0 {
				return fmt.Errorf("session_bias %s/%s: must be positive", sym, sess)
			}
			out[sess] = v
		}
		bias[sym] = out
	}

	s.mu.Lock()
	s.profiles = profiles
	s.bias = bias
	s.mu.Unlock()
	return nil
}

func validateProfile(p models.AssetProfile) error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol required")
	}
	if p.BaseConfidence <= 0 || p.BaseConfidence > 100 {
		return fmt.Errorf("base_confidence %.2f outside (0,100]", p.BaseConfidence)
	}
	if p.VolatilityWeight < 0 || p.SessionWeight < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	if p.VWAPSigma < 0 {
		return fmt.Errorf("vwap_sigma must be non-negative")
	}
	if p.PreferredStrategy != "" && !p.PreferredStrategy.Valid() {
		return fmt.Errorf("preferred_strategy %q unknown", p.PreferredStrategy)
	}
	for _, s := range p.ApplicableSessions {
		if !s.Valid() {
			return fmt.Errorf("applicable session %q unknown", s)
		}
	}
	return nil
}

// Get returns the profile for symbol (broker suffixes are ignored).
func (s *Store) Get(symbol string) (models.AssetProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[util.NormalizeSymbol(symbol)]
	return p, ok
}

// Bias returns the matrix entry for (symbol, session) if present.
func (s *Store) Bias(symbol string, session models.Session) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.bias[util.NormalizeSymbol(symbol)]
	if !ok {
		return 0, false
	}
	v, ok := row[session]
	return v, ok
}

// Symbols lists configured profile symbols.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.profiles))
	for sym := range s.profiles {
		out = append(out, sym)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
