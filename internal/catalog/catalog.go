package catalog

import (
	"bytes"
	"errors"
	"fmt"

	"triage-sim/pkg"

	"github.com/spf13/viper"

	_ "embed"
)

// ErrCaseNotFound is returned by Lookup for an unknown case identifier.
var ErrCaseNotFound = errors.New("case not found")

//go:embed cases.yaml
var defaultCases []byte

// maxComplaintLen caps the chief complaint shown in the case picker.
const maxComplaintLen = 30

// Catalog holds the immutable set of patient cases.  It is built once at
// process start and is safe for concurrent lookups.
type Catalog struct {
	cases map[string]*pkg.CaseProfile
	order []string
}

// Load builds a Catalog from the YAML case file at path, or from the embedded
// default cases when path is empty.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read case file %s: %w", path, err)
		}
	} else if err := v.ReadConfig(bytes.NewReader(defaultCases)); err != nil {
		return nil, fmt.Errorf("read embedded cases: %w", err)
	}

	var raw struct {
		Cases []pkg.CaseProfile `mapstructure:"cases"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("decode cases: %w", err)
	}
	if len(raw.Cases) == 0 {
		return nil, errors.New("case catalog is empty")
	}

	c := &Catalog{cases: make(map[string]*pkg.CaseProfile, len(raw.Cases))}
	for i := range raw.Cases {
		p := raw.Cases[i]
		if err := validate(&p); err != nil {
			return nil, err
		}
		if _, dup := c.cases[p.ID]; dup {
			return nil, fmt.Errorf("duplicate case id %q", p.ID)
		}
		c.cases[p.ID] = &p
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

func validate(p *pkg.CaseProfile) error {
	fields := map[string]string{
		"id":              p.ID,
		"name":            p.Name,
		"sex":             p.Sex,
		"chief_complaint": p.ChiefComplaint,
		"opening_line":    p.OpeningLine,
		"hot_clues":       p.HotClues,
		"scoring_rule":    p.ScoringRule,
	}
	for name, val := range fields {
		if val == "" {
			return fmt.Errorf("case %q: missing %s", p.ID, name)
		}
	}
	if p.ESILevel < 1 {
		return fmt.Errorf("case %q: esi_level must be a positive integer", p.ID)
	}
	return nil
}

// Lookup returns the profile for the given case identifier.
func (c *Catalog) Lookup(caseID string) (*pkg.CaseProfile, error) {
	p, ok := c.cases[caseID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCaseNotFound, caseID)
	}
	return p, nil
}

// List returns display summaries for every case in file order.
func (c *Catalog) List() []pkg.CaseSummary {
	out := make([]pkg.CaseSummary, 0, len(c.order))
	for _, id := range c.order {
		p := c.cases[id]
		complaint := p.ChiefComplaint
		if r := []rune(complaint); len(r) > maxComplaintLen {
			complaint = string(r[:maxComplaintLen]) + "..."
		}
		out = append(out, pkg.CaseSummary{ID: p.ID, Name: p.Name, Complaint: complaint})
	}
	return out
}
