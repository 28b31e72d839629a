// Package seed loads the default rule set from YAML into an empty rule store.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"creditflow/internal/rules/models"
	"creditflow/internal/rules/ports"
	id "creditflow/pkg/domain"
)

//go:embed default_rules.yaml
var defaultRules []byte

// File is the YAML document shape.
type File struct {
	Rules []Rule `yaml:"rules"`
}

// Rule is one seeded definition. Parameters are decoded per type.
type Rule struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Type        string         `yaml:"type"`
	Approved    bool           `yaml:"approved"`
	Active      *bool          `yaml:"active"`
	Origin      string         `yaml:"origin"`
	Parameters  map[string]any `yaml:"parameters"`
}

// Default returns the embedded default rule set.
func Default() ([]byte, error) {
	return defaultRules, nil
}

// ReadFile returns the YAML at path, or the embedded defaults when path is empty.
func ReadFile(path string) ([]byte, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}
	return data, nil
}

// Parse decodes and validates a YAML rule set.
func Parse(data []byte) ([]*models.Definition, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed rules: %w", err)
	}
	defs := make([]*models.Definition, 0, len(f.Rules))
	for i, r := range f.Rules {
		def, err := r.definition()
		if err != nil {
			return nil, fmt.Errorf("seed rule %d (%s): %w", i, r.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (r Rule) definition() (*models.Definition, error) {
	kind, err := models.ParseKind(r.Type)
	if err != nil {
		return nil, err
	}
	origin := models.OriginSystem
	if r.Origin != "" {
		if origin, err = models.ParseOrigin(r.Origin); err != nil {
			return nil, err
		}
	}
	raw, err := json.Marshal(r.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	params, err := models.DecodeParams(kind, raw)
	if err != nil {
		return nil, err
	}
	def := &models.Definition{
		Name:        r.Name,
		Description: r.Description,
		Kind:        kind,
		Params:      params,
		Approved:    r.Approved,
		Active:      true,
		Origin:      origin,
	}
	if r.Active != nil {
		def.Active = *r.Active
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// Apply stores defs when the store holds no rules yet. It returns the
// number of rules created.
func Apply(ctx context.Context, store ports.Store, defs []*models.Definition, now func() time.Time, logger *slog.Logger) (int, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count rules: %w", err)
	}
	if n > 0 {
		logger.InfoContext(ctx, "rule store already populated, skipping seed", "rules", n)
		return 0, nil
	}
	for _, def := range defs {
		d := *def
		d.ID = id.NewRuleID()
		d.CreatedAt = now()
		d.UpdatedAt = d.CreatedAt
		if err := store.Create(ctx, &d); err != nil {
			return 0, fmt.Errorf("seed rule %s: %w", d.Name, err)
		}
	}
	logger.InfoContext(ctx, "seeded default rules", "rules", len(defs))
	return len(defs), nil
}
