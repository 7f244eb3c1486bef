package config

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/quizarena/progression/internal/domain/rules"
	"github.com/quizarena/progression/pkg/logger"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if PROGRESSION_CONFIG is set
//  3. env (prefix PROGRESSION_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv("PROGRESSION_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// Environment variables: PROGRESSION_ADDR, PROGRESSION_JOB_QUEUE_SIZE, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("PROGRESSION_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "progression_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("addr must not be empty")
	}
	return &cfg, nil
}

// RuleSet builds the unlock catalog from configuration. An empty rules
// section keeps the built-in catalog. Entries with an unparseable criterion
// are kept as fail-open rules and reported loudly here, once, at load time.
func (c *Config) RuleSet(ctx context.Context) (*rules.Set, error) {
	if len(c.Rules) == 0 {
		return rules.Default(), nil
	}

	log := logger.Get().Named("config")
	parsed := make([]rules.Rule, 0, len(c.Rules))
	for _, rc := range c.Rules {
		kind, err := rules.ParseKind(rc.Criterion)
		if err != nil {
			log.Error(ctx, "rule has unknown criterion; it will evaluate fail-open (unlocked)",
				logger.String("ruleID", rc.ID),
				logger.String("criterion", rc.Criterion),
			)
		}
		parsed = append(parsed, rules.Rule{
			ID:           rc.ID,
			Name:         rc.Name,
			Criterion:    kind,
			CounterField: rc.CounterField,
			Threshold:    rc.Threshold,
		})
	}
	return rules.NewSet(parsed)
}
