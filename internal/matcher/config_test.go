package matcher

import (
	"testing"

	"expense-reconciliation-service/internal/models"
	"expense-reconciliation-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func TestDefaultMatchConfig(t *testing.T) {
	config := DefaultMatchConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("default config must validate, got %v", err)
	}

	if !config.AmountTolerance.Equal(decimal.NewFromFloat(0.01)) {
		t.Errorf("expected amount tolerance 0.01, got %s", config.AmountTolerance)
	}
	if config.DateWindowDays != 3 {
		t.Errorf("expected date window 3, got %d", config.DateWindowDays)
	}
	if config.ConfidenceThreshold != 0.7 {
		t.Errorf("expected confidence threshold 0.7, got %v", config.ConfidenceThreshold)
	}
	if config.Weights.Amount != 0.5 || config.Weights.Date != 0.3 || config.Weights.Merchant != 0.2 {
		t.Errorf("unexpected default weights: %+v", config.Weights)
	}
}

func TestPresetConfigsValidate(t *testing.T) {
	presets := map[string]*MatchConfig{
		"default": DefaultMatchConfig(),
		"strict":  StrictMatchConfig(),
		"relaxed": RelaxedMatchConfig(),
	}

	for name, config := range presets {
		if err := config.Validate(); err != nil {
			t.Errorf("%s config must validate, got %v", name, err)
		}
	}
}

func TestMatchConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MatchConfig)
		wantErr bool
	}{
		{"valid default", func(c *MatchConfig) {}, false},
		{"negative tolerance", func(c *MatchConfig) {
			c.AmountTolerance = decimal.NewFromFloat(-0.01)
		}, true},
		{"negative date window", func(c *MatchConfig) {
			c.DateWindowDays = -1
		}, true},
		{"threshold above one", func(c *MatchConfig) {
			c.ConfidenceThreshold = 1.5
		}, true},
		{"threshold below zero", func(c *MatchConfig) {
			c.ConfidenceThreshold = -0.1
		}, true},
		{"weights sum above one", func(c *MatchConfig) {
			c.Weights = models.FactorWeights{Amount: 0.5, Date: 0.5, Merchant: 0.5}
		}, true},
		{"weights sum below one", func(c *MatchConfig) {
			c.Weights = models.FactorWeights{Amount: 0.3, Date: 0.3, Merchant: 0.3}
		}, true},
		{"negative weight", func(c *MatchConfig) {
			c.Weights = models.FactorWeights{Amount: 1.2, Date: -0.1, Merchant: -0.1}
		}, true},
		{"weights sum within float noise", func(c *MatchConfig) {
			c.Weights = models.FactorWeights{Amount: 0.1, Date: 0.2, Merchant: 0.7}
		}, false},
		{"missing algorithm version", func(c *MatchConfig) {
			c.AlgorithmVersion = ""
		}, true},
		{"zero tolerance allowed", func(c *MatchConfig) {
			c.AmountTolerance = decimal.Zero
		}, false},
		{"zero window allowed", func(c *MatchConfig) {
			c.DateWindowDays = 0
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultMatchConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if err != nil {
				auditErr, ok := errors.AsAuditError(err)
				if !ok {
					t.Fatalf("expected an AuditError, got %T", err)
				}
				if auditErr.Category != errors.CategoryConfiguration {
					t.Errorf("expected configuration category, got %s", auditErr.Category)
				}
			}
		})
	}
}

func TestMatchConfigClone(t *testing.T) {
	original := DefaultMatchConfig()
	clone := original.Clone()

	clone.DateWindowDays = 10
	clone.Weights.Amount = 0.9

	if original.DateWindowDays != 3 {
		t.Errorf("clone mutation leaked into original: %d", original.DateWindowDays)
	}
	if original.Weights.Amount != 0.5 {
		t.Errorf("clone weight mutation leaked into original: %v", original.Weights.Amount)
	}
}
