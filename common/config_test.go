package common

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const tolerance = .00001

func TestNewConfigDefaults(t *testing.T) {
	config := NewConfig()

	if math.Abs(config.Wake.RotorDiameter-284.0) > tolerance {
		t.Errorf("Expected rotor diameter to be 284, got %f", config.Wake.RotorDiameter)
	}
	if math.Abs(config.Wake.MaxYaw-25.0) > tolerance {
		t.Errorf("Expected maxYaw to be 25, got %f", config.Wake.MaxYaw)
	}
	if config.Loop.StallPolicy != STALL_POLICY_PROCEED {
		t.Errorf("Expected stall policy %s, got %s", STALL_POLICY_PROCEED, config.Loop.StallPolicy)
	}
	if config.Loop.FallbackPolicy != FALLBACK_HOLD {
		t.Errorf("Expected fallback policy %s, got %s", FALLBACK_HOLD, config.Loop.FallbackPolicy)
	}
	if config.Loop.StallWait() != 60*time.Second {
		t.Errorf("Expected stall wait of 60s, got %v", config.Loop.StallWait())
	}
}

func TestLoadConfig(t *testing.T) {
	yaml := `
farm:
  id: testFarm
  turbines:
    - id: 1
      name: WT1
      address: tcp://*:5555
      x: 0.0
      y: 0.0
    - id: 2
      name: WT2
      address: tcp://*:5556
      x: 1988.0
      y: 0.0
wake:
  windDirection: 270.0
  warmupTime: 30.0
loop:
  stallTimeout: 5.0
  fallbackPolicy: zero
`
	path := filepath.Join(t.TempDir(), "farm.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("could not write config file: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Farm.Id != "testFarm" {
		t.Errorf("Expected farm id testFarm, got %s", config.Farm.Id)
	}
	if len(config.Farm.Turbines) != 2 {
		t.Fatalf("Expected 2 turbines, got %d", len(config.Farm.Turbines))
	}
	if math.Abs(config.Farm.Turbines[1].X-1988.0) > tolerance {
		t.Errorf("Expected turbine 2 at x=1988, got %f", config.Farm.Turbines[1].X)
	}
	if math.Abs(config.Wake.WarmupTime-30.0) > tolerance {
		t.Errorf("Expected warmup of 30s, got %f", config.Wake.WarmupTime)
	}
	if config.Loop.FallbackPolicy != FALLBACK_ZERO {
		t.Errorf("Expected fallback policy zero, got %s", config.Loop.FallbackPolicy)
	}

	// defaults survive a partial overlay
	if math.Abs(config.Wake.RotorDiameter-284.0) > tolerance {
		t.Errorf("Expected default rotor diameter, got %f", config.Wake.RotorDiameter)
	}
	if config.Loop.MaxTurbineStalls != 5 {
		t.Errorf("Expected default max turbine stalls, got %d", config.Loop.MaxTurbineStalls)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))

	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Errorf("Expected a configuration error, got %v", err)
	}
}

func TestValidateDuplicateTurbineId(t *testing.T) {
	config := NewConfig()
	config.Farm.Turbines = []TurbineConfig{
		{Id: 1, Address: "tcp://*:5555"},
		{Id: 1, Address: "tcp://*:5556"},
	}

	var confErr *ConfigurationError
	if err := config.Validate(); !errors.As(err, &confErr) {
		t.Errorf("Expected a configuration error, got %v", err)
	}
}

func TestValidateDuplicateAddress(t *testing.T) {
	config := NewConfig()
	config.Farm.Turbines = []TurbineConfig{
		{Id: 1, Address: "tcp://*:5555"},
		{Id: 2, Address: "tcp://*:5555"},
	}

	if err := config.Validate(); err == nil {
		t.Error("Expected validation to fail on a reused address")
	}
}

func TestValidateNoTurbines(t *testing.T) {
	config := NewConfig()

	if err := config.Validate(); err == nil {
		t.Error("Expected validation to fail without turbines")
	}
}

func TestValidateUnknownPolicies(t *testing.T) {
	config := NewConfig()
	config.Farm.Turbines = []TurbineConfig{{Id: 1, Address: "tcp://*:5555"}}
	config.Loop.StallPolicy = "panic"

	if err := config.Validate(); err == nil {
		t.Error("Expected validation to fail on an unknown stall policy")
	}

	config.Loop.StallPolicy = STALL_POLICY_WAIT
	config.Loop.FallbackPolicy = "guess"

	if err := config.Validate(); err == nil {
		t.Error("Expected validation to fail on an unknown fallback policy")
	}
}

func TestTurbineLookup(t *testing.T) {
	config := NewConfig()
	config.Farm.Turbines = []TurbineConfig{
		{Id: 1, Name: "WT1", Address: "tcp://*:5555"},
		{Id: 7, Name: "WT7", Address: "tcp://*:5556"},
	}

	turbine, ok := config.Turbine(7)
	if !ok || turbine.Name != "WT7" {
		t.Errorf("Expected to find WT7, got %+v ok=%v", turbine, ok)
	}

	if _, ok := config.Turbine(3); ok {
		t.Error("Expected lookup of turbine 3 to fail")
	}

	ids := config.TurbineIds()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 7 {
		t.Errorf("Unexpected turbine ids: %v", ids)
	}
}
