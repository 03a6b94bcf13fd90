package common

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Farm  FarmConfig  `yaml:"farm"`
	Wake  WakeConfig  `yaml:"wake"`
	Loop  LoopConfig  `yaml:"loop"`
	Mqtt  MqttConfig  `yaml:"mqtt"`
	Audit AuditConfig `yaml:"audit"`
}

type FarmConfig struct {
	Id       string          `yaml:"id"`
	Turbines []TurbineConfig `yaml:"turbines"`
}

// TurbineConfig places one turbine in the farm. X and Y are rotor positions
// in meters, east and north; Address is the ZeroMQ endpoint its controller
// dials into.
type TurbineConfig struct {
	Id      int     `yaml:"id"`
	Name    string  `yaml:"name"`
	Address string  `yaml:"address"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
}

// WakeConfig parameterizes the wake model and the steering schedule. All
// times are simulation seconds, angles degrees.
type WakeConfig struct {
	RotorDiameter     float64 `yaml:"rotorDiameter"`
	HubHeight         float64 `yaml:"hubHeight"`
	AirDensity        float64 `yaml:"airDensity"`
	ThrustCoefficient float64 `yaml:"thrustCoefficient"`
	PowerCoefficient  float64 `yaml:"powerCoefficient"`
	YawPowerExponent  float64 `yaml:"yawPowerExponent"`
	WakeDecay         float64 `yaml:"wakeDecay"`
	WindDirection     float64 `yaml:"windDirection"`
	MinYaw            float64 `yaml:"minYaw"`
	MaxYaw            float64 `yaml:"maxYaw"`
	WarmupTime        float64 `yaml:"warmupTime"`
	UpdateInterval    float64 `yaml:"updateInterval"`
	MemorySize        int     `yaml:"memorySize"`
	FreestreamWindow  int     `yaml:"freestreamWindow"`
}

type LoopConfig struct {
	StallTimeout            float64 `yaml:"stallTimeout"` // wall clock seconds
	StallPolicy             string  `yaml:"stallPolicy"`
	FallbackPolicy          string  `yaml:"fallbackPolicy"`
	MaxTurbineStalls        int     `yaml:"maxTurbineStalls"`
	MaxOptimizationFailures int     `yaml:"maxOptimizationFailures"`
	HeartbeatInterval       float64 `yaml:"heartbeatInterval"` // wall clock seconds, 0 disables
}

type MqttConfig struct {
	Url string `yaml:"url"`
}

type AuditConfig struct {
	File string `yaml:"file"`
}

const STALL_POLICY_PROCEED = "proceed"
const STALL_POLICY_WAIT = "wait"

const FALLBACK_HOLD = "hold"
const FALLBACK_ZERO = "zero"

// NewConfig returns the defaults for an IEA 22 MW offshore row, the turbine
// the reference simulations run.
func NewConfig() *Config {
	return &Config{
		Farm: FarmConfig{
			Id: "windfarm",
		},
		Wake: WakeConfig{
			RotorDiameter:     284.0,
			HubHeight:         170.0,
			AirDensity:        1.225,
			ThrustCoefficient: 0.8,
			PowerCoefficient:  0.47,
			YawPowerExponent:  1.88,
			WakeDecay:         0.04,
			WindDirection:     270.0,
			MinYaw:            -25.0,
			MaxYaw:            25.0,
			WarmupTime:        60.0,
			UpdateInterval:    10.0,
			MemorySize:        60,
			FreestreamWindow:  10,
		},
		Loop: LoopConfig{
			StallTimeout:            60.0,
			StallPolicy:             STALL_POLICY_PROCEED,
			FallbackPolicy:          FALLBACK_HOLD,
			MaxTurbineStalls:        5,
			MaxOptimizationFailures: 10,
			HeartbeatInterval:       15.0,
		},
		Mqtt:  MqttConfig{Url: ""},
		Audit: AuditConfig{File: ""},
	}
}

// LoadConfig reads a YAML farm configuration over the defaults.
func LoadConfig(path string) (*Config, error) {
	config := NewConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Detail: err.Error()}
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("could not parse %s: %s", path, err)}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if len(c.Farm.Turbines) == 0 {
		return &ConfigurationError{Detail: "no turbines configured"}
	}

	ids := make(map[int]bool)
	addresses := make(map[string]bool)
	for _, turbine := range c.Farm.Turbines {
		if turbine.Id <= 0 {
			return &ConfigurationError{Detail: fmt.Sprintf("turbine id %d must be positive", turbine.Id)}
		}
		if ids[turbine.Id] {
			return &ConfigurationError{Detail: fmt.Sprintf("duplicate turbine id %d", turbine.Id)}
		}
		ids[turbine.Id] = true

		if turbine.Address == "" {
			return &ConfigurationError{Detail: fmt.Sprintf("turbine %d has no address", turbine.Id)}
		}
		if addresses[turbine.Address] {
			return &ConfigurationError{Detail: fmt.Sprintf("turbine %d reuses address %s", turbine.Id, turbine.Address)}
		}
		addresses[turbine.Address] = true
	}

	switch c.Loop.StallPolicy {
	case STALL_POLICY_PROCEED, STALL_POLICY_WAIT:
	default:
		return &ConfigurationError{Detail: fmt.Sprintf("unknown stall policy %q", c.Loop.StallPolicy)}
	}

	switch c.Loop.FallbackPolicy {
	case FALLBACK_HOLD, FALLBACK_ZERO:
	default:
		return &ConfigurationError{Detail: fmt.Sprintf("unknown fallback policy %q", c.Loop.FallbackPolicy)}
	}

	if c.Loop.StallTimeout <= 0 {
		return &ConfigurationError{Detail: "stall timeout must be positive"}
	}
	if c.Loop.HeartbeatInterval < 0 {
		return &ConfigurationError{Detail: "heartbeat interval must not be negative"}
	}

	if c.Wake.RotorDiameter <= 0 {
		return &ConfigurationError{Detail: "rotor diameter must be positive"}
	}
	if c.Wake.WakeDecay <= 0 {
		return &ConfigurationError{Detail: "wake decay must be positive"}
	}
	if c.Wake.ThrustCoefficient <= 0 || c.Wake.ThrustCoefficient >= 1 {
		return &ConfigurationError{Detail: "thrust coefficient must lie in (0, 1)"}
	}
	if c.Wake.MinYaw > c.Wake.MaxYaw {
		return &ConfigurationError{Detail: "minYaw is above maxYaw"}
	}
	if c.Wake.UpdateInterval <= 0 {
		return &ConfigurationError{Detail: "update interval must be positive"}
	}
	if c.Wake.FreestreamWindow <= 0 || c.Wake.MemorySize < c.Wake.FreestreamWindow {
		return &ConfigurationError{Detail: "measurement memory must cover the freestream window"}
	}

	return nil
}

// Turbine looks a turbine up by id.
func (c *Config) Turbine(id int) (TurbineConfig, bool) {
	for _, turbine := range c.Farm.Turbines {
		if turbine.Id == id {
			return turbine, true
		}
	}
	return TurbineConfig{}, false
}

func (c *Config) TurbineIds() []int {
	ids := make([]int, 0, len(c.Farm.Turbines))
	for _, turbine := range c.Farm.Turbines {
		ids = append(ids, turbine.Id)
	}
	return ids
}

// StallWait converts the configured stall timeout into a wall clock duration
// for the step watchdog.
func (l LoopConfig) StallWait() time.Duration {
	return time.Duration(l.StallTimeout * float64(time.Second))
}

func (l LoopConfig) HeartbeatWait() time.Duration {
	return time.Duration(l.HeartbeatInterval * float64(time.Second))
}

type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Detail
}
