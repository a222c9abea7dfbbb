package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/gnss-sentinel/anomaly"
	"github.com/signalsfoundry/gnss-sentinel/core"
)

type Config struct {
	Solver   SolverConfig   `yaml:"solver"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Detector DetectorConfig `yaml:"detector"`
	Server   ServerConfig   `yaml:"server"`
}

type SolverConfig struct {
	MaxIterations      int     `yaml:"max_iterations"`
	ConvergenceEpsilon float64 `yaml:"convergence_epsilon"`
}

type PipelineConfig struct {
	// Workers bounds epoch-level parallelism; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

type DetectorConfig struct {
	PDOPThreshold           float64 `yaml:"pdop_threshold"`
	MinSatellites           int     `yaml:"min_satellites"`
	JumpThresholdMeters     float64 `yaml:"jump_threshold_meters"`
	OutlierMethod           string  `yaml:"outlier_method"`
	ExpectedOutlierFraction float64 `yaml:"expected_outlier_fraction"`
	Seed                    int64   `yaml:"seed"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the documented defaults for every setting.
func Default() Config {
	return Config{
		Solver: SolverConfig{
			MaxIterations:      core.DefaultMaxIterations,
			ConvergenceEpsilon: core.DefaultConvergenceEpsilon,
		},
		Detector: DetectorConfig{
			PDOPThreshold:           anomaly.DefaultPDOPThreshold,
			MinSatellites:           anomaly.DefaultMinSatellites,
			JumpThresholdMeters:     anomaly.DefaultJumpThresholdMeters,
			OutlierMethod:           anomaly.MethodIsolation,
			ExpectedOutlierFraction: anomaly.DefaultExpectedOutlierFraction,
			Seed:                    anomaly.DefaultSeed,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MetricsAddr: ":9090",
		},
	}
}

// Load reads a YAML config file and fills unset values with defaults. An
// empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %q: %w", path, err)
	}

	if cfg.Solver.MaxIterations <= 0 {
		cfg.Solver.MaxIterations = core.DefaultMaxIterations
	}
	if cfg.Solver.ConvergenceEpsilon <= 0 {
		cfg.Solver.ConvergenceEpsilon = core.DefaultConvergenceEpsilon
	}
	if cfg.Pipeline.Workers < 0 {
		return Config{}, fmt.Errorf("pipeline.workers must be >= 0, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Detector.PDOPThreshold < 0 {
		return Config{}, fmt.Errorf("detector.pdop_threshold must be >= 0, got %v", cfg.Detector.PDOPThreshold)
	}
	if cfg.Detector.ExpectedOutlierFraction < 0 || cfg.Detector.ExpectedOutlierFraction >= 1 {
		return Config{}, fmt.Errorf("detector.expected_outlier_fraction must be in [0, 1), got %v", cfg.Detector.ExpectedOutlierFraction)
	}
	switch cfg.Detector.OutlierMethod {
	case "", anomaly.MethodIsolation, anomaly.MethodOneClass:
	default:
		return Config{}, fmt.Errorf("detector.outlier_method must be %q or %q, got %q",
			anomaly.MethodIsolation, anomaly.MethodOneClass, cfg.Detector.OutlierMethod)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MetricsAddr == "" {
		cfg.Server.MetricsAddr = ":9090"
	}

	return cfg, nil
}

// DetectorConfig converts to the anomaly package's config type.
func (c DetectorConfig) ToDetector() anomaly.Config {
	return anomaly.Config{
		PDOPThreshold:           c.PDOPThreshold,
		MinSatellites:           c.MinSatellites,
		JumpThresholdMeters:     c.JumpThresholdMeters,
		OutlierMethod:           c.OutlierMethod,
		ExpectedOutlierFraction: c.ExpectedOutlierFraction,
		Seed:                    c.Seed,
	}
}

// ToSolver converts to a core solver.
func (c SolverConfig) ToSolver() *core.Solver {
	return &core.Solver{
		MaxIterations:      c.MaxIterations,
		ConvergenceEpsilon: c.ConvergenceEpsilon,
	}
}
