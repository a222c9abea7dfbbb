// Package anomaly evaluates solved epoch batches for geometry, trajectory,
// and statistical irregularities that suggest spoofing, jamming, or sensor
// fault.
package anomaly

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/gnss-sentinel/internal/logging"
	"github.com/signalsfoundry/gnss-sentinel/model"
)

// Detector defaults. Named so configuration can override them and tests can
// reference them directly.
const (
	DefaultPDOPThreshold           = 10.0
	DefaultMinSatellites           = 4
	DefaultJumpThresholdMeters     = 50.0
	DefaultExpectedOutlierFraction = 0.05
	DefaultSeed                    = 42
)

// Config controls the four anomaly checks.
type Config struct {
	// PDOPThreshold triggers GeometryDegraded when exceeded.
	PDOPThreshold float64
	// MinSatellites triggers InsufficientSatellites when the observed count
	// falls below it.
	MinSatellites int
	// JumpThresholdMeters triggers PositionJump when the distance to the
	// nearest preceding successfully solved epoch exceeds it.
	JumpThresholdMeters float64
	// OutlierMethod selects the batch outlier scorer: MethodIsolation or
	// MethodOneClass. Empty means MethodIsolation.
	OutlierMethod string
	// ExpectedOutlierFraction calibrates the scorer's decision boundary.
	ExpectedOutlierFraction float64
	// Seed makes isolation scoring deterministic. Zero means DefaultSeed.
	Seed int64
}

// DefaultConfig returns the documented default thresholds.
func DefaultConfig() Config {
	return Config{
		PDOPThreshold:           DefaultPDOPThreshold,
		MinSatellites:           DefaultMinSatellites,
		JumpThresholdMeters:     DefaultJumpThresholdMeters,
		OutlierMethod:           MethodIsolation,
		ExpectedOutlierFraction: DefaultExpectedOutlierFraction,
		Seed:                    DefaultSeed,
	}
}

// FlagMetricsRecorder receives flag counts per reason after each batch
// evaluation. The observability collector satisfies this interface.
type FlagMetricsRecorder interface {
	ObserveFlags(reason string, count int)
}

// Detector runs the four independent per-epoch checks over one ordered
// EpochRecord batch. The statistical model is fit fresh on every Evaluate
// call; a Detector holds no cross-batch state.
type Detector struct {
	cfg     Config
	log     logging.Logger
	metrics FlagMetricsRecorder
}

// Option configures a Detector.
type Option func(*Detector)

// WithMetricsRecorder wires flag counters into the detector.
func WithMetricsRecorder(rec FlagMetricsRecorder) Option {
	return func(d *Detector) { d.metrics = rec }
}

// NewDetector validates cfg, fills unset values with defaults, and returns
// a ready detector.
func NewDetector(cfg Config, log logging.Logger, opts ...Option) (*Detector, error) {
	if cfg.PDOPThreshold == 0 {
		cfg.PDOPThreshold = DefaultPDOPThreshold
	}
	if cfg.MinSatellites == 0 {
		cfg.MinSatellites = DefaultMinSatellites
	}
	if cfg.JumpThresholdMeters == 0 {
		cfg.JumpThresholdMeters = DefaultJumpThresholdMeters
	}
	if cfg.OutlierMethod == "" {
		cfg.OutlierMethod = MethodIsolation
	}
	if cfg.ExpectedOutlierFraction == 0 {
		cfg.ExpectedOutlierFraction = DefaultExpectedOutlierFraction
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}

	if cfg.PDOPThreshold < 0 {
		return nil, fmt.Errorf("anomaly: pdop_threshold must be >= 0, got %v", cfg.PDOPThreshold)
	}
	if cfg.JumpThresholdMeters < 0 {
		return nil, fmt.Errorf("anomaly: jump_threshold_meters must be >= 0, got %v", cfg.JumpThresholdMeters)
	}
	if cfg.ExpectedOutlierFraction < 0 || cfg.ExpectedOutlierFraction >= 1 {
		return nil, fmt.Errorf("anomaly: expected_outlier_fraction must be in [0, 1), got %v", cfg.ExpectedOutlierFraction)
	}
	if cfg.OutlierMethod != MethodIsolation && cfg.OutlierMethod != MethodOneClass {
		return nil, fmt.Errorf("anomaly: unknown outlier_method %q", cfg.OutlierMethod)
	}

	if log == nil {
		log = logging.Noop()
	}

	d := &Detector{cfg: cfg, log: log}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Evaluate runs all checks over the ordered batch and returns one
// AnomalyFlag per record, in record order. Checks are independent and
// accumulate: an epoch can carry several reasons at once.
//
// Epochs lacking a DOPRecord are ineligible for GeometryDegraded and for
// statistical scoring, but stay eligible for InsufficientSatellites and,
// when a position exists, PositionJump. Failed epochs never serve as the
// baseline for the next epoch's jump distance; the nearest preceding
// successful epoch does.
func (d *Detector) Evaluate(ctx context.Context, records []model.EpochRecord) ([]model.AnomalyFlag, error) {
	flags := make([]model.AnomalyFlag, len(records))
	for i, r := range records {
		flags[i] = model.AnomalyFlag{EpochIndex: r.Index}
	}

	d.checkGeometry(records, flags)
	d.checkSatelliteCounts(records, flags)
	d.checkPositionJumps(records, flags)

	if err := d.checkStatisticalOutliers(records, flags); err != nil {
		return nil, err
	}

	d.recordMetrics(ctx, flags)
	return flags, nil
}

func (d *Detector) checkGeometry(records []model.EpochRecord, flags []model.AnomalyFlag) {
	for i, r := range records {
		if r.DOP == nil {
			continue
		}
		if r.DOP.PDOP > d.cfg.PDOPThreshold {
			flags[i].Reasons = append(flags[i].Reasons, model.FlagGeometryDegraded)
		}
	}
}

func (d *Detector) checkSatelliteCounts(records []model.EpochRecord, flags []model.AnomalyFlag) {
	for i, r := range records {
		if r.SatelliteCount < d.cfg.MinSatellites {
			flags[i].Reasons = append(flags[i].Reasons, model.FlagInsufficientSatellites)
		}
	}
}

func (d *Detector) checkPositionJumps(records []model.EpochRecord, flags []model.AnomalyFlag) {
	var prev *model.PositionEstimate
	for i, r := range records {
		if !r.Solved() {
			continue
		}
		// The first solved epoch has no predecessor and can never jump.
		if prev != nil {
			if r.Estimate.Position.DistanceTo(prev.Position) > d.cfg.JumpThresholdMeters {
				flags[i].Reasons = append(flags[i].Reasons, model.FlagPositionJump)
			}
		}
		prev = r.Estimate
	}
}

func (d *Detector) checkStatisticalOutliers(records []model.EpochRecord, flags []model.AnomalyFlag) error {
	// Only fully evaluated epochs (position + DOP) carry a complete feature
	// vector.
	eligible := make([]int, 0, len(records))
	for i, r := range records {
		if r.Solved() && r.DOP != nil {
			eligible = append(eligible, i)
		}
	}
	// With fewer than a handful of points, outlier calibration is
	// meaningless; skip the check rather than invent flags.
	if len(eligible) < 4 {
		return nil
	}

	features := buildFeatures(records, eligible)

	scorer, err := NewScorer(d.cfg)
	if err != nil {
		return err
	}
	outliers, err := scorer.FitScore(features)
	if err != nil {
		return fmt.Errorf("anomaly: outlier scoring failed: %w", err)
	}
	if len(outliers) != len(eligible) {
		return fmt.Errorf("anomaly: scorer returned %d verdicts for %d vectors", len(outliers), len(eligible))
	}

	for k, recIdx := range eligible {
		if outliers[k] {
			flags[recIdx].Reasons = append(flags[recIdx].Reasons, model.FlagStatisticalOutlier)
		}
	}
	return nil
}

func (d *Detector) recordMetrics(ctx context.Context, flags []model.AnomalyFlag) {
	counts := map[model.FlagReason]int{}
	flagged := 0
	for _, f := range flags {
		if f.Flagged() {
			flagged++
		}
		for _, r := range f.Reasons {
			counts[r]++
		}
	}

	if d.metrics != nil {
		for reason, count := range counts {
			d.metrics.ObserveFlags(string(reason), count)
		}
	}

	d.log.Info(ctx, "anomaly evaluation complete",
		logging.Int("epochs", len(flags)),
		logging.Int("flagged", flagged),
		logging.String("outlier_method", d.cfg.OutlierMethod),
	)
}
