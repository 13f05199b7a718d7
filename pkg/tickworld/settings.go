package tickworld

import (
	"fmt"
	"time"

	"github.com/randalmurphal/tickworld/pkg/tickworld/config"
)

// Settings is the file-configurable subset of World options.
// Zero values mean "use the default".
type Settings struct {
	Strategy       Strategy
	Workers        int
	JoinTimeout    time.Duration
	MaxAgents      int
	MaxBatch       int
	CapacityPolicy CapacityPolicy
	Addressing     bool
	TickInterval   time.Duration
	MaxTicks       uint64
	RunID          string
}

// SettingsFromConfig reads Settings from cfg.
//
// Keys: strategy, workers, join_timeout, max_agents, max_batch,
// capacity_policy, addressing, tick_interval, max_ticks, run_id.
func SettingsFromConfig(cfg config.Config) (Settings, error) {
	s := Settings{
		Workers:      cfg.Int("workers", 0),
		JoinTimeout:  cfg.Duration("join_timeout", 0),
		MaxAgents:    cfg.Int("max_agents", 0),
		MaxBatch:     cfg.Int("max_batch", 0),
		Addressing:   cfg.Bool("addressing", false),
		TickInterval: cfg.Duration("tick_interval", 0),
		MaxTicks:     cfg.Uint64("max_ticks", 0),
		RunID:        cfg.String("run_id", ""),
	}

	if name := cfg.String("strategy", ""); name != "" {
		strategy, err := ParseStrategy(name)
		if err != nil {
			return Settings{}, err
		}
		s.Strategy = strategy
	}
	if name := cfg.String("capacity_policy", ""); name != "" {
		policy, err := ParseCapacityPolicy(name)
		if err != nil {
			return Settings{}, err
		}
		s.CapacityPolicy = policy
	}

	if s.Workers < 0 || s.MaxAgents < 0 || s.MaxBatch < 0 {
		return Settings{}, fmt.Errorf("workers, max_agents and max_batch must not be negative")
	}
	return s, nil
}

// WithSettings applies every non-zero field of s.
func WithSettings(s Settings) Option {
	return func(c *worldConfig) {
		if s.Strategy != "" {
			c.strategy = s.Strategy
		}
		if s.Workers > 0 {
			c.workers = s.Workers
		}
		if s.JoinTimeout > 0 {
			c.joinTimeout = s.JoinTimeout
		}
		if s.MaxAgents > 0 {
			c.maxAgents = s.MaxAgents
		}
		if s.MaxBatch > 0 {
			c.maxBatch = s.MaxBatch
		}
		if s.CapacityPolicy != "" {
			c.capacityPolicy = s.CapacityPolicy
		}
		if s.Addressing {
			c.addressing = true
		}
		if s.TickInterval > 0 {
			c.tickInterval = s.TickInterval
		}
		if s.MaxTicks > 0 {
			c.maxTicks = s.MaxTicks
		}
		if s.RunID != "" {
			c.runID = s.RunID
		}
	}
}
