/*
Package config provides typed configuration extraction from map[string]any.

# Overview

Config wraps a map loaded from YAML, JSON or the environment and exposes
accessors that fall back to a default on missing keys or type mismatches.
tickworld uses it to build world settings from files and flags:

	cfg, err := config.FromFile("world.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	cfg = cfg.Merge(config.FromEnv("TICKWORLD_", os.Environ()))

	strategy := cfg.String("strategy", "sequential")
	interval := cfg.Duration("tick_interval", 0)
	agents := cfg.Int("max_agents", 0)

# Keys

Keys may be dotted paths into nested maps:

	cfg.String("world.strategy", "")
	cfg.Sub("world").Int("workers", 4)

An exact top-level key always wins over a dotted path.

# Type Coercion

Duration accepts duration strings ("50ms"), and treats bare numbers as
milliseconds. Int, Uint64 and Bool parse strings, so values read from the
environment behave like values read from YAML.

# Thread Safety

Config is safe for concurrent read access. Merge returns a fresh map and
never modifies its inputs.
*/
package config
