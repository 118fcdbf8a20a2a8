package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProfilePath string // hcl profile files
	ModulesPath string // hcl flow manifests + plans
	DataDir     string // persisted settings records

	// Flow restricts the run to profiles of one flow type. Empty runs them
	// all. Usually set through the launch identity (tickflow-miner).
	Flow string

	BridgeURL string

	// Capabilities is the gateway grant enforced at the call boundary.
	// Empty grants the full set.
	Capabilities []string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	TickIntervalMs  int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProfilePath == "" {
		return nil, errors.New("ProfilePath is a required configuration field and cannot be empty")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("DataDir is a required configuration field and cannot be empty")
	}

	return &cfg, nil
}
