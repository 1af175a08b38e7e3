package config

import "github.com/hyperjump/pdfbuddy/internal/progress"

// DefaultAPIURL is used when neither the environment nor the config file names a backend.
const DefaultAPIURL = "http://localhost:8080"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = DefaultAPIURL
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	cfg.Upload.Ramp = withRampDefaults(cfg.Upload.Ramp)
	cfg.Upload.IndexRamp = withRampDefaults(cfg.Upload.IndexRamp)
	if cfg.Chat.TopSearches == 0 {
		cfg.Chat.TopSearches = 5
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

func withRampDefaults(r progress.Config) progress.Config {
	d := progress.DefaultConfig()
	if r.Interval <= 0 {
		r.Interval = d.Interval
	}
	if r.Step <= 0 {
		r.Step = d.Step
	}
	if r.Cap <= 0 || r.Cap > progress.MaxCap {
		r.Cap = d.Cap
	}
	return r
}
