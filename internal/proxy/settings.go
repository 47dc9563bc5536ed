package proxy

import (
	"time"

	"github.com/nulpointcorp/llm-mux-gateway/internal/config"
)

// AutoModelKey is the synthetic model name the rate-limiter registry uses
// for a provider's auto-model admission entry.
const AutoModelKey = "_auto"

// ModelSetting caps admission and timeout for one configured model.
type ModelSetting struct {
	TimeoutSecs uint64
}

// ProviderSetting caps admission and timeout for a provider's auto-model
// requests, plus the roster of explicitly configured models.
type ProviderSetting struct {
	SupportsAutoModel bool
	TimeoutSecs       uint64
	Models            map[string]ModelSetting
}

// Settings is the immutable snapshot of provider/model settings resolved at
// startup from the TOML config.
type Settings map[string]ProviderSetting

// BuildSettings converts the parsed config into the lookup shape the
// handler needs at request time.
func BuildSettings(cfg *config.Config) Settings {
	s := make(Settings, len(cfg.Providers))
	for _, p := range cfg.Providers {
		ps := ProviderSetting{
			SupportsAutoModel: p.SupportsAutoModel,
			TimeoutSecs:       p.TimeoutSecs,
			Models:            make(map[string]ModelSetting, len(p.Models)),
		}
		for _, m := range p.Models {
			ps.Models[m.Name] = ModelSetting{TimeoutSecs: m.TimeoutSecs}
		}
		s[p.Name] = ps
	}
	return s
}

// MaxTimeout returns the longest timeout_secs configured across every
// provider and model in s, or fallback if s is empty or none exceeds it.
// The handler never invokes a provider adapter with a timeout longer than
// this, so it bounds how long a legitimate /generate call can run.
func (s Settings) MaxTimeout(fallback time.Duration) time.Duration {
	max := fallback
	for _, ps := range s {
		if t := time.Duration(ps.TimeoutSecs) * time.Second; t > max {
			max = t
		}
		for _, ms := range ps.Models {
			if t := time.Duration(ms.TimeoutSecs) * time.Second; t > max {
				max = t
			}
		}
	}
	return max
}
