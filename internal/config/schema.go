package config

import (
	"time"

	"github.com/bestwarehub/SaaS-AICE-sub009/internal/target"
)

// SyncConfig is the top-level YAML structure.
type SyncConfig struct {
	Version string                 `yaml:"version"`
	Engine  EngineConf             `yaml:"engine"`
	Targets map[string][]TargetDef `yaml:"targets"` // downstream module → targets
}

// EngineConf holds tunable dispatcher settings.
type EngineConf struct {
	QueueDepth       int `yaml:"queue_depth"`
	EnqueueTimeoutMs int `yaml:"enqueue_timeout_ms"`
	StopTimeoutMs    int `yaml:"stop_timeout_ms"`
	PollIntervalMs   int `yaml:"poll_interval_ms"`
	MaxBackoffS      int `yaml:"max_backoff_s"`
	StatsTTLS        int `yaml:"stats_ttl_s"`
	StatsIntervalS   int `yaml:"stats_interval_s"`
}

// DefaultEngineConf mirrors the limits of the service this engine replaced.
var DefaultEngineConf = EngineConf{
	QueueDepth:       1000,
	EnqueueTimeoutMs: 1000,
	StopTimeoutMs:    5000,
	PollIntervalMs:   1000,
	MaxBackoffS:      60,
	StatsTTLS:        300,
	StatsIntervalS:   10,
}

func (c EngineConf) EnqueueTimeout() time.Duration { return ms(c.EnqueueTimeoutMs) }
func (c EngineConf) StopTimeout() time.Duration    { return ms(c.StopTimeoutMs) }
func (c EngineConf) PollInterval() time.Duration   { return ms(c.PollIntervalMs) }
func (c EngineConf) MaxBackoff() time.Duration     { return time.Duration(c.MaxBackoffS) * time.Second }
func (c EngineConf) StatsTTL() time.Duration       { return time.Duration(c.StatsTTLS) * time.Second }
func (c EngineConf) StatsInterval() time.Duration  { return time.Duration(c.StatsIntervalS) * time.Second }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// WithDefaults fills zero fields from DefaultEngineConf.
func (c EngineConf) WithDefaults() EngineConf {
	d := DefaultEngineConf
	if c.QueueDepth == 0 {
		c.QueueDepth = d.QueueDepth
	}
	if c.EnqueueTimeoutMs == 0 {
		c.EnqueueTimeoutMs = d.EnqueueTimeoutMs
	}
	if c.StopTimeoutMs == 0 {
		c.StopTimeoutMs = d.StopTimeoutMs
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = d.PollIntervalMs
	}
	if c.MaxBackoffS == 0 {
		c.MaxBackoffS = d.MaxBackoffS
	}
	if c.StatsTTLS == 0 {
		c.StatsTTLS = d.StatsTTLS
	}
	if c.StatsIntervalS == 0 {
		c.StatsIntervalS = d.StatsIntervalS
	}
	return c
}

// TargetDef is one sync target as written in YAML. Pointer fields
// distinguish "unset" from false/zero.
type TargetDef struct {
	Service        string           `yaml:"service"`
	Method         string           `yaml:"method"`
	Filters        map[string][]any `yaml:"filters"`
	Transform      *bool            `yaml:"transform,omitempty"`
	RetryOnFailure *bool            `yaml:"retry_on_failure,omitempty"`
	MaxRetries     *int             `yaml:"max_retries,omitempty"`
	BatchSize      int              `yaml:"batch_size"`
}

// Target converts d into a registry target for module.
func (d TargetDef) Target(module string) target.Target {
	t := target.Target{
		Module:         module,
		Service:        d.Service,
		Method:         d.Method,
		Filters:        target.Filters(d.Filters).Clone(),
		Transform:      true,
		RetryOnFailure: true,
		MaxRetries:     3,
		BatchSize:      d.BatchSize,
	}
	if d.Transform != nil {
		t.Transform = *d.Transform
	}
	if d.RetryOnFailure != nil {
		t.RetryOnFailure = *d.RetryOnFailure
	}
	if d.MaxRetries != nil {
		t.MaxRetries = *d.MaxRetries
	}
	if t.BatchSize == 0 {
		t.BatchSize = 1
	}
	return t
}

// TargetsByModule converts every definition.
func (c *SyncConfig) TargetsByModule() map[string][]target.Target {
	out := make(map[string][]target.Target, len(c.Targets))
	for module, defs := range c.Targets {
		list := make([]target.Target, 0, len(defs))
		for _, d := range defs {
			list = append(list, d.Target(module))
		}
		out[module] = list
	}
	return out
}
