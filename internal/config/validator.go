package config

import (
	"fmt"
	"sort"
	"strings"
)

// Validate checks the config for:
//   - A version and positive engine limits
//   - Service and method on every target
//   - Duplicate (module, service, method) keys
//   - Negative retry budgets
//   - Empty filter sets, which would never select an event
func Validate(cfg *SyncConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	e := cfg.Engine
	for name, v := range map[string]int{
		"queue_depth":        e.QueueDepth,
		"enqueue_timeout_ms": e.EnqueueTimeoutMs,
		"stop_timeout_ms":    e.StopTimeoutMs,
		"poll_interval_ms":   e.PollIntervalMs,
		"max_backoff_s":      e.MaxBackoffS,
	} {
		if v < 0 {
			errs = append(errs, fmt.Sprintf("engine.%s must be >= 0, got %d", name, v))
		}
	}

	modules := make([]string, 0, len(cfg.Targets))
	for m := range cfg.Targets {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	for _, module := range modules {
		seen := make(map[string]int)
		for i, d := range cfg.Targets[module] {
			loc := fmt.Sprintf("targets.%s[%d]", module, i)
			if d.Service == "" {
				errs = append(errs, fmt.Sprintf("%s: service is required", loc))
			}
			if d.Method == "" {
				errs = append(errs, fmt.Sprintf("%s: method is required", loc))
			}
			key := d.Service + "." + d.Method
			if prev, ok := seen[key]; ok {
				errs = append(errs, fmt.Sprintf("%s: duplicate target %s.%s (first seen at index %d)", loc, module, key, prev))
			} else {
				seen[key] = i
			}
			if d.MaxRetries != nil && *d.MaxRetries < 0 {
				errs = append(errs, fmt.Sprintf("%s: max_retries must be >= 0, got %d", loc, *d.MaxRetries))
			}
			if d.BatchSize < 0 {
				errs = append(errs, fmt.Sprintf("%s: batch_size must be >= 0, got %d", loc, d.BatchSize))
			}
			if len(d.Filters) == 0 {
				errs = append(errs, fmt.Sprintf("%s: filters must not be empty (an empty filter set matches nothing)", loc))
			}
			for k, vs := range d.Filters {
				if len(vs) == 0 {
					errs = append(errs, fmt.Sprintf("%s: filter %q has no accepted values", loc, k))
				}
			}
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
