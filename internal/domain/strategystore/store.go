// Package strategystore defines persistence for the strategy roster and for
// per-instance runtime variables, the two records needed to warm-restart the
// engine.
package strategystore

import "context"

// Setting is the durable definition of one strategy instance.
type Setting struct {
	Class       string         `json:"class"`
	Instruments []string       `json:"instruments"`
	Parameters  map[string]any `json:"parameters"`
}

// Store persists strategy settings and variables keyed by instance name.
type Store interface {
	// SaveSetting upserts the roster entry for the named instance.
	SaveSetting(ctx context.Context, name string, setting Setting) error
	// DeleteSetting removes the roster entry and any stored variables.
	DeleteSetting(ctx context.Context, name string) error
	// LoadSettings returns the full roster.
	LoadSettings(ctx context.Context) (map[string]Setting, error)
	// SaveVariables upserts the variable snapshot for the named instance.
	SaveVariables(ctx context.Context, name string, variables map[string]any) error
	// LoadVariables returns the stored snapshot, or nil when none exists.
	LoadVariables(ctx context.Context, name string) (map[string]any, error)
}
