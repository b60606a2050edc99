package strategy

import "sync"

// PositionLedger tracks the signed actual and target position per instrument
// for one strategy instance. Reads on unknown instruments yield zero; writes
// go through named mutators only.
type PositionLedger struct {
	mu        sync.RWMutex
	positions map[string]int64
	targets   map[string]int64
}

// NewPositionLedger allocates an empty ledger.
func NewPositionLedger() *PositionLedger {
	return &PositionLedger{
		positions: make(map[string]int64),
		targets:   make(map[string]int64),
	}
}

// Position returns the actual position for the instrument, zero when unseen.
func (l *PositionLedger) Position(instrument string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.positions[instrument]
}

// Target returns the desired position for the instrument, zero when unseen.
func (l *PositionLedger) Target(instrument string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.targets[instrument]
}

// ApplyFill adjusts the actual position by the signed fill volume.
func (l *PositionLedger) ApplyFill(instrument string, signedVolume int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions[instrument] += signedVolume
	return l.positions[instrument]
}

// SetTarget records the desired position for the instrument.
func (l *PositionLedger) SetTarget(instrument string, target int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.targets[instrument] = target
}

// Positions returns a copy of the actual-position map.
func (l *PositionLedger) Positions() map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int64, len(l.positions))
	for k, v := range l.positions {
		out[k] = v
	}
	return out
}

// Targets returns a copy of the target-position map.
func (l *PositionLedger) Targets() map[string]int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int64, len(l.targets))
	for k, v := range l.targets {
		out[k] = v
	}
	return out
}

// MergePositions overlays restored actual positions onto the ledger without
// clearing instruments absent from the snapshot.
func (l *PositionLedger) MergePositions(snapshot map[string]int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range snapshot {
		l.positions[k] = v
	}
}

// MergeTargets overlays restored target positions onto the ledger.
func (l *PositionLedger) MergeTargets(snapshot map[string]int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range snapshot {
		l.targets[k] = v
	}
}
