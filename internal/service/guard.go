package service

import (
	"fmt"
	"sync"
	"time"

	"voltpay/internal/domain"
	"voltpay/internal/repository"
)

// RemoteCommandGuard sits in front of remote-start dispatch. The message
// history scan is authoritative and always runs first; the in-memory
// cool-down is advisory de-duplication. The real double-billing protection is
// the per-session hold plus the idempotent refund, not this guard.
type RemoteCommandGuard struct {
	devices  *repository.DeviceRepository
	lookback time.Duration
	cooldown time.Duration

	mu           sync.Mutex
	lastDispatch map[string]time.Time

	now func() time.Time
}

func NewRemoteCommandGuard(devices *repository.DeviceRepository, lookback, cooldown time.Duration) *RemoteCommandGuard {
	return &RemoteCommandGuard{
		devices:      devices,
		lookback:     lookback,
		cooldown:     cooldown,
		lastDispatch: make(map[string]time.Time),
		now:          time.Now,
	}
}

type deviceChargeState int

const (
	chargeStateIdle deviceChargeState = iota
	chargeStateCharging
	chargeStateStoppedRecently
)

// Check rejects a start that would duplicate one already in flight. A
// rejection never touches the recency map.
func (g *RemoteCommandGuard) Check(deviceID string) error {
	state, err := g.chargeState(deviceID)
	if err != nil {
		return fmt.Errorf("device history scan: %w", err)
	}
	switch state {
	case chargeStateCharging:
		return domain.ErrAlreadyCharging
	case chargeStateStoppedRecently:
		// Charging stopped since the last dispatch; the cool-down no longer
		// protects anything.
		g.mu.Lock()
		delete(g.lastDispatch, deviceID)
		g.mu.Unlock()
		return nil
	}
	g.mu.Lock()
	last, ok := g.lastDispatch[deviceID]
	g.mu.Unlock()
	if ok && g.now().Sub(last) < g.cooldown {
		return domain.ErrTooManyRequests
	}
	return nil
}

// MarkDispatched records a successful dispatch for the cool-down window.
func (g *RemoteCommandGuard) MarkDispatched(deviceID string) {
	g.mu.Lock()
	g.lastDispatch[deviceID] = g.now()
	g.mu.Unlock()
}

// chargeState reads the recent message history: the newest accepted start ack
// with no later stop ack means the device is charging.
func (g *RemoteCommandGuard) chargeState(deviceID string) (deviceChargeState, error) {
	msgs, err := g.devices.RecentMessages(deviceID, g.lookback)
	if err != nil {
		return chargeStateIdle, err
	}
	var startAt, stopAt *time.Time
	for i := range msgs { // newest first
		m := &msgs[i]
		if m.Direction != domain.DirectionInbound {
			continue
		}
		switch m.Action {
		case domain.ActionRemoteStart:
			if startAt == nil {
				startAt = &m.CreatedAt
			}
		case domain.ActionRemoteStop:
			if stopAt == nil {
				stopAt = &m.CreatedAt
			}
		}
	}
	if startAt == nil {
		if stopAt != nil {
			return chargeStateStoppedRecently, nil
		}
		return chargeStateIdle, nil
	}
	if stopAt != nil && !stopAt.Before(*startAt) {
		return chargeStateStoppedRecently, nil
	}
	return chargeStateCharging, nil
}
