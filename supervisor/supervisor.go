// Package supervisor implements the notification-draining loop of spec
// §4.8 (component C8): it periodically checks every registered scabbard
// service's alarm deadline and replays any SupervisorNotification left
// behind by a crash, so decisions reached just before a restart are not
// silently forgotten.
package supervisor

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/splinter-rs/splinter-go/log"
	"github.com/splinter-rs/splinter-go/store/scabbardstore"
)

// AlarmChecker is implemented by scabbard.Consensus; kept as an interface
// here so supervisor does not depend on the scabbard package.
type AlarmChecker interface {
	CheckAlarm(now time.Time) error
}

// NotificationHandler reacts to a drained SupervisorNotification, e.g. to
// update metrics or wake a waiting client. It must be idempotent: a
// notification may be delivered more than once if the process crashes
// between handling it and MarkNotificationConsumed.
type NotificationHandler func(serviceID string, n scabbardstore.SupervisorNotification)

type registration struct {
	serviceID string
	checker   AlarmChecker
}

// Supervisor drives the alarm-check and notification-drain loop for every
// registered scabbard service instance on this node.
type Supervisor struct {
	store    scabbardstore.Store
	log      log.Logger
	interval time.Duration
	handler  NotificationHandler

	mu   sync.Mutex
	regs []registration
}

// New constructs a Supervisor. handler may be nil (notifications are then
// only marked consumed, not otherwise acted on).
func New(store scabbardstore.Store, interval time.Duration, handler NotificationHandler, logger log.Logger) *Supervisor {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = log.NewNoOp()
	}
	return &Supervisor{store: store, interval: interval, handler: handler, log: logger}
}

// Register adds a scabbard service instance to the supervision set.
func (s *Supervisor) Register(serviceID string, checker AlarmChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs = append(s.regs, registration{serviceID: serviceID, checker: checker})
}

// Unregister removes a previously registered service (e.g. on disband).
func (s *Supervisor) Unregister(serviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.regs[:0]
	for _, r := range s.regs {
		if r.serviceID != serviceID {
			out = append(out, r)
		}
	}
	s.regs = out
}

// Run drives the supervision loop until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Supervisor) tick() {
	s.mu.Lock()
	regs := append([]registration(nil), s.regs...)
	s.mu.Unlock()

	now := time.Now()
	for _, r := range regs {
		if err := r.checker.CheckAlarm(now); err != nil {
			s.log.Warn("alarm check failed", "service", r.serviceID, "err", err)
		}
		s.drainNotifications(r.serviceID)
	}
}

func (s *Supervisor) drainNotifications(serviceID string) {
	pending, err := s.store.ListPendingNotifications(serviceID)
	if err != nil {
		s.log.Warn("failed to list pending notifications", "service", serviceID, "err", err)
		return
	}
	for _, n := range pending {
		if s.handler != nil {
			s.handler(serviceID, n)
		}
		if err := s.store.MarkNotificationConsumed(serviceID, n.ID); err != nil {
			s.log.Warn("failed to mark notification consumed", "service", serviceID, "id", n.ID, "err", err)
		}
	}
}

// DecodeEpoch extracts the big-endian epoch encoded into a
// SupervisorNotification's Value by scabbard.Consensus.notifyDecision.
func DecodeEpoch(n scabbardstore.SupervisorNotification) (uint64, bool) {
	if len(n.Value) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(n.Value), true
}
