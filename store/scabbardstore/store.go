// Package scabbardstore persists the two-phase-commit bookkeeping that
// must survive a restart: commit entries, the per-service consensus
// context, and outstanding supervisor notifications (spec §4.6, §4.8, §6).
package scabbardstore

import (
	"time"

	"github.com/splinter-rs/splinter-go/wire"
)

// ConsensusContext is a service's persisted 2PC state, the Go analogue of
// the teacher's consensus_2pc_context table.
type ConsensusContext struct {
	Epoch        uint64
	State        string
	Alarm        time.Time
	Participants []string
	Coordinator  string
	ThisProcess  string
}

// NotificationKind enumerates the SupervisorNotification variants of spec
// §4.8.
type NotificationKind int

const (
	NotifyRequestForStart NotificationKind = iota
	NotifyCoordinatorRequestForVote
	NotifyParticipantRequestForVote
	NotifyCommit
	NotifyAbort
)

// SupervisorNotification is a single queued event the supervisor must
// translate into store commands.
type SupervisorNotification struct {
	ID       uint64
	Kind     NotificationKind
	Value    []byte // big-endian epoch, set for every kind
	Consumed bool
}

// Store is the scabbard store's full surface.
type Store interface {
	GetLastCommitEntry(serviceID string) (wire.CommitEntry, bool, error)
	AddCommitEntry(serviceID string, entry wire.CommitEntry) error
	UpdateCommitEntryDecision(serviceID string, epoch uint64, decision wire.Decision, decidedAt int64) error
	ListCommitEntries(serviceID string) ([]wire.CommitEntry, error)

	GetContext(serviceID string) (ConsensusContext, bool, error)
	PutContext(serviceID string, ctx ConsensusContext) error

	AddNotification(serviceID string, n SupervisorNotification) (SupervisorNotification, error)
	ListPendingNotifications(serviceID string) ([]SupervisorNotification, error)
	MarkNotificationConsumed(serviceID string, notificationID uint64) error

	Close() error
}
