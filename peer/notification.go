// Package peer implements the reference-counted peer manager (spec §4.2,
// component C2): logical peers layered over Mesh connections, with
// reconnect backoff, an authorization handshake, and notification
// fan-out.
package peer

// NotificationKind discriminates the Notification variants of spec §4.2.
type NotificationKind int

const (
	NotificationConnected NotificationKind = iota
	NotificationDisconnected
	NotificationUnreachable
	NotificationReconnectAttempt
	NotificationShutdown
)

// Notification is fanned out to every subscriber on peer state changes.
type Notification struct {
	Kind    NotificationKind
	PeerID  string
	Attempt int
}

// SubscriberID identifies a registered notification subscriber so it can
// later be removed with Unsubscribe.
type SubscriberID uint64

// Subscriber receives Notifications. Generic subscriber types in the
// teacher's source (subscribe_sender<T: From<Notification>>) become a
// plain channel in Go: callers that want a richer type convert inside
// their own consumer goroutine.
type Subscriber chan<- Notification
