package peer

import (
	"strings"

	"github.com/splinter-rs/splinter-go/mesh"
)

// AuthResult is delivered to an Authorizer's callback once a newly
// connected transport has been classified.
type AuthResult struct {
	Authorized   bool
	ConnectionID uint64
	Identity     string
}

// Authorizer decides whether a newly connected Connection represents a
// known identity. Chained via AuthorizerChain, which prefix-matches on the
// connection's endpoint; the first match wins.
type Authorizer interface {
	// Prefix returns the endpoint prefix this authorizer handles; an empty
	// prefix matches everything and must be registered last.
	Prefix() string
	// Authorize begins the handshake; result is delivered asynchronously
	// via callback.
	Authorize(conn mesh.Connection, connectionID uint64, callback func(AuthResult))
}

// AuthorizerChain dispatches to the first Authorizer whose Prefix matches
// the connection's remote endpoint.
type AuthorizerChain struct {
	authorizers []Authorizer
}

// NewAuthorizerChain builds a chain from authorizers in priority order. The
// caller must ensure at most one authorizer has an empty prefix and that it
// is last; NewAuthorizerChain does not reorder.
func NewAuthorizerChain(authorizers ...Authorizer) (*AuthorizerChain, error) {
	for i, a := range authorizers {
		if a.Prefix() == "" && i != len(authorizers)-1 {
			return nil, errEmptyPrefixNotLast
		}
	}
	return &AuthorizerChain{authorizers: authorizers}, nil
}

var errEmptyPrefixNotLast = chainErr("peer: an empty-prefix authorizer must be last in the chain")

type chainErr string

func (e chainErr) Error() string { return string(e) }

// Authorize dispatches conn to the first matching authorizer.
func (c *AuthorizerChain) Authorize(conn mesh.Connection, connectionID uint64, callback func(AuthResult)) {
	endpoint := conn.RemoteEndpoint()
	for _, a := range c.authorizers {
		if a.Prefix() == "" || strings.HasPrefix(endpoint, a.Prefix()) {
			a.Authorize(conn, connectionID, callback)
			return
		}
	}
	callback(AuthResult{Authorized: false, ConnectionID: connectionID})
}

// TrustAuthorizer is the default "Trust" authorization_type of spec §3: any
// connection presenting a non-empty claimed identity is accepted.
type TrustAuthorizer struct {
	prefix       string
	ClaimIdentity func(conn mesh.Connection) (string, error)
}

// NewTrustAuthorizer builds a TrustAuthorizer for the given prefix (empty
// for a catch-all default).
func NewTrustAuthorizer(prefix string, claim func(conn mesh.Connection) (string, error)) *TrustAuthorizer {
	return &TrustAuthorizer{prefix: prefix, ClaimIdentity: claim}
}

func (t *TrustAuthorizer) Prefix() string { return t.prefix }

func (t *TrustAuthorizer) Authorize(conn mesh.Connection, connectionID uint64, callback func(AuthResult)) {
	identity, err := t.ClaimIdentity(conn)
	if err != nil || identity == "" {
		callback(AuthResult{Authorized: false, ConnectionID: connectionID})
		return
	}
	callback(AuthResult{Authorized: true, ConnectionID: connectionID, Identity: identity})
}
