// Package session keeps a chat client's local view of conversations and
// reconciles it with the relay as replies stream in.
package session

import "github.com/google/uuid"

type refKind uint8

const (
	refNone refKind = iota
	refTemporary
	refDurable
)

// ConversationRef names a conversation either by a client-local temporary token
// or by the durable id the relay assigned. The zero value means "none selected".
type ConversationRef struct {
	kind  refKind
	value string
}

// Temporary wraps a client-local token.
func Temporary(token string) ConversationRef {
	return ConversationRef{kind: refTemporary, value: token}
}

// Durable wraps a relay-assigned id.
func Durable(id string) ConversationRef {
	return ConversationRef{kind: refDurable, value: id}
}

func newTemporary() ConversationRef {
	return Temporary("tmp-" + uuid.NewString())
}

func (r ConversationRef) IsZero() bool      { return r.kind == refNone }
func (r ConversationRef) IsTemporary() bool { return r.kind == refTemporary }
func (r ConversationRef) IsDurable() bool   { return r.kind == refDurable }

// Value is the token or id.
func (r ConversationRef) Value() string { return r.value }

func (r ConversationRef) String() string {
	switch r.kind {
	case refTemporary:
		return "temporary:" + r.value
	case refDurable:
		return "durable:" + r.value
	}
	return "none"
}
