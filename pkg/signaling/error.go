package signaling

import (
	"fmt"

	"mellium.im/xmpp/stanza"
)

// StanzaError wraps the XMPP stanza-error conditions this codebase produces
// or receives on the Jingle/IQ transport. It mirrors mellium.im/xmpp/stanza's
// Error type so callers in pkg/conference and pkg/jingle can classify a
// failure without importing the wire package directly (spec.md §7's IQ-style
// error taxonomy: bad-request, item-not-found, forbidden,
// resource-constraint).
type StanzaError struct {
	Condition stanza.Condition
	Message   string
}

func (e *StanzaError) Error() string {
	if e.Message == "" {
		return string(e.Condition)
	}
	return fmt.Sprintf("%s: %s", e.Condition, e.Message)
}

// ToStanza converts a StanzaError into the mellium representation to attach
// to an outgoing IQ error response.
func (e *StanzaError) ToStanza() stanza.Error {
	return stanza.Error{Type: stanza.Cancel, Condition: e.Condition}
}

func BadRequest(format string, args ...any) *StanzaError {
	return &StanzaError{Condition: stanza.BadRequest, Message: fmt.Sprintf(format, args...)}
}

func ItemNotFound(format string, args ...any) *StanzaError {
	return &StanzaError{Condition: stanza.ItemNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *StanzaError {
	return &StanzaError{Condition: stanza.Forbidden, Message: fmt.Sprintf(format, args...)}
}

func ResourceConstraint(format string, args ...any) *StanzaError {
	return &StanzaError{Condition: stanza.ResourceConstraint, Message: fmt.Sprintf(format, args...)}
}

// Is lets callers use errors.Is(err, signaling.BadRequest("")) style checks:
// any *StanzaError target with the same condition matches, regardless of
// message or pointer identity.
func (e *StanzaError) Is(target error) bool {
	other, ok := target.(*StanzaError)
	if !ok {
		return false
	}
	return e.Condition == other.Condition
}
