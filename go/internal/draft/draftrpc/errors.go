package draftrpc

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mcdev12/countrydraft/go/internal/draft"
)

// ErrorHeader carries the exact error kind next to the Connect code.
const ErrorHeader = "Draft-Error"

var errorKinds = []struct {
	kind string
	err  error
	code connect.Code
}{
	{"conflict", draft.ErrConflict, connect.CodeAborted},
	{"wrong_turn", draft.ErrWrongTurn, connect.CodeFailedPrecondition},
	{"capacity_exceeded", draft.ErrCapacityExceeded, connect.CodeResourceExhausted},
	{"draft_complete", draft.ErrDraftComplete, connect.CodeOutOfRange},
	{"empty_draft", draft.ErrEmptyDraft, connect.CodeInternal},
	{"invalid_state", draft.ErrInvalidState, connect.CodeInternal},
	{"nothing_to_undo", draft.ErrNothingToUndo, connect.CodeFailedPrecondition},
	{"empty_roster", draft.ErrEmptyRoster, connect.CodeFailedPrecondition},
	{"session_not_found", draft.ErrSessionNotFound, connect.CodeNotFound},
	{"unknown_item", draft.ErrUnknownItem, connect.CodeInvalidArgument},
	{"unknown_participant", draft.ErrUnknownParticipant, connect.CodeInvalidArgument},
	{"draft_not_started", draft.ErrDraftNotStarted, connect.CodeFailedPrecondition},
	{"invalid_request", draft.ErrInvalidRequest, connect.CodeInvalidArgument},
}

// ToConnectError converts a domain error into a Connect error tagged with
// its kind. Errors outside the taxonomy become CodeInternal.
func ToConnectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return err
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			out := connect.NewError(k.code, err)
			out.Meta().Set(ErrorHeader, k.kind)
			return out
		}
	}
	return connect.NewError(connect.CodeInternal, err)
}

// FromConnectError restores the domain sentinel of a Connect error so
// callers can use errors.Is on remote results.
func FromConnectError(err error) error {
	var ce *connect.Error
	if !errors.As(err, &ce) {
		return err
	}
	kind := ce.Meta().Get(ErrorHeader)
	for _, k := range errorKinds {
		if k.kind == kind {
			return &remoteError{kind: k.err, msg: ce.Message()}
		}
	}
	return err
}

// remoteError is a service error restored on the client side.
type remoteError struct {
	kind error
	msg  string
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.kind }
