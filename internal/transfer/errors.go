package transfer

import (
	"context"
	"errors"
	"strings"
)

// AccessDeniedMessage is shown whenever the remote rejects the access token
// or no token is held.
const AccessDeniedMessage = "This app is private. Please use a valid access link."

// Kind classifies a failed transfer.
type Kind string

const (
	KindAccessDenied Kind = "access_denied"
	KindConnectivity Kind = "connectivity"
	KindCancelled    Kind = "cancelled"
)

var (
	ErrAccessDenied = errors.New("access denied")
	ErrConnectivity = errors.New("connectivity")
	ErrCancelled    = errors.New("upload cancelled")

	// ErrTransferInProgress is returned by Start and Retry while another
	// session is active on the same Manager.
	ErrTransferInProgress = errors.New("transfer already in progress")
)

// Error is the terminal error of a session. It matches the Err* sentinel of
// its kind with errors.Is and unwraps to the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrAccessDenied:
		return e.Kind == KindAccessDenied
	case ErrConnectivity:
		return e.Kind == KindConnectivity
	case ErrCancelled:
		return e.Kind == KindCancelled
	}
	return false
}

// accessDenier is implemented by remote errors that know they were caused
// by a rejected token.
type accessDenier interface {
	AccessDenied() bool
}

func accessDenied(cause error) *Error {
	return &Error{Kind: KindAccessDenied, Message: AccessDeniedMessage, Err: cause}
}

func cancelled(cause error) *Error {
	return &Error{Kind: KindCancelled, Message: "Upload cancelled", Err: cause}
}

// classify maps a remote or I/O failure onto the transfer taxonomy.
func classify(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.Canceled) {
		return cancelled(err)
	}

	var ad accessDenier
	if errors.As(err, &ad) && ad.AccessDenied() {
		return accessDenied(err)
	}

	msg := err.Error()
	if strings.Contains(msg, "Invalid access secret") || strings.Contains(msg, "private") {
		return accessDenied(err)
	}
	if msg == "" {
		msg = "Upload failed"
	}
	return &Error{Kind: KindConnectivity, Message: msg, Err: err}
}
