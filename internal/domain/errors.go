package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyAbsent is returned when a signing operation finds no stored keypair.
	ErrKeyAbsent = errors.New("keys not found, complete authentication first")

	// ErrSignatureFailure hides every cryptographic failure behind one message.
	ErrSignatureFailure = errors.New("failed to sign payload")

	// ErrSigningAborted is returned when the signer produced no stamp.
	ErrSigningAborted = errors.New("signing produced no signature")

	// ErrStorageSecretRequired is returned when sealed storage has no secret.
	ErrStorageSecretRequired = errors.New("storage secret required")
)

// RemoteRejectedError is a success:false reply from the wallet API.
// Error returns the remote message verbatim.
type RemoteRejectedError struct {
	Operation string
	Message   string
}

func (e *RemoteRejectedError) Error() string {
	if e.Message == "" {
		return e.Operation + " rejected"
	}
	return e.Message
}

// NetworkError is a transport-level failure talking to the wallet API.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// UserMessage renders err as a templated message safe to show to a user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rejected *RemoteRejectedError
	var network *NetworkError
	switch {
	case errors.As(err, &rejected):
		return rejected.Error()
	case errors.Is(err, ErrKeyAbsent):
		return ErrKeyAbsent.Error()
	case errors.Is(err, ErrSignatureFailure), errors.Is(err, ErrSigningAborted):
		return "Could not authorise the request. Please try again."
	case errors.As(err, &network):
		return "Network error. Please check your connection and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
