package tpa

import "errors"

var (
	// ErrAuthentication ends a handshake: a challenge or proof did not match,
	// or the peer refused a step.
	ErrAuthentication = errors.New("tpa: authentication failed")

	// ErrTransmission reports a message that was not acknowledged as sent,
	// e.g. a checksum mismatch. The session stays usable.
	ErrTransmission = errors.New("tpa: transmission failed")

	// ErrRemote carries the detail of an ERR reply.
	ErrRemote = errors.New("tpa: remote error")

	// ErrEndOfTransmission is returned once STP was handled.
	ErrEndOfTransmission = errors.New("tpa: end of transmission")

	// ErrChannel wraps read and write failures of the underlying channel.
	ErrChannel = errors.New("tpa: channel failure")

	ErrSessionNotEstablished = errors.New("tpa: session not established")
)

// Replies sent by the server in ERR commands.
const (
	DetailEmptyCommand       = "Command is empty"
	DetailUnknownInstruction = "Unknown instruction"
	DetailCryptographic      = "Cryptographic error"
	DetailChallengeMismatch  = "Returned challenge not match"
	DetailNotAuthenticated   = "Client not authenticated"
	DetailNoSession          = "Session not established"
	DetailEstablished        = "Session already established"
	DetailServerMismatch     = "Server verification mismatch"
)
