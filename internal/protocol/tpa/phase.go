package tpa

import "fmt"

type (
	Phase uint8
	Role  uint8
)

const (
	RoleClient Role = iota
	RoleServer
)

// Client phases run Init through Messaging; the server goes from
// AwaitingCommand to SessionEstablished. Both end in Closed.
const (
	PhaseInit Phase = iota
	PhaseChallengeRequested
	PhaseClientProofSent
	PhaseClientVerified
	PhaseServerChallengeSent
	PhaseSessionEstablished
	PhaseMessaging
	PhaseAwaitingCommand
	PhaseChallengeIssued
	PhaseClosed
)

var phaseNames = [...]string{
	PhaseInit:                "Init",
	PhaseChallengeRequested:  "ChallengeRequested",
	PhaseClientProofSent:     "ClientProofSent",
	PhaseClientVerified:      "ClientVerified",
	PhaseServerChallengeSent: "ServerChallengeSent",
	PhaseSessionEstablished:  "SessionEstablished",
	PhaseMessaging:           "Messaging",
	PhaseAwaitingCommand:     "AwaitingCommand",
	PhaseChallengeIssued:     "ChallengeIssued",
	PhaseClosed:              "Closed",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}
