// Package wire implements the single-byte opcode command set and the
// unframed 64-byte chunk reader used on the socket.
package wire

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

type Instruction byte

const (
	// UKW is what an unrecognised leading byte decodes to. It is never sent.
	UKW Instruction = 0x00
	AUS Instruction = 0x11
	AUC Instruction = 0x12
	CLG Instruction = 0x13
	PUB Instruction = 0x14
	MSG Instruction = 0x20
	RCV Instruction = 0x30
	SUC Instruction = 0xE0
	ERR Instruction = 0xF0
	STP Instruction = 0xFF
)

var ErrEmptyCommand = errors.New("wire: empty command")

var instructionNames = map[Instruction]string{
	UKW: "UKW",
	AUS: "AUS",
	AUC: "AUC",
	CLG: "CLG",
	PUB: "PUB",
	MSG: "MSG",
	RCV: "RCV",
	SUC: "SUC",
	ERR: "ERR",
	STP: "STP",
}

// InstructionOf maps an opcode byte to its instruction, UKW when no opcode
// matches.
func InstructionOf(b byte) Instruction {
	if _, ok := instructionNames[Instruction(b)]; ok {
		return Instruction(b)
	}
	return UKW
}

func (i Instruction) String() string {
	if name, ok := instructionNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Instruction(0x%02X)", byte(i))
}

type (
	Command struct {
		Instruction Instruction
		Payload     []byte
	}
)

// ToBytes serializes the command as opcode ++ payload.
func (c *Command) ToBytes() []byte {
	b := cryptobyte.NewFixedBuilder(make([]byte, 0, 1+len(c.Payload)))
	b.AddUint8(uint8(c.Instruction))
	b.AddBytes(c.Payload)
	return b.BytesOrPanic()
}

// Detail returns the ERR payload as text.
func (c *Command) Detail() string {
	return string(c.Payload)
}

func (c *Command) String() string {
	return fmt.Sprintf("%v(%d bytes)", c.Instruction, len(c.Payload))
}

// FromBytes parses a received message. Unknown opcodes decode to UKW with
// the rest of the message as payload.
func FromBytes(b []byte) (*Command, error) {
	s := cryptobyte.String(b)

	var op uint8
	if !s.ReadUint8(&op) {
		return nil, ErrEmptyCommand
	}

	return &Command{
		Instruction: InstructionOf(op),
		Payload:     append([]byte(nil), s...),
	}, nil
}

func GetChallenge() *Command {
	return &Command{Instruction: CLG}
}

// AuthenticateClient carries ek1, the client's encrypted proof.
func AuthenticateClient(ek1 []byte) *Command {
	return &Command{Instruction: AUC, Payload: ek1}
}

// AuthenticateServer carries the client's second challenge in clear.
func AuthenticateServer(challenge []byte) *Command {
	return &Command{Instruction: AUS, Payload: challenge}
}

func SendMessage(ciphertext []byte) *Command {
	return &Command{Instruction: MSG, Payload: ciphertext}
}

// Receive acknowledges a message with its checksum.
func Receive(sum []byte) *Command {
	return &Command{Instruction: RCV, Payload: sum}
}

// PublicKey carries a DER (PKIX) RSA public key.
func PublicKey(der []byte) *Command {
	return &Command{Instruction: PUB, Payload: der}
}

func Success() *Command {
	return &Command{Instruction: SUC}
}

func Error(detail string) *Command {
	return &Command{Instruction: ERR, Payload: []byte(detail)}
}

func Stop() *Command {
	return &Command{Instruction: STP}
}
