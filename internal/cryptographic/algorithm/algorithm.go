// Package algorithm holds the static parameters of every supported cipher
// family: challenge size, key family, transform and session-key layout.
package algorithm

import (
	"fmt"
	"strings"
)

type (
	Algorithm uint8

	// Family is the key family an algorithm's keys belong to.
	Family uint8

	// Source selects which party's random value a session-key window reads.
	Source uint8

	// Window is a 4-byte slice of one party's random value.
	Window struct {
		From   Source
		Offset int
	}

	params struct {
		name          string
		challengeSize int
		family        Family
		transform     string
		layout        []Window
	}
)

const (
	DES Algorithm = iota + 1
	TDES
	AES
	TKTDES
	RSA
)

const (
	FamilyDESede Family = iota + 1
	FamilyAES
	FamilyRSA
)

const (
	Client Source = iota
	Server
)

// WindowSize is the number of bytes each layout window contributes.
const WindowSize = 4

var table = map[Algorithm]params{
	DES: {
		name:          "DES",
		challengeSize: 8,
		family:        FamilyDESede,
		transform:     "DESede/CBC/NoPadding",
		layout:        []Window{{Client, 0}, {Server, 0}},
	},
	TDES: {
		name:          "TDES",
		challengeSize: 8,
		family:        FamilyDESede,
		transform:     "DESede/CBC/NoPadding",
		layout:        []Window{{Client, 0}, {Server, 0}, {Client, 4}, {Server, 4}},
	},
	AES: {
		name:          "AES",
		challengeSize: 16,
		family:        FamilyAES,
		transform:     "AES/CBC/NoPadding",
		layout:        []Window{{Client, 0}, {Server, 0}, {Client, 12}, {Server, 12}},
	},
	// The 12:16 windows run past the 8-byte challenges; key derivation
	// reports that as an error.
	TKTDES: {
		name:          "TKTDES",
		challengeSize: 8,
		family:        FamilyDESede,
		transform:     "DESede/CBC/NoPadding",
		layout:        []Window{{Client, 0}, {Server, 0}, {Client, 6}, {Server, 6}, {Client, 12}, {Server, 12}},
	},
	RSA: {
		name:      "RSA",
		family:    FamilyRSA,
		transform: "RSA/ECB/PKCS1Padding",
	},
}

// All lists the algorithms in declaration order.
func All() []Algorithm {
	return []Algorithm{DES, TDES, AES, TKTDES, RSA}
}

// Parse looks an algorithm up by its case-insensitive name.
func Parse(name string) (Algorithm, error) {
	for _, a := range All() {
		if strings.EqualFold(table[a].name, strings.TrimSpace(name)) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("algorithm: unknown algorithm %q", name)
}

func (a Algorithm) Valid() bool {
	_, ok := table[a]
	return ok
}

func (a Algorithm) String() string {
	if p, ok := table[a]; ok {
		return p.name
	}
	return fmt.Sprintf("Algorithm(%d)", uint8(a))
}

// ChallengeSize is the length of a random challenge, which is also the
// cipher block size used for padding. Zero for RSA.
func (a Algorithm) ChallengeSize() int {
	return table[a].challengeSize
}

func (a Algorithm) Family() Family {
	return table[a].family
}

func (a Algorithm) Symmetric() bool {
	f := a.Family()
	return f == FamilyDESede || f == FamilyAES
}

func (a Algorithm) Transform() string {
	return table[a].transform
}

// SessionKeyLayout returns the windows that build a session key, or nil when
// the algorithm derives none.
func (a Algorithm) SessionKeyLayout() []Window {
	layout := table[a].layout
	if layout == nil {
		return nil
	}
	out := make([]Window, len(layout))
	copy(out, layout)
	return out
}

func (f Family) String() string {
	switch f {
	case FamilyDESede:
		return "DESede"
	case FamilyAES:
		return "AES"
	case FamilyRSA:
		return "RSA"
	default:
		return fmt.Sprintf("Family(%d)", uint8(f))
	}
}
