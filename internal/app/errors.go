package app

import (
	"fmt"

	"onchainlotto/chain/internal/oclcrypto"
)

// RoundError is the closed set of domain failures a game round operation can
// produce. Each failure cause has exactly one concrete type carrying the data
// a caller needs to react; Code returns a stable machine-readable tag that is
// also surfaced as the tx result codespace.
//
// Every RoundError is returned before any state effect: a failed operation
// leaves the round byte-for-byte unchanged.
type RoundError interface {
	error
	Code() string
}

type UnauthorizedError struct {
	Caller string
}

func (e *UnauthorizedError) Code() string { return "Unauthorized" }
func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: caller %q is not the game operator", e.Caller)
}

type AlreadyCommittedError struct {
	Digest []byte
}

func (e *AlreadyCommittedError) Code() string { return "AlreadyCommitted" }
func (e *AlreadyCommittedError) Error() string {
	return fmt.Sprintf("already committed: digest %s stands until restart", oclcrypto.BytesToHex(e.Digest))
}

type NotCommittedYetError struct{}

func (e *NotCommittedYetError) Code() string  { return "NotCommittedYet" }
func (e *NotCommittedYetError) Error() string { return "not committed yet" }

type AlreadyRevealedError struct {
	Value  uint64
	Secret uint64
}

func (e *AlreadyRevealedError) Code() string { return "AlreadyRevealed" }
func (e *AlreadyRevealedError) Error() string {
	return fmt.Sprintf("already revealed: value=%d secret=%d", e.Value, e.Secret)
}

type NotRevealedYetError struct{}

func (e *NotRevealedYetError) Code() string  { return "NotRevealedYet" }
func (e *NotRevealedYetError) Error() string { return "not revealed yet" }

type InvalidRevealedValueError struct {
	Value uint64
	Max   uint64
}

func (e *InvalidRevealedValueError) Code() string { return "InvalidRevealedValue" }
func (e *InvalidRevealedValueError) Error() string {
	return fmt.Sprintf("invalid revealed value: value=%d max=%d", e.Value, e.Max)
}

type InvalidWagerCategoryError struct {
	Category uint64
	Max      uint64
}

func (e *InvalidWagerCategoryError) Code() string { return "InvalidWagerCategory" }
func (e *InvalidWagerCategoryError) Error() string {
	return fmt.Sprintf("invalid wager category: category=%d max=%d", e.Category, e.Max)
}

type MismatchedRevealError struct {
	Digest []byte
	Secret uint64
	Value  uint64
}

func (e *MismatchedRevealError) Code() string { return "MismatchedReveal" }
func (e *MismatchedRevealError) Error() string {
	return fmt.Sprintf("mismatched reveal: hash(secret=%d, value=%d) does not open digest %s",
		e.Secret, e.Value, oclcrypto.BytesToHex(e.Digest))
}
