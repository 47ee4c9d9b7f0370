package funding

import (
	"bytes"
	"errors"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"

	"pm-vault-bot/internal/vault"
)

var (
	ErrDepositTooSmall = errors.New("deposit below minimum")
	ErrDepositTooLarge = errors.New("deposit above maximum")
	ErrZeroCommitment  = errors.New("commitment is zero")
	ErrZeroNullifier   = errors.New("nullifier hash is zero")
	ErrMissingProof    = errors.New("proof body is empty")
)

type Bounds struct {
	MinDeposit uint64
	MaxDeposit uint64
}

// DepositNote carries the public inputs of a verified deposit. The proof
// body itself is opaque; an upstream verifier has already checked it and
// this layer only validates the public inputs.
type DepositNote struct {
	Commitment    [32]byte
	NullifierHash [32]byte
	Amount        uint64
	Proof         []byte
}

// VerifyNote checks the public inputs. Each failure has its own error so
// callers can report exactly what was malformed.
func VerifyNote(note DepositNote, bounds Bounds) error {
	if note.Amount < bounds.MinDeposit {
		return ErrDepositTooSmall
	}
	if note.Amount > bounds.MaxDeposit {
		return ErrDepositTooLarge
	}
	if note.Commitment == ([32]byte{}) {
		return ErrZeroCommitment
	}
	if note.NullifierHash == ([32]byte{}) {
		return ErrZeroNullifier
	}
	if len(note.Proof) == 0 {
		return ErrMissingProof
	}
	return nil
}

// Apply credits a verified note into the vault ledger.
func Apply(v *vault.Vault, note DepositNote, bounds Bounds) error {
	if err := VerifyNote(note, bounds); err != nil {
		return err
	}
	return v.ApplyDeposit(note.Amount)
}

// ComputeCommitment derives the note commitment from a secret and the
// amount: keccak over a canonical msgpack encoding.
func ComputeCommitment(secret [32]byte, amount uint64) ([32]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(2); err != nil {
		return [32]byte{}, err
	}
	if err := enc.EncodeString("secret"); err != nil {
		return [32]byte{}, err
	}
	if err := enc.EncodeBytes(secret[:]); err != nil {
		return [32]byte{}, err
	}
	if err := enc.EncodeString("amount"); err != nil {
		return [32]byte{}, err
	}
	if err := enc.EncodeUint64(amount); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf.Bytes()))
	return out, nil
}

// ComputeNullifier derives the spend nullifier from the secret alone.
func ComputeNullifier(secret [32]byte) ([32]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(1); err != nil {
		return [32]byte{}, err
	}
	if err := enc.EncodeString("nullifier"); err != nil {
		return [32]byte{}, err
	}
	if err := enc.EncodeBytes(secret[:]); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf.Bytes()))
	return out, nil
}
