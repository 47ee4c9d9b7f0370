package compliance

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vmihailenco/msgpack/v5"
)

type RiskLevel uint8

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (l RiskLevel) String() string {
	switch l {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	default:
		return "critical"
	}
}

// LevelFor maps a 0..100 risk score into its band.
func LevelFor(score uint8) RiskLevel {
	switch {
	case score <= 20:
		return RiskLow
	case score <= 50:
		return RiskMedium
	case score <= 80:
		return RiskHigh
	default:
		return RiskCritical
	}
}

var (
	ErrAddressMismatch      = errors.New("attestation address mismatch")
	ErrStaleAttestation     = errors.New("attestation too old")
	ErrMaliciousConnections = errors.New("address has malicious connections")
	ErrRiskTooHigh          = errors.New("risk score above limit")
	ErrBadSignature         = errors.New("attestation signature invalid")
	ErrScoreOutOfRange      = errors.New("risk score above 100")
)

// Attestation is an oracle-signed risk statement about an address at a
// given slot. The signature covers the keccak digest of the canonical
// msgpack payload.
type Attestation struct {
	Address              string
	RiskScore            uint8
	Slot                 uint64
	HopCount             uint8
	MaliciousConnections bool
	Signature            []byte
}

func (a Attestation) RiskLevel() RiskLevel { return LevelFor(a.RiskScore) }

// Limits gates withdrawal compliance. A zero Oracle address disables
// signature checking, which is the mock mode used in tests and dry runs.
type Limits struct {
	MaxRiskScore uint8
	MaxAgeSlots  uint64
	Oracle       common.Address
}

// SigningPayload is the canonical encoding of the signed fields, in
// fixed field order.
func SigningPayload(a Attestation) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeMapLen(5); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("address"); err != nil {
		return nil, err
	}
	if err := enc.EncodeString(strings.ToLower(a.Address)); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("risk_score"); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint8(a.RiskScore); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("slot"); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint64(a.Slot); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("hop_count"); err != nil {
		return nil, err
	}
	if err := enc.EncodeUint8(a.HopCount); err != nil {
		return nil, err
	}
	if err := enc.EncodeString("malicious"); err != nil {
		return nil, err
	}
	if err := enc.EncodeBool(a.MaliciousConnections); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func digest(a Attestation) ([]byte, error) {
	payload, err := SigningPayload(a)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(payload), nil
}

// Sign attaches an oracle signature to the attestation.
func Sign(a *Attestation, key *ecdsa.PrivateKey) error {
	d, err := digest(*a)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(d, key)
	if err != nil {
		return err
	}
	a.Signature = sig
	return nil
}

// Verify runs the compliance gate. Checks run in a fixed order and the
// first failure wins: address, freshness, malicious connections, risk
// score, then signature recovery against the oracle.
func Verify(a Attestation, expectedAddress string, currentSlot uint64, limits Limits) error {
	if !strings.EqualFold(a.Address, expectedAddress) {
		return ErrAddressMismatch
	}
	var age uint64
	if currentSlot > a.Slot {
		age = currentSlot - a.Slot
	}
	if age > limits.MaxAgeSlots {
		return ErrStaleAttestation
	}
	if a.MaliciousConnections {
		return ErrMaliciousConnections
	}
	if a.RiskScore > 100 {
		return ErrScoreOutOfRange
	}
	if a.RiskScore > limits.MaxRiskScore {
		return ErrRiskTooHigh
	}
	if limits.Oracle == (common.Address{}) {
		return nil
	}
	d, err := digest(a)
	if err != nil {
		return err
	}
	if len(a.Signature) != 65 {
		return ErrBadSignature
	}
	pub, err := crypto.SigToPub(d, a.Signature)
	if err != nil {
		return ErrBadSignature
	}
	if crypto.PubkeyToAddress(*pub) != limits.Oracle {
		return ErrBadSignature
	}
	return nil
}

// ParseOracle parses a configured oracle address. Empty input yields the
// zero address, which disables signature checks.
func ParseOracle(hexAddr string) (common.Address, error) {
	clean := strings.TrimSpace(hexAddr)
	if clean == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(clean) {
		return common.Address{}, errors.New("invalid oracle address")
	}
	return common.HexToAddress(clean), nil
}
