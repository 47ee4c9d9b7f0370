package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"pm-vault-bot/internal/compliance"
	"pm-vault-bot/internal/config"
	"pm-vault-bot/internal/funding"

	"github.com/ethereum/go-ethereum/crypto"
)

// verify is the offline check tool: it derives deposit-note commitments
// from a secret, and signs or verifies compliance attestations, without
// touching the bot's state.

const defaultVerifyEnvFile = ".env"

func main() {
	configPath := flag.String("config", "", "optional config path for deposit and risk limits")
	mode := flag.String("mode", "note", "note | sign | attest")
	amount := flag.Uint64("amount", 0, "deposit amount for note mode")
	attestationPath := flag.String("attestation", "", "attestation JSON file for sign/attest modes")
	recipient := flag.String("recipient", "", "expected recipient address for attest mode")
	slot := flag.Uint64("slot", 0, "current slot for attest mode freshness")
	flag.Parse()

	if err := config.LoadEnv(defaultVerifyEnvFile); err != nil {
		fatal(err)
	}

	bounds := funding.Bounds{MinDeposit: 1_000_000, MaxDeposit: 1_000_000_000_000}
	limits := compliance.Limits{MaxRiskScore: 30, MaxAgeSlots: 50}
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		bounds = funding.Bounds{MinDeposit: cfg.Vault.MinDeposit, MaxDeposit: cfg.Vault.MaxDeposit}
		oracle, err := compliance.ParseOracle(cfg.Vault.ComplianceOracle)
		if err != nil {
			fatal(err)
		}
		limits = compliance.Limits{
			MaxRiskScore: cfg.Vault.MaxRiskScore,
			MaxAgeSlots:  cfg.Vault.MaxAttestationAge,
			Oracle:       oracle,
		}
	}

	switch *mode {
	case "note":
		runNote(*amount, bounds)
	case "sign":
		runSign(*attestationPath)
	case "attest":
		runAttest(*attestationPath, *recipient, *slot, limits)
	default:
		fatal(fmt.Errorf("unknown mode %q", *mode))
	}
}

// runNote derives the commitment and nullifier for a deposit secret and
// checks the resulting note against the configured bounds.
func runNote(amount uint64, bounds funding.Bounds) {
	secret, err := secretEnv("PM_DEPOSIT_SECRET")
	if err != nil {
		fatal(err)
	}
	if amount == 0 {
		fatal(errors.New("-amount is required in note mode"))
	}
	commitment, err := funding.ComputeCommitment(secret, amount)
	if err != nil {
		fatal(err)
	}
	nullifier, err := funding.ComputeNullifier(secret)
	if err != nil {
		fatal(err)
	}
	note := funding.DepositNote{
		Commitment:    commitment,
		NullifierHash: nullifier,
		Amount:        amount,
		Proof:         secret[:],
	}
	if err := funding.VerifyNote(note, bounds); err != nil {
		fatal(err)
	}
	fmt.Printf("note ok: amount=%d\ncommitment=%s\nnullifier=%s\n",
		amount, hex.EncodeToString(commitment[:]), hex.EncodeToString(nullifier[:]))
}

// runSign signs the attestation file with the oracle key and prints the
// updated JSON.
func runSign(path string) {
	att, err := loadAttestation(path)
	if err != nil {
		fatal(err)
	}
	keyHex := strings.TrimSpace(os.Getenv("PM_ORACLE_PRIVATE_KEY"))
	if keyHex == "" {
		fatal(errors.New("PM_ORACLE_PRIVATE_KEY is required in sign mode"))
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		fatal(err)
	}
	if err := compliance.Sign(&att, key); err != nil {
		fatal(err)
	}
	out, err := json.MarshalIndent(attestationFile{
		Address:              att.Address,
		RiskScore:            att.RiskScore,
		Slot:                 att.Slot,
		HopCount:             att.HopCount,
		MaliciousConnections: att.MaliciousConnections,
		Signature:            hex.EncodeToString(att.Signature),
	}, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Printf("signed by %s\n%s\n", crypto.PubkeyToAddress(key.PublicKey).Hex(), string(out))
}

func runAttest(path, recipient string, slot uint64, limits compliance.Limits) {
	att, err := loadAttestation(path)
	if err != nil {
		fatal(err)
	}
	if recipient == "" {
		recipient = att.Address
	}
	if err := compliance.Verify(att, recipient, slot, limits); err != nil {
		fatal(err)
	}
	fmt.Printf("attestation ok: address=%s risk=%d (%s) slot=%d\n",
		att.Address, att.RiskScore, att.RiskLevel(), att.Slot)
}

type attestationFile struct {
	Address              string `json:"address"`
	RiskScore            uint8  `json:"risk_score"`
	Slot                 uint64 `json:"slot"`
	HopCount             uint8  `json:"hop_count"`
	MaliciousConnections bool   `json:"malicious_connections"`
	Signature            string `json:"signature"`
}

func loadAttestation(path string) (compliance.Attestation, error) {
	if path == "" {
		return compliance.Attestation{}, errors.New("-attestation is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return compliance.Attestation{}, err
	}
	var file attestationFile
	if err := json.Unmarshal(data, &file); err != nil {
		return compliance.Attestation{}, err
	}
	var sig []byte
	if file.Signature != "" {
		sig, err = hex.DecodeString(strings.TrimPrefix(file.Signature, "0x"))
		if err != nil {
			return compliance.Attestation{}, fmt.Errorf("invalid signature hex: %w", err)
		}
	}
	return compliance.Attestation{
		Address:              file.Address,
		RiskScore:            file.RiskScore,
		Slot:                 file.Slot,
		HopCount:             file.HopCount,
		MaliciousConnections: file.MaliciousConnections,
		Signature:            sig,
	}, nil
}

func secretEnv(key string) ([32]byte, error) {
	var secret [32]byte
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return secret, fmt.Errorf("%s is required", key)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(val, "0x"))
	if err != nil {
		return secret, fmt.Errorf("invalid %s: %w", key, err)
	}
	if len(raw) != 32 {
		return secret, fmt.Errorf("%s must be 32 bytes, got %d", key, len(raw))
	}
	copy(secret[:], raw)
	return secret, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
