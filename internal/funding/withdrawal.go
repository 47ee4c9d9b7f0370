package funding

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"pm-vault-bot/internal/compliance"
	"pm-vault-bot/internal/vault"
)

type WithdrawalStatus uint8

const (
	WithdrawalPending WithdrawalStatus = iota
	WithdrawalApproved
	WithdrawalRejected
	WithdrawalCompleted
	WithdrawalCancelled
)

func (s WithdrawalStatus) String() string {
	switch s {
	case WithdrawalPending:
		return "pending"
	case WithdrawalApproved:
		return "approved"
	case WithdrawalRejected:
		return "rejected"
	case WithdrawalCompleted:
		return "completed"
	case WithdrawalCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	ErrNotPending  = errors.New("withdrawal is not pending")
	ErrNotApproved = errors.New("withdrawal is not approved")
)

// WithdrawalRequest moves Pending -> Approved|Rejected -> Completed, with
// Cancelled reachable from Pending only. Completion is the only step that
// touches the vault and it requires a fresh compliance pass.
type WithdrawalRequest struct {
	ID          string
	VaultID     string
	Recipient   string
	Amount      uint64
	Status      WithdrawalStatus
	RequestedAt time.Time
	DecidedAt   time.Time
	CompletedAt time.Time
}

func NewWithdrawalRequest(vaultID, recipient string, amount uint64, now time.Time) (*WithdrawalRequest, error) {
	if amount == 0 {
		return nil, vault.ErrInvalidAmount
	}
	return &WithdrawalRequest{
		ID:          uuid.NewString(),
		VaultID:     vaultID,
		Recipient:   recipient,
		Amount:      amount,
		Status:      WithdrawalPending,
		RequestedAt: now,
	}, nil
}

func (w *WithdrawalRequest) Approve(now time.Time) error {
	if w.Status != WithdrawalPending {
		return ErrNotPending
	}
	w.Status = WithdrawalApproved
	w.DecidedAt = now
	return nil
}

func (w *WithdrawalRequest) Reject(now time.Time) error {
	if w.Status != WithdrawalPending {
		return ErrNotPending
	}
	w.Status = WithdrawalRejected
	w.DecidedAt = now
	return nil
}

func (w *WithdrawalRequest) Cancel(now time.Time) error {
	if w.Status != WithdrawalPending {
		return ErrNotPending
	}
	w.Status = WithdrawalCancelled
	w.DecidedAt = now
	return nil
}

// Complete debits the vault after the compliance gate passes. The
// request only transitions when the debit succeeds.
func (w *WithdrawalRequest) Complete(v *vault.Vault, att compliance.Attestation, currentSlot uint64, limits compliance.Limits, now time.Time) error {
	if w.Status != WithdrawalApproved {
		return ErrNotApproved
	}
	if err := compliance.Verify(att, w.Recipient, currentSlot, limits); err != nil {
		return err
	}
	if err := v.ApplyWithdrawal(w.Amount); err != nil {
		return err
	}
	w.Status = WithdrawalCompleted
	w.CompletedAt = now
	return nil
}
