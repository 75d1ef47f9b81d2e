package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

var ErrReferenceRequired = errors.New("electronic payments need a reference")

// PaymentInput is what a cashier (or the self-service portal) submits
type PaymentInput struct {
	Amount      decimal.Decimal
	Instrument  domain.Instrument
	Reference   string
	Type        domain.PaymentType // empty: derived from the outstanding balance
	PaymentDate time.Time          // zero: the submission time
	Notes       string
}

// NewPaymentID generates a point-of-sale payment identifier
func NewPaymentID() string {
	return domain.PointOfSalePrefix + uuid.NewString()
}

// RecordPayment builds a new payment for rep. payments is the current ledger
// and is only read, to take the balance snapshot. The snapshot is always the
// outstanding balance right after this payment is applied.
func RecordPayment(rep domain.Representative, payments []domain.PaymentRecord, in PaymentInput, now time.Time, newID func() string) (domain.PaymentRecord, error) {
	if err := domain.ValidatePayment(in.Amount); err != nil {
		return domain.PaymentRecord{}, err
	}
	status, err := initialStatusFor(in.Instrument)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	reference := strings.TrimSpace(in.Reference)
	if status == domain.StatusPending && reference == "" {
		return domain.PaymentRecord{}, fmt.Errorf("%w (%s)", ErrReferenceRequired, in.Instrument)
	}
	if in.Type != "" && !in.Type.Valid() {
		return domain.PaymentRecord{}, fmt.Errorf("%w: unknown payment type %q", ErrInvalidInput, in.Type)
	}
	if newID == nil {
		newID = NewPaymentID
	}

	amount := in.Amount.Round(domain.AmountPlaces)
	outstanding := BalanceOf(rep, payments).Outstanding

	paymentType := in.Type
	if paymentType == "" {
		paymentType = domain.TypePartial
		if amount.GreaterThanOrEqual(outstanding) {
			paymentType = domain.TypeFull
		}
	}

	paidAt := in.PaymentDate
	if paidAt.IsZero() {
		paidAt = now
	}

	return domain.PaymentRecord{
		ID:               newID(),
		CreatedAt:        now,
		PaymentDate:      paidAt,
		RepresentativeID: rep.ID,
		EnrollmentCode:   rep.EnrollmentCode,
		Level:            rep.PrimaryLevel(),
		Instrument:       in.Instrument,
		Reference:        reference,
		Amount:           amount,
		Notes:            strings.TrimSpace(in.Notes),
		Status:           status,
		Type:             paymentType,
		PendingBalance:   domain.Floor0(outstanding.Sub(amount)),
		UpdatedAt:        now,
	}, nil
}
