// Package reconcile merges payment rows reported by the virtual office into
// the local ledger without duplicating what is already there.
package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
	"github.com/ojedapedro/colegiopay/internal/core/normalize"
)

// Report summarizes one merge.
type Report struct {
	Received   int `json:"received"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
	Resolved   int `json:"resolved"` // already verified/rejected upstream
	Invalid    int `json:"invalid"`  // negative amounts, never imported
}

type Merger struct {
	normalizer *normalize.Normalizer
	now        func() time.Time
	logger     *slog.Logger
}

func NewMerger(n *normalize.Normalizer, now func() time.Time, logger *slog.Logger) *Merger {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{normalizer: n, now: now, logger: logger}
}

// Merge returns the records of raws that are new to local and still pending,
// in batch order. local is not modified; the caller prepends the result.
// Merging the same batch against a ledger that already holds the result
// returns nothing.
func (m *Merger) Merge(local []domain.PaymentRecord, raws []map[string]any) ([]domain.PaymentRecord, Report) {
	report := Report{Received: len(raws)}

	seen := make(map[string]struct{}, len(local)+len(raws))
	for _, p := range local {
		seen[strings.ToUpper(p.ID)] = struct{}{}
	}

	fresh := make([]domain.PaymentRecord, 0)
	for i, raw := range raws {
		record, status := m.Normalize(raw, i)

		key := strings.ToUpper(record.ID)
		if _, dup := seen[key]; dup {
			report.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		if status != domain.StatusPending {
			report.Resolved++
			continue
		}
		if record.Amount.IsNegative() {
			report.Invalid++
			m.normalizer.Warn(normalize.WarnAmount, record.Amount.String(), "skipped")
			m.logger.Warn("reconcile: skipping payment with negative amount", "id", record.ID, "reference", record.Reference)
			continue
		}
		if record.Amount.IsZero() {
			m.logger.Warn("reconcile: importing payment with zero amount", "id", record.ID, "reference", record.Reference)
		}
		fresh = append(fresh, record)
	}

	report.Imported = len(fresh)
	m.logger.Info("reconcile: merge finished",
		"received", report.Received,
		"imported", report.Imported,
		"duplicates", report.Duplicates,
		"resolved", report.Resolved,
		"invalid", report.Invalid,
	)
	return fresh, report
}

// Normalize maps one raw row at position in its batch to a canonical
// payment record, which is always Pending. The second result is the status
// the source reported.
func (m *Merger) Normalize(raw map[string]any, position int) (domain.PaymentRecord, domain.PaymentStatus) {
	text := func(f normalize.Field) string {
		v, _ := normalize.Lookup(raw, f)
		return normalize.ToText(v)
	}
	value := func(f normalize.Field) any {
		v, _ := normalize.Lookup(raw, f)
		return v
	}

	now := m.now()
	reference := text(normalize.FieldReference)
	createdAt := m.normalizer.ToDate(value(normalize.FieldCreatedAt), now)

	paymentType := normalize.ToType(value(normalize.FieldType))
	if paymentType == "" {
		paymentType = domain.TypePartial
	}

	record := domain.PaymentRecord{
		ID:               ExternalID(text(normalize.FieldID), reference, position),
		CreatedAt:        createdAt,
		PaymentDate:      m.normalizer.ToDate(value(normalize.FieldPaymentDate), createdAt),
		RepresentativeID: normalize.ToIdentifier(value(normalize.FieldRepresentativeID)),
		EnrollmentCode:   text(normalize.FieldEnrollmentCode),
		Level:            m.normalizer.ToLevel(value(normalize.FieldLevel)),
		Instrument:       m.normalizer.ToMethod(value(normalize.FieldInstrument)),
		Reference:        reference,
		Amount:           m.normalizer.ToAmount(value(normalize.FieldAmount)),
		Notes:            text(normalize.FieldNotes),
		Status:           domain.StatusPending,
		Type:             paymentType,
		UpdatedAt:        now,
	}
	return record, m.normalizer.ToStatus(value(normalize.FieldStatus))
}

// ExternalID keeps a supplied identifier that follows the virtual-office
// convention and otherwise derives one from the reference and the batch
// position, so refetching unchanged data reproduces the same IDs.
func ExternalID(supplied, reference string, position int) string {
	supplied = strings.TrimSpace(supplied)
	if len(supplied) > len(domain.VirtualOfficePrefix) &&
		strings.HasPrefix(strings.ToUpper(supplied), domain.VirtualOfficePrefix) {
		return domain.VirtualOfficePrefix + supplied[len(domain.VirtualOfficePrefix):]
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", strings.TrimSpace(reference), position)))
	return domain.VirtualOfficePrefix + hex.EncodeToString(sum[:8])
}
