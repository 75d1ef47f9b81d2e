package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
	"github.com/ojedapedro/colegiopay/internal/core/normalize"
	"github.com/ojedapedro/colegiopay/internal/core/reconcile"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrDuplicateRepresentative = errors.New("representative already enrolled")
	ErrInvalidInput            = errors.New("invalid input")
)

// Options carries the collaborators of a Service. Zero values fall back to
// the wall clock, random POS identifiers and the default logger.
type Options struct {
	Merger *reconcile.Merger
	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

// Service owns the in-memory ledger. Reads share a lock; every mutation is
// applied whole under the write lock or not at all.
type Service struct {
	mu       sync.RWMutex
	reps     []domain.Representative
	payments []domain.PaymentRecord // newest first
	users    json.RawMessage
	schedule *FeeSchedule

	merger *reconcile.Merger
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

func NewService(schedule *FeeSchedule, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewPaymentID
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Merger == nil {
		opts.Merger = reconcile.NewMerger(normalize.New(domain.Transfer, opts.Logger), opts.Now, opts.Logger)
	}
	return &Service{
		schedule: schedule,
		merger:   opts.Merger,
		now:      opts.Now,
		newID:    opts.NewID,
		logger:   opts.Logger,
	}
}

// Replace swaps the whole ledger for snap (a fresh fetch from the remote
// store). An empty fee map keeps the current schedule; a partial one is a
// configuration error and nothing is replaced.
func (s *Service) Replace(snap domain.Snapshot) error {
	schedule := s.currentSchedule()
	if len(snap.Fees) > 0 {
		var err error
		if schedule, err = NewFeeSchedule(snap.Fees); err != nil {
			return fmt.Errorf("snapshot rejected: %w", err)
		}
	}

	c := snap.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reps = c.Representatives
	s.payments = c.Payments
	s.users = c.Users
	s.schedule = schedule
	return nil
}

func (s *Service) currentSchedule() *FeeSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedule
}

// Snapshot returns a deep copy of the current state.
func (s *Service) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := domain.Snapshot{
		Users:           s.users,
		Representatives: s.reps,
		Payments:        s.payments,
		UpdatedAt:       s.now(),
	}
	if s.schedule != nil {
		snap.Fees = s.schedule.Fees()
	}
	return snap.Clone()
}

// findRep returns the index of the representative with the given national
// ID, or -1. Caller holds the lock.
func (s *Service) findRep(id string) int {
	for i, r := range s.reps {
		if normalize.SameIdentifier(r.ID, id) {
			return i
		}
	}
	return -1
}

func (s *Service) findPayment(id string) int {
	for i, p := range s.payments {
		if strings.EqualFold(p.ID, id) {
			return i
		}
	}
	return -1
}

func (s *Service) Representative(id string) (domain.Representative, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.findRep(id)
	if i < 0 {
		return domain.Representative{}, fmt.Errorf("representative %s: %w", id, ErrNotFound)
	}
	return s.reps[i].Clone(), nil
}

// EnrollInput describes a new family at enrollment
type EnrollInput struct {
	ID             string
	Name           string
	Phone          string
	EnrollmentCode string
	Students       []domain.Student
}

// Enroll registers a representative and charges the first month of every
// student. The current month is marked as accrued so the monthly job does
// not charge it again.
func (s *Service) Enroll(in EnrollInput) (domain.Representative, error) {
	if normalize.ToIdentifier(in.ID) == "" {
		return domain.Representative{}, fmt.Errorf("%w: representative id is required", ErrInvalidInput)
	}
	if len(in.Students) == 0 {
		return domain.Representative{}, fmt.Errorf("%w: at least one student is required", ErrInvalidInput)
	}

	students := make([]domain.Student, len(in.Students))
	for i, st := range in.Students {
		if !st.Level.Valid() {
			return domain.Representative{}, fmt.Errorf("%w: student %q has unknown level %q", ErrInvalidInput, st.FullName, st.Level)
		}
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		students[i] = st
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findRep(in.ID) >= 0 {
		return domain.Representative{}, fmt.Errorf("%w: %s", ErrDuplicateRepresentative, in.ID)
	}
	initial, err := InitialAccrual(students, s.schedule)
	if err != nil {
		return domain.Representative{}, err
	}

	now := s.now()
	rep := domain.Representative{
		ID:               strings.TrimSpace(in.ID),
		Name:             strings.TrimSpace(in.Name),
		Phone:            strings.TrimSpace(in.Phone),
		EnrollmentCode:   strings.TrimSpace(in.EnrollmentCode),
		Students:         students,
		TotalAccruedDebt: initial,
		LastAccrualMonth: domain.MonthOf(now),
		CreatedAt:        now,
	}
	s.reps = append(s.reps, rep)

	s.logger.Info("Representative enrolled", "id", rep.ID, "students", len(students), "initial_accrual", initial.StringFixed(domain.AmountPlaces))
	return rep.Clone(), nil
}

// ComputeBalance projects the balance of one representative.
func (s *Service) ComputeBalance(repID string) (Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.findRep(repID)
	if i < 0 {
		return Balance{}, fmt.Errorf("representative %s: %w", repID, ErrNotFound)
	}
	return BalanceOf(s.reps[i], s.payments), nil
}

// Payments lists the payments of one representative, newest first.
func (s *Service) Payments(repID string) []domain.PaymentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PaymentRecord, 0)
	for _, p := range s.payments {
		if normalize.SameIdentifier(p.RepresentativeID, repID) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) Payment(id string) (domain.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.findPayment(id)
	if i < 0 {
		return domain.PaymentRecord{}, fmt.Errorf("payment %s: %w", id, ErrNotFound)
	}
	return s.payments[i], nil
}

// RecordPayment registers a cashier or portal payment and prepends it to
// the ledger.
func (s *Service) RecordPayment(repID string, in PaymentInput) (domain.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findRep(repID)
	if i < 0 {
		return domain.PaymentRecord{}, fmt.Errorf("representative %s: %w", repID, ErrNotFound)
	}
	record, err := RecordPayment(s.reps[i], s.payments, in, s.now(), s.newID)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	if s.findPayment(record.ID) >= 0 {
		return domain.PaymentRecord{}, fmt.Errorf("payment id %s already exists", record.ID)
	}
	s.payments = append([]domain.PaymentRecord{record}, s.payments...)

	s.logger.Info("Payment recorded",
		"id", record.ID,
		"representative_id", record.RepresentativeID,
		"amount", record.Amount.StringFixed(domain.AmountPlaces),
		"instrument", record.Instrument,
		"status", record.Status,
	)
	return record, nil
}

// Transition applies a reviewer action to a stored payment. On error the
// stored record is unchanged.
func (s *Service) Transition(paymentID string, action Action, reason string) (domain.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findPayment(paymentID)
	if i < 0 {
		return domain.PaymentRecord{}, fmt.Errorf("payment %s: %w", paymentID, ErrNotFound)
	}
	next, err := Transition(s.payments[i], action, reason, s.now())
	if err != nil {
		return s.payments[i], err
	}
	s.payments[i] = next

	s.logger.Info("Payment status changed", "id", next.ID, "action", action, "status", next.Status)
	return next, nil
}

// MergeExternal reconciles a batch of virtual-office rows into the ledger.
// The batch is computed and applied under one write lock: either every new
// record lands or none does.
func (s *Service) MergeExternal(raws []map[string]any) ([]domain.PaymentRecord, reconcile.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh, report := s.merger.Merge(s.payments, raws)
	for i := range fresh {
		s.attachRepresentative(&fresh[i])
	}
	if len(fresh) > 0 {
		merged := make([]domain.PaymentRecord, 0, len(fresh)+len(s.payments))
		merged = append(merged, fresh...)
		s.payments = append(merged, s.payments...)
	}
	return fresh, report
}

// attachRepresentative fills the enrollment data a virtual-office row left
// out and takes the balance snapshot. Caller holds the write lock.
func (s *Service) attachRepresentative(p *domain.PaymentRecord) {
	i := s.findRep(p.RepresentativeID)
	if i < 0 {
		s.logger.Warn("Merged payment has no known representative", "id", p.ID, "representative_id", p.RepresentativeID)
		return
	}
	rep := s.reps[i]
	p.RepresentativeID = rep.ID
	if p.EnrollmentCode == "" {
		p.EnrollmentCode = rep.EnrollmentCode
	}
	if p.Level == "" {
		p.Level = rep.PrimaryLevel()
	}
	p.PendingBalance = domain.Floor0(BalanceOf(rep, s.payments).Outstanding.Sub(p.Amount))
}

// ReviewQueue lists pending and rejected payments in review order.
func (s *Service) ReviewQueue() []domain.PaymentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ReviewQueue(s.payments)
}

// AccrualReport summarizes one monthly accrual run
type AccrualReport struct {
	Month   domain.MonthKey `json:"month"`
	Charged int             `json:"charged"` // representatives charged this run
	Total   decimal.Decimal `json:"total"`
}

// RunMonthlyAccrual charges month to every representative. The run works on
// copies and is committed only if every representative succeeds.
func (s *Service) RunMonthlyAccrual(month domain.MonthKey) (AccrualReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := AccrualReport{Month: month, Total: decimal.Zero}
	next := make([]domain.Representative, len(s.reps))
	for i, r := range s.reps {
		rep := r.Clone()
		charge, err := MonthlyAccrual(&rep, s.schedule, month)
		if err != nil {
			return AccrualReport{}, err
		}
		if rep.LastAccrualMonth != r.LastAccrualMonth {
			report.Charged++
			report.Total = report.Total.Add(charge)
		}
		next[i] = rep
	}
	s.reps = next

	if report.Charged > 0 {
		s.logger.Info("Monthly accrual applied", "month", month, "representatives", report.Charged, "total", report.Total.StringFixed(domain.AmountPlaces))
	}
	return report, nil
}

// SetFee changes the monthly fee of a level for future accruals.
func (s *Service) SetFee(level domain.Level, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return fmt.Errorf("%w %s: schedule not configured", ErrMissingFee, level)
	}
	if err := s.schedule.Set(level, amount); err != nil {
		return err
	}
	s.logger.Info("Fee updated", "level", level, "amount", amount.StringFixed(domain.AmountPlaces))
	return nil
}

func (s *Service) Fees() map[domain.Level]decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.schedule == nil {
		return map[domain.Level]decimal.Decimal{}
	}
	return s.schedule.Fees()
}
