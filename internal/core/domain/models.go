package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Level is the enrollment level a monthly fee is charged for
type Level string

const (
	Nursery   Level = "NURSERY"
	Preschool Level = "PRESCHOOL"
	Primary   Level = "PRIMARY"
	Secondary Level = "SECONDARY"
)

// Levels lists every enrollment level the fee schedule must cover.
var Levels = []Level{Nursery, Preschool, Primary, Secondary}

func (l Level) Valid() bool {
	for _, known := range Levels {
		if l == known {
			return true
		}
	}
	return false
}

// Student belongs to exactly one Representative
type Student struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Level     Level  `json:"level"`
	Section   string `json:"section"`
	Withdrawn bool   `json:"withdrawn,omitempty"` // withdrawn students stop accruing
}

// Representative is the guardian who owes the tuition of their students
type Representative struct {
	ID               string          `json:"id"` // national ID
	Name             string          `json:"name"`
	Phone            string          `json:"phone"`
	EnrollmentCode   string          `json:"enrollment_code"`
	Students         []Student       `json:"students"`
	TotalAccruedDebt decimal.Decimal `json:"total_accrued_debt"`
	LastAccrualMonth MonthKey        `json:"last_accrual_month"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Clone returns a copy that shares no slices with r.
func (r Representative) Clone() Representative {
	r.Students = append([]Student(nil), r.Students...)
	return r
}

// PrimaryLevel is the level recorded on payments: the level of the first active student.
func (r Representative) PrimaryLevel() Level {
	for _, s := range r.Students {
		if !s.Withdrawn {
			return s.Level
		}
	}
	return ""
}

type PaymentStatus string

const (
	StatusPending  PaymentStatus = "PENDING"
	StatusVerified PaymentStatus = "VERIFIED"
	StatusRejected PaymentStatus = "REJECTED"
)

type PaymentType string

const (
	TypeFull    PaymentType = "FULL"
	TypePartial PaymentType = "PARTIAL"
)

func (t PaymentType) Valid() bool {
	return t == TypeFull || t == TypePartial
}

// Instrument is how the money was handed over
type Instrument string

const (
	Cash        Instrument = "CASH"
	PointOfSale Instrument = "POINT_OF_SALE"
	PagoMovil   Instrument = "PAGO_MOVIL"
	Transfer    Instrument = "TRANSFER"
	Zelle       Instrument = "ZELLE"
)

// Instruments lists every supported payment instrument.
var Instruments = []Instrument{Cash, PointOfSale, PagoMovil, Transfer, Zelle}

func (i Instrument) Valid() bool {
	for _, known := range Instruments {
		if i == known {
			return true
		}
	}
	return false
}

// Origin tells where a payment record entered the ledger
type Origin string

const (
	OriginPointOfSale   Origin = "POINT_OF_SALE"
	OriginVirtualOffice Origin = "VIRTUAL_OFFICE"
)

// Identifier prefixes. Point-of-sale IDs are machine generated, virtual
// office IDs come from (or are synthesized for) the external feed.
const (
	PointOfSalePrefix   = "POS-"
	VirtualOfficePrefix = "VO-"
)

// OriginOf classifies a payment identifier by its prefix.
func OriginOf(id string) Origin {
	if strings.HasPrefix(strings.ToUpper(id), VirtualOfficePrefix) {
		return OriginVirtualOffice
	}
	return OriginPointOfSale
}

// PaymentRecord is one payment against a representative's debt
type PaymentRecord struct {
	ID               string          `json:"id"`
	CreatedAt        time.Time       `json:"created_at"`
	PaymentDate      time.Time       `json:"payment_date"`
	RepresentativeID string          `json:"representative_id"`
	EnrollmentCode   string          `json:"enrollment_code"`
	Level            Level           `json:"level"`
	Instrument       Instrument      `json:"instrument"`
	Reference        string          `json:"reference"`
	Amount           decimal.Decimal `json:"amount"`
	Notes            string          `json:"notes,omitempty"`
	Status           PaymentStatus   `json:"status"`
	Type             PaymentType     `json:"type"`
	// PendingBalance is the outstanding balance right after this payment,
	// captured when it was submitted. Display only.
	PendingBalance  decimal.Decimal `json:"pending_balance"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (p PaymentRecord) Origin() Origin {
	return OriginOf(p.ID)
}

// Snapshot is the whole ledger state exchanged with the remote store and
// persisted by the storage adapter.
type Snapshot struct {
	Users           json.RawMessage           `json:"users,omitempty"` // opaque, passed through untouched
	Representatives []Representative          `json:"representatives"`
	Payments        []PaymentRecord           `json:"payments"`
	Fees            map[Level]decimal.Decimal `json:"fees"`
	UpdatedAt       time.Time                 `json:"updated_at"`
}

// Clone deep-copies the slices and map of s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Users = append(json.RawMessage(nil), s.Users...)
	out.Representatives = make([]Representative, len(s.Representatives))
	for i, r := range s.Representatives {
		out.Representatives[i] = r.Clone()
	}
	out.Payments = append([]PaymentRecord(nil), s.Payments...)
	out.Fees = make(map[Level]decimal.Decimal, len(s.Fees))
	for k, v := range s.Fees {
		out.Fees[k] = v
	}
	return out
}
