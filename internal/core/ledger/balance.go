package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
	"github.com/ojedapedro/colegiopay/internal/core/normalize"
)

// Balance is the projection of a representative's payments over their debt
type Balance struct {
	VerifiedTotal  decimal.Decimal `json:"verified_total"`
	InTransitTotal decimal.Decimal `json:"in_transit_total"`
	Outstanding    decimal.Decimal `json:"outstanding"`
}

// BalanceOf recomputes the balance of rep from payments. Only verified
// payments reduce the outstanding amount; pending ones are in transit and
// rejected ones are ignored.
func BalanceOf(rep domain.Representative, payments []domain.PaymentRecord) Balance {
	verified := decimal.Zero
	inTransit := decimal.Zero
	repID := normalize.ToIdentifier(rep.ID)

	for _, p := range payments {
		if repID == "" || normalize.ToIdentifier(p.RepresentativeID) != repID {
			continue
		}
		switch p.Status {
		case domain.StatusVerified:
			verified = verified.Add(p.Amount)
		case domain.StatusPending:
			inTransit = inTransit.Add(p.Amount)
		}
	}

	return Balance{
		VerifiedTotal:  verified,
		InTransitTotal: inTransit,
		Outstanding:    domain.Floor0(rep.TotalAccruedDebt.Sub(verified)),
	}
}
