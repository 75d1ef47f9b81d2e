package ledger

import (
	"sort"

	"github.com/ojedapedro/colegiopay/internal/core/domain"
)

// ReviewQueue returns the pending and rejected payments in review order:
// virtual office first, then point of sale, newest first within each.
func ReviewQueue(payments []domain.PaymentRecord) []domain.PaymentRecord {
	out := make([]domain.PaymentRecord, 0)
	for _, p := range payments {
		if p.Status == domain.StatusPending || p.Status == domain.StatusRejected {
			out = append(out, p)
		}
	}
	SortForReview(out)
	return out
}

// SortForReview orders records in place for the reviewer.
func SortForReview(records []domain.PaymentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		oi, oj := records[i].Origin(), records[j].Origin()
		if oi != oj {
			return oi == domain.OriginVirtualOffice
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
