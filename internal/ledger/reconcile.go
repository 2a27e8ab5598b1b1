package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// reconcileLocked recomputes every account balance from scratch out of
// the transaction set, then persists the updated state. Transactions are
// accumulated oldest first; transactions pointing at a removed account
// are skipped. The caller must hold s.mu.
//
// The computation is deterministic and idempotent: two consecutive runs
// with no mutation in between produce identical balances. Transactions
// sharing a creation timestamp keep their relative order (stable sort),
// which cannot change the sums anyway.
func (s *Service) reconcileLocked(ctx context.Context) error {
	s.state.Normalize()

	for i := range s.state.Accounts {
		s.state.Accounts[i].Balance = decimal.Zero
	}

	sorted := make([]int, len(s.state.Transactions))
	for i := range sorted {
		sorted[i] = i
	}
	sort.SliceStable(sorted, func(a, b int) bool {
		return s.state.Transactions[sorted[a]].CreatedAt.Before(s.state.Transactions[sorted[b]].CreatedAt)
	})

	for _, i := range sorted {
		tx := s.state.Transactions[i]
		acc := s.state.FindAccount(tx.AccountID)
		if acc == nil {
			continue // orphaned transaction, tolerated
		}
		acc.Balance = acc.Balance.Add(tx.Signed())
	}

	return s.persistLocked(ctx)
}
