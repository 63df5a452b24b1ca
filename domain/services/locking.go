package services

import (
	"context"
	"fmt"
	"sort"

	"auctioneer/domain/entities"
	"auctioneer/domain/errs"
	"auctioneer/domain/interfaces"
)

// lockUsers acquires row locks on the given users in ascending ID order.
// Every ledger-affecting operation that touches more than one balance goes
// through here so concurrent operations always lock in the same order. The
// canonical order across row kinds is auction, then order, then user rows:
// operations that touch an auction's rows take the auction lock before
// calling here.
func lockUsers(ctx context.Context, userRepo interfaces.UserRepository, ids []int64) (map[int64]*entities.User, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	users := make(map[int64]*entities.User, len(sorted))
	for _, id := range sorted {
		if _, ok := users[id]; ok {
			continue
		}
		user, err := userRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to lock user %d: %w", id, err)
		}
		if user == nil {
			return nil, errs.NewValidation("user %d not found", id)
		}
		users[id] = user
	}
	return users, nil
}
