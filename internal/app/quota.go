/**
 * @description
 * This file implements the quota calculator: the derivation of how many gym
 * and class visits a user may still take in the current calendar month. The
 * allowance is the sum of limits across every historic membership entry the
 * user has ever purchased; usage is the count of ledger entries inside the
 * month window. Remaining counts are clamped at zero.
 *
 * The calculator is deliberately fail-closed: a store failure during the
 * computation yields a zero quota marked Degraded instead of an error, so a
 * broken lookup can never admit an entry it cannot account for. The swallowed
 * cause is logged because it is otherwise invisible to the caller.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fitcore/attendance-service/internal/domain"
	"github.com/fitcore/attendance-service/internal/store"
)

// QuotaSource computes the remaining monthly allowance for a user. The
// attendance service consults it before admitting a check-in; tests substitute
// a stub.
type QuotaSource interface {
	AvailableAttendances(ctx context.Context, userID uuid.UUID) domain.Quota
	Remaining(ctx context.Context, userID uuid.UUID, t domain.AttendanceType) int
}

// QuotaCalculator derives quotas from the subscription directory and the
// attendance ledger.
type QuotaCalculator struct {
	repo store.Repository
	now  func() time.Time
}

// NewQuotaCalculator creates a calculator over the given repository.
func NewQuotaCalculator(repo store.Repository) *QuotaCalculator {
	return &QuotaCalculator{repo: repo, now: time.Now}
}

// monthWindow returns the half-open UTC interval covering the calendar month
// of the given instant. Using [first, next) keeps the comparison exact at
// month boundaries.
func monthWindow(at time.Time) (time.Time, time.Time) {
	at = at.UTC()
	first := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, 0)
}

// AvailableAttendances computes the user's remaining quota for the current
// month. A user with no subscription history simply has no allowance; that is
// a plain zero quota, not a degraded one.
func (c *QuotaCalculator) AvailableAttendances(ctx context.Context, userID uuid.UUID) domain.Quota {
	entries, err := c.repo.GetSubscriptionEntries(ctx, userID)
	if err != nil {
		log.Printf("level=warn component=quota msg=\"subscription lookup failed; reporting zero quota\" user_id=%s err=%v", userID, err)
		return domain.Quota{Degraded: true}
	}
	if len(entries) == 0 {
		return domain.Quota{}
	}

	var gymAllowance, classAllowance int
	for _, entry := range entries {
		gymAllowance += entry.MaxGymPerCycle
		classAllowance += entry.MaxClassesPerCycle
	}

	from, to := monthWindow(c.now())
	gymUsed, classesUsed, err := c.repo.CountAttendanceInWindow(ctx, userID, from, to)
	if err != nil {
		log.Printf("level=warn component=quota msg=\"usage count failed; reporting zero quota\" user_id=%s err=%v", userID, err)
		return domain.Quota{Degraded: true}
	}

	return domain.Quota{
		Gym:     clampZero(gymAllowance - gymUsed),
		Classes: clampZero(classAllowance - classesUsed),
	}
}

// Remaining returns the single count relevant to one attendance type.
func (c *QuotaCalculator) Remaining(ctx context.Context, userID uuid.UUID, t domain.AttendanceType) int {
	return c.AvailableAttendances(ctx, userID).Remaining(t)
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
