/**
 * @description
 * This file implements the stats aggregator: a read-only derived view over the
 * attendance ledger producing yearly totals and a per-month breakdown by
 * attendance type. Months with no records are omitted; the breakdown is
 * sorted ascending by month key and every record lands in exactly one bucket.
 */

package app

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fitcore/attendance-service/internal/domain"
	"github.com/fitcore/attendance-service/internal/store"
)

// StatsSource produces the yearly attendance summary for a user.
type StatsSource interface {
	Yearly(ctx context.Context, userID uuid.UUID) (*domain.AttendanceStatsResponse, error)
}

// StatsAggregator derives yearly statistics from the attendance ledger.
type StatsAggregator struct {
	repo store.Repository
	now  func() time.Time
}

// NewStatsAggregator creates an aggregator over the given repository.
func NewStatsAggregator(repo store.Repository) *StatsAggregator {
	return &StatsAggregator{repo: repo, now: time.Now}
}

// Yearly fetches every record since the first day of the current UTC year and
// folds it into totals and month buckets keyed by the YYYY-MM prefix of the
// entrance time.
func (a *StatsAggregator) Yearly(ctx context.Context, userID uuid.UUID) (*domain.AttendanceStatsResponse, error) {
	now := a.now().UTC()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	records, err := a.repo.FindAttendanceSince(ctx, userID, yearStart)
	if err != nil {
		return nil, err
	}

	stats := &domain.AttendanceStatsResponse{Monthly: []domain.MonthlyAttendanceStat{}}
	buckets := make(map[string]*domain.MonthlyAttendanceStat)
	for _, record := range records {
		month := record.EntranceTime.UTC().Format("2006-01")
		bucket, ok := buckets[month]
		if !ok {
			bucket = &domain.MonthlyAttendanceStat{Month: month}
			buckets[month] = bucket
		}
		if record.Type == domain.AttendanceTypeClass {
			stats.TotalClasses++
			bucket.ClassCount++
		} else {
			stats.TotalGym++
			bucket.GymCount++
		}
	}

	for _, bucket := range buckets {
		stats.Monthly = append(stats.Monthly, *bucket)
	}
	sort.Slice(stats.Monthly, func(i, j int) bool {
		return stats.Monthly[i].Month < stats.Monthly[j].Month
	})

	return stats, nil
}

// YearlyStats validates the user and delegates to the aggregator.
func (s *Service) YearlyStats(ctx context.Context, userID uuid.UUID) (*domain.AttendanceStatsResponse, error) {
	if _, err := s.repo.FindUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.stats.Yearly(ctx, userID)
}
