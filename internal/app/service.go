/**
 * @description
 * This file contains the core business logic of the attendance-service: the
 * per-user check-in/check-out state machine and the read paths built on the
 * attendance ledger. A user is either Outside (no active record) or Inside
 * (exactly one active record); check-in moves Outside -> Inside after the
 * quota gate approves, check-out moves Inside -> Outside by closing the
 * active record.
 *
 * The service validates existence and state before any mutation, so a failed
 * operation never leaves a partial write. The storage layer provides the
 * atomicity guarantee for the single-active-record invariant; this layer's
 * active-record precheck only produces the friendlier AlreadyCheckedIn error
 * for the common sequential case.
 *
 * @dependencies
 * - internal/domain, internal/store: For models and data access.
 * - pkg/rabbitmq (via the EventPublisher interface): For attendance events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fitcore/attendance-service/internal/domain"
	"github.com/fitcore/attendance-service/internal/store"
)

var (
	ErrNoAvailableAttendances = errors.New("no available attendances for the requested type")
	ErrInvalidDateRange       = errors.New("invalid date range: from must not be after to")
)

// EventPublisher publishes domain events. A nil publisher disables publishing;
// publish failures are logged and never surfaced to the client.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// Service provides the business logic for attendance tracking.
type Service struct {
	repo   store.Repository
	quota  QuotaSource
	stats  StatsSource
	events EventPublisher
	now    func() time.Time
}

// NewService creates the attendance service over its collaborators. events
// may be nil when no broker is configured.
func NewService(repo store.Repository, quota QuotaSource, stats StatsSource, events EventPublisher) *Service {
	return &Service{
		repo:   repo,
		quota:  quota,
		stats:  stats,
		events: events,
		now:    time.Now,
	}
}

// CheckIn admits a user into the facility for the given attendance type.
// Preconditions, in order: the user exists, the user is currently Outside,
// and the quota calculator reports a remaining allowance for the type.
// "Now" is captured once and reused for every derived field of the record.
func (s *Service) CheckIn(ctx context.Context, userID uuid.UUID, t domain.AttendanceType) (*domain.AttendanceRecord, error) {
	if _, err := s.repo.FindUserByID(ctx, userID); err != nil {
		return nil, err
	}

	active, err := s.repo.FindActiveAttendanceByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active attendance: %w", err)
	}
	if active != nil {
		return nil, store.ErrAlreadyCheckedIn
	}

	if s.quota.Remaining(ctx, userID, t) <= 0 {
		return nil, ErrNoAvailableAttendances
	}

	now := s.now().UTC()
	record := &domain.AttendanceRecord{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         t,
		EntranceTime: now,
		DateKey:      domain.DateKeyFor(now),
		IsActive:     true,
	}

	// The partial unique index backs this insert; a concurrent check-in that
	// raced past the precheck above comes back as ErrAlreadyCheckedIn here.
	if err := s.repo.CreateAttendance(ctx, record); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventAttendanceCheckedIn, domain.AttendanceCheckedInEvent{
		RecordID:     record.ID,
		UserID:       record.UserID,
		Type:         record.Type,
		EntranceTime: record.EntranceTime,
	})

	return record, nil
}

// CheckOut closes the user's active attendance. The second of two consecutive
// check-outs fails with ErrNotCheckedIn and leaves the already-closed record
// untouched.
func (s *Service) CheckOut(ctx context.Context, userID uuid.UUID) (*domain.AttendanceRecord, error) {
	if _, err := s.repo.FindUserByID(ctx, userID); err != nil {
		return nil, err
	}

	record, err := s.repo.CloseActiveAttendance(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.EventAttendanceCheckedOut, domain.AttendanceCheckedOutEvent{
		RecordID:     record.ID,
		UserID:       record.UserID,
		Type:         record.Type,
		EntranceTime: record.EntranceTime,
		ExitTime:     *record.ExitTime,
	})

	return record, nil
}

// Status reports whether the user is inside, the active record if any, and
// the current quota snapshot. Read-only.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*domain.AttendanceStatus, error) {
	if _, err := s.repo.FindUserByID(ctx, userID); err != nil {
		return nil, err
	}

	active, err := s.repo.FindActiveAttendanceByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active attendance: %w", err)
	}

	return &domain.AttendanceStatus{
		IsInside:             active != nil,
		CurrentAttendance:    active,
		AvailableAttendances: s.quota.AvailableAttendances(ctx, userID),
	}, nil
}

// History returns the user's ledger entries matching the filter, newest
// first. The user must exist and the range must not be inverted.
func (s *Service) History(ctx context.Context, userID uuid.UUID, filter domain.HistoryFilter) ([]domain.AttendanceRecord, error) {
	if _, err := s.repo.FindUserByID(ctx, userID); err != nil {
		return nil, err
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, ErrInvalidDateRange
	}
	return s.repo.FindAttendanceHistory(ctx, userID, filter)
}

// ActiveAttendances lists every open record with its user summary.
func (s *Service) ActiveAttendances(ctx context.Context) ([]domain.ActiveAttendance, error) {
	return s.repo.FindAllActiveAttendance(ctx)
}

// Memberships lists the catalog.
func (s *Service) Memberships(ctx context.Context) ([]domain.Membership, error) {
	return s.repo.ListMemberships(ctx)
}

// PurchaseMembership snapshots a catalog entry into the user's subscription
// history. The snapshot is frozen: later catalog edits never change it.
func (s *Service) PurchaseMembership(ctx context.Context, userID, membershipID uuid.UUID) (*domain.HistoricMembershipEntry, error) {
	if _, err := s.repo.FindUserByID(ctx, userID); err != nil {
		return nil, err
	}
	membership, err := s.repo.FindMembershipByID(ctx, membershipID)
	if err != nil {
		return nil, err
	}

	entry := domain.SnapshotMembership(userID, membership, s.now())
	if err := s.repo.AppendSubscriptionEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append subscription entry: %w", err)
	}
	return entry, nil
}

func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, routingKey, body); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
