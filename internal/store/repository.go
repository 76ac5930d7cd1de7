/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the attendance-service. By defining an
 * interface, we decouple the application's business logic from the specific
 * database implementation (e.g., PostgreSQL), making the code more modular and
 * easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fitcore/attendance-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User directory
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// Membership catalog (read-only slice; catalog write CRUD lives elsewhere)
	ListMemberships(ctx context.Context) ([]domain.Membership, error)
	FindMembershipByID(ctx context.Context, membershipID uuid.UUID) (*domain.Membership, error)

	// Subscription directory
	GetSubscriptionEntries(ctx context.Context, userID uuid.UUID) ([]domain.HistoricMembershipEntry, error)
	AppendSubscriptionEntry(ctx context.Context, entry *domain.HistoricMembershipEntry) error

	// Attendance ledger
	CreateAttendance(ctx context.Context, record *domain.AttendanceRecord) error
	CloseActiveAttendance(ctx context.Context, userID uuid.UUID, exitTime time.Time) (*domain.AttendanceRecord, error)
	FindActiveAttendanceByUserID(ctx context.Context, userID uuid.UUID) (*domain.AttendanceRecord, error)
	CountAttendanceInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) (gym int, classes int, err error)
	FindAttendanceSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.AttendanceRecord, error)
	FindAttendanceHistory(ctx context.Context, userID uuid.UUID, filter domain.HistoryFilter) ([]domain.AttendanceRecord, error)
	FindAllActiveAttendance(ctx context.Context) ([]domain.ActiveAttendance, error)
}
