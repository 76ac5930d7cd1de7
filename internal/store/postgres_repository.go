/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the necessary SQL queries to interact with the database tables
 * related to users, memberships, subscription history, and the attendance ledger.
 *
 * The single-active-record-per-user invariant is enforced here, not in
 * application code: the `attendance_one_active_per_user` partial unique index
 * (see migrations/0001) rejects a second concurrent active insert, which this
 * layer maps to ErrAlreadyCheckedIn. Check-out is a single conditional UPDATE,
 * so two concurrent check-outs cannot both close the same record.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitcore/attendance-service/internal/domain"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrAlreadyCheckedIn   = errors.New("user already has an active attendance")
	ErrNotCheckedIn       = errors.New("user has no active attendance")
)

// uniqueViolationCode is the SQLSTATE raised when the partial unique index on
// active attendance records rejects a concurrent duplicate insert.
const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByID retrieves a user summary from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, full_name, email FROM users WHERE id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.FullName, &user.Email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// ListMemberships retrieves the current membership catalog, cheapest first.
func (r *PostgresRepository) ListMemberships(ctx context.Context) ([]domain.Membership, error) {
	query := `
		SELECT id, name, cost, max_classes_per_cycle, max_gym_per_cycle, duration_months, created_at, updated_at
		FROM memberships
		ORDER BY cost ASC, name ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Cost, &m.MaxClassesPerCycle, &m.MaxGymPerCycle,
			&m.DurationMonths, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// FindMembershipByID retrieves one catalog entry.
func (r *PostgresRepository) FindMembershipByID(ctx context.Context, membershipID uuid.UUID) (*domain.Membership, error) {
	var m domain.Membership
	query := `
		SELECT id, name, cost, max_classes_per_cycle, max_gym_per_cycle, duration_months, created_at, updated_at
		FROM memberships
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, membershipID).Scan(
		&m.ID, &m.Name, &m.Cost, &m.MaxClassesPerCycle, &m.MaxGymPerCycle,
		&m.DurationMonths, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrMembershipNotFound
		}
		return nil, err
	}
	return &m, nil
}

// GetSubscriptionEntries retrieves a user's full subscription history in
// purchase order. A user with no history gets an empty slice, not an error.
func (r *PostgresRepository) GetSubscriptionEntries(ctx context.Context, userID uuid.UUID) ([]domain.HistoricMembershipEntry, error) {
	query := `
		SELECT id, user_id, membership_id, name, cost, max_classes_per_cycle, max_gym_per_cycle, duration_months, purchase_date
		FROM subscription_entries
		WHERE user_id = $1
		ORDER BY purchase_date ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoricMembershipEntry
	for rows.Next() {
		var e domain.HistoricMembershipEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.MembershipID, &e.Name, &e.Cost,
			&e.MaxClassesPerCycle, &e.MaxGymPerCycle, &e.DurationMonths, &e.PurchaseDate,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendSubscriptionEntry inserts one frozen membership snapshot. Entries are
// never updated or deleted afterwards.
func (r *PostgresRepository) AppendSubscriptionEntry(ctx context.Context, entry *domain.HistoricMembershipEntry) error {
	query := `
		INSERT INTO subscription_entries (
			id, user_id, membership_id, name, cost, max_classes_per_cycle, max_gym_per_cycle, duration_months, purchase_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.MembershipID,
		entry.Name,
		entry.Cost,
		entry.MaxClassesPerCycle,
		entry.MaxGymPerCycle,
		entry.DurationMonths,
		entry.PurchaseDate,
	)
	return err
}

// CreateAttendance inserts a new active ledger record. The partial unique
// index on (user_id) WHERE is_active makes this the atomic "insert if no
// active record exists" operation the check-in flow relies on; a concurrent
// duplicate surfaces as a unique violation and is reported as ErrAlreadyCheckedIn.
func (r *PostgresRepository) CreateAttendance(ctx context.Context, record *domain.AttendanceRecord) error {
	query := `
		INSERT INTO attendance_records (
			id, user_id, type, entrance_time, date_key, is_active
		)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		record.ID,
		record.UserID,
		record.Type,
		record.EntranceTime,
		record.DateKey,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyCheckedIn
		}
		return err
	}
	record.IsActive = true
	return nil
}

// CloseActiveAttendance closes the user's open record in one conditional
// UPDATE. Zero affected rows means there was nothing to close.
func (r *PostgresRepository) CloseActiveAttendance(ctx context.Context, userID uuid.UUID, exitTime time.Time) (*domain.AttendanceRecord, error) {
	query := `
		UPDATE attendance_records
		SET exit_time = $2, is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_active
		RETURNING id, user_id, type, entrance_time, exit_time, date_key, is_active, created_at, updated_at
	`
	var record domain.AttendanceRecord
	err := r.db.QueryRow(ctx, query, userID, exitTime).Scan(
		&record.ID, &record.UserID, &record.Type, &record.EntranceTime,
		&record.ExitTime, &record.DateKey, &record.IsActive,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotCheckedIn
		}
		return nil, err
	}
	return &record, nil
}

// FindActiveAttendanceByUserID returns the user's open record, or nil when
// the user is currently outside.
func (r *PostgresRepository) FindActiveAttendanceByUserID(ctx context.Context, userID uuid.UUID) (*domain.AttendanceRecord, error) {
	query := `
		SELECT id, user_id, type, entrance_time, exit_time, date_key, is_active, created_at, updated_at
		FROM attendance_records
		WHERE user_id = $1 AND is_active
	`
	var record domain.AttendanceRecord
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&record.ID, &record.UserID, &record.Type, &record.EntranceTime,
		&record.ExitTime, &record.DateKey, &record.IsActive,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// CountAttendanceInWindow counts a user's ledger entries with an entrance time
// inside [from, to), split by attendance type. The quota calculator uses this
// for the current-month usage.
func (r *PostgresRepository) CountAttendanceInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) (int, int, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE type = 'gym'),
			COUNT(*) FILTER (WHERE type = 'class')
		FROM attendance_records
		WHERE user_id = $1
		  AND entrance_time >= $2
		  AND entrance_time < $3
	`
	var gym, classes int
	if err := r.db.QueryRow(ctx, query, userID, from, to).Scan(&gym, &classes); err != nil {
		return 0, 0, err
	}
	return gym, classes, nil
}

// FindAttendanceSince retrieves a user's records with entrance_time >= since,
// ascending. The stats aggregator buckets these by month.
func (r *PostgresRepository) FindAttendanceSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]domain.AttendanceRecord, error) {
	query := `
		SELECT id, user_id, type, entrance_time, exit_time, date_key, is_active, created_at, updated_at
		FROM attendance_records
		WHERE user_id = $1 AND entrance_time >= $2
		ORDER BY entrance_time ASC
	`
	rows, err := r.db.Query(ctx, query, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttendanceRows(rows)
}

// FindAttendanceHistory retrieves a user's records matching the filter,
// newest first. Bounds are inclusive; the caller extends To to end-of-day.
func (r *PostgresRepository) FindAttendanceHistory(ctx context.Context, userID uuid.UUID, filter domain.HistoryFilter) ([]domain.AttendanceRecord, error) {
	query := `
		SELECT id, user_id, type, entrance_time, exit_time, date_key, is_active, created_at, updated_at
		FROM attendance_records
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR entrance_time >= $2)
		  AND ($3::timestamptz IS NULL OR entrance_time <= $3)
		  AND ($4::text IS NULL OR type = $4)
		ORDER BY entrance_time DESC
	`
	var typeArg *string
	if filter.Type != nil {
		s := string(*filter.Type)
		typeArg = &s
	}
	rows, err := r.db.Query(ctx, query, userID, filter.From, filter.To, typeArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttendanceRows(rows)
}

// FindAllActiveAttendance lists every open record with its user summary.
func (r *PostgresRepository) FindAllActiveAttendance(ctx context.Context) ([]domain.ActiveAttendance, error) {
	query := `
		SELECT a.id, a.user_id, a.type, a.entrance_time, a.exit_time, a.date_key, a.is_active,
		       a.created_at, a.updated_at,
		       u.id, u.full_name, u.email
		FROM attendance_records a
		JOIN users u ON u.id = a.user_id
		WHERE a.is_active
		ORDER BY a.entrance_time ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var active []domain.ActiveAttendance
	for rows.Next() {
		var item domain.ActiveAttendance
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.Type, &item.EntranceTime,
			&item.ExitTime, &item.DateKey, &item.IsActive,
			&item.CreatedAt, &item.UpdatedAt,
			&item.User.ID, &item.User.FullName, &item.User.Email,
		); err != nil {
			return nil, err
		}
		active = append(active, item)
	}
	return active, rows.Err()
}

func scanAttendanceRows(rows pgx.Rows) ([]domain.AttendanceRecord, error) {
	var records []domain.AttendanceRecord
	for rows.Next() {
		var record domain.AttendanceRecord
		if err := rows.Scan(
			&record.ID, &record.UserID, &record.Type, &record.EntranceTime,
			&record.ExitTime, &record.DateKey, &record.IsActive,
			&record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
