/**
 * @description
 * This file defines the core domain models for the attendance-service.
 * These structs represent the entities and data transfer objects (DTOs) used
 * throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - All timestamps are stored and compared in UTC. The DateKey field and the
 *   monthly quota window are derived from the UTC instant of the entrance time
 *   so that month boundaries do not depend on server timezone.
 */

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AttendanceType distinguishes gym-floor visits from class attendance.
// The two kinds draw from separate monthly quotas.
type AttendanceType string

const (
	AttendanceTypeGym   AttendanceType = "gym"
	AttendanceTypeClass AttendanceType = "class"
)

// ParseAttendanceType validates and normalizes a client-supplied attendance type.
func ParseAttendanceType(raw string) (AttendanceType, error) {
	switch AttendanceType(strings.ToLower(strings.TrimSpace(raw))) {
	case AttendanceTypeGym:
		return AttendanceTypeGym, nil
	case AttendanceTypeClass:
		return AttendanceTypeClass, nil
	default:
		return "", fmt.Errorf("invalid attendance type %q: must be %q or %q", raw, AttendanceTypeGym, AttendanceTypeClass)
	}
}

// AttendanceRecord is the ledger entry for one visit. A record is created at
// check-in with IsActive = true and mutated exactly once at check-out, which
// sets ExitTime and flips IsActive. At most one record per user is active at
// any instant; the storage layer enforces this with a partial unique index.
type AttendanceRecord struct {
	ID           uuid.UUID      `json:"id"`
	UserID       uuid.UUID      `json:"user_id"`
	Type         AttendanceType `json:"type"`
	EntranceTime time.Time      `json:"entrance_time"`
	ExitTime     *time.Time     `json:"exit_time,omitempty"`
	DateKey      string         `json:"date_key"` // YYYY-MM-DD, UTC date of EntranceTime
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// DateKeyFor derives the calendar-day key for an entrance instant.
func DateKeyFor(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Quota is the derived count of visits a user may still take in the current
// calendar month. It is computed on demand and never persisted.
//
// Degraded reports that the calculator could not complete its lookups and
// deliberately fell back to a zero allowance. Callers treat a degraded quota
// the same as an exhausted one; the flag exists so the fail-closed path is
// observable instead of being indistinguishable from "genuinely zero".
type Quota struct {
	Gym      int  `json:"gym"`
	Classes  int  `json:"classes"`
	Degraded bool `json:"degraded,omitempty"`
}

// Remaining returns the count for one attendance type.
func (q Quota) Remaining(t AttendanceType) int {
	if t == AttendanceTypeClass {
		return q.Classes
	}
	return q.Gym
}

// User is the simplified user-directory view the attendance-service needs:
// an existence gate and a display summary for the active-visitors listing.
type User struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
}

// AttendanceStatus is the response payload for the status endpoint.
type AttendanceStatus struct {
	IsInside             bool              `json:"is_inside"`
	CurrentAttendance    *AttendanceRecord `json:"current_attendance,omitempty"`
	AvailableAttendances Quota             `json:"available_attendances"`
}

// ActiveAttendance joins an open ledger record with its user summary for the
// facility-wide active listing.
type ActiveAttendance struct {
	AttendanceRecord
	User User `json:"user"`
}

// MonthlyAttendanceStat is one month bucket of the yearly breakdown.
type MonthlyAttendanceStat struct {
	Month      string `json:"month"` // YYYY-MM
	GymCount   int    `json:"gym_count"`
	ClassCount int    `json:"class_count"`
}

// AttendanceStatsResponse summarizes a user's attendance for the current year.
type AttendanceStatsResponse struct {
	TotalGym     int                     `json:"total_gym"`
	TotalClasses int                     `json:"total_classes"`
	Monthly      []MonthlyAttendanceStat `json:"monthly"`
}

// HistoryFilter narrows a history query. From and To are inclusive; To is
// expected to already be extended to the end of its calendar day by the caller
// so that a same-day range is non-empty. A nil Type matches both kinds.
type HistoryFilter struct {
	From *time.Time
	To   *time.Time
	Type *AttendanceType
}
