package domain

import (
	"time"

	"github.com/google/uuid"
)

// Routing keys for attendance events published to the topic exchange.
const (
	EventAttendanceCheckedIn  = "attendance.checked_in"
	EventAttendanceCheckedOut = "attendance.checked_out"
)

type AttendanceCheckedInEvent struct {
	RecordID     uuid.UUID      `json:"record_id"`
	UserID       uuid.UUID      `json:"user_id"`
	Type         AttendanceType `json:"type"`
	EntranceTime time.Time      `json:"entrance_time"`
}

type AttendanceCheckedOutEvent struct {
	RecordID     uuid.UUID      `json:"record_id"`
	UserID       uuid.UUID      `json:"user_id"`
	Type         AttendanceType `json:"type"`
	EntranceTime time.Time      `json:"entrance_time"`
	ExitTime     time.Time      `json:"exit_time"`
}
