/**
 * @description
 * This file defines the membership-catalog and subscription models. A user's
 * subscription is an append-only list of historic membership entries; each
 * entry is a frozen snapshot of the catalog row taken at purchase time, so
 * later catalog edits never rewrite what a user already bought.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Membership is a catalog entry: the current terms offered for purchase.
// Cost is stored in the smallest currency unit to avoid floating point.
type Membership struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Cost               int64     `json:"cost"`
	MaxClassesPerCycle int       `json:"max_classes_per_cycle"`
	MaxGymPerCycle     int       `json:"max_gym_per_cycle"`
	DurationMonths     int       `json:"duration_months"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// HistoricMembershipEntry is one immutable element of a user's subscription
// history. Quota limits are cumulative across every entry a user has ever
// purchased, not just the most recent one.
type HistoricMembershipEntry struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	MembershipID       uuid.UUID `json:"membership_id"`
	Name               string    `json:"name"`
	Cost               int64     `json:"cost"`
	MaxClassesPerCycle int       `json:"max_classes_per_cycle"`
	MaxGymPerCycle     int       `json:"max_gym_per_cycle"`
	DurationMonths     int       `json:"duration_months"`
	PurchaseDate       time.Time `json:"purchase_date"`
}

// SnapshotMembership freezes a catalog row into a historic entry for a user.
func SnapshotMembership(userID uuid.UUID, m *Membership, purchasedAt time.Time) *HistoricMembershipEntry {
	return &HistoricMembershipEntry{
		ID:                 uuid.New(),
		UserID:             userID,
		MembershipID:       m.ID,
		Name:               m.Name,
		Cost:               m.Cost,
		MaxClassesPerCycle: m.MaxClassesPerCycle,
		MaxGymPerCycle:     m.MaxGymPerCycle,
		DurationMonths:     m.DurationMonths,
		PurchaseDate:       purchasedAt.UTC(),
	}
}
