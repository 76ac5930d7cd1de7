/**
 * @description
 * This file contains the HTTP handlers for the attendance-service's API
 * endpoints. Handlers parse incoming requests, call the appropriate methods on
 * the application service, and write the HTTP response. Every error kind maps
 * to exactly one status code; unexpected failures become a generic 500 with
 * the cause logged, never leaked.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http, time: Standard Go libraries.
 * - github.com/go-chi/chi/v5, github.com/google/uuid: Routing and identifiers.
 * - internal/app, internal/domain, internal/store: Service logic, models, and error kinds.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fitcore/attendance-service/internal/app"
	"github.com/fitcore/attendance-service/internal/domain"
	"github.com/fitcore/attendance-service/internal/store"
)

// AttendanceHandlers holds the application service that handlers will use.
type AttendanceHandlers struct {
	service *app.Service
}

// NewAttendanceHandlers creates a new instance of AttendanceHandlers.
func NewAttendanceHandlers(service *app.Service) *AttendanceHandlers {
	return &AttendanceHandlers{service: service}
}

type checkInRequest struct {
	Type string `json:"type"`
}

// CheckInHandler handles POST /attendance/{userID}/check-in.
func (h *AttendanceHandlers) CheckInHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	attendanceType, err := domain.ParseAttendanceType(req.Type)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.service.CheckIn(r.Context(), userID, attendanceType)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, store.ErrAlreadyCheckedIn):
			h.writeError(w, http.StatusConflict, "User is already checked in")
		case errors.Is(err, app.ErrNoAvailableAttendances):
			checkInDenials.WithLabelValues(string(attendanceType)).Inc()
			h.writeError(w, http.StatusForbidden, "No available attendances for the requested type")
		default:
			log.Printf("level=error component=api endpoint=check_in user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	checkIns.WithLabelValues(string(record.Type)).Inc()
	log.Printf("level=info component=api endpoint=check_in outcome=accepted user_id=%s type=%s", userID, record.Type)
	h.writeJSON(w, http.StatusCreated, record)
}

// CheckOutHandler handles POST /attendance/{userID}/check-out.
func (h *AttendanceHandlers) CheckOutHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}

	record, err := h.service.CheckOut(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, store.ErrNotCheckedIn):
			h.writeError(w, http.StatusConflict, "User is not checked in")
		default:
			log.Printf("level=error component=api endpoint=check_out user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	checkOuts.WithLabelValues(string(record.Type)).Inc()
	log.Printf("level=info component=api endpoint=check_out outcome=accepted user_id=%s type=%s", userID, record.Type)
	h.writeJSON(w, http.StatusOK, record)
}

// StatusHandler handles GET /attendance/{userID}/status.
func (h *AttendanceHandlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}

	status, err := h.service.Status(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("level=error component=api endpoint=status user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// HistoryHandler handles GET /attendance/{userID}/history.
func (h *AttendanceHandlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}

	filter, err := parseHistoryFilter(r.URL.Query().Get("from"), r.URL.Query().Get("to"), r.URL.Query().Get("type"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.service.History(r.Context(), userID, filter)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, app.ErrInvalidDateRange):
			h.writeError(w, http.StatusBadRequest, "Invalid date range")
		default:
			log.Printf("level=error component=api endpoint=history user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}
	if records == nil {
		records = []domain.AttendanceRecord{}
	}

	h.writeJSON(w, http.StatusOK, records)
}

// ActiveHandler handles GET /attendance/active.
func (h *AttendanceHandlers) ActiveHandler(w http.ResponseWriter, r *http.Request) {
	active, err := h.service.ActiveAttendances(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=active err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if active == nil {
		active = []domain.ActiveAttendance{}
	}

	h.writeJSON(w, http.StatusOK, active)
}

// StatsHandler handles GET /attendance/{userID}/stats.
func (h *AttendanceHandlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}

	stats, err := h.service.YearlyStats(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("level=error component=api endpoint=stats user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// MembershipsHandler handles GET /memberships.
func (h *AttendanceHandlers) MembershipsHandler(w http.ResponseWriter, r *http.Request) {
	memberships, err := h.service.Memberships(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=memberships err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if memberships == nil {
		memberships = []domain.Membership{}
	}

	h.writeJSON(w, http.StatusOK, memberships)
}

// PurchaseMembershipHandler handles POST /users/{userID}/subscription/{membershipID}.
func (h *AttendanceHandlers) PurchaseMembershipHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}
	membershipID, err := uuid.Parse(chi.URLParam(r, "membershipID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid membership ID format")
		return
	}

	entry, err := h.service.PurchaseMembership(r.Context(), userID, membershipID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUserNotFound):
			h.writeError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, store.ErrMembershipNotFound):
			h.writeError(w, http.StatusNotFound, "Membership not found")
		default:
			log.Printf("level=error component=api endpoint=purchase_membership user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	log.Printf("level=info component=api endpoint=purchase_membership outcome=accepted user_id=%s membership_id=%s", userID, membershipID)
	h.writeJSON(w, http.StatusCreated, entry)
}

// parseHistoryFilter interprets the from/to/type query parameters. Bounds are
// inclusive calendar days; "to" is extended to the last millisecond of its day
// so a same-day range is non-empty.
func parseHistoryFilter(fromRaw, toRaw, typeRaw string) (domain.HistoryFilter, error) {
	var filter domain.HistoryFilter

	if fromRaw = strings.TrimSpace(fromRaw); fromRaw != "" {
		from, err := time.ParseInLocation("2006-01-02", fromRaw, time.UTC)
		if err != nil {
			return filter, fmt.Errorf("invalid 'from' date %q: expected YYYY-MM-DD", fromRaw)
		}
		filter.From = &from
	}
	if toRaw = strings.TrimSpace(toRaw); toRaw != "" {
		to, err := time.ParseInLocation("2006-01-02", toRaw, time.UTC)
		if err != nil {
			return filter, fmt.Errorf("invalid 'to' date %q: expected YYYY-MM-DD", toRaw)
		}
		endOfDay := to.Add(24*time.Hour - time.Millisecond)
		filter.To = &endOfDay
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return filter, errors.New("invalid date range: 'from' must not be after 'to'")
	}
	if typeRaw = strings.TrimSpace(typeRaw); typeRaw != "" {
		attendanceType, err := domain.ParseAttendanceType(typeRaw)
		if err != nil {
			return filter, err
		}
		filter.Type = &attendanceType
	}

	return filter, nil
}

func (h *AttendanceHandlers) parseUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

func (h *AttendanceHandlers) writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *AttendanceHandlers) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
