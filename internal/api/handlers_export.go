/**
 * @description
 * This file contains the handler for exporting a user's attendance history as
 * an Excel workbook. It reuses the same filter parsing as the JSON history
 * endpoint and streams the generated file back to the caller.
 *
 * @dependencies
 * - github.com/xuri/excelize/v2: XLSX generation.
 */

package api

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fitcore/attendance-service/internal/app"
	"github.com/fitcore/attendance-service/internal/store"
)

// HistoryExportHandler handles GET /attendance/{userID}/history/export.
// It accepts the same from/to/type query parameters as HistoryHandler and
// returns the matching records as an .xlsx attachment.
func (h *AttendanceHandlers) HistoryExportHandler(w http.ResponseWriter, r *http.Request) {
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
			log.Printf("level=error component=api endpoint=history_export user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{"date", "type", "entrance_time", "exit_time"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		log.Printf("level=error component=api endpoint=history_export user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	row := 2
	for _, record := range records {
		exitTime := ""
		if record.ExitTime != nil {
			exitTime = record.ExitTime.UTC().Format(time.RFC3339)
		}
		excelRow := []interface{}{
			record.DateKey,
			string(record.Type),
			record.EntranceTime.UTC().Format(time.RFC3339),
			exitTime,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			log.Printf("level=error component=api endpoint=history_export user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			log.Printf("level=error component=api endpoint=history_export user_id=%s err=%v", userID, err)
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		log.Printf("level=error component=api endpoint=history_export user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	filename := fmt.Sprintf("attendance_%s.xlsx", userID)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
