package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

const maxBodyBytes = 1 << 16

// AppointmentService is the part of *appointment.Service the handlers use.
type AppointmentService interface {
	BookAppointment(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, newStatus appointment.Status) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, f appointment.AppointmentFilter) ([]appointment.Appointment, error)
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
}

func bookAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appointment.BookingRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.BookAppointment(r.Context(), req)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentIDParam(w, r)
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.NewStatus == "" {
			writeError(w, http.StatusBadRequest, appointment.CodeValidation, "newStatus is required")
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, appointment.Status(req.NewStatus))
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := appointmentIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.AppointmentFilter

		if v := q.Get("doctorId"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, appointment.CodeValidation, "doctorId must be a valid UUID")
				return
			}
			f.DoctorID = &id
		}
		if v := q.Get("date"); v != "" {
			d, err := schedule.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, appointment.CodeValidation, "date must be YYYY-MM-DD")
				return
			}
			f.Date = &d
		}
		f.ActiveOnly = q.Get("active") == "true"

		var err error
		if f.Limit, err = intParam(q.Get("limit")); err != nil {
			writeError(w, http.StatusBadRequest, appointment.CodeValidation, "limit must be a non-negative integer")
			return
		}
		if f.Offset, err = intParam(q.Get("offset")); err != nil {
			writeError(w, http.StatusBadRequest, appointment.CodeValidation, "offset must be a non-negative integer")
			return
		}

		list, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		resp := AppointmentListResponse{
			Items: make([]AppointmentResponse, 0, len(list)),
			Count: len(list),
		}
		for i := range list {
			resp.Items = append(resp.Items, toAppointmentResponse(&list[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func availableSlotsHandler(svc AppointmentService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, appointment.CodeValidation, "id must be a valid UUID")
			return
		}
		date, err := schedule.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, appointment.CodeValidation, "date query parameter must be YYYY-MM-DD")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			handleServiceError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			DoctorID: doctorID,
			Date:     schedule.FormatDate(date),
			Slots:    slots,
		})
	}
}

func appointmentIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, appointment.CodeValidation, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, appointment.CodeValidation, "could not parse JSON body")
		return false
	}
	return true
}

// statusFor maps error codes to HTTP statuses.
func statusFor(code string) int {
	switch code {
	case appointment.CodeValidation:
		return http.StatusBadRequest
	case appointment.CodeDoctorNotFound, appointment.CodeNotFound:
		return http.StatusNotFound
	case appointment.CodeScheduleNotAvailable, appointment.CodeHoliday, appointment.CodeInvalidTimeSlot:
		return http.StatusUnprocessableEntity
	case appointment.CodeSlotTaken, appointment.CodeInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	code := appointment.ErrorCode(err)
	status := statusFor(code)

	details := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		details = "internal error"
		if errors.Is(err, context.DeadlineExceeded) {
			details = "request timed out"
		}
	}

	writeError(w, status, code, details)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
