package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type UpdateStatusRequest struct {
	NewStatus string `json:"newStatus"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	DoctorID    uuid.UUID `json:"doctorId"`
	PatientName string    `json:"patientName"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Status      string    `json:"status"`
	Notes       *string   `json:"notes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type AppointmentListResponse struct {
	Items []AppointmentResponse `json:"items"`
	Count int                   `json:"count"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID `json:"doctorId"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		DoctorID:    a.DoctorID,
		PatientName: a.PatientName,
		Email:       a.Email,
		Phone:       a.Phone,
		Date:        schedule.FormatDate(a.Date),
		Time:        a.Time,
		Status:      string(a.Status),
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
