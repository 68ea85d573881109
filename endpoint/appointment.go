package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/medibook/medibook-api/middleware"
	"github.com/medibook/medibook-api/model"
	"github.com/medibook/medibook-api/util"
)

type BookAppointmentRequest struct {
	DoctorID uint   `json:"doctor_id" example:"1"`
	Date     string `json:"date" example:"2025-04-20"`
	Time     string `json:"time" example:"9:00 AM"`
	Type     string `json:"type" example:"Consultation"`
	Notes    string `json:"notes" example:"Recurring chest pain"`
}

// appointmentRow is the joined shape returned by the listing endpoints, with
// the doctor and patient names resolved for display.
type appointmentRow struct {
	ID          uint   `json:"id"`
	DoctorID    uint   `json:"doctor_id"`
	PatientID   uint   `json:"patient_id"`
	DoctorName  string `json:"doctor_name"`
	Specialty   string `json:"specialty"`
	PatientName string `json:"patient_name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Status      string `json:"status"`
	Type        string `json:"type"`
	Notes       string `json:"notes"`
}

func validateBookingRequest(req *BookAppointmentRequest) error {
	if req.DoctorID == 0 {
		return fmt.Errorf("doctor_id is required")
	}
	if req.Date == "" || req.Time == "" {
		return fmt.Errorf("date and time are required")
	}
	if !model.ValidSlotLabel(req.Time) {
		return fmt.Errorf("unknown slot label: %s", req.Time)
	}
	return nil
}

// parseBookingDate validates the date format and rejects dates in the past.
// Today is accepted.
func parseBookingDate(date string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date, expected YYYY-MM-DD: %w", err)
	}
	today, _ := time.Parse("2006-01-02", time.Now().Format("2006-01-02"))
	if parsed.Before(today) {
		return time.Time{}, fmt.Errorf("cannot book an appointment in the past")
	}
	return parsed, nil
}

// slotTaken checks inside the current transaction whether a non-cancelled
// appointment already holds the doctor/date/time slot.
func slotTaken(tx *gorm.DB, doctorID uint, date, slot string) (bool, error) {
	var count int64
	err := tx.Model(&model.Appointment{}).
		Where("doctor_id = ? AND date = ? AND time = ? AND status != ?",
			doctorID, date, slot, model.StatusCancelled).
		Count(&count).Error
	return count > 0, err
}

// isDuplicateSlot recognizes a unique-index violation on active_slot, the
// losing side of two bookings racing for the same slot.
func isDuplicateSlot(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}

// BookAppointment godoc
// @Summary      Book an appointment slot
// @Description  Create an appointment for the authenticated patient, rejecting past dates, closed days, and already-taken slots
// @Tags         Appointment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body BookAppointmentRequest true "Booking details"
// @Success      200 {object} util.APIResponse{data=model.Appointment} "Appointment booked"
// @Failure      400 {object} util.APIResponse "Invalid request, past date, closed day, or slot already booked"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      404 {object} util.APIResponse "Doctor not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /appointment [post]
func BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	if err := validateBookingRequest(&req); err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}

	bookingDate, err := parseBookingDate(req.Date)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: err.Error(), Err: err})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	patientID, ok := middleware.GetUserID(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "User not authenticated",
			Err: fmt.Errorf("user id not found in context"),
		})
		return
	}

	var doctor model.Doctor
	if err := db.First(&doctor, req.DoctorID).Error; err != nil {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Doctor not found", Err: err})
		return
	}

	weekday := strings.ToLower(bookingDate.Weekday().String())
	hours := doctor.WorkingHoursFor(weekday)
	if hours == "" || strings.EqualFold(hours, "Closed") {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Doctor is not available on the selected day",
			Err: fmt.Errorf("doctor %d is closed on %s", doctor.ID, weekday),
		})
		return
	}

	slotKey := model.SlotKey(doctor.ID, req.Date, req.Time)
	appointment := model.Appointment{
		DoctorID:   doctor.ID,
		PatientID:  patientID,
		Date:       req.Date,
		Time:       req.Time,
		Status:     model.StatusConfirmed,
		Type:       req.Type,
		Notes:      req.Notes,
		ActiveSlot: &slotKey,
	}

	// The count check gives a clean error message, but on its own it does not
	// close the race: under REPEATABLE READ two concurrent transactions can
	// both count zero and both insert. The unique index on active_slot is the
	// backstop, whichever insert commits second fails.
	err = db.Transaction(func(tx *gorm.DB) error {
		taken, err := slotTaken(tx, doctor.ID, req.Date, req.Time)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("slot already booked")
		}
		return tx.Create(&appointment).Error
	})
	if err != nil {
		if strings.Contains(err.Error(), "slot already booked") || isDuplicateSlot(err) {
			util.CallUserError(c, util.APIErrorParams{
				Msg: "Slot already booked",
				Err: err,
			})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to book appointment", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment booked", Data: appointment})
}

func fetchAppointments(db *gorm.DB, column string, id int) ([]appointmentRow, error) {
	type joinedRow struct {
		appointmentRow
		PatientFirstName string
		PatientLastName  string
	}
	var joined []joinedRow
	err := db.Table("appointments").
		Select(`appointments.id, appointments.doctor_id, appointments.patient_id,
			doctors.name as doctor_name, doctors.specialty,
			users.first_name as patient_first_name, users.last_name as patient_last_name,
			appointments.date, appointments.time, appointments.status,
			appointments.type, appointments.notes`).
		Joins("JOIN doctors ON doctors.id = appointments.doctor_id").
		Joins("JOIN users ON users.id = appointments.patient_id").
		Where(fmt.Sprintf("appointments.%s = ?", column), id).
		Where("appointments.deleted_at IS NULL").
		Order("appointments.date ASC, appointments.time ASC").
		Scan(&joined).Error
	if err != nil {
		return nil, err
	}

	rows := make([]appointmentRow, 0, len(joined))
	for _, j := range joined {
		row := j.appointmentRow
		row.PatientName = strings.TrimSpace(j.PatientFirstName + " " + j.PatientLastName)
		rows = append(rows, row)
	}
	return rows, nil
}

// ListPatientAppointments godoc
// @Summary      List a patient's appointments
// @Description  All appointments booked by the given patient, with doctor names resolved
// @Tags         Appointment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Patient user ID"
// @Success      200 {object} util.APIResponse{data=object} "Appointments retrieved"
// @Failure      400 {object} util.APIResponse "Invalid patient ID"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /appointment/patient/{id} [get]
func ListPatientAppointments(c *gin.Context) {
	patientID, err := strconv.Atoi(c.Param("id"))
	if err != nil || patientID <= 0 {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid patient ID",
			Err: fmt.Errorf("patient id must be a positive integer"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	rows, err := fetchAppointments(db, "patient_id", patientID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve appointments", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Appointments retrieved",
		Data: map[string]interface{}{"total_fetched": len(rows), "appointments": rows},
	})
}

// ListDoctorAppointments godoc
// @Summary      List a doctor's appointments
// @Description  All appointments on the given doctor's schedule, with patient names resolved
// @Tags         Appointment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Doctor ID"
// @Success      200 {object} util.APIResponse{data=object} "Appointments retrieved"
// @Failure      400 {object} util.APIResponse "Invalid doctor ID"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /appointment/doctor/{id} [get]
func ListDoctorAppointments(c *gin.Context) {
	doctorID, err := strconv.Atoi(c.Param("id"))
	if err != nil || doctorID <= 0 {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid doctor ID",
			Err: fmt.Errorf("doctor id must be a positive integer"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	rows, err := fetchAppointments(db, "doctor_id", doctorID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve appointments", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Appointments retrieved",
		Data: map[string]interface{}{"total_fetched": len(rows), "appointments": rows},
	})
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" example:"cancelled"`
}

// UpdateAppointmentStatus godoc
// @Summary      Update an appointment's status
// @Description  Move an appointment along its lifecycle; completed and cancelled are terminal
// @Tags         Appointment
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        id path int true "Appointment ID"
// @Param        request body UpdateAppointmentStatusRequest true "Target status"
// @Success      200 {object} util.APIResponse{data=model.Appointment} "Status updated"
// @Failure      400 {object} util.APIResponse "Unknown status or invalid status transition"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      404 {object} util.APIResponse "Appointment not found"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /appointment/{id}/status [patch]
func UpdateAppointmentStatus(c *gin.Context) {
	appointmentID, err := strconv.Atoi(c.Param("id"))
	if err != nil || appointmentID <= 0 {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid appointment ID",
			Err: fmt.Errorf("appointment id must be a positive integer"),
		})
		return
	}

	var req UpdateAppointmentStatusRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	if !model.ValidStatus(req.Status) {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Unknown appointment status",
			Err: fmt.Errorf("unknown status: %s", req.Status),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var appointment model.Appointment
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&appointment, appointmentID).Error; err != nil {
			return err
		}
		if !model.CanTransition(appointment.Status, req.Status) {
			return fmt.Errorf("invalid status transition from %s to %s", appointment.Status, req.Status)
		}
		appointment.Status = req.Status
		if req.Status == model.StatusCancelled {
			// Release the slot so it can be booked again.
			appointment.ActiveSlot = nil
		}
		return tx.Save(&appointment).Error
	})
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "invalid status transition"):
			util.CallUserError(c, util.APIErrorParams{Msg: "Invalid status transition", Err: err})
		case strings.Contains(err.Error(), "record not found"):
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Appointment not found", Err: err})
		default:
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update appointment", Err: err})
		}
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment status updated", Data: appointment})
}
