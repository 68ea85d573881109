package endpoint_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/medibook/medibook-api/model"
)

func listAppointments(t *testing.T, r http.Handler, token, side string, id uint) []interface{} {
	rr, err := doRequest(r, "GET", fmt.Sprintf("/appointment/%s/%d", side, id), nil, map[string]string{"session-token": token})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rr.Code)
	resp := ParseAPIResp(t, rr)
	data := ParseDataToMap(t, resp.Data)
	return data["appointments"].([]interface{})
}

func TestBookAppointment(t *testing.T) {
	r, _, token, userID := SetupServerWithUser(t, SignupCreds{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})

	monday := nextWeekday(time.Monday)
	rr := BookSlot(t, r, token, 1, monday, "9:00 AM")
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := ParseAPIResp(t, rr)
	data := ParseDataToMap(t, resp.Data)
	assert.Equal(t, model.StatusConfirmed, data["status"])
	assert.Equal(t, monday, data["date"])

	// The booking shows up on both the patient's and the doctor's schedule
	patientAppts := listAppointments(t, r, token, "patient", userID)
	assert.Len(t, patientAppts, 1)
	appt := patientAppts[0].(map[string]interface{})
	assert.Equal(t, "Dr. Sarah Johnson", appt["doctor_name"])
	assert.Equal(t, "Jane Doe", appt["patient_name"])
	assert.Equal(t, "9:00 AM", appt["time"])

	doctorAppts := listAppointments(t, r, token, "doctor", 1)
	assert.Len(t, doctorAppts, 1)
}

func TestBookAppointmentDoubleBookingRejected(t *testing.T) {
	r, _, token, _ := SetupServerWithUser(t, SignupCreds{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})
	otherToken, _ := CreateAndLoginUser(t, r, SignupCreds{
		FirstName: "John", LastName: "Smith", Email: "john@example.com", Password: "password123",
	})

	monday := nextWeekday(time.Monday)
	rr := BookSlot(t, r, token, 1, monday, "9:00 AM")
	assert.Equal(t, http.StatusOK, rr.Code)

	// A second patient cannot take the same doctor, date, and time
	rr = BookSlot(t, r, otherToken, 1, monday, "9:00 AM")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := ParseAPIResp(t, rr)
	assert.Equal(t, "Slot already booked", resp.Msg)

	// The same time with a different doctor is fine
	rr = BookSlot(t, r, otherToken, 2, monday, "9:00 AM")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBookAppointmentValidation(t *testing.T) {
	r, _, token, _ := SetupServerWithUser(t, SignupCreds{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})

	monday := nextWeekday(time.Monday)

	// Past dates are rejected
	rr := BookSlot(t, r, token, 1, "2020-01-06", "9:00 AM")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Unknown slot labels are rejected
	rr = BookSlot(t, r, token, 1, monday, "12:00 PM")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Closed days are rejected
	sunday := nextWeekday(time.Sunday)
	rr = BookSlot(t, r, token, 1, sunday, "9:00 AM")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Doctors without working hours cannot be booked
	rr = BookSlot(t, r, token, 3, monday, "9:00 AM")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Unknown doctor
	rr = BookSlot(t, r, token, 999, monday, "9:00 AM")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	// Booking requires a session
	body, _ := json.Marshal(map[string]interface{}{"doctor_id": 1, "date": monday, "time": "9:00 AM"})
	noAuth, err := doRequest(r, "POST", "/appointment", body, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, noAuth.Code)
}

func updateStatus(t *testing.T, r http.Handler, token string, appointmentID uint, status string) *apiRespWithCode {
	body, _ := json.Marshal(map[string]string{"status": status})
	rr, err := doRequest(r, "PATCH", fmt.Sprintf("/appointment/%d/status", appointmentID), body, map[string]string{"session-token": token})
	assert.NoError(t, err)
	resp := ParseAPIResp(t, rr)
	return &apiRespWithCode{apiResp: resp, Code: rr.Code}
}

type apiRespWithCode struct {
	apiResp
	Code int
}

func TestUpdateAppointmentStatus(t *testing.T) {
	r, db, token, _ := SetupServerWithUser(t, SignupCreds{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})

	monday := nextWeekday(time.Monday)
	rr := BookSlot(t, r, token, 1, monday, "9:00 AM")
	assert.Equal(t, http.StatusOK, rr.Code)
	resp := ParseAPIResp(t, rr)
	data := ParseDataToMap(t, resp.Data)
	apptID := uint(data["ID"].(float64))

	// confirmed -> completed
	out := updateStatus(t, r, token, apptID, model.StatusCompleted)
	assert.Equal(t, http.StatusOK, out.Code)

	var appt model.Appointment
	assert.NoError(t, db.First(&appt, apptID).Error)
	assert.Equal(t, model.StatusCompleted, appt.Status)

	// completed is terminal
	out = updateStatus(t, r, token, apptID, model.StatusCancelled)
	assert.Equal(t, http.StatusBadRequest, out.Code)
	assert.Equal(t, "Invalid status transition", out.Msg)

	// unknown status values are rejected before the lookup
	out = updateStatus(t, r, token, apptID, "rescheduled")
	assert.Equal(t, http.StatusBadRequest, out.Code)
	assert.Equal(t, "Unknown appointment status", out.Msg)

	// missing appointment
	out = updateStatus(t, r, token, 999, model.StatusCancelled)
	assert.Equal(t, http.StatusNotFound, out.Code)
}

func TestCancellationFreesSlot(t *testing.T) {
	r, _, token, _ := SetupServerWithUser(t, SignupCreds{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})

	monday := nextWeekday(time.Monday)
	rr := BookSlot(t, r, token, 1, monday, "9:00 AM")
	assert.Equal(t, http.StatusOK, rr.Code)
	resp := ParseAPIResp(t, rr)
	apptID := uint(ParseDataToMap(t, resp.Data)["ID"].(float64))

	assert.Len(t, getSlots(t, r, 1, monday), 6)

	out := updateStatus(t, r, token, apptID, model.StatusCancelled)
	assert.Equal(t, http.StatusOK, out.Code)

	// The cancelled slot is bookable again
	assert.Len(t, getSlots(t, r, 1, monday), 7)
	rr = BookSlot(t, r, token, 1, monday, "9:00 AM")
	assert.Equal(t, http.StatusOK, rr.Code)
}
