package model

import (
	"fmt"

	"gorm.io/gorm"
)

// Appointment statuses. Completed and cancelled are terminal.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// AppointmentSlots is the universal set of bookable slot labels: hourly slots
// with a midday gap. Working hours narrow a day to a subset of these only via
// the open/closed check.
var AppointmentSlots = []string{
	"9:00 AM", "10:00 AM", "11:00 AM", "1:00 PM", "2:00 PM", "3:00 PM", "4:00 PM",
}

// ActiveSlot carries a unique index and is NULL for cancelled appointments.
// The database therefore rejects a second booking for the same
// doctor/date/time even when two transactions race past the count check,
// while a cancelled slot can be booked again.
type Appointment struct {
	gorm.Model
	DoctorID   uint    `json:"doctor_id" gorm:"column:doctor_id;not null;index:idx_doctor_slot"`
	PatientID  uint    `json:"patient_id" gorm:"column:patient_id;not null;index"`
	Date       string  `json:"date" gorm:"column:date;size:10;index:idx_doctor_slot" example:"2025-04-20"`
	Time       string  `json:"time" gorm:"column:time;size:16;index:idx_doctor_slot" example:"9:00 AM"`
	Status     string  `json:"status" gorm:"column:status;size:16;default:confirmed"`
	Type       string  `json:"type" gorm:"column:type;size:64" example:"Consultation"`
	Notes      string  `json:"notes" gorm:"column:notes;type:text"`
	ActiveSlot *string `json:"-" gorm:"column:active_slot;size:64;uniqueIndex"`
}

// SlotKey builds the active_slot value for a doctor/date/time combination.
func SlotKey(doctorID uint, date, slot string) string {
	return fmt.Sprintf("%d|%s|%s", doctorID, date, slot)
}

var statusTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ValidStatus reports whether s is one of the four appointment statuses.
func ValidStatus(s string) bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether an appointment may move from one status to
// another under the lifecycle pending -> confirmed -> completed, with
// cancellation allowed from any non-terminal state.
func CanTransition(from, to string) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidSlotLabel reports whether the label is in the universal slot set.
func ValidSlotLabel(label string) bool {
	for _, s := range AppointmentSlots {
		if s == label {
			return true
		}
	}
	return false
}
