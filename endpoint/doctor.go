package endpoint

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/medibook/medibook-api/model"
	"github.com/medibook/medibook-api/util"
)

type doctorListQuery struct {
	Limit         int
	Offset        int
	Keyword       string
	Specialty     string
	AvailableOnly bool
	MaxDistance   int
}

func parseDoctorQueryParams(c *gin.Context) doctorListQuery {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	// max_distance is accepted for forward compatibility but not applied:
	// doctor locations are free-form text and carry no coordinates.
	maxDistance, _ := strconv.Atoi(c.Query("max_distance"))
	availableOnly := strings.EqualFold(c.Query("available_only"), "true")
	return doctorListQuery{
		Limit:         limit,
		Offset:        offset,
		Keyword:       c.Query("keyword"),
		Specialty:     c.Query("specialty"),
		AvailableOnly: availableOnly,
		MaxDistance:   maxDistance,
	}
}

func fetchDoctors(db *gorm.DB, params doctorListQuery) ([]model.Doctor, int64, error) {
	var doctors []model.Doctor
	var totalDoctor int64
	query := db.Order("doctors.rating DESC")

	if params.Limit > 0 {
		query = query.Limit(params.Limit)
	}
	if params.Offset > 0 {
		query = query.Offset(params.Offset)
	}
	if params.Specialty != "" && !strings.EqualFold(params.Specialty, "all") {
		query = query.Where("specialty = ?", params.Specialty)
	}
	if params.AvailableOnly {
		query = query.Where("available = ?", true)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("name LIKE ? OR specialty LIKE ? OR location LIKE ?", kw, kw, kw)
	}

	if err := query.Find(&doctors).Error; err != nil {
		return nil, 0, err
	}

	db.Model(&model.Doctor{}).Count(&totalDoctor)
	return doctors, totalDoctor, nil
}

// ListDoctors godoc
// @Summary      List doctors in the directory
// @Description  Get a paginated list of doctors with optional specialty, keyword, and availability filters
// @Tags         Doctor
// @Accept       json
// @Produce      json
// @Param        limit query int false "Limit number of results"
// @Param        offset query int false "Offset for pagination"
// @Param        specialty query string false "Filter by specialty (use 'all' or omit for no filter)"
// @Param        keyword query string false "Search keyword for doctor name, specialty, or location"
// @Param        available_only query bool false "Only return doctors currently accepting appointments"
// @Param        max_distance query int false "Accepted but currently ignored"
// @Success      200 {object} util.APIResponse{data=object} "Doctors retrieved"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /doctor [get]
func ListDoctors(c *gin.Context) {
	params := parseDoctorQueryParams(c)

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	doctors, totalDoctor, err := fetchDoctors(db, params)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve doctors", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Doctors retrieved",
		Data: map[string]interface{}{
			"total":         totalDoctor,
			"total_fetched": len(doctors),
			"doctors":       doctors,
		},
	})
}

// GetDoctorInfo godoc
// @Summary      Get a single doctor's full profile
// @Description  Retrieve one doctor by ID, including education, services, and testimonials
// @Tags         Doctor
// @Accept       json
// @Produce      json
// @Param        id path int true "Doctor ID"
// @Success      200 {object} util.APIResponse{data=model.Doctor} "Doctor retrieved"
// @Failure      400 {object} util.APIResponse "Invalid doctor ID"
// @Failure      404 {object} util.APIResponse "Doctor not found"
// @Router       /doctor/{id} [get]
func GetDoctorInfo(c *gin.Context) {
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

	var doctor model.Doctor
	if err := db.First(&doctor, doctorID).Error; err != nil {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Doctor not found", Err: err})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Doctor retrieved", Data: doctor})
}

// bookedSlots returns the non-cancelled appointment times already taken
// for a doctor on the given date.
func bookedSlots(db *gorm.DB, doctorID int, date string) ([]string, error) {
	var times []string
	err := db.Model(&model.Appointment{}).
		Where("doctor_id = ? AND date = ? AND status != ?", doctorID, date, model.StatusCancelled).
		Pluck("time", &times).Error
	return times, err
}

// availableSlotsFor computes the open slot labels for a doctor on the given
// weekday, removing any time already booked. A "Closed" day or a doctor
// without working hours yields an empty list.
func availableSlotsFor(doctor *model.Doctor, weekday string, booked []string) []string {
	hours := doctor.WorkingHoursFor(weekday)
	if hours == "" || strings.EqualFold(hours, "Closed") {
		return []string{}
	}

	slots := []string{}
	for _, slot := range model.AppointmentSlots {
		if !util.Contains(slot, booked) {
			slots = append(slots, slot)
		}
	}
	return slots
}

// GetDoctorSlots godoc
// @Summary      Get a doctor's available appointment slots for a date
// @Description  Returns the open slot labels for the given date, excluding booked times and closed days
// @Tags         Doctor
// @Accept       json
// @Produce      json
// @Param        id path int true "Doctor ID"
// @Param        date query string true "Date in YYYY-MM-DD format"
// @Success      200 {object} util.APIResponse{data=object} "Slots retrieved"
// @Failure      400 {object} util.APIResponse "Invalid doctor ID or date"
// @Failure      404 {object} util.APIResponse "Doctor not found"
// @Router       /doctor/{id}/slots [get]
func GetDoctorSlots(c *gin.Context) {
	doctorID, err := strconv.Atoi(c.Param("id"))
	if err != nil || doctorID <= 0 {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid doctor ID",
			Err: fmt.Errorf("doctor id must be a positive integer"),
		})
		return
	}

	dateParam := c.Query("date")
	date, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Invalid date, expected YYYY-MM-DD",
			Err: err,
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var doctor model.Doctor
	if err := db.First(&doctor, doctorID).Error; err != nil {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Doctor not found", Err: err})
		return
	}

	booked, err := bookedSlots(db, doctorID, dateParam)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve booked slots", Err: err})
		return
	}

	weekday := strings.ToLower(date.Weekday().String())
	slots := availableSlotsFor(&doctor, weekday, booked)

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg: "Slots retrieved",
		Data: map[string]interface{}{
			"date":  dateParam,
			"day":   weekday,
			"slots": slots,
		},
	})
}
