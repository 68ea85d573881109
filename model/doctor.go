package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Doctor is a directory entry. Directory fields are always present; the
// extended profile columns (education, working hours, testimonials, ...) are
// optional JSON documents and may be null for doctors without a full profile.
// Email links the entry to a registered user account with the Doctor role.
type Doctor struct {
	gorm.Model
	Name            string         `json:"name" gorm:"column:name" example:"Dr. Sarah Johnson"`
	Email           string         `json:"email,omitempty" gorm:"column:email;index;size:191" example:"sarah@medibook.example"`
	Specialty       string         `json:"specialty" gorm:"column:specialty;index" example:"Cardiologist"`
	Rating          float64        `json:"rating" gorm:"column:rating" example:"4.8"`
	Reviews         int            `json:"reviews" gorm:"column:reviews" example:"124"`
	Location        string         `json:"location" gorm:"column:location" example:"New York Medical Center, 123 Health St, New York, NY"`
	ExperienceYears int            `json:"experience" gorm:"column:experience_years" example:"12"`
	ImageURL        string         `json:"image" gorm:"column:image_url"`
	Available       bool           `json:"available" gorm:"column:available;default:true"`
	NextAvailable   string         `json:"next_available" gorm:"column:next_available" example:"Today"`
	About           string         `json:"about,omitempty" gorm:"column:about;type:text"`
	Education       datatypes.JSON `json:"education,omitempty" gorm:"column:education;type:json"`
	Specializations datatypes.JSON `json:"specializations,omitempty" gorm:"column:specializations;type:json"`
	Languages       datatypes.JSON `json:"languages,omitempty" gorm:"column:languages;type:json"`
	Insurance       datatypes.JSON `json:"insurance,omitempty" gorm:"column:insurance;type:json"`
	WorkingHours    datatypes.JSON `json:"working_hours,omitempty" gorm:"column:working_hours;type:json"`
	Services        datatypes.JSON `json:"services,omitempty" gorm:"column:services;type:json"`
	Testimonials    datatypes.JSON `json:"testimonials,omitempty" gorm:"column:testimonials;type:json"`
}

// WorkingHoursFor returns the hours label for a lowercase weekday name
// ("monday".."sunday"). It returns "" when the doctor has no working hours on
// record or the day is missing from the document.
func (d *Doctor) WorkingHoursFor(day string) string {
	if len(d.WorkingHours) == 0 {
		return ""
	}
	var hours map[string]string
	if err := json.Unmarshal(d.WorkingHours, &hours); err != nil {
		return ""
	}
	return hours[strings.ToLower(day)]
}

func mustJSON(v interface{}) datatypes.JSON {
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

// SeedDoctors populates the directory with the sample catalog when the table
// is empty. Existing rows are left untouched so registered doctors and edits
// survive restarts.
func SeedDoctors(db *gorm.DB) error {
	var count int64
	if err := db.Model(&Doctor{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	weekdayHours := func(friday, saturday string) datatypes.JSON {
		return mustJSON(map[string]string{
			"monday":    "9:00 AM - 5:00 PM",
			"tuesday":   "9:00 AM - 5:00 PM",
			"wednesday": "9:00 AM - 5:00 PM",
			"thursday":  "9:00 AM - 5:00 PM",
			"friday":    friday,
			"saturday":  saturday,
			"sunday":    "Closed",
		})
	}

	doctors := []Doctor{
		{
			Name:            "Dr. Sarah Johnson",
			Specialty:       "Cardiologist",
			Rating:          4.8,
			Reviews:         124,
			Location:        "New York Medical Center, 123 Health St, New York, NY",
			ExperienceYears: 12,
			ImageURL:        "https://randomuser.me/api/portraits/women/68.jpg",
			Available:       true,
			NextAvailable:   "Today",
			About:           "Board-certified cardiologist with over 12 years of experience in preventive cardiology, heart failure management, and cardiac rehabilitation.",
			Education: mustJSON([]map[string]string{
				{"degree": "MD", "institution": "Harvard Medical School", "year": "2005-2009"},
				{"degree": "Residency", "institution": "Johns Hopkins Hospital", "year": "2009-2012"},
				{"degree": "Fellowship", "institution": "Mayo Clinic", "year": "2012-2014"},
			}),
			Specializations: mustJSON([]string{"General Cardiology", "Preventive Cardiology", "Heart Failure", "Cardiac Rehabilitation"}),
			Languages:       mustJSON([]string{"English", "Spanish"}),
			Insurance:       mustJSON([]string{"Blue Cross", "Aetna", "Cigna", "Medicare"}),
			WorkingHours:    weekdayHours("9:00 AM - 3:00 PM", "Closed"),
			Services:        mustJSON([]string{"Consultation", "ECG", "Stress Test", "Echocardiogram", "Holter Monitoring"}),
			Testimonials: mustJSON([]map[string]interface{}{
				{"id": 1, "name": "John D.", "rating": 5, "comment": "Dr. Johnson was incredibly thorough and took the time to explain everything in detail. Highly recommend!"},
				{"id": 2, "name": "Maria S.", "rating": 4, "comment": "Very professional and knowledgeable. The wait time was a bit long, but the care was excellent."},
				{"id": 3, "name": "Robert L.", "rating": 5, "comment": "Dr. Johnson helped me manage my heart condition and improved my quality of life significantly."},
			}),
		},
		{
			Name:            "Dr. Michael Chen",
			Specialty:       "Dermatologist",
			Rating:          4.9,
			Reviews:         89,
			Location:        "San Francisco, CA",
			ExperienceYears: 8,
			ImageURL:        "https://randomuser.me/api/portraits/men/32.jpg",
			Available:       true,
			NextAvailable:   "Tomorrow",
			About:           "Dermatologist specializing in both medical and cosmetic dermatology, treating conditions like acne, eczema, and psoriasis.",
			Education: mustJSON([]map[string]string{
				{"degree": "MD", "institution": "Stanford Medical School", "year": "2010-2014"},
				{"degree": "Residency", "institution": "UCSF Medical Center", "year": "2014-2018"},
			}),
			Specializations: mustJSON([]string{"Medical Dermatology", "Cosmetic Dermatology", "Skin Cancer Screening"}),
			Languages:       mustJSON([]string{"English", "Mandarin"}),
			Insurance:       mustJSON([]string{"Blue Cross", "United Healthcare", "Kaiser"}),
			WorkingHours: mustJSON(map[string]string{
				"monday":    "8:00 AM - 4:00 PM",
				"tuesday":   "8:00 AM - 4:00 PM",
				"wednesday": "10:00 AM - 6:00 PM",
				"thursday":  "8:00 AM - 4:00 PM",
				"friday":    "8:00 AM - 3:00 PM",
				"saturday":  "9:00 AM - 12:00 PM",
				"sunday":    "Closed",
			}),
		},
		{
			Name:            "Dr. Emily Rodriguez",
			Specialty:       "Pediatrician",
			Rating:          4.7,
			Reviews:         156,
			Location:        "Chicago, IL",
			ExperienceYears: 15,
			ImageURL:        "https://randomuser.me/api/portraits/women/45.jpg",
			Available:       true,
			NextAvailable:   "Today",
		},
		{
			Name:            "Dr. James Wilson",
			Specialty:       "Neurologist",
			Rating:          4.6,
			Reviews:         78,
			Location:        "Boston, MA",
			ExperienceYears: 20,
			ImageURL:        "https://randomuser.me/api/portraits/men/46.jpg",
			Available:       false,
			NextAvailable:   "Next Week",
		},
		{
			Name:            "Dr. Sophia Patel",
			Specialty:       "Psychiatrist",
			Rating:          4.9,
			Reviews:         112,
			Location:        "Austin, TX",
			ExperienceYears: 10,
			ImageURL:        "https://randomuser.me/api/portraits/women/33.jpg",
			Available:       true,
			NextAvailable:   "Tomorrow",
		},
		{
			Name:            "Dr. Robert Kim",
			Specialty:       "Orthopedic Surgeon",
			Rating:          4.8,
			Reviews:         94,
			Location:        "Seattle, WA",
			ExperienceYears: 14,
			ImageURL:        "https://randomuser.me/api/portraits/men/22.jpg",
			Available:       true,
			NextAvailable:   "Today",
		},
	}

	for i := range doctors {
		if err := db.Create(&doctors[i]).Error; err != nil {
			return fmt.Errorf("failed to seed doctor %s: %w", doctors[i].Name, err)
		}
	}
	return nil
}
