package endpoint_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/medibook/medibook-api/config"
	"github.com/medibook/medibook-api/endpoint"
	"github.com/medibook/medibook-api/middleware"
	"github.com/medibook/medibook-api/model"
)

type apiResp struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// doRequest performs an HTTP request against the router and returns the recorder.
func doRequest(r http.Handler, method, path string, body []byte, headers map[string]string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr, nil
}

// SetupTestServer initializes DB, migrates models, seeds roles and the doctor
// directory, and returns a Gin router and a cleanup function that drops tables.
// It calls t.Fatalf on fatal errors.
func SetupTestServer(t *testing.T) (*gin.Engine, *gorm.DB, func()) {
	db, err := config.ConnectMySQL()
	if err != nil {
		t.Fatalf("failed to connect test DB: %v", err)
	}

	testModels := []interface{}{
		&model.User{}, &model.Role{}, &model.Session{}, &model.Doctor{}, &model.Appointment{}, &model.SecurityLog{},
	}

	if err := db.AutoMigrate(testModels...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	if err := model.SeedRoles(db); err != nil {
		t.Fatalf("seeding roles failed: %v", err)
	}
	if err := model.SeedDoctors(db); err != nil {
		t.Fatalf("seeding doctor directory failed: %v", err)
	}

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.DatabaseMiddleware(db))

	// Public routes used by tests
	r.POST("/signup", endpoint.Signup)
	r.POST("/login", endpoint.Login)
	r.GET("/token/validate", endpoint.ValidateToken)
	r.GET("/doctor", endpoint.ListDoctors)
	r.GET("/doctor/:id", endpoint.GetDoctorInfo)
	r.GET("/doctor/:id/slots", endpoint.GetDoctorSlots)

	// Protected routes used by tests
	auth := r.Group("/")
	auth.Use(middleware.SessionAuth())
	{
		auth.DELETE("/logout", endpoint.Logout)
		auth.POST("/verify-password", endpoint.VerifyPassword)
		auth.PATCH("/user/profile", endpoint.UpdateProfile)
		auth.POST("/appointment", endpoint.BookAppointment)
		auth.GET("/appointment/patient/:id", endpoint.ListPatientAppointments)
		auth.GET("/appointment/doctor/:id", endpoint.ListDoctorAppointments)
		auth.PATCH("/appointment/:id/status", endpoint.UpdateAppointmentStatus)
		auth.GET("/user", middleware.RequireRole(db, model.RoleAdmin), endpoint.ListUsers)
	}

	cleanup := func() {
		if err := db.Migrator().DropTable(testModels...); err != nil {
			t.Errorf("failed to drop tables during cleanup: %v", err)
		}
	}

	return r, db, cleanup
}

// SignupCreds holds the fields needed to register and log in a test user.
type SignupCreds struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	UserType  string
}

// CreateAndLoginUser signs up a user and returns the session token and user id
// from the signup response. Signup signs the user in directly, so no separate
// login request is needed. It fails the test on error.
func CreateAndLoginUser(t *testing.T, r http.Handler, creds SignupCreds) (string, uint) {
	signupBody := map[string]string{
		"first_name": creds.FirstName,
		"last_name":  creds.LastName,
		"email":      creds.Email,
		"password":   creds.Password,
		"user_type":  creds.UserType,
	}
	b, _ := json.Marshal(signupBody)
	rr, err := doRequest(r, "POST", "/signup", b, nil)
	if err != nil {
		t.Fatalf("signup %s failed: %v", creds.Email, err)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("signup %s returned non-200: %d %s", creds.Email, rr.Code, rr.Body.String())
	}

	resp := ParseAPIResp(t, rr)
	var data struct {
		Token  string `json:"token"`
		Role   string `json:"role"`
		UserID uint   `json:"user_id"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("parse signup data failed: %v", err)
	}
	return data.Token, data.UserID
}

// SetupServerWithUser initializes the server and returns a logged-in user session.
func SetupServerWithUser(t *testing.T, creds SignupCreds) (*gin.Engine, *gorm.DB, string, uint) {
	r, db, cleanup := SetupTestServer(t)
	t.Cleanup(cleanup)

	token, userID := CreateAndLoginUser(t, r, creds)
	return r, db, token, userID
}

// PromoteToAdmin reassigns a user to the admin role and refreshes the session
// role mapping by logging in again. Admin accounts are never created via the
// public signup endpoint.
func PromoteToAdmin(t *testing.T, db *gorm.DB, r http.Handler, email, password string) string {
	adminRoleID, err := model.RoleIDByName(db, model.RoleAdmin)
	if err != nil {
		t.Fatalf("admin role lookup failed: %v", err)
	}
	if err := db.Model(&model.User{}).Where("email = ?", email).Update("role_id", adminRoleID).Error; err != nil {
		t.Fatalf("promoting %s to admin failed: %v", email, err)
	}

	loginBody := map[string]string{"email": email, "password": password}
	b, _ := json.Marshal(loginBody)
	rr, err := doRequest(r, "POST", "/login", b, nil)
	if err != nil {
		t.Fatalf("admin login failed: %v", err)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("admin login returned non-200: %d %s", rr.Code, rr.Body.String())
	}
	resp := ParseAPIResp(t, rr)
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("parse admin login data failed: %v", err)
	}
	return data.Token
}

// ParseAPIResp decodes a standard API response from a ResponseRecorder.
// It fails the test on decoding error.
func ParseAPIResp(t *testing.T, rr *httptest.ResponseRecorder) apiResp {
	var resp apiResp
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response failed: %v; body: %s", err, rr.Body.String())
	}
	return resp
}

// ParseDataToMap unmarshals an API response Data field into a map[string]interface{}.
// It fails the test on error.
func ParseDataToMap(t *testing.T, raw json.RawMessage) map[string]interface{} {
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("parse data failed: %v", err)
	}
	return data
}

// BookSlot books an appointment and returns the recorder for assertions.
func BookSlot(t *testing.T, r http.Handler, token string, doctorID uint, date, slot string) *httptest.ResponseRecorder {
	body := map[string]interface{}{
		"doctor_id": doctorID,
		"date":      date,
		"time":      slot,
		"type":      "Consultation",
	}
	b, _ := json.Marshal(body)
	rr, err := doRequest(r, "POST", "/appointment", b, map[string]string{"session-token": token})
	if err != nil {
		t.Fatalf("book appointment request failed: %v", err)
	}
	return rr
}
