package endpoint_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medibook/medibook-api/model"
)

func TestSignupAndLogin(t *testing.T) {
	r, _, cleanup := SetupTestServer(t)
	t.Cleanup(cleanup)

	// Signup returns a session token right away
	token, userID := CreateAndLoginUser(t, r, SignupCreds{
		FirstName: "  Jane ", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})
	assert.NotEmpty(t, token)
	assert.NotZero(t, userID)

	// Login with the same credentials
	loginBody := map[string]string{"email": "jane@example.com", "password": "password123"}
	b, _ := json.Marshal(loginBody)
	rr, err := doRequest(r, "POST", "/login", b, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := ParseAPIResp(t, rr)
	data := ParseDataToMap(t, resp.Data)
	assert.Equal(t, "Patient", data["role"])
	assert.NotEmpty(t, data["token"])
	// Whitespace is normalized on signup
	assert.Equal(t, "Jane", data["first_name"])
	assert.Equal(t, "Doe", data["last_name"])
}

func TestLoginWrongPassword(t *testing.T) {
	r, _, cleanup := SetupTestServer(t)
	t.Cleanup(cleanup)

	CreateAndLoginUser(t, r, SignupCreds{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})

	loginBody := map[string]string{"email": "jane@example.com", "password": "wrongpassword"}
	b, _ := json.Marshal(loginBody)
	rr, err := doRequest(r, "POST", "/login", b, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	resp := ParseAPIResp(t, rr)
	assert.Equal(t, "Invalid email or password", resp.Msg)
}

func TestLoginUnknownEmail(t *testing.T) {
	r, _, cleanup := SetupTestServer(t)
	t.Cleanup(cleanup)

	loginBody := map[string]string{"email": "nobody@example.com", "password": "password123"}
	b, _ := json.Marshal(loginBody)
	rr, err := doRequest(r, "POST", "/login", b, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Same message as a wrong password so the endpoint does not reveal
	// whether the email is registered.
	resp := ParseAPIResp(t, rr)
	assert.Equal(t, "Invalid email or password", resp.Msg)
}

func TestSignupDuplicateEmail(t *testing.T) {
	r, _, cleanup := SetupTestServer(t)
	t.Cleanup(cleanup)

	CreateAndLoginUser(t, r, SignupCreds{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})

	signupBody := map[string]string{
		"first_name": "Janet", "last_name": "Doe",
		"email": "jane@example.com", "password": "password456",
	}
	b, _ := json.Marshal(signupBody)
	rr, err := doRequest(r, "POST", "/signup", b, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	resp := ParseAPIResp(t, rr)
	assert.Equal(t, "Email already exists", resp.Msg)
}

func TestSignupMissingFields(t *testing.T) {
	r, _, cleanup := SetupTestServer(t)
	t.Cleanup(cleanup)

	signupBody := map[string]string{"email": "incomplete@example.com"}
	b, _ := json.Marshal(signupBody)
	rr, err := doRequest(r, "POST", "/signup", b, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSignupDoctorCreatesDirectoryEntry(t *testing.T) {
	r, db, cleanup := SetupTestServer(t)
	t.Cleanup(cleanup)

	signupBody := map[string]string{
		"first_name": "Gregory", "last_name": "House",
		"email": "house@example.com", "password": "password123",
		"user_type": "doctor", "specialty": "Diagnostics", "location": "Princeton, NJ",
	}
	b, _ := json.Marshal(signupBody)
	rr, err := doRequest(r, "POST", "/signup", b, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rr.Code)

	resp := ParseAPIResp(t, rr)
	data := ParseDataToMap(t, resp.Data)
	assert.Equal(t, model.RoleDoctor, data["role"])

	var doctor model.Doctor
	err = db.Where("email = ?", "house@example.com").First(&doctor).Error
	assert.NoError(t, err)
	assert.Equal(t, "Dr. Gregory House", doctor.Name)
	assert.Equal(t, "Diagnostics", doctor.Specialty)
	assert.True(t, doctor.Available)
}

func TestAccountLockoutAfterFailedAttempts(t *testing.T) {
	r, db, cleanup := SetupTestServer(t)
	t.Cleanup(cleanup)

	CreateAndLoginUser(t, r, SignupCreds{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})

	loginBody := map[string]string{"email": "jane@example.com", "password": "wrongpassword"}
	b, _ := json.Marshal(loginBody)
	for i := 0; i < 5; i++ {
		rr, err := doRequest(r, "POST", "/login", b, nil)
		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	}

	var user model.User
	assert.NoError(t, db.Where("email = ?", "jane@example.com").First(&user).Error)
	assert.Equal(t, 5, user.FailedAttempts)
	assert.NotNil(t, user.LockedUntil)

	// Even the correct password is rejected while the account is locked
	goodBody := map[string]string{"email": "jane@example.com", "password": "password123"}
	b, _ = json.Marshal(goodBody)
	rr, err := doRequest(r, "POST", "/login", b, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := ParseAPIResp(t, rr)
	assert.Contains(t, resp.Msg, "Account is locked")
}

func TestLogout(t *testing.T) {
	r, db, token, userID := SetupServerWithUser(t, SignupCreds{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})

	rr, err := doRequest(r, "DELETE", "/logout", nil, map[string]string{"session-token": token})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rr.Code)

	var count int64
	db.Model(&model.Session{}).Where("user_id = ?", userID).Count(&count)
	assert.Equal(t, int64(0), count)

	// The token no longer grants access to protected routes
	rr, err = doRequest(r, "POST", "/verify-password", []byte(`{"password":"password123"}`), map[string]string{"session-token": token})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestVerifyPassword(t *testing.T) {
	r, _, token, _ := SetupServerWithUser(t, SignupCreds{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Password: "password123",
	})

	rr, err := doRequest(r, "POST", "/verify-password", []byte(`{"password":"password123"}`), map[string]string{"session-token": token})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, err = doRequest(r, "POST", "/verify-password", []byte(`{"password":"not-the-password"}`), map[string]string{"session-token": token})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
