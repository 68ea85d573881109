package endpoint

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/medibook/medibook-api/middleware"
	"github.com/medibook/medibook-api/model"
	"github.com/medibook/medibook-api/util"
)

// Sentinel errors for user update operations
var (
	ErrUserEmailAlreadyExists = errors.New("email already exists")
)

type UpdateProfileRequest struct {
	FirstName string `json:"first_name" example:"John"`
	LastName  string `json:"last_name" example:"Doe"`
	Email     string `json:"email" example:"john@example.com"`
	Password  string `json:"password" example:"newpassword123"`
}

// validateUpdateRequest checks whether at least one field is provided for update.
func validateUpdateRequest(req *UpdateProfileRequest) bool {
	return req.FirstName != "" || req.LastName != "" || req.Email != "" || req.Password != ""
}

func emailExists(db *gorm.DB, email string, excludeUserID uint) (bool, error) {
	var count int64
	err := db.Model(&model.User{}).
		Where("email = ? AND id != ?", email, excludeUserID).
		Count(&count).Error
	return count > 0, err
}

// validateAndUpdateEmail checks email uniqueness and updates the user model if valid.
// Returns an error without sending HTTP responses, letting the caller handle the response.
func validateAndUpdateEmail(db *gorm.DB, user *model.User, newEmail string) error {
	if newEmail == "" || newEmail == user.Email {
		return nil
	}
	exists, err := emailExists(db, newEmail, user.ID)
	if err != nil {
		return fmt.Errorf("failed to validate email uniqueness: %w", err)
	}
	if exists {
		return ErrUserEmailAlreadyExists
	}
	user.Email = newEmail
	return nil
}

// hashUserPassword generates a salt and hashes the provided password, updating the user model.
func hashUserPassword(user *model.User, plainPassword string) error {
	salt, err := util.GenerateSalt()
	if err != nil {
		return fmt.Errorf("failed to generate password salt: %w", err)
	}

	hashedPassword, err := util.HashPasswordArgon2(plainPassword, salt)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.Password = hashedPassword
	user.PasswordSalt = salt
	return nil
}

// updateUserFields applies the changes from an UpdateProfileRequest to a user model,
// handling email uniqueness checks and password hashing. Returns whether the
// password changed so the caller can invalidate other sessions.
func updateUserFields(db *gorm.DB, user *model.User, req *UpdateProfileRequest) (passwordChanged bool, err error) {
	if err := validateAndUpdateEmail(db, user, req.Email); err != nil {
		return false, err
	}

	if req.FirstName != "" {
		user.FirstName = util.NormalizeName(req.FirstName)
	}
	if req.LastName != "" {
		user.LastName = util.NormalizeName(req.LastName)
	}

	if req.Password != "" {
		if err := hashUserPassword(user, req.Password); err != nil {
			return false, err
		}
		passwordChanged = true
	}

	return passwordChanged, nil
}

// invalidateUserSessions removes session records from both DB and Redis for a given user.
func invalidateUserSessions(db *gorm.DB, userID uint) {
	_ = db.Where("user_id = ?", userID).Delete(&model.Session{}).Error
	_ = util.InvalidateUserSessions(userID)
}

// UpdateProfile godoc
// @Summary      Update the authenticated user's profile
// @Description  Merge the provided fields into the current user record
// @Tags         User
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        request body UpdateProfileRequest true "Fields to update"
// @Success      200 {object} util.APIResponse{data=model.User} "User updated"
// @Failure      400 {object} util.APIResponse "Invalid request or email already exists"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /user/profile [patch]
func UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	if !validateUpdateRequest(&req) {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "No fields provided for update",
			Err: fmt.Errorf("empty update payload"),
		})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	userID, ok := middleware.GetUserID(c)
	if !ok {
		util.CallUserNotAuthorized(c, util.APIErrorParams{
			Msg: "User not authenticated",
			Err: fmt.Errorf("user id not found in context"),
		})
		return
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "User not found", Err: err})
		return
	}

	passwordChanged, err := updateUserFields(db, &user, &req)
	if err != nil {
		if errors.Is(err, ErrUserEmailAlreadyExists) {
			util.CallUserError(c, util.APIErrorParams{Msg: "Email already exists", Err: err})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update user fields", Err: err})
		}
		return
	}

	if err := db.Save(&user).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update user", Err: err})
		return
	}

	if passwordChanged {
		invalidateUserSessions(db, user.ID)
		util.LogSecurityEvent(util.SecurityEvent{
			EventType: util.EventPasswordChanged,
			UserID:    fmt.Sprintf("%d", user.ID),
			Email:     user.Email,
			IP:        c.ClientIP(),
			Message:   "Password updated via profile",
		})
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "User updated successfully", Data: user})
}

// ListUsers godoc
// @Summary      List registered users
// @Description  Paginated list of users with their role names, for the admin dashboard
// @Tags         User
// @Accept       json
// @Produce      json
// @Security     SessionToken
// @Param        limit query int false "Limit number of results"
// @Param        offset query int false "Offset for pagination"
// @Success      200 {object} util.APIResponse{data=object} "Users retrieved"
// @Failure      401 {object} util.APIResponse "Unauthorized"
// @Failure      500 {object} util.APIResponse "Server error"
// @Router       /user [get]
func ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	type userRow struct {
		ID        uint   `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		Role      string `json:"role"`
	}

	var users []userRow
	query := db.Table("users").
		Select("users.id, users.first_name, users.last_name, users.email, roles.name as role").
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("users.deleted_at IS NULL").
		Order("users.created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Scan(&users).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to retrieve users", Err: err})
		return
	}

	var total int64
	db.Model(&model.User{}).Count(&total)

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Users retrieved",
		Data: map[string]interface{}{"total": total, "total_fetched": len(users), "users": users},
	})
}
