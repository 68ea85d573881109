package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/medibook/medibook-api/config"
	"github.com/medibook/medibook-api/model"
	"github.com/medibook/medibook-api/util"
)

// Context keys set by DatabaseMiddleware and SessionAuth.
const (
	DBKey     = "db"
	UserIDKey = "user_id"
	RoleIDKey = "role_id"
)

// CORSMiddleware configures CORS headers for incoming requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE, PATCH")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Authorization, session-token")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Content-Type", "application/json")

		// For preflight requests, respond with 204 and abort further processing.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// DatabaseMiddleware injects the gorm DB into the request context so handlers
// can fetch it with GetDB.
func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(DBKey, db)
		c.Next()
	}
}

// GetDB returns the request-scoped gorm DB, or nil when the middleware did not run.
func GetDB(c *gin.Context) *gorm.DB {
	v, ok := c.Get(DBKey)
	if !ok {
		return nil
	}
	db, ok := v.(*gorm.DB)
	if !ok {
		return nil
	}
	return db
}

// GetUserID returns the authenticated user's id from the context.
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// GetRoleID returns the authenticated user's role id from the context.
func GetRoleID(c *gin.Context) (uint32, bool) {
	v, ok := c.Get(RoleIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint32)
	return id, ok
}

// SessionAuth validates the session-token header against Redis first and the
// sessions table as fallback, then stores the user and role ids in the request
// context. Requests without a valid, unexpired session are rejected.
func SessionAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionToken := c.GetHeader("session-token")
		if sessionToken == "" {
			util.LogUnauthorizedAccess("", "", c.ClientIP(), c.FullPath(), "missing session token")
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Session token not provided",
				Err: fmt.Errorf("session token not provided"),
			})
			c.Abort()
			return
		}

		if userID, roleID, ok := lookupSessionInRedis(sessionToken); ok {
			c.Set(UserIDKey, userID)
			c.Set(RoleIDKey, roleID)
			c.Next()
			return
		}

		db := GetDB(c)
		if db == nil {
			util.CallServerError(c, util.APIErrorParams{
				Msg: "Database connection not available",
				Err: fmt.Errorf("db is nil"),
			})
			c.Abort()
			return
		}

		var result struct {
			UserID uint
			RoleID uint32
		}
		err := db.Table("sessions").
			Select("sessions.user_id as user_id, users.role_id as role_id").
			Joins("JOIN users ON users.id = sessions.user_id").
			Where("sessions.session_token = ? AND sessions.expires_at > ? AND sessions.deleted_at IS NULL", sessionToken, time.Now()).
			Scan(&result).Error
		if err != nil || result.UserID == 0 {
			util.LogUnauthorizedAccess("", "", c.ClientIP(), c.FullPath(), "invalid or expired session")
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Invalid or expired session token",
				Err: fmt.Errorf("session not found"),
			})
			c.Abort()
			return
		}

		c.Set(UserIDKey, result.UserID)
		c.Set(RoleIDKey, result.RoleID)
		c.Next()
	}
}

// RequireRole ensures the authenticated user has the named role. SessionAuth
// must run earlier in the chain.
func RequireRole(db *gorm.DB, roleName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleID, ok := GetRoleID(c)
		if !ok {
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "User not authenticated",
				Err: fmt.Errorf("role not found in context"),
			})
			c.Abort()
			return
		}

		var role model.Role
		if err := db.First(&role, "id = ?", roleID).Error; err != nil || role.Name != roleName {
			userID, _ := GetUserID(c)
			util.LogUnauthorizedAccess(fmt.Sprintf("%d", userID), "", c.ClientIP(), c.FullPath(), "insufficient role")
			util.CallUserNotAuthorized(c, util.APIErrorParams{
				Msg: "Insufficient permissions",
				Err: fmt.Errorf("role %q required", roleName),
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// lookupSessionInRedis resolves "session:<token>" -> "<uid>:<roleid>" as
// written at login time. Missing Redis or a missing key falls through to the DB.
func lookupSessionInRedis(token string) (uint, uint32, bool) {
	rdb := config.GetRedisClient()
	if rdb == nil {
		return 0, 0, false
	}
	val, err := rdb.Get(context.Background(), fmt.Sprintf("session:%s", token)).Result()
	if err != nil {
		return 0, 0, false
	}
	parts := strings.SplitN(val, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	uid, err1 := strconv.ParseUint(parts[0], 10, 32)
	rid, err2 := strconv.ParseUint(parts[1], 10, 32)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return uint(uid), uint32(rid), true
}
