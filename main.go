// main.go
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medibook/medibook-api/config"
	"github.com/medibook/medibook-api/endpoint"
	"github.com/medibook/medibook-api/middleware"
	"github.com/medibook/medibook-api/model"
	"github.com/medibook/medibook-api/util"
)

func main() {
	// Load the configuration
	cfg := config.LoadConfig()

	db, err := config.ConnectMySQL()
	if err != nil {
		log.Fatalf("Error connecting to MySQL: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Role{},
		&model.Session{},
		&model.Doctor{},
		&model.Appointment{},
		&model.SecurityLog{},
	); err != nil {
		log.Fatalf("Error migrating schema: %v", err)
	}

	if err := model.SeedRoles(db); err != nil {
		log.Fatalf("Error seeding roles: %v", err)
	}
	if err := model.SeedDoctors(db); err != nil {
		log.Fatalf("Error seeding doctor directory: %v", err)
	}

	if _, err := config.ConnectRedis(); err != nil {
		log.Printf("Redis unavailable, continuing without session cache: %v", err)
	}

	util.SetSecurityLoggerDB(db)
	util.InitUserEmailCacheFromEnv()

	// Set Gin mode from config
	gin.SetMode(cfg.GinMode)

	// Create a Gin router with default middleware
	router := gin.Default()
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DatabaseMiddleware(db))
	router.Use(middleware.EndpointCallLogger())

	// Basic HTTP handler for root path
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Welcome to %s!", cfg.AppName),
		})
	})

	// Public routes
	router.POST("/signup", middleware.RateLimiter(middleware.RateLimitConfig{}), endpoint.Signup)
	router.POST("/login", middleware.RateLimiter(middleware.RateLimitConfig{}), endpoint.Login)
	router.GET("/token/validate", endpoint.ValidateToken)
	router.GET("/doctor", endpoint.ListDoctors)
	router.GET("/doctor/:id", endpoint.GetDoctorInfo)
	router.GET("/doctor/:id/slots", endpoint.GetDoctorSlots)

	// Session-protected routes
	authorized := router.Group("/")
	authorized.Use(middleware.SessionAuth())
	{
		authorized.DELETE("/logout", endpoint.Logout)
		authorized.POST("/verify-password", endpoint.VerifyPassword)
		authorized.PATCH("/user/profile", endpoint.UpdateProfile)
		authorized.POST("/appointment", endpoint.BookAppointment)
		authorized.GET("/appointment/patient/:id", endpoint.ListPatientAppointments)
		authorized.GET("/appointment/doctor/:id", endpoint.ListDoctorAppointments)
		authorized.PATCH("/appointment/:id/status", endpoint.UpdateAppointmentStatus)
		authorized.GET("/user", middleware.RequireRole(db, model.RoleAdmin), endpoint.ListUsers)
	}

	// Start server on specified port
	address := fmt.Sprintf(":%d", cfg.AppPort)
	if err := router.Run(address); err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}
