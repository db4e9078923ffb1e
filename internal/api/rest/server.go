package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openhomelab/smartserver/internal/api/websocket"
	"github.com/openhomelab/smartserver/internal/assoc"
	"github.com/openhomelab/smartserver/internal/auth"
	"github.com/openhomelab/smartserver/internal/config"
	"github.com/openhomelab/smartserver/internal/storage"
)

type Server struct {
	router       *gin.Engine
	logger       *zap.Logger
	server       *http.Server
	store        *storage.PostgresClient
	authService  *auth.AuthService
	assocService *assoc.Service
	wsHub        *websocket.Hub
}

func NewServer(cfg *config.Config, store *storage.PostgresClient, authService *auth.AuthService, assocService *assoc.Service, wsHub *websocket.Hub, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:       gin.New(),
		logger:       logger,
		store:        store,
		authService:  authService,
		assocService: assocService,
		wsHub:        wsHub,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	userAuth := s.authService.UserAuth()
	hostAuth := s.authService.HostAuth()
	anyAuth := s.authService.UserOrHostAuth()
	adminOnly := s.authService.RequireAdmin()

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH ====================
		authPublic := v1.Group("/auth")
		{
			authPublic.POST("/login", s.login)
			authPublic.POST("/refresh", s.refreshToken)
		}

		authProtected := v1.Group("/auth")
		authProtected.Use(userAuth)
		{
			authProtected.POST("/logout", s.logout)
			authProtected.GET("/me", s.getCurrentUser)
		}

		// ==================== USERS ====================
		users := v1.Group("/users")
		{
			users.POST("", s.signup) // public signup

			users.PATCH("/me/mail", userAuth, s.changeMail)
			users.PATCH("/me/password", userAuth, s.changePassword)

			// Admin accounts never match the disable predicate and report 404
			users.POST("/:id/enable", userAuth, adminOnly, s.enableUser)
			users.POST("/:id/disable", userAuth, adminOnly, s.disableUser)
		}

		// ==================== DEVICES ====================
		devices := v1.Group("/devices")
		{
			devices.GET("", userAuth, s.listDevices)
			devices.GET("/:id", userAuth, s.getDevice)
			devices.GET("/:id/telemetry", userAuth, s.listDeviceTelemetry)
			devices.PATCH("/:id/frequency", userAuth, s.updateDeviceFrequency)
			devices.GET("/:id/frequency", hostAuth, s.getDeviceFrequency)
			devices.GET("/:id/assoc", hostAuth, s.getDeviceAssocState)

			devices.POST("", userAuth, adminOnly, s.registerDevice)
			devices.POST("/:id/enable", userAuth, adminOnly, s.enableDevice)
			devices.POST("/:id/disable", userAuth, adminOnly, s.disableDevice)

			devices.POST("/:id/assoc/begin", userAuth, s.beginDeviceAssoc)
			devices.POST("/:id/assoc/confirm", hostAuth, s.confirmDeviceAssoc)
			devices.POST("/:id/assoc/reset", anyAuth, s.resetDeviceAssoc)
			devices.POST("/:id/house", userAuth, s.assignDeviceHouse)
		}

		// ==================== HOSTS ====================
		hosts := v1.Group("/hosts")
		{
			hosts.GET("", userAuth, s.listHosts)

			// Host self-service routes must be registered before /:id
			hosts.GET("/assoc", hostAuth, s.getOwnHostAssocState)
			hosts.POST("/assoc/confirm", hostAuth, s.confirmHostAssoc)

			hosts.GET("/:id", userAuth, s.getHost)

			hosts.POST("", userAuth, adminOnly, s.registerHost)
			hosts.POST("/:id/enable", userAuth, adminOnly, s.enableHost)
			hosts.POST("/:id/disable", userAuth, adminOnly, s.disableHost)

			hosts.POST("/:id/assoc/begin", userAuth, s.beginHostAssoc)
			hosts.POST("/:id/assoc/reset", userAuth, s.resetHostAssoc)
			hosts.POST("/:id/house", userAuth, s.assignHostHouse)
		}

		// ==================== HOUSES ====================
		houses := v1.Group("/houses")
		houses.Use(userAuth)
		{
			houses.POST("", s.createHouse)
			houses.GET("", s.listHouses)
			houses.GET("/:id", s.getHouse)
			houses.PATCH("/:id", s.renameHouse)
			houses.DELETE("/:id", s.deleteHouse)
		}

		// ==================== TELEMETRY ====================
		telemetry := v1.Group("/telemetry")
		{
			telemetry.POST("", hostAuth, s.ingestTelemetry)
			telemetry.GET("/:id", userAuth, s.getTelemetry)
		}

		// ==================== WEBSOCKET (auth via first message) ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
			ws.GET("/status", userAuth, s.wsStatus)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
