package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inspekta/propbot/internal/audit"
	"github.com/inspekta/propbot/internal/config"
	"github.com/inspekta/propbot/internal/dialog"
	"github.com/inspekta/propbot/internal/listings"
	"github.com/inspekta/propbot/internal/session"
	"github.com/inspekta/propbot/internal/whatsapp"
)

// AppState holds all application services
type AppState struct {
	Logger   *zap.Logger
	Config   *config.Config
	DB       *bun.DB
	Sessions *session.Arena
	Engine   *dialog.Engine
	Sender   *whatsapp.Client
	Audit    audit.Store
}

func main() {
	// Load configuration
	config.Load()

	// Initialize logger with config
	logger := initLogger()
	logger.Info("Configuration loaded", zap.String("source", "config.Load()"))

	as, err := newAppState(logger)
	if err != nil {
		logger.Fatal("Failed to initialize application state", zap.Error(err))
	}

	ctx := context.Background()
	if err := listings.SetupSchema(ctx, as.DB); err != nil {
		logger.Fatal("Failed to set up listings schema", zap.Error(err))
	}
	if as.Audit != nil {
		if err := audit.SetupSchema(ctx, as.DB); err != nil {
			logger.Fatal("Failed to set up audit schema", zap.Error(err))
		}
	}

	router := setupRouter(as)

	addr := fmt.Sprintf("%s:%d", config.Http().Host, config.Http().Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Periodic idle-session sweep, alongside the lazy expiry on access.
	stopSweeper := startExpirySweeper(as)

	done := setupSignalHandler(as, server, stopSweeper, logger)

	logger.Info("Starting propbot server", zap.String("address", addr))

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	<-done
	logger.Info("Server shutdown complete")
}

// newAppState creates and initializes the application state
func newAppState(logger *zap.Logger) (*AppState, error) {
	pgConfig := config.Postgres()

	logger.Info("Database configuration",
		zap.String("host", pgConfig.Host),
		zap.Int("port", pgConfig.Port),
		zap.String("database", pgConfig.Database),
		zap.String("user", pgConfig.User))

	db := listings.OpenDB(pgConfig.DSN(), pgConfig.MaxOpenConnections)

	sessCfg := config.Session()
	arena := session.NewArena(session.Options{
		IdleTimeout:  sessCfg.IdleTimeout,
		HistoryLimit: sessCfg.HistoryLimit,
		LockWait:     sessCfg.LockWait,
	}, logger)

	gateway := listings.NewPostgresGateway(db)
	engine := dialog.NewEngine(arena, gateway, config.Bot().ResultLimit, logger)

	waCfg := config.Whatsapp()
	sender := whatsapp.NewClient(waCfg.APIBase, waCfg.PhoneID, waCfg.Token, logger)
	if !sender.Configured() {
		logger.Warn("WhatsApp credentials not configured - outbound sends disabled")
	}

	var auditStore audit.Store
	if config.Bot().AuditTrail {
		auditStore = audit.NewPostgresStore(db)
	}

	return &AppState{
		Logger:   logger,
		Config:   config.Get(),
		DB:       db,
		Sessions: arena,
		Engine:   engine,
		Sender:   sender,
		Audit:    auditStore,
	}, nil
}

func initLogger() *zap.Logger {
	logConfig := config.Logger()

	var cfg zap.Config
	if logConfig.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch logConfig.Level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger
}

// ClusterAuthMiddleware protects the session management endpoints with the
// cluster API key.
func ClusterAuthMiddleware(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isValidClusterAuth(c.GetHeader("Authorization")) {
			as.Logger.Warn("Unauthorized access to cluster endpoint",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.String("remote_addr", c.Request.RemoteAddr))

			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Cluster authentication required for session management",
				"hint":  "Use 'Authorization: Bearer <cluster_api_key>' header",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// isValidClusterAuth validates the cluster API key from config
func isValidClusterAuth(authHeader string) bool {
	expectedKey := config.Auth().ClusterAPIKey
	if expectedKey == "" || authHeader == "" {
		return false
	}

	// Accept either Bearer or Api-Key format
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ") == expectedKey
	}
	if strings.HasPrefix(authHeader, "Api-Key ") {
		return strings.TrimPrefix(authHeader, "Api-Key ") == expectedKey
	}
	return false
}

func setupRouter(as *AppState) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(cors.Default())
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", healthCheck(as))

	// WhatsApp webhook surface
	router.GET("/webhook", verifyWebhook(as))
	router.POST("/webhook", handleWebhook(as))

	// CLUSTER API (monitoring/administration) - requires cluster authentication
	cluster := router.Group("/cluster/v1")
	cluster.Use(ClusterAuthMiddleware(as))
	{
		sessions := cluster.Group("/sessions")
		{
			sessions.GET("/", listSessions(as))                    // redacted snapshot of active sessions
			sessions.DELETE("/:identity", terminateSession(as))    // administrative termination
			sessions.GET("/:identity/audit", sessionAuditTrail(as)) // persisted message trail
		}
	}

	return router
}

func startExpirySweeper(as *AppState) chan struct{} {
	stop := make(chan struct{})
	interval := as.Sessions.IdleTimeout() / 8
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				as.Sessions.ExpireIdle(time.Now(), as.Sessions.IdleTimeout())
			case <-stop:
				return
			}
		}
	}()

	return stop
}

func setupSignalHandler(as *AppState, server *http.Server, stopSweeper chan struct{}, logger *zap.Logger) chan struct{} {
	done := make(chan struct{}, 1)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signalCh

		logger.Info("Shutting down server...")

		close(stopSweeper)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Error during server shutdown", zap.Error(err))
		}

		if err := as.DB.Close(); err != nil {
			logger.Error("Error closing database", zap.Error(err))
		}

		done <- struct{}{}
	}()

	return done
}

func healthCheck(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		overall := "healthy"
		dbStatus := "healthy"
		status := http.StatusOK
		if err := as.DB.PingContext(c.Request.Context()); err != nil {
			overall = "unhealthy"
			dbStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overall,
			"timestamp": time.Now().Format(time.RFC3339),
			"services": gin.H{
				"database":        dbStatus,
				"active_sessions": as.Sessions.Len(),
			},
		})
	}
}

// verifyWebhook answers the Meta webhook subscription handshake.
func verifyWebhook(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		echo, ok := whatsapp.VerifyHandshake(mode, token, challenge, config.Whatsapp().VerifyToken)
		if !ok {
			as.Logger.Warn("Webhook verification failed - invalid verify token")
			c.String(http.StatusForbidden, "Invalid verify token")
			return
		}

		as.Logger.Info("Webhook verification successful")
		c.String(http.StatusOK, echo)
	}
}

// handleWebhook processes inbound WhatsApp deliveries. It always acknowledges
// the transport with 200; every recognized failure mode resolves to a
// user-visible guidance message plus a log record.
func handleWebhook(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload whatsapp.WebhookPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			as.Logger.Warn("Invalid webhook payload", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		if !payload.IsMessageEvent() {
			c.JSON(http.StatusOK, gin.H{"status": "received", "type": "status_update"})
			return
		}

		processed := 0
		for _, msg := range payload.InboundMessages() {
			if strings.TrimSpace(msg.From) == "" {
				// Transport-level defect, not a user condition: log and drop.
				as.Logger.Error("Dropping inbound message with empty sender identity",
					zap.String("message_id", msg.MessageID))
				continue
			}

			// The audit record carries the menu state the message arrived in.
			menu := ""
			if as.Audit != nil {
				if sess, err := as.Sessions.GetOrCreate(c.Request.Context(), msg.From, msg.DisplayName); err == nil {
					menu = string(sess.Menu)
				}
			}

			directive, err := as.Engine.HandleMessage(c.Request.Context(), msg.From, msg.DisplayName, msg.Text)
			if err != nil {
				as.Logger.Error("Failed to process inbound message",
					zap.String("message_id", msg.MessageID),
					zap.Error(err))
				continue
			}
			processed++

			recordAudit(as, msg, directive, menu)

			if _, err := as.Sender.SendText(c.Request.Context(), msg.From, directive.Text); err != nil {
				as.Logger.Error("Failed to send response",
					zap.String("message_id", msg.MessageID),
					zap.Error(err))
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "processed", "type": "message", "count": processed})
	}
}

// recordAudit writes the inbound/outbound pair to the audit trail
// asynchronously so persistence never blocks the webhook response.
func recordAudit(as *AppState, msg whatsapp.InboundMessage, directive dialog.Directive, menu string) {
	if as.Audit == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		entries := []*audit.MessageLog{
			{
				LogID:     uuid.New().String(),
				UserID:    msg.From,
				Direction: audit.DirectionInbound,
				Menu:      menu,
				Text:      msg.Text,
				Timestamp: msg.ReceivedAt,
			},
			{
				LogID:     uuid.New().String(),
				UserID:    msg.From,
				Direction: audit.DirectionOutbound,
				Menu:      menu,
				Kind:      string(directive.Kind),
				Text:      directive.Text,
				Timestamp: time.Now(),
			},
		}
		for _, entry := range entries {
			if err := as.Audit.CreateMessageLog(ctx, entry); err != nil {
				as.Logger.Error("Failed to write audit log",
					zap.String("direction", entry.Direction),
					zap.Error(err))
			}
		}
	}()
}

func listSessions(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries := as.Sessions.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"active_sessions":       len(summaries),
			"session_timeout_hours": as.Sessions.IdleTimeout().Hours(),
			"sessions":              summaries,
		})
	}
}

func terminateSession(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.Param("identity")
		if identity == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "identity is required"})
			return
		}

		// Ending a non-existent session is a no-op, matching the store contract.
		if err := as.Sessions.End(c.Request.Context(), identity); err != nil {
			as.Logger.Error("Failed to terminate session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to terminate session"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Session terminated"})
	}
}

func sessionAuditTrail(as *AppState) gin.HandlerFunc {
	return func(c *gin.Context) {
		if as.Audit == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Audit trail is not enabled"})
			return
		}

		identity := c.Param("identity")
		limit := 50
		if limitStr := c.Query("limit"); limitStr != "" {
			if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
				limit = parsed
			}
		}

		logs, err := as.Audit.GetMessagesByUser(c.Request.Context(), identity, limit)
		if err != nil {
			as.Logger.Error("Failed to read audit trail", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read audit trail"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"messages": logs, "count": len(logs)})
	}
}
