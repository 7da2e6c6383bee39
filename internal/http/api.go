package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/NikunjBaldaniya/AnyviDow/internal/downloader"
	"github.com/NikunjBaldaniya/AnyviDow/internal/metrics"
)

type Config struct {
	Resolver InfoResolver
	Manager  downloader.Manager
	Users    Authenticator
	Cleaner  Cleaner
	Metrics  *metrics.Metrics
	Logger   *logrus.Logger

	DataRoot       string
	CleanupDelay   time.Duration
	StreamInterval time.Duration
	CORSOrigins    []string
	FetchRate      float64
	FetchBurst     int

	AuthDisabled bool
	JWTSecret    string
	TokenTTL     time.Duration
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	cfg     Config
	limiter *clientLimiter
}

func NewHandler(cfg Config) *Handler {
	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = 5 * time.Second
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = 200 * time.Millisecond
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Handler{
		cfg:     cfg,
		limiter: newClientLimiter(rate.Limit(cfg.FetchRate), cfg.FetchBurst),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestLogger(h.cfg.Logger), noCache(), cors.New(h.corsConfig()))
	if !h.cfg.AuthDisabled {
		router.Use(h.requireLogin())
		router.POST("/login", h.login)
		router.GET("/logout", h.logout)
		router.POST("/logout", h.logout)
	}

	router.GET("/health", h.health)
	router.GET("/metrics", gin.WrapH(h.cfg.Metrics.Handler()))

	api := router.Group("/api")
	{
		api.POST("/fetch_info", h.limiter.middleware(), h.fetchInfo)
	}

	router.POST("/cancel_download", h.cancelDownload)
	router.GET("/stream_single_download", h.streamSingleDownload)
	router.GET("/download_file", h.downloadFile)
	router.GET("/download", h.download)
	router.GET("/stream_playlist_download", h.streamPlaylistDownload)
	router.GET("/download_zip", h.downloadZip)
}

func (h *Handler) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(h.cfg.CORSOrigins) == 1 && h.cfg.CORSOrigins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = h.cfg.CORSOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"active_sessions": h.cfg.Manager.ActiveSessions(),
	})
}
