package api

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/domain"
	"github.com/Skufu/heartrisk/internal/health"
	"github.com/Skufu/heartrisk/internal/metrics"
	"github.com/Skufu/heartrisk/internal/version"
)

// RouterConfig holds the HTTP-layer settings.
type RouterConfig struct {
	BodyLimitBytes   int64
	CORSOrigins      []string
	StaticRoot       string
	ReadinessTimeout time.Duration
}

// NewRouter builds the engine: middleware, liveness and readiness routes, Prometheus endpoint, the API and,
// when a built UI is present, the single-page app.
func NewRouter(cfg RouterConfig, h *Handler, db health.DBPinger, log *zap.Logger) *gin.Engine {
	if cfg.BodyLimitBytes <= 0 {
		cfg.BodyLimitBytes = 1 << 20
	}
	if cfg.ReadinessTimeout <= 0 {
		cfg.ReadinessTimeout = 2 * time.Second
	}

	router := gin.New()
	router.Use(
		requestLogger(log),
		gin.Recovery(),
		metrics.Middleware(),
		limitBodySize(cfg.BodyLimitBytes),
		cors.New(corsConfig(cfg.CORSOrigins)),
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Version})
	})

	router.GET("/readyz", func(c *gin.Context) {
		if !h.snapshot.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "model": "not loaded"})
			return
		}
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.ReadinessTimeout)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"db":     "unhealthy: " + err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	h.RegisterRoutes(router.Group("/api"))

	mountStatic(router, cfg.StaticRoot)
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Disposition", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// mountStatic serves the built UI from root, falling back to index.html for client-side
// routes. Unknown /api paths still get a JSON 404.
func mountStatic(router *gin.Engine, root string) {
	index := filepath.Join(root, "index.html")
	hasUI := root != "" && fileExists(index)

	if hasUI {
		if dir := filepath.Join(root, "assets"); dirExists(dir) {
			router.Static("/assets", dir)
		}
		router.StaticFile("/", index)
	}

	router.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || path == "/api" || !hasUI || c.Request.Method != http.MethodGet {
			c.JSON(http.StatusNotFound, ErrorBody{Error: ErrorDetail{Kind: domain.KindNotFound, Detail: "no route for " + path}})
			return
		}

		// Serve real files at the root (favicon, manifest) before falling back to the app shell.
		if rel := filepath.Clean(strings.TrimPrefix(path, "/")); rel != "." && !strings.HasPrefix(rel, "..") {
			if candidate := filepath.Join(root, rel); fileExists(candidate) {
				c.File(candidate)
				return
			}
		}
		c.File(index)
	})
}

// ResolveStaticRoot returns dir when it holds a built UI, otherwise the first of the
// working directory and its two parents that holds an index.html, otherwise "".
func ResolveStaticRoot(dir string) string {
	if dir != "" && fileExists(filepath.Join(dir, "index.html")) {
		return dir
	}

	startDir, err := os.Getwd()
	if err != nil {
		return ""
	}
	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}
	for _, d := range candidates {
		if fileExists(filepath.Join(d, "index.html")) {
			return d
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
