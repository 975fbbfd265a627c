package server

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"chatserver/internal/chat"
	"chatserver/internal/config"
	"chatserver/internal/metrics"
	"chatserver/internal/mw"
	"chatserver/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// SetupRouter 统一初始化 Gin 中间件、WebSocket 端点和静态页面。
func SetupRouter(cfg config.Config, svc *chat.Service, hub *ws.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(every(cfg.RateLimitPerSec), cfg.RateLimitBurst))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": hub.Online()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 只读房间列表，与 ws 广播使用同一份快照数据。
	api := r.Group("/api/v1")
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": svc.RoomList()})
	})

	r.GET("/ws", ws.Serve(hub, svc, cfg, log.Logger))

	// 单页客户端由静态目录提供，不存在时只提供 API。
	index := filepath.Join(cfg.StaticDir, "index.html")
	if _, err := os.Stat(index); err == nil {
		r.StaticFile("/", index)
		r.Static("/static", cfg.StaticDir)
	} else {
		log.Warn().Str("dir", cfg.StaticDir).Msg("static client not found, serving API only")
	}

	return r
}

func every(perSec int) rate.Limit {
	return rate.Every(time.Second / time.Duration(perSec))
}
