package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vasquezandres/clip/internal/config"
	"github.com/vasquezandres/clip/internal/metrics"
	"github.com/vasquezandres/clip/internal/mw"
	"github.com/vasquezandres/clip/internal/ws"
	"golang.org/x/time/rate"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, hub *ws.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	// 挡住 key 枚举和脚本刷接口
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := NewHandler(hub, cfg)
	api := r.Group("/api")
	api.POST("/create", h.CreateSession)
	api.GET("/status/:key", h.SessionStatus)

	r.GET("/ws", ws.Serve(hub))

	// 前端静态资源：加解密全在浏览器里完成，服务端只管发文件。
	// 没有 web 目录（比如测试环境）就只暴露 API。
	webDir := "./web"
	if _, err := os.Stat(filepath.Join(webDir, "index.html")); err == nil {
		r.NoRoute(staticHandler(webDir))
	}
	return r
}

func staticHandler(webDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Status(http.StatusNotFound)
			return
		}
		rel := strings.TrimPrefix(filepath.Clean(c.Request.URL.Path), "/")
		if rel == "" {
			c.File(filepath.Join(webDir, "index.html"))
			return
		}
		if strings.HasPrefix(rel, "api/") || rel == "metrics" || rel == "healthz" || rel == "ws" {
			c.Status(http.StatusNotFound)
			return
		}
		target := filepath.Join(webDir, rel)
		if fi, err := os.Stat(target); err == nil && !fi.IsDir() {
			c.File(target)
			return
		}
		// 带扩展名的缺失文件按 404 处理，其余路径交给前端路由
		if strings.Contains(rel, ".") {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(filepath.Join(webDir, "index.html"))
	}
}
