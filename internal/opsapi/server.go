package opsapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/engine"
)

var log = logrus.WithField("component", "ops_api")

// Server 运维 API：查看风控快照、恢复交易、重置峰值。
// 所有变更请求都经引擎命令通道执行，本服务自身不持有任何风控状态。
type Server struct {
	eng  *engine.Engine
	http *http.Server
}

// NewServer 创建运维 API 服务
func NewServer(eng *engine.Engine) *Server {
	return &Server{eng: eng}
}

type resumeRequest struct {
	Code  string `json:"code" binding:"required"`
	Force bool   `json:"force"`
}

type resetPeakRequest struct {
	Balance float64 `json:"balance" binding:"required"`
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "halted": s.eng.IsHalted()})
	})

	// 风控快照（只读副本）
	r.GET("/api/risk", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.eng.Snapshot())
	})

	// 恢复交易：拒绝返回 200 + ok=false（拒绝是正常结果，不是服务错误）
	r.POST("/api/resume", func(c *gin.Context) {
		var req resumeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ok, msg := s.eng.ResumeTrading(req.Code, req.Force)
		log.Infof("恢复交易请求: force=%v ok=%v msg=%s", req.Force, ok, msg)
		c.JSON(http.StatusOK, gin.H{"ok": ok, "message": msg})
	})

	// 重置峰值（操作员动作）
	r.POST("/api/reset-peak", func(c *gin.Context) {
		var req resetPeakRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ok, msg := s.eng.ResetPeak(decimal.NewFromFloat(req.Balance))
		log.Infof("重置峰值请求: balance=%v ok=%v msg=%s", req.Balance, ok, msg)
		c.JSON(http.StatusOK, gin.H{"ok": ok, "message": msg})
	})

	return r
}

// StartAsync 启动服务（非阻塞），ctx 结束时优雅关闭
func (s *Server) StartAsync(ctx context.Context, listenAddr string) error {
	s.http = &http.Server{
		Addr:    listenAddr,
		Handler: s.routes(),
	}

	go func() {
		log.Infof("运维 API 监听: %s", listenAddr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("运维 API 退出: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()

	return nil
}
