package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wallet-custody/internal/handler"
	"wallet-custody/pkg/monitor"
	"wallet-custody/pkg/validator"
)

// Handlers 路由依赖的全部 handler
type Handlers struct {
	Wallet *handler.WalletHandler
	Keys   *handler.KeyHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
func NewHTTPRouter(h Handlers) *gin.Engine {
	validator.Init()

	r := gin.New()
	r.Use(gin.Recovery(), monitor.PrometheusMiddleware())

	r.GET("/health", h.Wallet.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		api.POST("/fees/estimate", h.Wallet.EstimateFees)
		api.POST("/tx/send", h.Wallet.Send)
		api.POST("/tx/refresh", h.Wallet.RefreshTransactions)
		api.GET("/address/validate", h.Wallet.ValidateAddress)
		api.POST("/hardware/connect", h.Wallet.ConnectHardware)
		api.POST("/wallet/destroy", h.Wallet.DestroyWallet)

		keys := api.Group("/keys")
		keys.GET("/status", h.Keys.Status)
		keys.POST("/encrypt", h.Keys.EncryptAll)
		keys.POST("/decrypt", h.Keys.DecryptAll)
		keys.POST("/import", h.Keys.ImportMnemonic)

		api.POST("/password", h.Keys.SetPassword)
		api.POST("/pin", h.Keys.SetPin)
		api.POST("/pin/check", h.Keys.CheckPin)
		api.DELETE("/pin", h.Keys.RemovePin)
	}

	return r
}
