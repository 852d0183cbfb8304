package handler

import (
	"github.com/gin-gonic/gin"

	"wallet-custody/internal/handler/response"
)

// HealthCheck GET /health，同时列出已启用的链
func (h *WalletHandler) HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status": "UP",
		"chains": h.disp.Registry().IDs(),
	})
}
