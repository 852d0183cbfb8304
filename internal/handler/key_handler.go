package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"wallet-custody/internal/handler/request"
	"wallet-custody/internal/handler/response"
	"wallet-custody/internal/vault"
)

// KeyHandler 私钥双重加密、助记词导入、口令与 PIN
type KeyHandler struct {
	vault *vault.Service
}

func NewKeyHandler(v *vault.Service) *KeyHandler {
	return &KeyHandler{vault: v}
}

// Status GET /api/v1/keys/status
func (h *KeyHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	enabled, err := h.vault.DoubleEncryptionEnabled(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	pin, err := h.vault.PinEnabled(ctx)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"double_encryption": enabled, "pin": pin})
}

// EncryptAll 开启双重加密
// POST /api/v1/keys/encrypt
func (h *KeyHandler) EncryptAll(c *gin.Context) {
	var req request.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.vault.EncryptAllKeys(c.Request.Context(), req.Password); err != nil {
		migrationError(c, err)
		return
	}
	response.Success(c, gin.H{"double_encryption": true})
}

// DecryptAll 关闭双重加密
// POST /api/v1/keys/decrypt
func (h *KeyHandler) DecryptAll(c *gin.Context) {
	var req request.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.vault.DecryptAllKeys(c.Request.Context(), req.Password); err != nil {
		migrationError(c, err)
		return
	}
	response.Success(c, gin.H{"double_encryption": false})
}

// migrationError 部分失败时带上已完成/未完成的链，调用方可重试
func migrationError(c *gin.Context, err error) {
	var me *vault.MigrationError
	if errors.As(err, &me) {
		response.ErrorWithData(c, err, gin.H{"done": me.Done, "pending": me.Pending})
		return
	}
	response.Error(c, err)
}

// ImportMnemonic POST /api/v1/keys/import
func (h *KeyHandler) ImportMnemonic(c *gin.Context) {
	var req request.ImportMnemonicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	addrs, err := h.vault.ImportMnemonic(c.Request.Context(), req.Mnemonic, req.Passphrase, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"addresses": addrs})
}

// SetPassword POST /api/v1/password
func (h *KeyHandler) SetPassword(c *gin.Context) {
	var req request.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	pinReset, err := h.vault.SetPassword(c.Request.Context(), req.OldPassword, req.NewPassword)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"pin_reset": pinReset})
}

// SetPin POST /api/v1/pin
func (h *KeyHandler) SetPin(c *gin.Context) {
	var req request.SetPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.vault.SetPin(c.Request.Context(), req.Pin, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// CheckPin PIN 错误不是错误，返回 valid=false
// POST /api/v1/pin/check
func (h *KeyHandler) CheckPin(c *gin.Context) {
	var req request.CheckPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	ok, err := h.vault.CheckPin(c.Request.Context(), req.Pin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"valid": ok})
}

// RemovePin DELETE /api/v1/pin
func (h *KeyHandler) RemovePin(c *gin.Context) {
	var req request.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if err := h.vault.RemovePin(c.Request.Context(), req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
