package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wallet-custody/internal/dispatcher"
	"wallet-custody/internal/handler/request"
	"wallet-custody/internal/handler/response"
	"wallet-custody/internal/hardware"
	"wallet-custody/internal/reconcile"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/txn"
	"wallet-custody/internal/vault"
	"wallet-custody/pkg/logger"
)

type WalletHandler struct {
	disp  *dispatcher.Dispatcher
	recon *reconcile.Reconciler
	vault *vault.Service
	repo  repository.TxRecordRepository
}

func NewWalletHandler(disp *dispatcher.Dispatcher, recon *reconcile.Reconciler, v *vault.Service, repo repository.TxRecordRepository) *WalletHandler {
	return &WalletHandler{disp: disp, recon: recon, vault: v, repo: repo}
}

// EstimateFees 预览转账费用
// POST /api/v1/fees/estimate
func (h *WalletHandler) EstimateFees(c *gin.Context) {
	var req request.EstimateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	t, err := parseTransfer(h.disp.Registry(), req.TransferRequest, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	q, err := h.disp.EstimateFees(c.Request.Context(), t.estimateRequest(req.TransferRequest))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, feeView(t.cfg, q))
}

// Send 构建、签名并广播
// POST /api/v1/tx/send
func (h *WalletHandler) Send(c *gin.Context) {
	var req request.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	t, err := parseTransfer(h.disp.Registry(), req.TransferRequest, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	sr := &txn.SignRequest{
		Chain:  t.cfg.ID,
		From:   req.From,
		To:     req.To,
		Token:  t.token,
		Amount: t.amount,
	}
	if req.Software != nil {
		sr.Method.Software = &txn.SoftwareSigner{Password: req.Software.Password}
	}
	if req.Hardware != nil {
		sr.Method.Hardware = &txn.HardwareSigner{
			DeviceIndex: req.Hardware.DeviceIndex,
			Transport:   hardware.Kind(req.Hardware.Transport),
		}
	}

	res, err := h.disp.Send(c.Request.Context(), sr)
	if err != nil {
		data := gin.H{"stage": stageOf(err)}
		if res != nil {
			data["hash"] = res.Hash
		}
		response.ErrorWithData(c, err, data)
		return
	}
	response.Success(c, gin.H{
		"hash":   res.Hash,
		"record": res.Record,
		"fee":    feeView(t.cfg, res.Fee),
	})
}

func stageOf(err error) string {
	var se *txn.StageError
	if errors.As(err, &se) {
		return string(se.Stage)
	}
	return ""
}

// ValidateAddress GET /api/v1/address/validate?chain=ETH&address=0x...
func (h *WalletHandler) ValidateAddress(c *gin.Context) {
	var req request.ValidateAddressRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}
	id, err := h.disp.Registry().Parse(req.Chain)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"chain":   id,
		"address": req.Address,
		"valid":   h.disp.IsValidAddress(id, req.Address),
	})
}

// ConnectHardware 连接设备并读取地址；没有设备时 address 为空
// POST /api/v1/hardware/connect
func (h *WalletHandler) ConnectHardware(c *gin.Context) {
	var req request.ConnectHardwareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	id, err := h.disp.Registry().Parse(req.Chain)
	if err != nil {
		response.Error(c, err)
		return
	}
	addr, err := h.disp.ConnectHardwareDevice(c.Request.Context(), id, hardware.Kind(req.Transport), req.DeviceIndex)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"address": addr, "connected": addr != ""})
}

// RefreshTransactions 立即执行一次对账
// POST /api/v1/tx/refresh
func (h *WalletHandler) RefreshTransactions(c *gin.Context) {
	res, err := h.recon.Refresh(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// DestroyWallet 删除本地私钥及这些地址的待对账记录。设置过口令时需要口令
// POST /api/v1/wallet/destroy
func (h *WalletHandler) DestroyWallet(c *gin.Context) {
	var req request.DestroyWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.vault.VerifyPasswordIfSet(ctx, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.vault.RemoveAll(ctx); err != nil {
		response.Error(c, err)
		return
	}
	var removed int64
	for _, addr := range req.Addresses {
		n, err := h.repo.DeleteByAddress(ctx, addr)
		if err != nil {
			logger.Error("delete records", zap.String("address", addr), zap.Error(err))
			response.Error(c, err)
			return
		}
		removed += n
	}
	response.Success(c, gin.H{"records_removed": removed})
}
