package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/dispatcher"
	"wallet-custody/internal/fee"
	"wallet-custody/internal/handler"
	"wallet-custody/internal/handler/response"
	"wallet-custody/internal/keystore"
	"wallet-custody/internal/model"
	"wallet-custody/internal/reconcile"
	"wallet-custody/internal/repository"
	"wallet-custody/internal/txn"
	"wallet-custody/internal/vault"
	"wallet-custody/pkg/crypto_util"
	"wallet-custody/pkg/errno"
)

const (
	from = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	to   = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

type stubEstimator struct{ last fee.EstimateRequest }

func (s *stubEstimator) EstimateFees(_ context.Context, req fee.EstimateRequest) (fee.Quote, error) {
	s.last = req
	return &fee.GasQuote{GasPrice: big.NewInt(50), GasUnits: 21000, TotalFee: big.NewInt(1_050_000)}, nil
}

type stubBuilder struct{ last *txn.SignRequest }

func (s *stubBuilder) BuildAndSend(_ context.Context, req *txn.SignRequest) (*txn.Broadcast, error) {
	s.last = req
	if err := req.Method.Validate(); err != nil {
		return nil, &txn.StageError{Stage: txn.StageSign, Err: err}
	}
	return &txn.Broadcast{Chain: req.Chain, Hash: "0xabc", From: req.From, To: req.To, Value: req.Amount,
		Quote: &fee.GasQuote{TotalFee: big.NewInt(1_050_000)}}, nil
}

func (s *stubBuilder) NormalizeForStorage(_ context.Context, b *txn.Broadcast) (*model.TxRecord, error) {
	return &model.TxRecord{Hash: b.Hash, ChainID: string(b.Chain), From: b.From, To: b.To, Value: b.Value.String()}, nil
}

type stubTracker struct{}

func (stubTracker) Confirmations(context.Context, string) (uint64, bool, bool, error) {
	return 20, false, true, nil
}

type fixture struct {
	router  *gin.Engine
	est     *stubEstimator
	builder *stubBuilder
	repo    *repository.Memory
	vault   *vault.Service
}

func newFixture(t *testing.T) *fixture {
	gin.SetMode(gin.TestMode)
	reg := chain.NewRegistry(chain.DefaultRegistry().Get(chain.ETH))
	f := &fixture{est: &stubEstimator{}, builder: &stubBuilder{}, repo: repository.NewMemory()}
	disp, err := dispatcher.New(reg, map[chain.ChainID]dispatcher.Strategy{
		chain.ETH: {Estimator: f.est, Builder: f.builder, Tracker: stubTracker{}},
	}, f.repo, nil, nil)
	require.NoError(t, err)

	f.vault = vault.NewService(keystore.NewMemory(), nil, reg, crypto_util.NewPassphraseCipher(1<<10))
	recon := reconcile.NewReconciler(f.repo, disp.Trackers(), 12, 0)
	f.router = NewHTTPRouter(Handlers{
		Wallet: handler.NewWalletHandler(disp, recon, f.vault, f.repo),
		Keys:   handler.NewKeyHandler(f.vault),
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) response.Response {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, 0, resp.Code)
}

func TestEstimateFees(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/v1/fees/estimate", gin.H{
		"chain": "eth", "from": from, "to": to, "amount": "1.5",
	})
	require.Equal(t, 0, resp.Code, resp.Message)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "gas", data["model"])
	assert.Equal(t, "1050000", data["total"])
	assert.Equal(t, "1500000000000000000", f.est.last.Amount.String())
	assert.True(t, f.est.last.Token.IsNative())
}

func TestEstimateFees_BadInput(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/v1/fees/estimate", gin.H{"chain": "eth", "from": from})
	assert.Equal(t, errno.ErrBind.Code, resp.Code)

	resp = f.do(t, http.MethodPost, "/api/v1/fees/estimate", gin.H{"chain": "eth", "from": from, "to": to, "amount": "-1"})
	assert.Equal(t, errno.ErrBind.Code, resp.Code)

	resp = f.do(t, http.MethodPost, "/api/v1/fees/estimate", gin.H{"chain": "doge", "from": from, "to": to})
	assert.Equal(t, errno.ErrUnsupportedChain.Code, resp.Code)

	resp = f.do(t, http.MethodPost, "/api/v1/fees/estimate", gin.H{
		"chain": "ETH", "from": from, "to": to, "amount": "0.0000001",
		"token": gin.H{"symbol": "USDC", "contract_address": to, "decimals": 6},
	})
	assert.Equal(t, errno.ErrInvalidAmount.Code, resp.Code)
}

func TestSend(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/v1/tx/send", gin.H{
		"chain": "ETH", "from": from, "to": to, "amount": "2",
		"token":    gin.H{"symbol": "USDC", "contract_address": to, "decimals": 6},
		"software": gin.H{"password": "pw"},
	})
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.Equal(t, "0xabc", resp.Data.(map[string]interface{})["hash"])
	assert.Equal(t, "2000000", f.builder.last.Amount.String())
	assert.Equal(t, "pw", f.builder.last.Method.Software.Password)

	_, err := f.repo.Get(context.Background(), "ETH", "0xabc")
	assert.NoError(t, err)
}

func TestSend_NoSigningMethod(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/v1/tx/send", gin.H{
		"chain": "ETH", "from": from, "to": to, "amount": "1",
	})
	assert.Equal(t, errno.ErrInvalidSignInformation.Code, resp.Code)
	assert.Equal(t, "SIGN", resp.Data.(map[string]interface{})["stage"])
}

func TestValidateAddress(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/v1/address/validate?chain=eth&address="+from, nil)
	require.Equal(t, 0, resp.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["valid"])

	resp = f.do(t, http.MethodGet, "/api/v1/address/validate?chain=eth&address=0x123", nil)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["valid"])
}

func TestHardwareConnect_NoManager(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/v1/hardware/connect", gin.H{"chain": "eth", "transport": "usb"})
	assert.Equal(t, errno.ErrNoDeviceConnected.Code, resp.Code)

	resp = f.do(t, http.MethodPost, "/api/v1/hardware/connect", gin.H{"chain": "eth", "transport": "nfc"})
	assert.Equal(t, errno.ErrBind.Code, resp.Code)
}

func TestKeysAndPin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.vault.SetKey(ctx, chain.ETH, "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", ""))

	resp := f.do(t, http.MethodPost, "/api/v1/password", gin.H{"new_password": "secret-pw"})
	require.Equal(t, 0, resp.Code, resp.Message)

	resp = f.do(t, http.MethodPost, "/api/v1/keys/encrypt", gin.H{"password": "wrong-pw"})
	assert.Equal(t, errno.ErrWrongPassword.Code, resp.Code)

	resp = f.do(t, http.MethodPost, "/api/v1/keys/encrypt", gin.H{"password": "secret-pw"})
	require.Equal(t, 0, resp.Code, resp.Message)

	resp = f.do(t, http.MethodGet, "/api/v1/keys/status", nil)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["double_encryption"])

	resp = f.do(t, http.MethodPost, "/api/v1/pin", gin.H{"pin": "1234", "password": "secret-pw"})
	require.Equal(t, 0, resp.Code, resp.Message)

	resp = f.do(t, http.MethodPost, "/api/v1/pin/check", gin.H{"pin": "1234"})
	assert.Equal(t, true, resp.Data.(map[string]interface{})["valid"])
	resp = f.do(t, http.MethodPost, "/api/v1/pin/check", gin.H{"pin": "9999"})
	assert.Equal(t, 0, resp.Code, "PIN 错误不是错误")
	assert.Equal(t, false, resp.Data.(map[string]interface{})["valid"])

	// 修改口令：私钥转加密到新口令，PIN 被重置
	resp = f.do(t, http.MethodPost, "/api/v1/password", gin.H{"old_password": "secret-pw", "new_password": "rotated-pw"})
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["pin_reset"])
	resp = f.do(t, http.MethodPost, "/api/v1/pin/check", gin.H{"pin": "1234"})
	assert.Equal(t, false, resp.Data.(map[string]interface{})["valid"])

	resp = f.do(t, http.MethodPost, "/api/v1/keys/decrypt", gin.H{"password": "rotated-pw"})
	require.Equal(t, 0, resp.Code, resp.Message)
	k, err := f.vault.GetKey(ctx, chain.ETH, "")
	require.NoError(t, err)
	assert.Equal(t, "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318", k)
}

func TestRefreshAndDestroy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.Save(ctx, &model.TxRecord{Hash: "0x1", ChainID: "ETH", From: from}))
	require.NoError(t, f.repo.Save(ctx, &model.TxRecord{Hash: "0x2", ChainID: "ETH", From: to}))

	resp := f.do(t, http.MethodPost, "/api/v1/tx/refresh", nil)
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.EqualValues(t, 2, resp.Data.(map[string]interface{})["confirmed"])

	require.NoError(t, f.repo.Save(ctx, &model.TxRecord{Hash: "0x3", ChainID: "ETH", From: from}))
	resp = f.do(t, http.MethodPost, "/api/v1/wallet/destroy", gin.H{"addresses": []string{from}})
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.EqualValues(t, 1, resp.Data.(map[string]interface{})["records_removed"])
}
