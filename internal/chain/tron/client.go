// Package tron 实现带宽/能量计费模型的估算器、波场交易构建器以及 HTTP 节点客户端。
package tron

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"wallet-custody/pkg/circuitbreaker"
)

const defaultTimeout = 15 * time.Second

// Transaction 节点返回的交易 JSON，raw_data 原样保留用于广播
type Transaction struct {
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
	Signature  []string        `json:"signature,omitempty"`
	Visible    bool            `json:"visible"`
}

// VerifyID txID 必须等于 sha256(raw_data_hex)，防止节点返回被篡改的交易
func (t *Transaction) VerifyID() error {
	raw, err := hex.DecodeString(t.RawDataHex)
	if err != nil {
		return fmt.Errorf("tron: invalid raw_data_hex: %w", err)
	}
	sum := sha256.Sum256(raw)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), t.TxID) {
		return fmt.Errorf("tron: txID %s does not match raw data", t.TxID)
	}
	return nil
}

// AccountResource getaccountresource 的应答；账户未激活时所有字段为零
type AccountResource struct {
	FreeNetLimit int64 `json:"freeNetLimit"`
	FreeNetUsed  int64 `json:"freeNetUsed"`
	NetLimit     int64 `json:"NetLimit"`
	NetUsed      int64 `json:"NetUsed"`
	EnergyLimit  int64 `json:"EnergyLimit"`
	EnergyUsed   int64 `json:"EnergyUsed"`
}

// Empty 空记录说明账户尚未上链
func (r *AccountResource) Empty() bool {
	return *r == (AccountResource{})
}

// AvailableBandwidth 免费额度剩余 + 质押额度剩余
func (r *AccountResource) AvailableBandwidth() int64 {
	return max(r.FreeNetLimit-r.FreeNetUsed, 0) + max(r.NetLimit-r.NetUsed, 0)
}

func (r *AccountResource) AvailableEnergy() int64 {
	return max(r.EnergyLimit-r.EnergyUsed, 0)
}

// TransactionInfo gettransactioninfobyid 的应答
type TransactionInfo struct {
	ID          string `json:"id"`
	BlockNumber uint64 `json:"blockNumber"`
	Result      string `json:"result"`
	Receipt     struct {
		Result string `json:"result"`
	} `json:"receipt"`
}

// Failed 执行失败 (合约 revert / 能量不足等)
func (i *TransactionInfo) Failed() bool {
	if i.Result == "FAILED" {
		return true
	}
	return i.Receipt.Result != "" && i.Receipt.Result != "SUCCESS"
}

// NodeError 节点返回的业务错误
type NodeError struct {
	Code    string
	Message string
}

func (e *NodeError) Error() string {
	if e.Code == "" {
		return "tron node: " + e.Message
	}
	return fmt.Sprintf("tron node: %s: %s", e.Code, e.Message)
}

// Client 波场 HTTP API 客户端，请求经过限流与熔断
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient rps<=0 表示不限流
func NewClient(baseURL, apiKey string, rps int, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: ratelimit.NewUnlimited(),
		breaker: circuitbreaker.NewCircuitBreaker("tron-node"),
	}
	if rps > 0 {
		c.limiter = ratelimit.New(rps)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post 发送 JSON 请求并解码应答。节点业务错误 (Error 字段) 不计入熔断
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	c.limiter.Take()

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("tron node: %s %s: status %d: %s", http.MethodPost, path, resp.StatusCode, bytes.TrimSpace(data))
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	data := raw.([]byte)

	var nodeErr struct {
		Error string `json:"Error"`
	}
	if json.Unmarshal(data, &nodeErr) == nil && nodeErr.Error != "" {
		return &NodeError{Message: nodeErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("tron node: decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) GetAccountResource(ctx context.Context, address string) (*AccountResource, error) {
	var out AccountResource
	err := c.post(ctx, "/wallet/getaccountresource", map[string]interface{}{
		"address": address,
		"visible": true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTransaction TRX 转账
func (c *Client) CreateTransaction(ctx context.Context, from, to string, amount int64) (*Transaction, error) {
	var out Transaction
	err := c.post(ctx, "/wallet/createtransaction", map[string]interface{}{
		"owner_address": from,
		"to_address":    to,
		"amount":        amount,
		"visible":       true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.TxID == "" {
		return nil, &NodeError{Message: "createtransaction returned no transaction"}
	}
	return &out, nil
}

// ContractCall 触发合约所需参数；Parameter 为不带 selector 的 ABI 编码 (hex)
type ContractCall struct {
	Owner            string
	Contract         string
	FunctionSelector string
	Parameter        string
	FeeLimit         int64
}

type triggerResult struct {
	Result struct {
		Result  bool   `json:"result"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"result"`
	EnergyUsed  int64       `json:"energy_used"`
	Transaction Transaction `json:"transaction"`
}

func (r *triggerResult) err() error {
	if r.Result.Result {
		return nil
	}
	return &NodeError{Code: r.Result.Code, Message: decodeMessage(r.Result.Message)}
}

func (c *Client) trigger(ctx context.Context, path string, call ContractCall) (*triggerResult, error) {
	body := map[string]interface{}{
		"owner_address":     call.Owner,
		"contract_address":  call.Contract,
		"function_selector": call.FunctionSelector,
		"parameter":         call.Parameter,
		"call_value":        0,
		"visible":           true,
	}
	if call.FeeLimit > 0 {
		body["fee_limit"] = call.FeeLimit
	}
	var out triggerResult
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	if err := out.err(); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerSmartContract 构建 TRC20 调用交易
func (c *Client) TriggerSmartContract(ctx context.Context, call ContractCall) (*Transaction, error) {
	out, err := c.trigger(ctx, "/wallet/triggersmartcontract", call)
	if err != nil {
		return nil, err
	}
	return &out.Transaction, nil
}

// TriggerConstantContract 模拟执行，返回消耗的能量
func (c *Client) TriggerConstantContract(ctx context.Context, call ContractCall) (int64, error) {
	out, err := c.trigger(ctx, "/wallet/triggerconstantcontract", call)
	if err != nil {
		return 0, err
	}
	return out.EnergyUsed, nil
}

// BroadcastTransaction 广播已签名交易
func (c *Client) BroadcastTransaction(ctx context.Context, tx *Transaction) error {
	var out struct {
		Result  bool   `json:"result"`
		Code    string `json:"code"`
		Message string `json:"message"`
		TxID    string `json:"txid"`
	}
	if err := c.post(ctx, "/wallet/broadcasttransaction", tx, &out); err != nil {
		return err
	}
	if !out.Result {
		return &NodeError{Code: out.Code, Message: decodeMessage(out.Message)}
	}
	return nil
}

// GetTransactionInfoByID 未上链时返回 (nil, nil)
func (c *Client) GetTransactionInfoByID(ctx context.Context, id string) (*TransactionInfo, error) {
	var out TransactionInfo
	if err := c.post(ctx, "/wallet/gettransactioninfobyid", map[string]string{"value": id}, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, nil
	}
	return &out, nil
}

// GetNowBlock 返回最新块高
func (c *Client) GetNowBlock(ctx context.Context) (uint64, error) {
	var out struct {
		BlockHeader struct {
			RawData struct {
				Number uint64 `json:"number"`
			} `json:"raw_data"`
		} `json:"block_header"`
	}
	if err := c.post(ctx, "/wallet/getnowblock", map[string]string{}, &out); err != nil {
		return 0, err
	}
	return out.BlockHeader.RawData.Number, nil
}

// decodeMessage 节点错误信息通常是 hex 编码的文本
func decodeMessage(msg string) string {
	if b, err := hex.DecodeString(msg); err == nil && len(b) > 0 {
		return string(b)
	}
	return msg
}
