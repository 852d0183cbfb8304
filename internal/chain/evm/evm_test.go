package evm

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wallet-custody/internal/chain"
	"wallet-custody/internal/chain/erc20"
	"wallet-custody/internal/fee"
	"wallet-custody/internal/hardware"
	"wallet-custody/internal/txn"
	"wallet-custody/pkg/errno"
)

const (
	testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	receiver   = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	usdc       = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

var anyArg = mock.Anything

func testAddress(t *testing.T) common.Address {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey)
}

type staticKeys map[chain.ChainID]string

func (s staticKeys) GetKey(_ context.Context, id chain.ChainID, _ string) (string, error) {
	k, ok := s[id]
	if !ok {
		return "", errno.ErrKeyNotFound
	}
	return k, nil
}

// legacyClient BSC: gasPrice=50
func legacyClient(gas uint64) *mockClient {
	c := &mockClient{}
	c.On("SuggestGasPrice", anyArg).Return(big.NewInt(50), nil)
	c.On("PendingNonceAt", anyArg, anyArg).Return(uint64(7), nil)
	c.On("EstimateGas", anyArg, anyArg).Return(gas, nil)
	return c
}

// dynamicClient ETH: baseFee=30, tip=20 -> maxFeePerGas=80
func dynamicClient(gas uint64) *mockClient {
	c := &mockClient{}
	c.On("SuggestGasPrice", anyArg).Return(big.NewInt(45), nil)
	c.On("SuggestGasTipCap", anyArg).Return(big.NewInt(20), nil)
	c.On("HeaderByNumber", anyArg, (*big.Int)(nil)).Return(&types.Header{BaseFee: big.NewInt(30)}, nil)
	c.On("PendingNonceAt", anyArg, anyArg).Return(uint64(3), nil)
	c.On("EstimateGas", anyArg, anyArg).Return(gas, nil)
	return c
}

func TestEstimateFees_NativeLegacy(t *testing.T) {
	cfg := chain.DefaultRegistry().Get(chain.BSC)
	c := legacyClient(21000)
	from := testAddress(t)

	q, err := NewEstimator(cfg, c).EstimateFees(context.Background(), fee.EstimateRequest{
		Chain: chain.BSC, From: from.Hex(), To: receiver, Token: cfg.NativeToken(),
	})
	require.NoError(t, err)

	gq := q.(*fee.GasQuote)
	assert.Equal(t, uint64(21000), gq.GasUnits)
	assert.Nil(t, gq.MaxFeePerGas)
	assert.Equal(t, uint64(7), gq.Nonce)
	assert.Equal(t, "1050000", gq.TotalFee.String())

	// 原生转账探测: to=收款人, value=0, 无 data
	c.AssertCalled(t, "EstimateGas", anyArg, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		return msg.To.Hex() == receiver && msg.Value.Sign() == 0 && len(msg.Data) == 0 && msg.From == from
	}))
}

func TestEstimateFees_TokenDynamic(t *testing.T) {
	cfg := chain.DefaultRegistry().Get(chain.ETH)
	c := dynamicClient(65000)
	from := testAddress(t)
	token := chain.Token{Symbol: "USDC", ContractAddress: usdc, Decimals: 6}

	q, err := NewEstimator(cfg, c).EstimateFees(context.Background(), fee.EstimateRequest{
		Chain: chain.ETH, From: from.Hex(), To: receiver, Token: token, Amount: big.NewInt(5_000_000),
	})
	require.NoError(t, err)

	gq := q.(*fee.GasQuote)
	assert.Equal(t, uint64(130000), gq.GasUnits, "合约调用 2 倍容差")
	assert.Equal(t, "80", gq.MaxFeePerGas.String())
	assert.Equal(t, "20", gq.MaxPriorityFeePerGas.String())
	assert.Equal(t, "10400000", gq.TotalFee.String())

	// 代币探测: to=合约, data=transfer(from, 0)
	c.AssertCalled(t, "EstimateGas", anyArg, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
		if msg.To.Hex() != usdc || msg.Value.Sign() != 0 {
			return false
		}
		to, amount, err := erc20.UnpackTransfer(msg.Data)
		return err == nil && to == from && amount.Sign() == 0
	}))
}

func TestEstimateFees_NodeFailure(t *testing.T) {
	cfg := chain.DefaultRegistry().Get(chain.BSC)
	c := &mockClient{}
	c.On("SuggestGasPrice", anyArg).Return(nil, errors.New("connection refused"))
	c.On("PendingNonceAt", anyArg, anyArg).Return(uint64(0), nil)

	q, err := NewEstimator(cfg, c).EstimateFees(context.Background(), fee.EstimateRequest{
		From: testAddress(t).Hex(), To: receiver, Token: cfg.NativeToken(),
	})
	assert.Nil(t, q, "不会退化为零费用")
	assert.ErrorIs(t, err, errno.ErrEstimationFailure)

	c2 := &mockClient{}
	c2.On("SuggestGasPrice", anyArg).Return(big.NewInt(1), nil)
	c2.On("PendingNonceAt", anyArg, anyArg).Return(uint64(0), nil)
	c2.On("EstimateGas", anyArg, anyArg).Return(uint64(0), errors.New("execution reverted"))
	_, err = NewEstimator(cfg, c2).EstimateFees(context.Background(), fee.EstimateRequest{
		From: testAddress(t).Hex(), To: receiver, Token: cfg.NativeToken(),
	})
	assert.ErrorIs(t, err, errno.ErrEstimationFailure)
}

func TestEstimateFees_InvalidFrom(t *testing.T) {
	cfg := chain.DefaultRegistry().Get(chain.ETH)
	_, err := NewEstimator(cfg, &mockClient{}).EstimateFees(context.Background(), fee.EstimateRequest{From: "nope"})
	assert.ErrorIs(t, err, errno.ErrInvalidAddress)
}

func TestBuildAndSend_SoftwareToken(t *testing.T) {
	cfg := chain.DefaultRegistry().Get(chain.ETH)
	c := dynamicClient(65000)
	var sent *types.Transaction
	c.On("SendTransaction", anyArg, anyArg).Run(func(args mock.Arguments) {
		sent = args.Get(1).(*types.Transaction)
	}).Return(nil)

	from := testAddress(t)
	token := chain.Token{Symbol: "USDC", ContractAddress: usdc, Decimals: 6}
	est := NewEstimator(cfg, c)
	b := NewBuilder(cfg, c, est, staticKeys{chain.ETH: testKeyHex}, nil, nil)

	preview, err := est.EstimateFees(context.Background(), fee.EstimateRequest{
		Chain: chain.ETH, From: from.Hex(), To: receiver, Token: token, Amount: big.NewInt(5_000_000),
	})
	require.NoError(t, err)

	req := &txn.SignRequest{
		Chain: chain.ETH, From: from.Hex(), To: receiver, Token: token, Amount: big.NewInt(5_000_000),
		FeeQuote: preview,
		Method:   txn.SigningMethod{Software: &txn.SoftwareSigner{}},
	}
	bc, err := b.BuildAndSend(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, sent)

	// 预览与发送时的重新估算完全一致
	assert.Equal(t, preview.Total().String(), bc.Quote.Total().String())

	assert.Equal(t, uint8(types.DynamicFeeTxType), sent.Type())
	assert.Equal(t, usdc, sent.To().Hex(), "代币转账 to 为合约")
	assert.Equal(t, 0, sent.Value().Sign())
	assert.Equal(t, uint64(130000), sent.Gas())
	assert.Equal(t, "80", sent.GasFeeCap().String())
	assert.Equal(t, uint64(3), sent.Nonce())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), sent)
	require.NoError(t, err)
	assert.Equal(t, from, sender)

	rec, err := b.NormalizeForStorage(context.Background(), bc)
	require.NoError(t, err)
	assert.Equal(t, receiver, rec.To, "从 call data 还原真实收款人")
	assert.Equal(t, usdc, rec.ContractAddress)
	assert.Equal(t, "5000000", rec.Value)
	assert.Equal(t, sent.Hash().Hex(), rec.Hash)
	assert.Equal(t, "ETH", rec.ChainID)
}

func TestBuildAndSend_BroadcastRejected(t *testing.T) {
	cfg := chain.DefaultRegistry().Get(chain.BSC)
	c := legacyClient(21000)
	c.On("SendTransaction", anyArg, anyArg).Return(errors.New("nonce too low"))

	b := NewBuilder(cfg, c, NewEstimator(cfg, c), staticKeys{chain.BSC: testKeyHex}, nil, nil)
	_, err := b.BuildAndSend(context.Background(), &txn.SignRequest{
		Chain: chain.BSC, From: testAddress(t).Hex(), To: receiver, Token: cfg.NativeToken(), Amount: big.NewInt(1),
		Method: txn.SigningMethod{Software: &txn.SoftwareSigner{}},
	})

	var se *txn.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, txn.StageBroadcast, se.Stage)
	assert.ErrorIs(t, err, errno.ErrBroadcastFailure)
}

func TestBuildAndSend_KeyMismatch(t *testing.T) {
	cfg := chain.DefaultRegistry().Get(chain.BSC)
	c := legacyClient(21000)
	b := NewBuilder(cfg, c, NewEstimator(cfg, c), staticKeys{chain.BSC: testKeyHex}, nil, nil)

	_, err := b.BuildAndSend(context.Background(), &txn.SignRequest{
		Chain: chain.BSC, From: receiver, To: receiver, Token: cfg.NativeToken(), Amount: big.NewInt(1),
		Method: txn.SigningMethod{Software: &txn.SoftwareSigner{}},
	})
	var se *txn.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, txn.StageSign, se.Stage)
	c.AssertNotCalled(t, "SendTransaction", anyArg, anyArg)
}

// fakeLedger 模拟设备上的以太坊应用，用真实私钥对收到的 payload 签名
type fakeLedger struct {
	t       *testing.T
	chainID int64
	pending []byte
	closed  int
	reject  bool
}

func (f *fakeLedger) Exchange(apdu []byte) ([]byte, error) {
	key, _ := crypto.HexToECDSA(testKeyHex)
	ins, p1, data := apdu[1], apdu[2], apdu[5:]
	switch ins {
	case 0x02:
		addr := []byte(strings.ToLower(strings.TrimPrefix(crypto.PubkeyToAddress(key.PublicKey).Hex(), "0x")))
		out := []byte{65}
		out = append(out, crypto.FromECDSAPub(&key.PublicKey)...)
		out = append(out, byte(len(addr)))
		out = append(out, addr...)
		return append(out, 0x90, 0x00), nil
	case 0x04:
		if f.reject {
			return []byte{0x69, 0x85}, nil
		}
		if p1 == 0x00 {
			pathLen := int(data[0])*4 + 1
			f.pending = append([]byte{}, data[pathLen:]...)
		} else {
			f.pending = append(f.pending, data...)
		}
		sig, err := crypto.Sign(crypto.Keccak256(f.pending), key)
		require.NoError(f.t, err)
		v := sig[64]
		if f.pending[0] >= 0xc0 { // legacy RLP list
			v = byte(f.chainID*2 + 35 + int64(v))
		}
		out := append([]byte{v}, sig[:64]...)
		return append(out, 0x90, 0x00), nil
	}
	return []byte{0x6d, 0x00}, nil
}

func (f *fakeLedger) Close() error {
	f.closed++
	return nil
}

type fakeBus struct{ dev *fakeLedger }

func (b *fakeBus) Enumerate() ([]hardware.Device, error) {
	return []hardware.Device{{ID: "1", DisplayName: "Nano S", Kind: hardware.USB}}, nil
}
func (b *fakeBus) Open(hardware.Device) (hardware.Transport, error) { return b.dev, nil }

func TestBuildAndSend_Hardware(t *testing.T) {
	for _, id := range []chain.ChainID{chain.POLYGON, chain.BSC} {
		t.Run(string(id), func(t *testing.T) {
			cfg := chain.DefaultRegistry().Get(id)
			var c *mockClient
			if cfg.SupportsEIP1559 {
				c = dynamicClient(21000)
			} else {
				c = legacyClient(21000)
			}
			var sent *types.Transaction
			c.On("SendTransaction", anyArg, anyArg).Run(func(args mock.Arguments) {
				sent = args.Get(1).(*types.Transaction)
			}).Return(nil)

			dev := &fakeLedger{t: t, chainID: cfg.NetworkID}
			mgr := hardware.NewManager(&fakeBus{dev: dev}, nil, nil)
			b := NewBuilder(cfg, c, NewEstimator(cfg, c), nil, mgr, nil)

			from := testAddress(t)
			_, err := b.BuildAndSend(context.Background(), &txn.SignRequest{
				Chain: id, From: from.Hex(), To: receiver, Token: cfg.NativeToken(), Amount: big.NewInt(1000),
				Method: txn.SigningMethod{Hardware: &txn.HardwareSigner{DeviceIndex: 0, Transport: hardware.USB}},
			})
			require.NoError(t, err)
			require.NotNil(t, sent)

			sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(cfg.NetworkID)), sent)
			require.NoError(t, err)
			assert.Equal(t, from, sender)
			assert.Equal(t, 1, dev.closed, "签名后关闭传输")
			assert.False(t, mgr.Busy())
		})
	}
}

func TestBuildAndSend_HardwareFailureClosesTransport(t *testing.T) {
	cases := []struct {
		name   string
		from   string
		reject bool
		want   error
	}{
		{name: "用户在设备上拒绝", reject: true, want: errno.ErrDeviceRejected},
		{name: "设备账户与发送方不符", from: receiver, want: errno.ErrInvalidSignInformation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := chain.DefaultRegistry().Get(chain.BSC)
			c := legacyClient(21000)
			dev := &fakeLedger{t: t, chainID: cfg.NetworkID, reject: tc.reject}
			mgr := hardware.NewManager(&fakeBus{dev: dev}, nil, nil)
			b := NewBuilder(cfg, c, NewEstimator(cfg, c), nil, mgr, nil)

			from := tc.from
			if from == "" {
				from = testAddress(t).Hex()
			}
			_, err := b.BuildAndSend(context.Background(), &txn.SignRequest{
				Chain: chain.BSC, From: from, To: receiver, Token: cfg.NativeToken(), Amount: big.NewInt(1),
				Method: txn.SigningMethod{Hardware: &txn.HardwareSigner{Transport: hardware.USB}},
			})
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 1, dev.closed, "失败路径同样关闭传输")
			assert.False(t, mgr.Busy(), "传输释放后可再次连接")
			c.AssertNotCalled(t, "SendTransaction", anyArg, anyArg)
		})
	}
}

func TestBuildAndSend_HardwareNoDevice(t *testing.T) {
	cfg := chain.DefaultRegistry().Get(chain.BSC)
	c := legacyClient(21000)
	radio := hardware.UnsupportedRadio{}
	mgr := hardware.NewManager(nil, radio, nil)
	b := NewBuilder(cfg, c, NewEstimator(cfg, c), nil, mgr, nil)

	_, err := b.BuildAndSend(context.Background(), &txn.SignRequest{
		Chain: chain.BSC, From: testAddress(t).Hex(), To: receiver, Token: cfg.NativeToken(), Amount: big.NewInt(1),
		Method: txn.SigningMethod{Hardware: &txn.HardwareSigner{Transport: hardware.USB}},
	})
	assert.ErrorIs(t, err, errno.ErrNoDeviceConnected)
}

func TestRecoveryID(t *testing.T) {
	legacy := types.NewTx(&types.LegacyTx{})
	dynamic := types.NewTx(&types.DynamicFeeTx{})

	// chainId=1: v = 37 + recid
	assert.Equal(t, byte(0), recoveryID(legacy, 37))
	assert.Equal(t, byte(1), recoveryID(legacy, 38))
	// chainId=137: v = 309 + recid, 低字节 53/54
	assert.Equal(t, byte(0), recoveryID(legacy, byte(309&0xff)))
	assert.Equal(t, byte(1), recoveryID(legacy, byte(310&0xff)))

	assert.Equal(t, byte(1), recoveryID(dynamic, 1))
	assert.Equal(t, byte(0), recoveryID(dynamic, 27))
	assert.Equal(t, byte(1), recoveryID(dynamic, 28))
}

func TestTracker(t *testing.T) {
	c := &mockClient{}
	found := common.HexToHash("0x01")
	missing := common.HexToHash("0x02")
	c.On("TransactionReceipt", anyArg, found).Return(&types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)}, nil)
	c.On("TransactionReceipt", anyArg, missing).Return(nil, ethereum.NotFound)
	c.On("BlockNumber", anyArg).Return(uint64(111), nil)

	tr := NewTracker(c)
	conf, failed, ok, err := tr.Confirmations(context.Background(), found.Hex())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, failed)
	assert.Equal(t, uint64(12), conf)

	_, _, ok, err = tr.Confirmations(context.Background(), missing.Hex())
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = tr.Confirmations(context.Background(), found.Hex())
	require.NoError(t, err)
	c.AssertNumberOfCalls(t, "BlockNumber", 1)
}
