package chain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"wallet-custody/pkg/address"
	"wallet-custody/pkg/errno"
)

// ChainID 支持的网络标识，编译期确定
type ChainID string

const (
	ETH     ChainID = "ETH"
	BSC     ChainID = "BSC"
	POLYGON ChainID = "POLYGON"
	AVAX    ChainID = "AVAX"
	TRON    ChainID = "TRON"
)

const (
	evmCoinType  uint32 = 60
	tronCoinType uint32 = 195
)

var (
	evmAddressPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	tronAddressPattern = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)
)

// Config 单条链的静态配置，启动后不再修改
type Config struct {
	ID ChainID
	// UsesGasPriceFeeModel 为 true 走 gas 模型，否则走带宽/能量模型
	UsesGasPriceFeeModel bool
	NativeSymbol         string
	Decimals             int32
	// NetworkID EVM 链的 chainId，Tron 为主网 id
	NetworkID       int64
	SupportsEIP1559 bool
	CoinType        uint32
	DerivationPath  string
	AddressPattern  *regexp.Regexp

	validate func(string) bool
	fromPub  func([]byte) (string, error)
}

// PathForAccount 返回第 i 个账户的 BIP44 路径
func (c Config) PathForAccount(i int) string {
	return fmt.Sprintf("m/44'/%d'/%d'/0/0", c.CoinType, i)
}

// IsValidAddress 先做格式匹配，再做校验和检查
func (c Config) IsValidAddress(addr string) bool {
	if c.AddressPattern == nil || !c.AddressPattern.MatchString(addr) {
		return false
	}
	if c.validate != nil {
		return c.validate(addr)
	}
	return true
}

// AddressFromPublicKey 非压缩公钥 -> 本链地址
func (c Config) AddressFromPublicKey(pub []byte) (string, error) {
	if c.fromPub == nil {
		return "", fmt.Errorf("chain: %s has no address generator", c.ID)
	}
	return c.fromPub(pub)
}

// NativeToken 链的原生币
func (c Config) NativeToken() Token {
	return Token{Symbol: c.NativeSymbol, Decimals: c.Decimals}
}

// KeyName 私钥在安全存储中的条目名
func (c Config) KeyName() string {
	return "privateKey_" + string(c.ID)
}

func evmConfig(id ChainID, symbol string, networkID int64, eip1559 bool) Config {
	gen := address.NewETHGenerator()
	cfg := Config{
		ID:                   id,
		UsesGasPriceFeeModel: true,
		NativeSymbol:         symbol,
		Decimals:             18,
		NetworkID:            networkID,
		SupportsEIP1559:      eip1559,
		CoinType:             evmCoinType,
		AddressPattern:       evmAddressPattern,
		validate:             gen.IsValid,
		fromPub:              gen.PubKeyToAddress,
	}
	cfg.DerivationPath = cfg.PathForAccount(0)
	return cfg
}

func tronConfig() Config {
	gen := address.NewTronGenerator()
	cfg := Config{
		ID:             TRON,
		NativeSymbol:   "TRX",
		Decimals:       6,
		NetworkID:      728126428,
		CoinType:       tronCoinType,
		AddressPattern: tronAddressPattern,
		validate:       gen.IsValid,
		fromPub:        gen.PubKeyToAddress,
	}
	cfg.DerivationPath = cfg.PathForAccount(0)
	return cfg
}

// Registry ChainID -> Config 的只读表
type Registry struct {
	configs map[ChainID]Config
	order   []ChainID
}

// NewRegistry 用给定配置构建注册表，重复的 id 视为编程错误
func NewRegistry(configs ...Config) *Registry {
	r := &Registry{configs: make(map[ChainID]Config, len(configs))}
	for _, c := range configs {
		if _, dup := r.configs[c.ID]; dup {
			panic(fmt.Sprintf("chain: duplicate registration of %s", c.ID))
		}
		r.configs[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	return r
}

// DefaultRegistry 内置的全部链
func DefaultRegistry() *Registry {
	return NewRegistry(
		evmConfig(ETH, "ETH", 1, true),
		evmConfig(BSC, "BNB", 56, false),
		evmConfig(POLYGON, "POL", 137, true),
		evmConfig(AVAX, "AVAX", 43114, true),
		tronConfig(),
	)
}

// Get 未注册的 id 属于编程错误，直接 panic
func (r *Registry) Get(id ChainID) Config {
	c, ok := r.configs[id]
	if !ok {
		panic(fmt.Sprintf("chain: %s is not registered", id))
	}
	return c
}

// Lookup 供外部输入使用，不会 panic
func (r *Registry) Lookup(id ChainID) (Config, bool) {
	c, ok := r.configs[id]
	return c, ok
}

// All 按注册顺序返回
func (r *Registry) All() []Config {
	out := make([]Config, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.configs[id])
	}
	return out
}

func (r *Registry) IDs() []ChainID {
	out := make([]ChainID, len(r.order))
	copy(out, r.order)
	return out
}

// Parse 把用户输入 (大小写不敏感) 解析为已注册的 ChainID
func (r *Registry) Parse(s string) (ChainID, error) {
	id := ChainID(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := r.configs[id]; !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", errno.ErrUnsupportedChain, s, r.supported())
	}
	return id, nil
}

func (r *Registry) supported() string {
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, string(id))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
