package address

import (
	"encoding/hex"
	"regexp"
	"strings"

	"wallet-custody/pkg/crypto_util"
)

var ethAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ETHGenerator 以太坊 (及 EVM 兼容链) 地址生成与校验
type ETHGenerator struct{}

func NewETHGenerator() *ETHGenerator {
	return &ETHGenerator{}
}

// PubKeyToAddress 将公钥字节 (非压缩格式, 65 bytes, 0x04...) 转换为 EIP-55 地址
func (g *ETHGenerator) PubKeyToAddress(pubKeyBytes []byte) (string, error) {
	if len(pubKeyBytes) == 65 && pubKeyBytes[0] == 0x04 {
		pubKeyBytes = pubKeyBytes[1:]
	}
	if len(pubKeyBytes) != 64 {
		return "", ErrInvalidPubKey
	}

	// Keccak-256 后取后 20 字节
	hash := crypto_util.Keccak256(pubKeyBytes)
	return "0x" + toChecksumAddress(hex.EncodeToString(hash[12:])), nil
}

// IsValid 校验 0x 前缀的 20 字节地址。
// 全小写/全大写视为未带校验和，混合大小写时必须满足 EIP-55。
func (g *ETHGenerator) IsValid(address string) bool {
	if !ethAddressPattern.MatchString(address) {
		return false
	}
	body := address[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return toChecksumAddress(body) == body
}

// toChecksumAddress 实现 EIP-55 混合大小写校验
func toChecksumAddress(address string) string {
	address = strings.ToLower(address)
	hexHash := hex.EncodeToString(crypto_util.Keccak256([]byte(address)))

	var sb strings.Builder
	for i := 0; i < len(address); i++ {
		char := address[i]
		// 检查 hash 的第 i 位是否 >= 8
		if hexCharToInt(hexHash[i]) >= 8 {
			sb.WriteString(strings.ToUpper(string(char)))
		} else {
			sb.WriteByte(char)
		}
	}
	return sb.String()
}

func hexCharToInt(c byte) byte {
	if c >= '0' && c <= '9' {
		return c - '0'
	}
	if c >= 'a' && c <= 'f' {
		return c - 'a' + 10
	}
	return 0
}
