// Package ledger 实现签名设备上以太坊和波场应用的 APDU 协议。
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"wallet-custody/internal/hardware"
	"wallet-custody/pkg/errno"
)

const (
	claApp = 0xE0

	insGetAddress = 0x02
	insSign       = 0x04
	insERC20Info  = 0x0A

	maxChunk = 255

	hardenedOffset = 0x80000000
)

// 状态字
const (
	swOK             = 0x9000
	swUserRejected   = 0x6985
	swAppNotOpen     = 0x6E00
	swInvalidData    = 0x6A80
	swLockedDevice   = 0x5515
	swWrongLength    = 0x6700
	swInsUnsupported = 0x6D00
)

// StatusError 设备返回的非成功状态字
type StatusError uint16

func (e StatusError) Error() string {
	switch uint16(e) {
	case swAppNotOpen:
		return "ledger: application not open on device (0x6e00)"
	case swLockedDevice:
		return "ledger: device locked (0x5515)"
	case swInvalidData:
		return "ledger: invalid data (0x6a80)"
	case swWrongLength:
		return "ledger: wrong length (0x6700)"
	case swInsUnsupported:
		return "ledger: instruction not supported (0x6d00)"
	default:
		return fmt.Sprintf("ledger: unexpected status 0x%04x", uint16(e))
	}
}

var ErrShortResponse = errors.New("ledger: response too short")

// command CLA | INS | P1 | P2 | Lc | data
func command(ins, p1, p2 byte, data []byte) []byte {
	out := make([]byte, 0, 5+len(data))
	out = append(out, claApp, ins, p1, p2, byte(len(data)))
	return append(out, data...)
}

// exchange 发送 APDU 并检查状态字，用户拒绝映射为 ErrDeviceRejected
func exchange(t hardware.Transport, apdu []byte) ([]byte, error) {
	reply, err := t.Exchange(apdu)
	if err != nil {
		return nil, err
	}
	if len(reply) < 2 {
		return nil, ErrShortResponse
	}
	sw := binary.BigEndian.Uint16(reply[len(reply)-2:])
	switch sw {
	case swOK:
		return reply[:len(reply)-2], nil
	case swUserRejected:
		return nil, errno.ErrDeviceRejected
	default:
		return nil, StatusError(sw)
	}
}

// ParsePath "m/44'/60'/0'/0/0" -> []uint32
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) < 2 || parts[0] != "m" {
		return nil, fmt.Errorf("ledger: invalid derivation path %q", path)
	}
	out := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h")
		p = strings.TrimRight(p, "'h")
		n, err := strconv.ParseUint(p, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("ledger: invalid path component %q: %w", p, err)
		}
		idx := uint32(n)
		if hardened {
			idx += hardenedOffset
		}
		out = append(out, idx)
	}
	return out, nil
}

// serializePath len(1) | index(4 BE)...
func serializePath(path string) ([]byte, error) {
	indexes, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1, 1+4*len(indexes))
	out[0] = byte(len(indexes))
	for _, idx := range indexes {
		out = binary.BigEndian.AppendUint32(out, idx)
	}
	return out, nil
}

// chunks 路径放在第一块，其余数据按 maxChunk 切分
func chunks(pathBytes, payload []byte) [][]byte {
	data := append(append([]byte{}, pathBytes...), payload...)
	var out [][]byte
	for len(data) > 0 {
		n := min(len(data), maxChunk)
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

// readLengthPrefixed 读取 len(1) | bytes
func readLengthPrefixed(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 1 {
		return nil, nil, ErrShortResponse
	}
	n := int(buf[0])
	if len(buf) < 1+n {
		return nil, nil, ErrShortResponse
	}
	return buf[1 : 1+n], buf[1+n:], nil
}
