package hardware

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/karalabe/hid"
)

const (
	ledgerVendorID = 0x2c97
	hidChannel     = 0x0101
	hidTagAPDU     = 0x05
	hidPacketSize  = 64
)

// ErrHIDUnsupported 当前平台不支持 HID
var ErrHIDUnsupported = errors.New("hid: not supported on this platform")

// HIDBus 通过 USB HID 枚举 Ledger 设备
type HIDBus struct {
	vendorID uint16

	mu    sync.Mutex
	infos map[string]hid.DeviceInfo
}

func NewHIDBus() *HIDBus {
	return &HIDBus{vendorID: ledgerVendorID, infos: make(map[string]hid.DeviceInfo)}
}

func (b *HIDBus) Enumerate() ([]Device, error) {
	if !hid.Supported() {
		return nil, ErrHIDUnsupported
	}
	infos, err := hid.Enumerate(b.vendorID, 0)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		// Ledger 每个设备会暴露多个接口，只有 interface 0 (或 usage page 0xffa0) 承载 APDU
		if info.Interface != 0 && info.UsagePage != 0xffa0 {
			continue
		}
		b.infos[info.Path] = info
		devices = append(devices, Device{
			ID:          info.Path,
			DisplayName: fmt.Sprintf("%s %s", info.Manufacturer, info.Product),
			Kind:        USB,
		})
	}
	return devices, nil
}

func (b *HIDBus) Open(d Device) (Transport, error) {
	b.mu.Lock()
	info, ok := b.infos[d.ID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("hid: device %s was not enumerated", d.ID)
	}
	dev, err := info.Open()
	if err != nil {
		return nil, err
	}
	return &hidTransport{dev: dev}, nil
}

// hidTransport Ledger HID 分包协议: channel(2) | tag(1) | seq(2) | [len(2)] | data
type hidTransport struct {
	dev hid.Device
}

func (t *hidTransport) Exchange(apdu []byte) ([]byte, error) {
	if err := t.writePackets(apdu); err != nil {
		return nil, err
	}
	return t.readPackets()
}

func (t *hidTransport) Close() error {
	return t.dev.Close()
}

func (t *hidTransport) writePackets(msg []byte) error {
	if len(msg) >= 1<<16 {
		return fmt.Errorf("hid: message too long (%d)", len(msg))
	}
	for _, packet := range framePackets(msg) {
		n, err := t.dev.Write(packet)
		if err != nil {
			return err
		}
		if n != len(packet) {
			return fmt.Errorf("hid: short write: %d != %d", n, len(packet))
		}
	}
	return nil
}

func (t *hidTransport) readPackets() ([]byte, error) {
	var r frameReader
	for !r.done() {
		packet := make([]byte, hidPacketSize)
		n, err := t.dev.Read(packet)
		if err != nil {
			return nil, err
		}
		if n != hidPacketSize {
			return nil, fmt.Errorf("hid: short read: %d != %d", n, hidPacketSize)
		}
		if err := r.feed(packet); err != nil {
			return nil, err
		}
	}
	return r.msg, nil
}

// framePackets 把一个 APDU 拆成若干 64 字节的 HID 包
func framePackets(msg []byte) [][]byte {
	var packets [][]byte
	seq := 0
	offset := 0
	for {
		packet := make([]byte, hidPacketSize)
		cur := packet
		binary.BigEndian.PutUint16(cur, hidChannel)
		cur[2] = hidTagAPDU
		binary.BigEndian.PutUint16(cur[3:], uint16(seq))
		cur = cur[5:]
		if seq == 0 {
			binary.BigEndian.PutUint16(cur, uint16(len(msg)))
			cur = cur[2:]
		}
		offset += copy(cur, msg[offset:])
		packets = append(packets, packet)
		seq++
		if offset >= len(msg) {
			return packets
		}
	}
}

// frameReader 把 HID 包重新拼成完整的应答
type frameReader struct {
	seq      uint16
	started  bool
	dataLeft int
	msg      []byte
}

func (r *frameReader) done() bool {
	return r.started && r.dataLeft == 0
}

func (r *frameReader) feed(packet []byte) error {
	if len(packet) < 5 {
		return fmt.Errorf("hid: packet too short (%d)", len(packet))
	}
	if ch := binary.BigEndian.Uint16(packet); ch != hidChannel {
		return fmt.Errorf("hid: wrong channel %x", ch)
	}
	if packet[2] != hidTagAPDU {
		return fmt.Errorf("hid: wrong tag %x", packet[2])
	}
	if seq := binary.BigEndian.Uint16(packet[3:]); seq != r.seq {
		return fmt.Errorf("hid: wrong seq %d", seq)
	}
	cur := packet[5:]
	if !r.started {
		if len(cur) < 2 {
			return fmt.Errorf("hid: first packet too short")
		}
		r.dataLeft = int(binary.BigEndian.Uint16(cur))
		cur = cur[2:]
		r.started = true
	}
	if r.dataLeft < len(cur) {
		cur = cur[:r.dataLeft]
	}
	r.msg = append(r.msg, cur...)
	r.dataLeft -= len(cur)
	r.seq++
	return nil
}
