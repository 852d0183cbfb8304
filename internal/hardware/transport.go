// Package hardware 负责发现、选择、打开与关闭外部签名设备的传输通道 (USB / 无线)。
package hardware

import (
	"context"
	"sync"
)

// Kind 传输方式
type Kind string

const (
	USB      Kind = "usb"
	Wireless Kind = "wireless"
)

func (k Kind) Valid() bool {
	return k == USB || k == Wireless
}

// Device 发现阶段得到的设备句柄，打开传输或发现结束后即丢弃
type Device struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Kind        Kind   `json:"transportKind"`
}

// Transport 与设备应用之间的 APDU 通道
type Transport interface {
	Exchange(apdu []byte) ([]byte, error)
	Close() error
}

// USBBus 枚举并打开已连接的 USB 设备
type USBBus interface {
	Enumerate() ([]Device, error)
	Open(d Device) (Transport, error)
}

// ScanEvent 发现流中的一条事件，Err 非空表示订阅出错
type ScanEvent struct {
	Device Device
	Err    error
}

// Radio 无线发现能力 (蓝牙等)
type Radio interface {
	// RequestPermissions 申请无线/定位权限，被拒绝时返回 error
	RequestPermissions(ctx context.Context) error
	Enabled(ctx context.Context) (bool, error)
	// Scan 持续上报设备，ctx 取消或发现结束时关闭 channel
	Scan(ctx context.Context) (<-chan ScanEvent, error)
	Open(ctx context.Context, d Device) (Transport, error)
}

// Prompter 向用户展示候选设备。返回 true 表示连接该设备，false 表示继续扫描
type Prompter interface {
	ConfirmDevice(ctx context.Context, d Device) (bool, error)
}

// PrompterFunc 适配普通函数
type PrompterFunc func(ctx context.Context, d Device) (bool, error)

func (f PrompterFunc) ConfirmDevice(ctx context.Context, d Device) (bool, error) {
	return f(ctx, d)
}

// session 包装已打开的 Transport，Close 只生效一次并释放 Manager 的独占标记
type session struct {
	Transport
	once    sync.Once
	release func()
	err     error
}

func (s *session) Close() error {
	s.once.Do(func() {
		s.err = s.Transport.Close()
		s.release()
	})
	return s.err
}
