package hardware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wallet-custody/pkg/errno"
	"wallet-custody/pkg/logger"
	"wallet-custody/pkg/monitor"
)

const (
	DefaultDiscoveryTimeout = 30 * time.Second
	DefaultUSBOpenRetries   = 1
)

// Manager 同一时间只允许一个打开的传输
type Manager struct {
	usb      USBBus
	radio    Radio
	prompter Prompter

	discoveryTimeout time.Duration
	usbOpenRetries   int

	mu   sync.Mutex
	busy bool

	log *zap.Logger
}

type Option func(*Manager)

func WithDiscoveryTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.discoveryTimeout = d
		}
	}
}

func WithUSBOpenRetries(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.usbOpenRetries = n
		}
	}
}

// NewManager usb / radio 可以为 nil，表示该传输方式不可用
func NewManager(usb USBBus, radio Radio, prompter Prompter, opts ...Option) *Manager {
	m := &Manager{
		usb:              usb,
		radio:            radio,
		prompter:         prompter,
		discoveryTimeout: DefaultDiscoveryTimeout,
		usbOpenRetries:   DefaultUSBOpenRetries,
		log:              logger.Named("hardware"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect 发现并打开一个设备。
// 无线发现超时或发现流结束且没有设备被接受时返回 (nil, nil)。
// 返回的 Transport 必须由调用方 Close。
func (m *Manager) Connect(ctx context.Context, kind Kind) (t Transport, err error) {
	if !m.acquire() {
		return nil, errno.ErrTransportBusy
	}
	defer func() {
		monitor.HardwareConnectTotal.WithLabelValues(string(kind), connectResult(t, err)).Inc()
		if t == nil {
			m.release()
			return
		}
		t = &session{Transport: t, release: m.release}
	}()

	switch kind {
	case USB:
		return m.connectUSB()
	case Wireless:
		return m.connectWireless(ctx)
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", errno.ErrNoDeviceConnected, kind)
	}
}

// Busy 当前是否有传输处于打开或连接中
func (m *Manager) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

func (m *Manager) acquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return false
	}
	m.busy = true
	return true
}

func (m *Manager) release() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

func (m *Manager) connectUSB() (Transport, error) {
	if m.usb == nil {
		return nil, fmt.Errorf("%w: usb transport unavailable", errno.ErrNoDeviceConnected)
	}
	devices, err := m.usb.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errno.ErrNoDeviceConnected, err)
	}
	if len(devices) == 0 {
		return nil, errno.ErrNoDeviceConnected
	}

	dev := devices[0]
	var lastErr error
	for attempt := 0; attempt <= m.usbOpenRetries; attempt++ {
		t, err := m.usb.Open(dev)
		if err == nil {
			m.log.Info("usb device opened", zap.String("device", dev.DisplayName), zap.Int("attempt", attempt+1))
			return t, nil
		}
		lastErr = err
		m.log.Warn("usb open failed", zap.String("device", dev.DisplayName), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %w", errno.ErrNoDeviceConnected, lastErr)
}

func connectResult(t Transport, err error) string {
	switch {
	case err != nil:
		return "error"
	case t == nil:
		return "empty"
	default:
		return "ok"
	}
}
