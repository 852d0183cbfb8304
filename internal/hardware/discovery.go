package hardware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wallet-custody/pkg/errno"
)

// DiscoveryState 无线发现状态机的状态
type DiscoveryState int

const (
	StateScanning DiscoveryState = iota
	StateCandidateFound
	StateAwaitingUserChoice
	StateConnecting
	StateOpen
	StateDone
)

func (s DiscoveryState) String() string {
	switch s {
	case StateScanning:
		return "SCANNING"
	case StateCandidateFound:
		return "CANDIDATE_FOUND"
	case StateAwaitingUserChoice:
		return "AWAITING_USER_CHOICE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	default:
		return "DONE"
	}
}

type decision struct {
	device Device
	accept bool
	err    error
}

// discovery 单次无线连接尝试的状态
type discovery struct {
	state DiscoveryState

	queue []Device
	seen  map[string]struct{}

	timedOut   bool
	streamDone bool
	streamErr  error
}

func (d *discovery) enqueue(dev Device) {
	if _, ok := d.seen[dev.ID]; ok {
		return
	}
	d.seen[dev.ID] = struct{}{}
	d.queue = append(d.queue, dev)
	if d.state == StateScanning {
		d.state = StateCandidateFound
	}
}

func (d *discovery) pop() (Device, bool) {
	if len(d.queue) == 0 {
		return Device{}, false
	}
	dev := d.queue[0]
	d.queue = d.queue[1:]
	return dev, true
}

// finished 没有待确认的候选，且不会再有新的候选
func (d *discovery) finished() bool {
	return d.state != StateAwaitingUserChoice && len(d.queue) == 0 && (d.timedOut || d.streamDone)
}

// connectWireless SCANNING -> (CANDIDATE_FOUND <-> AWAITING_USER_CHOICE) -> CONNECTING -> OPEN。
// 超时停止接收新候选并丢弃尚未弹出的候选，正在等待的用户选择会继续完成。
func (m *Manager) connectWireless(ctx context.Context) (Transport, error) {
	if m.radio == nil {
		return nil, fmt.Errorf("%w: wireless transport unavailable", errno.ErrNoDeviceConnected)
	}
	if err := m.radio.RequestPermissions(ctx); err != nil {
		return nil, fmt.Errorf("%w: permission denied: %w", errno.ErrNoDeviceConnected, err)
	}
	enabled, err := m.radio.Enabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errno.ErrNoDeviceConnected, err)
	}
	if !enabled {
		return nil, errno.ErrRadioDisabled
	}
	if m.prompter == nil {
		return nil, fmt.Errorf("%w: no prompter configured", errno.ErrNoDeviceConnected)
	}

	scanCtx, stopScan := context.WithCancel(ctx)
	defer stopScan()

	events, err := m.radio.Scan(scanCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errno.ErrNoDeviceConnected, err)
	}

	timer := time.NewTimer(m.discoveryTimeout)
	defer timer.Stop()

	// 缓冲 1，提示协程在我们提前返回时也不会阻塞
	decisions := make(chan decision, 1)
	d := &discovery{state: StateScanning, seen: make(map[string]struct{})}

	for {
		if d.state != StateAwaitingUserChoice {
			if dev, ok := d.pop(); ok {
				d.state = StateAwaitingUserChoice
				m.log.Debug("candidate awaiting confirmation", zap.String("device", dev.DisplayName))
				go func(dev Device) {
					accept, err := m.prompter.ConfirmDevice(ctx, dev)
					decisions <- decision{device: dev, accept: accept, err: err}
				}(dev)
			}
		}
		if d.finished() {
			d.state = StateDone
			if d.streamErr != nil {
				return nil, fmt.Errorf("%w: %w", errno.ErrNoDeviceConnected, d.streamErr)
			}
			m.log.Info("wireless discovery ended without a device", zap.Bool("timed_out", d.timedOut))
			return nil, nil
		}

		select {
		case ev, ok := <-events:
			if !ok {
				d.streamDone = true
				events = nil
				continue
			}
			if ev.Err != nil {
				d.streamDone = true
				d.streamErr = ev.Err
				events = nil
				stopScan()
				continue
			}
			d.enqueue(ev.Device)

		case <-timer.C:
			d.timedOut = true
			events = nil
			stopScan()
			if n := len(d.queue); n > 0 {
				m.log.Debug("discovery timed out, dropping queued candidates", zap.Int("dropped", n))
				d.queue = nil
			}

		case dec := <-decisions:
			if dec.err != nil {
				return nil, fmt.Errorf("%w: %w", errno.ErrNoDeviceConnected, dec.err)
			}
			if !dec.accept {
				m.log.Debug("candidate skipped", zap.String("device", dec.device.DisplayName))
				d.state = StateScanning
				continue
			}
			stopScan()
			d.state = StateConnecting
			t, err := m.radio.Open(ctx, dec.device)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errno.ErrNoDeviceConnected, err)
			}
			d.state = StateOpen
			m.log.Info("wireless device opened", zap.String("device", dec.device.DisplayName))
			return t, nil

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// UnsupportedRadio 没有无线能力的平台使用，Enabled 恒为 false
type UnsupportedRadio struct{}

var errNoRadio = errors.New("wireless transport not supported on this platform")

func (UnsupportedRadio) RequestPermissions(context.Context) error { return nil }
func (UnsupportedRadio) Enabled(context.Context) (bool, error)   { return false, nil }
func (UnsupportedRadio) Scan(context.Context) (<-chan ScanEvent, error) {
	return nil, errNoRadio
}
func (UnsupportedRadio) Open(context.Context, Device) (Transport, error) {
	return nil, errNoRadio
}
