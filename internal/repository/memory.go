package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"wallet-custody/internal/model"
)

// Memory 进程内实现，用于 CLI 与测试
type Memory struct {
	mu     sync.RWMutex
	nextID uint64
	byID   map[uint64]*model.TxRecord
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[uint64]*model.TxRecord)}
}

func (m *Memory) Save(_ context.Context, rec *model.TxRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byID {
		if r.ChainID == rec.ChainID && r.Hash == rec.Hash {
			return nil
		}
	}
	m.nextID++
	rec.ID = m.nextID
	cp := *rec
	m.byID[cp.ID] = &cp
	return nil
}

func (m *Memory) Get(_ context.Context, chainID, hash string) (*model.TxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.byID {
		if r.ChainID == chainID && r.Hash == hash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *Memory) ListPending(_ context.Context, limit int) ([]*model.TxRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.TxRecord, 0, len(m.byID))
	for _, r := range m.byID {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) UpdateStatus(_ context.Context, id uint64, confirmations uint64, isError bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return ErrRecordNotFound
	}
	r.Confirmations = confirmations
	r.IsError = isError
	return nil
}

func (m *Memory) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *Memory) DeleteByAddress(_ context.Context, address string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.byID {
		if sameAddress(r.From, address) {
			delete(m.byID, id)
			n++
		}
	}
	return n, nil
}

func sameAddress(a, b string) bool {
	if strings.HasPrefix(a, "0x") {
		return strings.EqualFold(a, b)
	}
	return a == b
}
