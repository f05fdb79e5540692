// internal/ledger/memory.go
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

// TransferHook observes a completed transfer. Hooks run after balances have
// moved; a hook that calls back into a guarded engine operation exercises
// the reentrancy protection.
type TransferHook func(ctx context.Context, from, to types.Address, amount uint64)

// Memory is an in-process AssetLedger. It backs the base currency in the
// daemon wiring and every asset ledger in tests.
type Memory struct {
	mu         sync.Mutex
	name       string
	symbol     string
	controller types.Address
	balances   map[types.Address]uint64
	approvals  map[types.Address]map[types.Address]uint64
	restricted bool
	hooks      []TransferHook
}

// NewMemory creates a ledger with totalSupply minted to holder.
func NewMemory(name, symbol string, totalSupply uint64, controller, holder types.Address) *Memory {
	m := &Memory{
		name:       name,
		symbol:     symbol,
		controller: controller,
		balances:   make(map[types.Address]uint64),
		approvals:  make(map[types.Address]map[types.Address]uint64),
	}
	if totalSupply > 0 {
		m.balances[holder] = totalSupply
	}
	return m
}

// AddHook registers a transfer observer.
func (m *Memory) AddHook(h TransferHook) {
	m.mu.Lock()
	m.hooks = append(m.hooks, h)
	m.mu.Unlock()
}

// Approve lets spender move up to amount from owner's balance.
func (m *Memory) Approve(_ context.Context, owner, spender types.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.approvals[owner] == nil {
		m.approvals[owner] = make(map[types.Address]uint64)
	}
	m.approvals[owner][spender] = amount
	return nil
}

func (m *Memory) Transfer(ctx context.Context, from, to types.Address, amount uint64) error {
	hooks, err := m.move(from, to, amount, from)
	if err != nil {
		return err
	}
	for _, h := range hooks {
		h(ctx, from, to, amount)
	}
	return nil
}

func (m *Memory) TransferFrom(ctx context.Context, spender, from, to types.Address, amount uint64) error {
	m.mu.Lock()
	allowance := uint64(0)
	if a := m.approvals[from]; a != nil {
		allowance = a[spender]
	}
	if allowance < amount {
		m.mu.Unlock()
		return fmt.Errorf("ledger %s: allowance %d below transfer amount %d", m.symbol, allowance, amount)
	}
	m.approvals[from][spender] = allowance - amount
	m.mu.Unlock()

	hooks, err := m.move(from, to, amount, spender)
	if err != nil {
		return err
	}
	for _, h := range hooks {
		h(ctx, from, to, amount)
	}
	return nil
}

func (m *Memory) BalanceOf(_ context.Context, addr types.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[addr], nil
}

func (m *Memory) SetRestricted(_ context.Context, caller types.Address, restricted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if caller != m.controller {
		return fmt.Errorf("ledger %s: only controller may change transfer mode", m.symbol)
	}
	m.restricted = restricted
	return nil
}

// move performs the atomic balance update and returns the hooks to run
// after the mutex is released.
func (m *Memory) move(from, to types.Address, amount uint64, actor types.Address) ([]TransferHook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.restricted && actor != m.controller {
		return nil, fmt.Errorf("ledger %s: transfers restricted", m.symbol)
	}
	if to.IsZero() {
		return nil, fmt.Errorf("ledger %s: transfer to zero address", m.symbol)
	}
	bal := m.balances[from]
	if bal < amount {
		return nil, fmt.Errorf("ledger %s: balance %d below transfer amount %d", m.symbol, bal, amount)
	}
	if m.balances[to]+amount < m.balances[to] {
		return nil, fmt.Errorf("ledger %s: balance overflow", m.symbol)
	}
	m.balances[from] = bal - amount
	m.balances[to] += amount

	hooks := make([]TransferHook, len(m.hooks))
	copy(hooks, m.hooks)
	return hooks, nil
}
