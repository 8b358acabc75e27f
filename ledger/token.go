package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cloudx-io/bidkeeper/core"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrAccountFrozen         = errors.New("account frozen")
)

// Token is an in-memory fungible token with ERC-20 style balances and
// allowances. All operations are atomic.
type Token struct {
	mu         sync.RWMutex
	name       string
	balances   map[common.Address]core.Amount
	allowances map[common.Address]map[common.Address]core.Amount
	frozen     map[common.Address]bool
}

func NewToken(name string) *Token {
	return &Token{
		name:       name,
		balances:   make(map[common.Address]core.Amount),
		allowances: make(map[common.Address]map[common.Address]core.Amount),
		frozen:     make(map[common.Address]bool),
	}
}

func (t *Token) Name() string {
	return t.name
}

func (t *Token) BalanceOf(address common.Address) (core.Amount, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balances[address], nil
}

func (t *Token) AllowanceOf(owner, spender common.Address) (core.Amount, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.allowances[owner][spender], nil
}

// Mint credits amount to address.
func (t *Token) Mint(address common.Address, amount core.Amount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[address] = t.balances[address].Add(amount)
}

// Approve sets the amount spender may transfer on behalf of owner.
func (t *Token) Approve(owner, spender common.Address, amount core.Amount) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]core.Amount)
	}
	t.allowances[owner][spender] = amount
}

// Freeze blocks every transfer from or to address until Unfreeze.
func (t *Token) Freeze(address common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen[address] = true
}

func (t *Token) Unfreeze(address common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.frozen, address)
}

// Transfer moves amount from one holder to another.
func (t *Token) Transfer(from, to common.Address, amount core.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferLocked(from, to, amount)
}

// TransferFrom moves amount out of from's balance on behalf of spender,
// consuming spender's allowance.
func (t *Token) TransferFrom(spender, from, to common.Address, amount core.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	allowance := t.allowances[from][spender]
	remaining, err := allowance.CheckedSub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s allows %s to spend %s, need %s",
			ErrInsufficientAllowance, from.Hex(), spender.Hex(), allowance, amount)
	}
	if err := t.transferLocked(from, to, amount); err != nil {
		return err
	}
	if t.allowances[from] == nil {
		t.allowances[from] = make(map[common.Address]core.Amount)
	}
	t.allowances[from][spender] = remaining
	return nil
}

// reverseTransferFrom undoes TransferFrom(spender, from, to, amount), restoring
// the consumed allowance.
func (t *Token) reverseTransferFrom(spender, from, to common.Address, amount core.Amount) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transferLocked(to, from, amount); err != nil {
		return err
	}
	if t.allowances[from] == nil {
		t.allowances[from] = make(map[common.Address]core.Amount)
	}
	t.allowances[from][spender] = t.allowances[from][spender].Add(amount)
	return nil
}

func (t *Token) transferLocked(from, to common.Address, amount core.Amount) error {
	for _, addr := range []common.Address{from, to} {
		if t.frozen[addr] {
			return fmt.Errorf("%w: %s", ErrAccountFrozen, addr.Hex())
		}
	}
	balance := t.balances[from]
	remaining, err := balance.CheckedSub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s, need %s", ErrInsufficientBalance, from.Hex(), balance, amount)
	}
	t.balances[from] = remaining
	t.balances[to] = t.balances[to].Add(amount)
	return nil
}
