package main

import (
	"fmt"
	"sync"
)

// wallet is the in-process economy collaborator: a plain balance ledger
// with a configurable starting balance for players it has not seen yet.
type wallet struct {
	mu       sync.Mutex
	balances map[string]int
	starting int
}

func newWallet(starting int) *wallet {
	return &wallet{balances: map[string]int{}, starting: starting}
}

func (w *wallet) Balance(playerID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balanceLocked(playerID)
}

func (w *wallet) balanceLocked(playerID string) int {
	b, ok := w.balances[playerID]
	if !ok {
		b = w.starting
		w.balances[playerID] = b
	}
	return b
}

func (w *wallet) Debit(playerID string, amount int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := w.balanceLocked(playerID)
	if b < amount {
		return fmt.Errorf("balance %d below %d", b, amount)
	}
	w.balances[playerID] = b - amount
	return nil
}

func (w *wallet) Credit(playerID string, amount int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[playerID] = w.balanceLocked(playerID) + amount
}
