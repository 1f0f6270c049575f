package core

import (
	"fmt"

	"bloomsocial/core/genesis"
)

// InitGenesis mints the genesis allocations. It only runs against an empty
// ledger and commits the mints, with their events, as one unit.
func (l *Ledger) InitGenesis(spec *genesis.Spec) error {
	if spec == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	supply, err := l.token.TotalSupply()
	if err != nil {
		return err
	}
	head, _, err := l.state.EventHead()
	if err != nil {
		return err
	}
	if supply.Sign() != 0 || head != 0 {
		return fmt.Errorf("ledger: genesis already applied")
	}
	if err := l.state.Begin(); err != nil {
		return err
	}
	l.recorder.Reset()
	for _, alloc := range spec.Allocations() {
		if alloc.Address == l.bloom.Custody() {
			l.state.Rollback()
			l.recorder.Reset()
			return fmt.Errorf("genesis mint %s: %w", alloc.Address.Hex(), ErrReservedAccount)
		}
		if err := l.token.Mint(alloc.Address, alloc.Amount); err != nil {
			l.state.Rollback()
			l.recorder.Reset()
			return fmt.Errorf("genesis mint %s: %w", alloc.Address.Hex(), err)
		}
	}
	records, err := l.commit()
	if err != nil {
		l.state.Rollback()
		l.recorder.Reset()
		return err
	}
	if len(records) > 0 {
		l.metrics.SetEventHead(records[len(records)-1].Sequence)
		l.subs.broadcast(records)
	}
	l.logger.Info("genesis applied", "allocations", len(records))
	return nil
}
