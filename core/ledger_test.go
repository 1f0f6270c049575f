package core

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/core/events"
	"bloomsocial/core/genesis"
	"bloomsocial/core/types"
	"bloomsocial/native/bloom"
	"bloomsocial/native/token"
	"bloomsocial/storage"
)

var (
	custodyAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	feeAddr     = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	authorAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	likerOne    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	likerTwo    = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

type testLedger struct {
	*Ledger
	now int64
}

func newTestLedger(t *testing.T, db storage.Database) *testLedger {
	t.Helper()
	l, err := NewLedger(db, Options{
		Custody:              custodyAddr,
		ProtocolFeeRecipient: feeAddr,
		FaucetAmount:         big.NewInt(1_000),
		FaucetCooldown:       time.Hour,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	tl := &testLedger{Ledger: l, now: 1_700_000_000}
	l.SetNowFunc(func() int64 { return tl.now })
	t.Cleanup(l.Close)
	return tl
}

func (tl *testLedger) apply(t *testing.T, cmd types.Command) *Result {
	t.Helper()
	res, err := tl.Apply(context.Background(), &cmd)
	if err != nil {
		t.Fatalf("apply %s: %v", cmd.Type, err)
	}
	return res
}

func (tl *testLedger) fundAndApprove(t *testing.T, who common.Address, amount int64) {
	t.Helper()
	tl.apply(t, types.Command{Type: types.CommandTokenFaucet, Caller: who})
	tl.apply(t, types.Command{Type: types.CommandTokenApprove, Caller: who, Target: custodyAddr, Amount: big.NewInt(amount)})
}

func (tl *testLedger) createContent(t *testing.T, likeAmount int64, duration uint64) uint64 {
	t.Helper()
	res := tl.apply(t, types.Command{
		Type:       types.CommandCreateContent,
		Caller:     authorAddr,
		Amount:     big.NewInt(likeAmount),
		Duration:   duration,
		ContentURI: "ipfs://post",
	})
	return res.ContentID
}

func TestLedgerLifecycle(t *testing.T) {
	l := newTestLedger(t, storage.NewMemDB())
	l.fundAndApprove(t, likerOne, 100)
	l.fundAndApprove(t, likerTwo, 100)
	id := l.createContent(t, 100, 60)

	res := l.apply(t, types.Command{Type: types.CommandLike, Caller: likerOne, ContentID: id})
	if res.Amount.Int64() != 100 {
		t.Fatalf("unexpected stake %s", res.Amount)
	}
	var liked bool
	for _, rec := range res.Records {
		if rec.Event.Type == events.TypeContentLiked {
			liked = true
		}
	}
	if !liked {
		t.Fatalf("like event missing from %+v", res.Records)
	}
	l.apply(t, types.Command{Type: types.CommandLike, Caller: likerTwo, ContentID: id})

	l.now += 60
	author := l.apply(t, types.Command{Type: types.CommandClaimAuthorReward, Caller: authorAddr, ContentID: id})
	if author.Amount.Int64() != 140 {
		t.Fatalf("author payout = %s", author.Amount)
	}
	one := l.apply(t, types.Command{Type: types.CommandClaimLikerReward, Caller: likerOne, ContentID: id})
	two := l.apply(t, types.Command{Type: types.CommandClaimLikerReward, Caller: likerTwo, ContentID: id})
	// pool 50, weights 1e18 and 5e17
	if one.Amount.Int64() != 33 || two.Amount.Int64() != 16 {
		t.Fatalf("liker payouts = %s, %s", one.Amount, two.Amount)
	}

	custody, _ := l.BalanceOf(custodyAddr)
	if custody.Int64() != 1 {
		t.Fatalf("custody should hold one unit of dust, got %s", custody)
	}
	fees, _ := l.BalanceOf(feeAddr)
	if fees.Int64() != 10 {
		t.Fatalf("fee recipient balance = %s", fees)
	}
	supply, _ := l.TotalSupply()
	if supply.Int64() != 2_000 {
		t.Fatalf("supply = %s", supply)
	}
	if err := l.VerifyEvents(); err != nil {
		t.Fatalf("verify events: %v", err)
	}
}

func TestFailedCommandLeavesNoTrace(t *testing.T) {
	l := newTestLedger(t, storage.NewMemDB())
	id := l.createContent(t, 10, 60)
	headBefore, _ := l.EventHead()

	_, err := l.Apply(context.Background(), &types.Command{Type: types.CommandLike, Caller: likerOne, ContentID: id})
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	headAfter, _ := l.EventHead()
	if headAfter != headBefore {
		t.Fatalf("event head moved from %d to %d", headBefore, headAfter)
	}
	content, _ := l.GetContent(id)
	if content.LikeCount != 0 {
		t.Fatalf("like count mutated")
	}
}

func TestPayoutFailureRollsBackClaimFlag(t *testing.T) {
	l := newTestLedger(t, storage.NewMemDB())
	l.fundAndApprove(t, likerOne, 10)
	id := l.createContent(t, 10, 60)
	l.apply(t, types.Command{Type: types.CommandLike, Caller: likerOne, ContentID: id})
	l.now += 60

	failing := true
	l.AddTransferHook(func(from, to common.Address, amount *big.Int) error {
		if failing && to == authorAddr {
			return errors.New("recipient rejected funds")
		}
		return nil
	})
	if _, err := l.Apply(context.Background(), &types.Command{Type: types.CommandClaimAuthorReward, Caller: authorAddr, ContentID: id}); err == nil {
		t.Fatalf("expected payout failure")
	}
	content, _ := l.GetContent(id)
	if content.AuthorClaimed {
		t.Fatalf("claim flag survived a failed command")
	}
	stats, _ := l.GetUser(authorAddr)
	if stats.TotalEarned.Sign() != 0 {
		t.Fatalf("earnings survived a failed command: %s", stats.TotalEarned)
	}

	failing = false
	res := l.apply(t, types.Command{Type: types.CommandClaimAuthorReward, Caller: authorAddr, ContentID: id})
	if res.Amount.Int64() != 7 {
		t.Fatalf("author payout = %s", res.Amount)
	}
}

func TestReentrantClaimThroughTransferHook(t *testing.T) {
	l := newTestLedger(t, storage.NewMemDB())
	l.fundAndApprove(t, likerOne, 10)
	id := l.createContent(t, 10, 60)
	l.apply(t, types.Command{Type: types.CommandLike, Caller: likerOne, ContentID: id})
	l.now += 60

	var reentry error
	l.AddTransferHook(func(from, to common.Address, amount *big.Int) error {
		if to == likerOne && from == custodyAddr {
			_, reentry = l.bloom.ClaimLikerReward(id, likerOne)
		}
		return nil
	})
	l.apply(t, types.Command{Type: types.CommandClaimLikerReward, Caller: likerOne, ContentID: id})
	if !errors.Is(reentry, bloom.ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed on re-entry, got %v", reentry)
	}
	balance, _ := l.BalanceOf(likerOne)
	// 1000 from faucet, 10 staked, 2 back from the liker pool
	if balance.Int64() != 992 {
		t.Fatalf("liker balance = %s", balance)
	}
}

func TestInvalidCommandRejected(t *testing.T) {
	l := newTestLedger(t, storage.NewMemDB())
	_, err := l.Apply(context.Background(), &types.Command{Type: types.CommandFollow, Caller: likerOne})
	if !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected ErrInvalidCommand, got %v", err)
	}
	_, err = l.Apply(context.Background(), &types.Command{Type: types.CommandType(0x7f), Caller: likerOne})
	if !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected ErrInvalidCommand for unknown type, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Apply(ctx, &types.Command{Type: types.CommandTokenFaucet, Caller: likerOne}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSubscribeBacklogThenLive(t *testing.T) {
	l := newTestLedger(t, storage.NewMemDB())
	l.apply(t, types.Command{Type: types.CommandFollow, Caller: likerOne, Target: likerTwo})
	l.apply(t, types.Command{Type: types.CommandFollow, Caller: likerTwo, Target: likerOne})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backlog, live, err := l.Subscribe(ctx, 1)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(backlog) != 1 || backlog[0].Sequence != 2 {
		t.Fatalf("unexpected backlog %+v", backlog)
	}

	l.apply(t, types.Command{Type: types.CommandUnfollow, Caller: likerOne, Target: likerTwo})
	select {
	case rec := <-live:
		if rec.Sequence != 3 || rec.Event.Type != events.TypeUnfollowed {
			t.Fatalf("unexpected live record %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for live record")
	}

	cancel()
	select {
	case _, ok := <-live:
		if ok {
			t.Fatalf("expected channel to close after cancel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func TestGenesisAndPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger")
	db, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	l := newTestLedger(t, db)
	spec := &genesis.Spec{Alloc: map[string]string{likerOne.Hex(): "500"}}
	if err := spec.Validate(); err != nil {
		t.Fatalf("validate genesis: %v", err)
	}
	if err := l.InitGenesis(spec); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if err := l.InitGenesis(spec); err == nil {
		t.Fatalf("expected second genesis to fail")
	}
	l.apply(t, types.Command{Type: types.CommandFollow, Caller: likerOne, Target: likerTwo})
	l.Close()
	db.Close()

	reopened, err := storage.NewLevelDB(path)
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	defer reopened.Close()
	l2 := newTestLedger(t, reopened)
	balance, _ := l2.BalanceOf(likerOne)
	if balance.Int64() != 500 {
		t.Fatalf("balance after reopen = %s", balance)
	}
	if ok, _ := l2.IsFollowing(likerOne, likerTwo); !ok {
		t.Fatalf("follow lost after reopen")
	}
	head, _ := l2.EventHead()
	if head != 2 {
		t.Fatalf("event head after reopen = %d", head)
	}
}

func TestCustodyAccountIsReserved(t *testing.T) {
	l := newTestLedger(t, storage.NewMemDB())
	l.fundAndApprove(t, likerOne, 100)
	id := l.createContent(t, 100, 60)
	l.apply(t, types.Command{Type: types.CommandLike, Caller: likerOne, ContentID: id})
	headBefore, _ := l.EventHead()

	rejected := []types.Command{
		{Type: types.CommandTokenTransfer, Caller: custodyAddr, Target: likerTwo, Amount: big.NewInt(95)},
		{Type: types.CommandTokenApprove, Caller: custodyAddr, Target: custodyAddr, Amount: big.NewInt(100)},
		{Type: types.CommandLike, Caller: custodyAddr, ContentID: id},
		{Type: types.CommandTokenFaucet, Caller: custodyAddr},
		{Type: types.CommandCreateContent, Caller: custodyAddr, Amount: big.NewInt(1), Duration: 10},
		{Type: types.CommandTokenTransfer, Caller: likerOne, Target: custodyAddr, Amount: big.NewInt(5)},
	}
	for _, cmd := range rejected {
		if _, err := l.Apply(context.Background(), &cmd); !errors.Is(err, ErrReservedAccount) {
			t.Fatalf("%s from %s: expected ErrReservedAccount, got %v", cmd.Type, cmd.Caller.Hex(), err)
		}
	}
	custody, _ := l.BalanceOf(custodyAddr)
	if custody.Int64() != 95 {
		t.Fatalf("custody balance changed to %s", custody)
	}
	if head, _ := l.EventHead(); head != headBefore {
		t.Fatalf("rejected commands emitted events: head %d -> %d", headBefore, head)
	}

	l.now += 60
	author := l.apply(t, types.Command{Type: types.CommandClaimAuthorReward, Caller: authorAddr, ContentID: id})
	if author.Amount.Int64() != 70 {
		t.Fatalf("author payout = %s", author.Amount)
	}
}

func TestGenesisRejectsCustodyAllocation(t *testing.T) {
	l := newTestLedger(t, storage.NewMemDB())
	spec := &genesis.Spec{Alloc: map[string]string{likerOne.Hex(): "500", custodyAddr.Hex(): "500"}}
	if err := spec.Validate(); err != nil {
		t.Fatalf("validate genesis: %v", err)
	}
	if err := l.InitGenesis(spec); !errors.Is(err, ErrReservedAccount) {
		t.Fatalf("expected ErrReservedAccount, got %v", err)
	}
	if supply, _ := l.TotalSupply(); supply.Sign() != 0 {
		t.Fatalf("partial genesis committed, supply %s", supply)
	}
}

func waitWatchers(t *testing.T, l *Ledger) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		l.subs.watchers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("subscription watcher still running")
	}
}

func TestSubscriptionWatcherExitsWithoutCancel(t *testing.T) {
	dropped, err := NewLedger(storage.NewMemDB(), Options{
		Custody:              custodyAddr,
		ProtocolFeeRecipient: feeAddr,
		SubscriberBuffer:     1,
	})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	defer dropped.Close()
	if _, _, err := dropped.Subscribe(context.Background(), 0); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for _, target := range []common.Address{likerTwo, authorAddr} {
		if _, err := dropped.Apply(context.Background(), &types.Command{Type: types.CommandFollow, Caller: likerOne, Target: target}); err != nil {
			t.Fatalf("follow: %v", err)
		}
	}
	waitWatchers(t, dropped)

	l := newTestLedger(t, storage.NewMemDB())
	_, live, err := l.Subscribe(context.Background(), 0)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	l.Close()
	if _, ok := <-live; ok {
		t.Fatalf("expected live channel closed after ledger close")
	}
	waitWatchers(t, l.Ledger)
}
