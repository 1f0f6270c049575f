package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/core/types"
	"bloomsocial/native/bloom"
	"bloomsocial/storage"
)

func newTestManager(t *testing.T) (*Manager, *storage.MemDB) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewManager(db), db
}

func TestWritesRequireJournal(t *testing.T) {
	mgr, _ := newTestManager(t)
	if err := mgr.KVPut([]byte("k"), uint64(1)); !errors.Is(err, ErrNoJournal) {
		t.Fatalf("expected ErrNoJournal, got %v", err)
	}
	if err := mgr.Commit(); !errors.Is(err, ErrNoJournal) {
		t.Fatalf("expected ErrNoJournal on commit, got %v", err)
	}
}

func TestJournalCommitAndRollback(t *testing.T) {
	mgr, db := newTestManager(t)

	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := mgr.Begin(); !errors.Is(err, ErrJournalActive) {
		t.Fatalf("expected ErrJournalActive, got %v", err)
	}
	if err := mgr.KVPut([]byte("counter"), uint64(7)); err != nil {
		t.Fatalf("put: %v", err)
	}
	var got uint64
	if ok, err := mgr.KVGet([]byte("counter"), &got); err != nil || !ok || got != 7 {
		t.Fatalf("journal read = %d %v %v", got, ok, err)
	}
	if db.Len() != 0 {
		t.Fatalf("staged write reached the database before commit")
	}
	mgr.Rollback()
	if ok, _ := mgr.KVGet([]byte("counter"), &got); ok {
		t.Fatalf("rolled back value still visible")
	}

	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := mgr.KVPut([]byte("counter"), uint64(9)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if ok, _ := mgr.KVGet([]byte("counter"), &got); !ok || got != 9 {
		t.Fatalf("committed value = %d", got)
	}

	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := mgr.KVDelete([]byte("counter")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := mgr.KVGet([]byte("counter"), &got); ok {
		t.Fatalf("staged delete not visible inside journal")
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if db.Len() != 0 {
		t.Fatalf("expected empty database, got %d keys", db.Len())
	}
}

func TestBloomRecordsRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)
	author := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	liker := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	content := &bloom.Content{
		ID:              4,
		Author:          author,
		LikeAmount:      big.NewInt(10),
		CreatedAt:       100,
		Deadline:        200,
		ContentURI:      "ipfs://x",
		AuthorPool:      big.NewInt(7),
		LikerRewardPool: big.NewInt(2),
		TotalWeight:     bloom.BaseWeight,
		LikeCount:       1,
		ProtocolFees:    big.NewInt(1),
	}
	if err := mgr.BloomContentPut(content); err != nil {
		t.Fatalf("put content: %v", err)
	}
	if err := mgr.BloomLikePut(&bloom.Like{ContentID: 4, Liker: liker, LikeIndex: 1, Weight: bloom.BaseWeight, LikedAt: 150}); err != nil {
		t.Fatalf("put like: %v", err)
	}
	if err := mgr.BloomFollowPut(&bloom.Follow{Follower: liker, Followee: author, FollowedAt: 160}); err != nil {
		t.Fatalf("put follow: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	stored, ok, err := mgr.BloomContentGet(4)
	if err != nil || !ok {
		t.Fatalf("get content: %v %v", ok, err)
	}
	if stored.Deadline != 200 || stored.AuthorPool.Int64() != 7 || stored.LikerRewardPaid.Sign() != 0 {
		t.Fatalf("unexpected content %+v", stored)
	}
	like, ok, err := mgr.BloomLikeGet(4, liker)
	if err != nil || !ok || like.LikedAt != 150 || like.Weight.Cmp(bloom.BaseWeight) != 0 {
		t.Fatalf("unexpected like %+v %v %v", like, ok, err)
	}
	if _, ok, _ := mgr.BloomLikeGet(4, author); ok {
		t.Fatalf("unexpected like for author")
	}
	if _, ok, _ := mgr.BloomFollowGet(liker, author); !ok {
		t.Fatalf("follow missing")
	}
	if _, ok, _ := mgr.BloomFollowGet(author, liker); ok {
		t.Fatalf("follow must be directed")
	}
}

func TestNegativeTimestampRejected(t *testing.T) {
	mgr, _ := newTestManager(t)
	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer mgr.Rollback()
	if err := mgr.BloomFollowPut(&bloom.Follow{FollowedAt: -1}); err == nil {
		t.Fatalf("expected negative timestamp error")
	}
}

func TestTokenBalancesDefaultToZero(t *testing.T) {
	mgr, _ := newTestManager(t)
	addr := common.HexToAddress("0x01")
	bal, err := mgr.TokenBalance(addr)
	if err != nil || bal.Sign() != 0 {
		t.Fatalf("expected zero balance, got %v %v", bal, err)
	}
	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := mgr.SetTokenBalance(addr, big.NewInt(42)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := mgr.SetTokenFaucetLast(addr, 1234); err != nil {
		t.Fatalf("set faucet: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	bal, _ = mgr.TokenBalance(addr)
	if bal.Int64() != 42 {
		t.Fatalf("balance = %s", bal)
	}
	ts, ok, _ := mgr.TokenFaucetLast(addr)
	if !ok || ts != 1234 {
		t.Fatalf("faucet last = %d %v", ts, ok)
	}
}

func TestEventLogAppendAndVerify(t *testing.T) {
	mgr, _ := newTestManager(t)
	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	first, err := mgr.AppendEvents(10, []*types.Event{
		{Type: "a", Attributes: map[string]string{"x": "1", "y": "2"}},
		{Type: "b", Attributes: map[string]string{}},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(first) != 2 || first[0].Sequence != 1 || first[1].Sequence != 2 {
		t.Fatalf("unexpected sequences %+v", first)
	}

	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := mgr.AppendEvents(11, []*types.Event{{Type: "c"}}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	records, err := mgr.EventsAfter(1, 0)
	if err != nil {
		t.Fatalf("events after: %v", err)
	}
	if len(records) != 2 || records[0].Event.Type != "b" || records[1].Timestamp != 11 {
		t.Fatalf("unexpected records %+v", records)
	}
	limited, _ := mgr.EventsAfter(0, 1)
	if len(limited) != 1 || limited[0].Event.Attributes["y"] != "2" {
		t.Fatalf("unexpected limited records %+v", limited)
	}
	if err := mgr.VerifyEventChain(); err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	head, digest, _ := mgr.EventHead()
	if head != 3 || digest != records[1].Digest {
		t.Fatalf("unexpected head %d", head)
	}
}

func TestEnsureStateVersion(t *testing.T) {
	mgr, _ := newTestManager(t)
	fresh, err := EnsureStateVersion(mgr, false)
	if err != nil || !fresh {
		t.Fatalf("expected fresh stamp, got %v %v", fresh, err)
	}
	fresh, err = EnsureStateVersion(mgr, false)
	if err != nil || fresh {
		t.Fatalf("expected existing version, got %v %v", fresh, err)
	}
	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := mgr.SetStateVersion(StateVersion + 1); err != nil {
		t.Fatalf("set version: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := EnsureStateVersion(mgr, false); !errors.Is(err, ErrStateVersionMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := EnsureStateVersion(mgr, true); err != nil {
		t.Fatalf("migration override: %v", err)
	}
}

func TestRecordDigestMatchesLog(t *testing.T) {
	mgr, _ := newTestManager(t)
	if err := mgr.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	records, err := mgr.AppendEvents(42, []*types.Event{
		{Type: "a", Attributes: map[string]string{"k": "v"}},
		{Type: "b"},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mgr.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	var prev [32]byte
	for _, rec := range records {
		digest, err := RecordDigest(prev, rec)
		if err != nil {
			t.Fatalf("digest: %v", err)
		}
		if digest != rec.Digest {
			t.Fatalf("digest mismatch at %d", rec.Sequence)
		}
		prev = digest
	}
	tampered := records[0]
	tampered.Event = &types.Event{Type: "a", Attributes: map[string]string{"k": "w"}}
	if digest, _ := RecordDigest([32]byte{}, tampered); digest == records[0].Digest {
		t.Fatalf("tampered record produced same digest")
	}
}
