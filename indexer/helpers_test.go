package indexer

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"bloomsocial/core"
	"bloomsocial/core/types"
	"bloomsocial/storage"
)

const baseTime = 1_700_000_000

var (
	custodyAddr = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	feeAddr     = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	aliceAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bobAddr     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

type ledgerEnv struct {
	ledger *core.Ledger
	now    atomic.Int64
}

func newLedgerEnv(t *testing.T) *ledgerEnv {
	t.Helper()
	ledger, err := core.NewLedger(storage.NewMemDB(), core.Options{
		Custody:              custodyAddr,
		ProtocolFeeRecipient: feeAddr,
		FaucetAmount:         big.NewInt(1_000),
		FaucetCooldown:       time.Hour,
	})
	require.NoError(t, err)
	env := &ledgerEnv{ledger: ledger}
	env.now.Store(baseTime)
	ledger.SetNowFunc(func() int64 { return env.now.Load() })
	t.Cleanup(ledger.Close)
	return env
}

func (env *ledgerEnv) apply(t *testing.T, cmd *types.Command) {
	t.Helper()
	_, err := env.ledger.Apply(context.Background(), cmd)
	require.NoError(t, err, "%s", cmd.Type)
}

func (env *ledgerEnv) records(t *testing.T) []types.EventRecord {
	t.Helper()
	records, err := env.ledger.Events(0, 1000)
	require.NoError(t, err)
	return records
}

// runScenario drives two contents through likes, follows and claims:
//
//	content 0 by alice, stake 100, liked by bob then carol
//	content 1 by alice, stake 500, liked by carol
//	bob and carol follow alice, carol unfollows
//	alice claims the author pool of 0, bob his liker share of 0
func (env *ledgerEnv) runScenario(t *testing.T) {
	t.Helper()
	for _, addr := range []common.Address{aliceAddr, bobAddr, carolAddr} {
		env.apply(t, &types.Command{Type: types.CommandTokenFaucet, Caller: addr})
	}
	env.apply(t, &types.Command{Type: types.CommandCreateContent, Caller: aliceAddr, Amount: big.NewInt(100), Duration: 3600, ContentURI: "ipfs://first"})
	env.now.Add(10)
	env.apply(t, &types.Command{Type: types.CommandCreateContent, Caller: aliceAddr, Amount: big.NewInt(500), Duration: 3600, ContentURI: "ipfs://second"})

	env.apply(t, &types.Command{Type: types.CommandTokenApprove, Caller: bobAddr, Target: custodyAddr, Amount: big.NewInt(100)})
	env.apply(t, &types.Command{Type: types.CommandTokenApprove, Caller: carolAddr, Target: custodyAddr, Amount: big.NewInt(600)})
	env.now.Add(5)
	env.apply(t, &types.Command{Type: types.CommandLike, Caller: bobAddr, ContentID: 0})
	env.now.Add(5)
	env.apply(t, &types.Command{Type: types.CommandLike, Caller: carolAddr, ContentID: 0})
	env.apply(t, &types.Command{Type: types.CommandLike, Caller: carolAddr, ContentID: 1})

	env.apply(t, &types.Command{Type: types.CommandFollow, Caller: bobAddr, Target: aliceAddr})
	env.apply(t, &types.Command{Type: types.CommandFollow, Caller: carolAddr, Target: aliceAddr})
	env.apply(t, &types.Command{Type: types.CommandUnfollow, Caller: carolAddr, Target: aliceAddr})

	env.now.Store(baseTime + 4000)
	env.apply(t, &types.Command{Type: types.CommandClaimAuthorReward, Caller: aliceAddr, ContentID: 0})
	env.apply(t, &types.Command{Type: types.CommandClaimLikerReward, Caller: bobAddr, ContentID: 0})
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := OpenDatabase(DatabaseConfig{Driver: DriverSQLite, DSN: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// projectedScenario returns a database holding the projection of runScenario.
func projectedScenario(t *testing.T) (*ledgerEnv, *gorm.DB, *Projector) {
	t.Helper()
	env := newLedgerEnv(t)
	env.runScenario(t)
	db := newTestDB(t)
	projector := NewProjector(db, nil)
	for _, rec := range env.records(t) {
		require.NoError(t, projector.Apply(context.Background(), rec))
	}
	return env, db, projector
}
