package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bloomsocial/core/events"
	"bloomsocial/core/state"
	"bloomsocial/core/types"
	"bloomsocial/native/bloom"
	nativecommon "bloomsocial/native/common"
	"bloomsocial/native/token"
	"bloomsocial/observability"
	telemetry "bloomsocial/observability/otel"
	"bloomsocial/storage"
)

var (
	// ErrInvalidCommand wraps stateless command validation failures.
	ErrInvalidCommand = errors.New("ledger: invalid command")
	// ErrClosed is returned once the ledger has been closed.
	ErrClosed = errors.New("ledger: closed")
	// ErrReservedAccount rejects commands that would act as, or pay into,
	// the custody account. Only the engines move escrowed funds.
	ErrReservedAccount = errors.New("ledger: reserved account")
)

// EventRecord is a committed event with its log position.
type EventRecord = types.EventRecord

// Options configures the engines owned by the ledger.
type Options struct {
	Custody              common.Address
	ProtocolFeeRecipient common.Address
	StrictUnfollow       bool
	FaucetAmount         *big.Int
	FaucetCooldown       time.Duration
	WeightPolicy         bloom.WeightPolicy
	Pauses               nativecommon.PauseView
	Logger               *slog.Logger
	// SubscriberBuffer is the live channel capacity per subscriber.
	SubscriberBuffer int
}

// Result reports the outcome of a committed command.
type Result struct {
	Command   types.CommandType
	ContentID uint64
	Amount    *big.Int
	Records   []EventRecord
}

// Ledger is the single serialization point of the content reward ledger.
// Commands run one at a time against a state journal; a command either
// commits its state changes and events together or leaves no trace.
type Ledger struct {
	mu       sync.RWMutex
	closed   bool
	state    *state.Manager
	bloom    *bloom.Engine
	token    *token.Engine
	recorder *events.Recorder
	nowFn    func() int64
	logger   *slog.Logger
	metrics  *observability.LedgerMetrics
	tracer   trace.Tracer

	subs *subscriptions
}

// NewLedger opens the ledger on the supplied database, stamping the schema
// version on first use.
func NewLedger(db storage.Database, opts Options) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database must not be nil")
	}
	if opts.Custody == (common.Address{}) {
		return nil, fmt.Errorf("ledger: custody address required")
	}
	if opts.ProtocolFeeRecipient == (common.Address{}) {
		return nil, fmt.Errorf("ledger: protocol fee recipient required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	if _, err := state.EnsureStateVersion(manager, false); err != nil {
		return nil, err
	}

	l := &Ledger{
		state:    manager,
		bloom:    bloom.NewEngine(),
		token:    token.NewEngine(),
		recorder: &events.Recorder{},
		nowFn:    func() int64 { return time.Now().Unix() },
		logger:   logger.With(slog.String("component", "ledger")),
		metrics:  observability.Ledger(),
		tracer:   telemetry.Tracer("ledger"),
	}
	l.subs = newSubscriptions(opts.SubscriberBuffer, l.metrics)
	clock := func() int64 { return l.nowFn() }

	l.token.SetState(manager)
	l.token.SetEmitter(l.recorder)
	l.token.SetNowFunc(clock)
	l.token.SetFaucet(opts.FaucetAmount, opts.FaucetCooldown)
	l.token.SetPauses(opts.Pauses)

	l.bloom.SetState(manager)
	l.bloom.SetToken(l.token)
	l.bloom.SetEmitter(l.recorder)
	l.bloom.SetNowFunc(clock)
	l.bloom.SetCustody(opts.Custody)
	l.bloom.SetProtocolFeeRecipient(opts.ProtocolFeeRecipient)
	l.bloom.SetStrictUnfollow(opts.StrictUnfollow)
	l.bloom.SetWeightPolicy(opts.WeightPolicy)
	l.bloom.SetPauses(opts.Pauses)

	head, _, err := manager.EventHead()
	if err != nil {
		return nil, err
	}
	l.metrics.SetEventHead(head)
	return l, nil
}

// SetNowFunc overrides the ledger clock used by every engine.
func (l *Ledger) SetNowFunc(now func() int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	l.nowFn = now
}

// AddTransferHook registers a hook run synchronously after each token
// transfer, inside the command that caused it.
func (l *Ledger) AddTransferHook(hook token.TransferHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.token.AddTransferHook(hook)
}

// Close stops accepting commands and ends every subscription.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.subs.closeAll()
}

// Apply validates and executes a single command. On success the state
// changes and events are committed atomically and broadcast to subscribers;
// on failure nothing is persisted or emitted.
func (l *Ledger) Apply(ctx context.Context, cmd *types.Command) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cmd.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := l.checkReserved(cmd); err != nil {
		return nil, err
	}
	ctx, span := l.tracer.Start(ctx, "ledger.apply", trace.WithAttributes(
		attribute.String("command", cmd.Type.String()),
	))
	defer span.End()

	start := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	result, err := l.applyLocked(ctx, cmd)
	l.metrics.ObserveCommand(cmd.Type.String(), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Debug("command rejected",
			slog.String("command", cmd.Type.String()),
			slog.String("caller", cmd.Caller.Hex()),
			slog.Any("error", err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("events", len(result.Records)))
	return result, nil
}

func (l *Ledger) applyLocked(ctx context.Context, cmd *types.Command) (*Result, error) {
	if l.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.state.Begin(); err != nil {
		return nil, err
	}
	l.recorder.Reset()

	result, err := l.dispatch(cmd)
	if err == nil {
		result.Records, err = l.commit()
	}
	if err != nil {
		l.state.Rollback()
		l.recorder.Reset()
		return nil, err
	}

	if len(result.Records) > 0 {
		last := result.Records[len(result.Records)-1]
		l.metrics.SetEventHead(last.Sequence)
		for _, rec := range result.Records {
			observability.Events().RecordEvent(rec.Event.Type)
		}
		l.subs.broadcast(result.Records)
	}
	l.logger.Debug("command committed",
		slog.String("command", cmd.Type.String()),
		slog.String("caller", cmd.Caller.Hex()),
		slog.Int("events", len(result.Records)))
	return result, nil
}

// checkReserved keeps the custody account out of user commands. Approving
// custody as spender is the one exception since likes pull stakes through it.
func (l *Ledger) checkReserved(cmd *types.Command) error {
	custody := l.bloom.Custody()
	if cmd.Caller == custody {
		return fmt.Errorf("%w: %s cannot issue commands", ErrReservedAccount, custody.Hex())
	}
	if cmd.Type == types.CommandTokenTransfer && cmd.Target == custody {
		return fmt.Errorf("%w: transfers to %s are not accepted", ErrReservedAccount, custody.Hex())
	}
	return nil
}

func (l *Ledger) dispatch(cmd *types.Command) (*Result, error) {
	result := &Result{Command: cmd.Type}
	switch cmd.Type {
	case types.CommandCreateContent:
		id, err := l.bloom.CreateContent(cmd.Caller, cmd.Amount, cmd.Duration, cmd.ContentURI, cmd.ContentHash)
		if err != nil {
			return nil, err
		}
		result.ContentID = id
	case types.CommandLike:
		like, err := l.bloom.Like(cmd.ContentID, cmd.Caller)
		if err != nil {
			return nil, err
		}
		result.ContentID = cmd.ContentID
		result.Amount = like.Amount
	case types.CommandClaimAuthorReward:
		amount, err := l.bloom.ClaimAuthorReward(cmd.ContentID, cmd.Caller)
		if err != nil {
			return nil, err
		}
		result.ContentID = cmd.ContentID
		result.Amount = amount
		l.metrics.RecordPayout("author", amount, token.Decimals)
	case types.CommandClaimLikerReward:
		amount, err := l.bloom.ClaimLikerReward(cmd.ContentID, cmd.Caller)
		if err != nil {
			return nil, err
		}
		result.ContentID = cmd.ContentID
		result.Amount = amount
		l.metrics.RecordPayout("liker", amount, token.Decimals)
	case types.CommandFollow:
		if err := l.bloom.Follow(cmd.Caller, cmd.Target); err != nil {
			return nil, err
		}
	case types.CommandUnfollow:
		if err := l.bloom.Unfollow(cmd.Caller, cmd.Target); err != nil {
			return nil, err
		}
	case types.CommandTokenApprove:
		if err := l.token.Approve(cmd.Caller, cmd.Target, cmd.Amount); err != nil {
			return nil, err
		}
		result.Amount = new(big.Int).Set(cmd.Amount)
	case types.CommandTokenTransfer:
		if err := l.token.Transfer(cmd.Caller, cmd.Target, cmd.Amount); err != nil {
			return nil, err
		}
		result.Amount = new(big.Int).Set(cmd.Amount)
	case types.CommandTokenFaucet:
		amount, err := l.token.Faucet(cmd.Caller)
		if err != nil {
			return nil, err
		}
		result.Amount = amount
	default:
		return nil, fmt.Errorf("%w: unsupported type %s", ErrInvalidCommand, cmd.Type)
	}
	return result, nil
}

// commit appends the buffered events to the log and flushes the journal.
func (l *Ledger) commit() ([]EventRecord, error) {
	emitted := l.recorder.Events()
	payloads := make([]*types.Event, 0, len(emitted))
	for _, evt := range emitted {
		if converted := events.ToTypes(evt); converted != nil {
			payloads = append(payloads, converted)
		}
	}
	records, err := l.state.AppendEvents(l.nowFn(), payloads)
	if err != nil {
		return nil, err
	}
	if err := l.state.Commit(); err != nil {
		return nil, err
	}
	l.recorder.Reset()
	return records, nil
}
