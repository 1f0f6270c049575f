package core

import (
	"context"
	"sync"

	"bloomsocial/observability"
)

const defaultSubscriberBuffer = 256

type subscriber struct {
	ch     chan EventRecord
	done   chan struct{}
	closed bool
}

// shutdown closes the live channel and wakes the watcher. Callers hold
// subscriptions.mu.
func (sub *subscriber) shutdown() {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	close(sub.done)
}

type subscriptions struct {
	mu       sync.Mutex
	next     uint64
	buffer   int
	subs     map[uint64]*subscriber
	metrics  *observability.LedgerMetrics
	watchers sync.WaitGroup
}

func newSubscriptions(buffer int, metrics *observability.LedgerMetrics) *subscriptions {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &subscriptions{buffer: buffer, subs: make(map[uint64]*subscriber), metrics: metrics}
}

func (s *subscriptions) add() (uint64, *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	sub := &subscriber{ch: make(chan EventRecord, s.buffer), done: make(chan struct{})}
	s.subs[s.next] = sub
	s.metrics.SetSubscribers(len(s.subs))
	return s.next, sub
}

func (s *subscriptions) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		delete(s.subs, id)
		sub.shutdown()
	}
	s.metrics.SetSubscribers(len(s.subs))
}

// broadcast delivers records without blocking. A subscriber whose buffer is
// full is closed; it must resubscribe from its last cursor.
func (s *subscriptions) broadcast(records []EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		for _, rec := range records {
			select {
			case sub.ch <- rec:
				continue
			default:
			}
			sub.shutdown()
			delete(s.subs, id)
			s.metrics.RecordDroppedSubscriber()
			break
		}
	}
	s.metrics.SetSubscribers(len(s.subs))
}

func (s *subscriptions) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		sub.shutdown()
		delete(s.subs, id)
	}
	s.metrics.SetSubscribers(0)
}

// Subscribe returns every committed record after cursor followed by a channel
// of records committed from now on. Backlog and live stream never overlap or
// leave a gap. The channel closes when ctx ends, the ledger closes or the
// consumer falls too far behind.
func (l *Ledger) Subscribe(ctx context.Context, cursor uint64) ([]EventRecord, <-chan EventRecord, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, nil, ErrClosed
	}
	backlog, err := l.state.EventsAfter(cursor, 0)
	if err != nil {
		l.mu.RUnlock()
		return nil, nil, err
	}
	id, sub := l.subs.add()
	l.mu.RUnlock()

	l.subs.watchers.Add(1)
	go func() {
		defer l.subs.watchers.Done()
		select {
		case <-ctx.Done():
			l.subs.remove(id)
		case <-sub.done:
		}
	}()
	return backlog, sub.ch, nil
}
