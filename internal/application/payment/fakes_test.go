package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zhima-Mochi/minishop-payment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-payment/internal/domain/user"
	"github.com/shopspring/decimal"
)

// callLog records collaborator calls in order so tests can assert the pipeline sequence.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeUsers struct {
	mu           sync.Mutex
	log          *callLog
	class        user.Classification
	checkErr     error
	historyCode  int
	historyErr   error
	historyCalls []order.History
}

func (f *fakeUsers) Classify(_ context.Context, identity string) (user.Classification, error) {
	f.log.add("check:" + identity)
	if f.checkErr != nil {
		return user.Anonymous, f.checkErr
	}
	return f.class, nil
}

func (f *fakeUsers) RecordOrder(_ context.Context, identity string, h order.History) (int, error) {
	f.log.add("history:" + identity)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls = append(f.historyCalls, h)
	if f.historyErr != nil {
		return 0, f.historyErr
	}
	return f.historyCode, nil
}

type fakeCarts struct {
	log  *callLog
	code int
	err  error
}

func (f *fakeCarts) Delete(_ context.Context, identity string) (int, error) {
	f.log.add("delete:" + identity)
	if f.err != nil {
		return 0, f.err
	}
	return f.code, nil
}

type fakeGateway struct {
	log  *callLog
	code int
	err  error
}

func (f *fakeGateway) Authorize(context.Context) (int, error) {
	f.log.add("gateway")
	if f.err != nil {
		return 0, f.err
	}
	return f.code, nil
}

type published struct {
	event   outbox.Event
	headers outbox.Headers
}

type fakePublisher struct {
	mu     sync.Mutex
	log    *callLog
	err    error
	events []published
}

func (f *fakePublisher) Publish(_ context.Context, e outbox.Event, h outbox.Headers) error {
	f.log.add("publish")
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{event: e, headers: h})
	return nil
}

type sale struct {
	units int
	total decimal.Decimal
}

type fakeSales struct {
	mu    sync.Mutex
	log   *callLog
	err   error
	sales []sale
}

func (f *fakeSales) RecordSale(units int, total decimal.Decimal) error {
	f.log.add("sales")
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sales = append(f.sales, sale{units: units, total: total})
	return nil
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("order-%d", g.n)
}
