package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PlanSentry/internal/domain/models"
	mid "PlanSentry/internal/middleware"
	"PlanSentry/internal/repository"
	"PlanSentry/internal/services/barcache"
	pkgcache "PlanSentry/pkg/cache"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/metrics"
)

func TestSnapshotPersisterRoundTrip(t *testing.T) {
	mem := pkgcache.NewMemoryCache()
	store := repository.NewCacheSnapshotStore(mem, time.Hour, fixedClock(testNow))

	src := barcache.New(barcache.WithClock(fixedClock(testNow)))
	src.UpsertMany("BTCUSD", genBars("BTCUSD", 40, testNow))
	src.UpsertMany("XAUUSD", genBars("XAUUSD", 35, testNow))
	p := NewSnapshotPersister(store, src, time.Minute, metrics.Nop{}, applogger.Nop(), fixedClock(testNow))
	require.NoError(t, p.SaveAll(context.Background()))

	dst := barcache.New(barcache.WithClock(fixedClock(testNow)))
	restorer := NewSnapshotPersister(store, dst, time.Minute, metrics.Nop{}, applogger.Nop(), fixedClock(testNow))
	n := restorer.Restore(context.Background(), []string{"BTCUSD", "XAUUSD", "EURUSD"})
	assert.Equal(t, 2, n)
	assert.Equal(t, 40, dst.Len("BTCUSD"))
	assert.Equal(t, src.Snapshot("XAUUSD"), dst.Snapshot("XAUUSD"))
}

func TestSnapshotPersisterDiscardsStale(t *testing.T) {
	mem := pkgcache.NewMemoryCache()
	src := barcache.New(barcache.WithClock(fixedClock(testNow)))
	src.UpsertMany("BTCUSD", genBars("BTCUSD", 40, testNow))
	writer := repository.NewCacheSnapshotStore(mem, time.Hour, fixedClock(testNow))
	require.NoError(t, NewSnapshotPersister(writer, src, time.Minute, metrics.Nop{}, applogger.Nop(), fixedClock(testNow)).SaveAll(context.Background()))

	later := testNow.Add(90 * time.Minute)
	reader := repository.NewCacheSnapshotStore(mem, time.Hour, fixedClock(later))
	dst := barcache.New(barcache.WithClock(fixedClock(later)))
	n := NewSnapshotPersister(reader, dst, time.Minute, metrics.Nop{}, applogger.Nop(), fixedClock(later)).
		Restore(context.Background(), []string{"BTCUSD"})
	assert.Zero(t, n)
	assert.Zero(t, dst.Len("BTCUSD"))
}

func TestPlanCommandHandler(t *testing.T) {
	r := NewPlanRegistry(8)
	h := NewPlanCommandHandler("plan-commands", NewPlanService(r, fixedClock(testNow)), metrics.Nop{}, applogger.Nop())
	assert.Equal(t, "plan-commands", h.Topic())
	ctx := context.Background()

	create := []byte(`{"op":"create","plan_id":"chat-1","plan":{"symbol":"XAUUSD","side":"buy","entry":2650,"stop_loss":2640,"take_profit":2680,"conditions_map":{"choch_bull":true}}}`)
	require.NoError(t, h.Handle(ctx, create))
	p, err := r.Get("chat-1")
	require.NoError(t, err)
	assert.Equal(t, "kafka", p.CreatedBy)
	assert.InDelta(t, 0.01, p.Volume, 1e-12)
	assert.Len(t, p.Conditions, 1)

	assert.NoError(t, h.Handle(ctx, create), "replayed create is acknowledged")

	require.NoError(t, h.Handle(ctx, []byte(`{"op":"cancel","plan_id":"chat-1","reason":"user"}`)))
	r.Apply(testNow)
	p, _ = r.Get("chat-1")
	assert.Equal(t, models.PlanCancelled, p.Status)

	assert.NoError(t, h.Handle(ctx, []byte(`{"op":"cancel","plan_id":"chat-1"}`)), "terminal plan is acknowledged")
	assert.NoError(t, h.Handle(ctx, []byte(`{"op":"expire","plan_id":"nope"}`)))

	assert.Error(t, h.Handle(ctx, []byte(`{not json`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"op":"pause","plan_id":"x"}`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"op":"create"}`)))
	assert.Error(t, h.Handle(ctx, []byte(`{"op":"create","plan":{"symbol":"XAUUSD","side":"buy","entry":2650,"stop_loss":2660,"take_profit":2680}}`)))
}

func TestOutcomeRecorder(t *testing.T) {
	store := repository.NewMemoryOutcomeStore()
	adv := &fakeAdvisor{}
	rec := NewOutcomeRecorder(store, adv, metrics.Nop{}, applogger.Nop(), fixedClock(testNow))

	o := rec.FromRequest(models.OutcomeRequest{PlanID: "p1", Symbol: "xauusd.m", Session: "london", ConfluenceAtSignal: 74, Result: "win", RiskReward: 2, LatencyMs: 1500})
	assert.Equal(t, "XAUUSD", o.Symbol)
	assert.Equal(t, 1500*time.Millisecond, o.Latency)
	require.NoError(t, rec.Record(context.Background(), o))
	assert.Len(t, adv.got, 1)

	adv.err = errors.New("advisor down")
	require.NoError(t, rec.Record(context.Background(), models.SignalOutcome{PlanID: "p2", Symbol: "XAUUSD", Result: models.OutcomeLoss}))

	got, err := rec.Recent(context.Background(), "XAUUSD", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p2", got[0].PlanID)
	assert.Equal(t, testNow.UTC(), got[0].RecordedAt)
}

type scriptedStream struct {
	mu         sync.Mutex
	reads      int
	reconnects int
	closed     bool
	batches    [][]*models.Bar
}

func (s *scriptedStream) Connect(context.Context) error   { return nil }
func (s *scriptedStream) Subscribe(context.Context) error { return nil }
func (s *scriptedStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}
func (s *scriptedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
func (s *scriptedStream) IsConnected() bool { return true }

// Read replays one batch per call; every batch but the last ends in an error.
func (s *scriptedStream) Read(ctx context.Context) (<-chan *models.Bar, <-chan error) {
	s.mu.Lock()
	i := s.reads
	s.reads++
	s.mu.Unlock()

	bars := make(chan *models.Bar, 16)
	errs := make(chan error, 1)
	go func() {
		defer close(bars)
		defer close(errs)
		if i < len(s.batches) {
			for _, b := range s.batches[i] {
				bars <- b
			}
		}
		if i < len(s.batches)-1 {
			// let the consumer drain bars before failing
			time.Sleep(20 * time.Millisecond)
			errs <- errors.New("connection reset")
			return
		}
		<-ctx.Done()
	}()
	return bars, errs
}

func TestBarCollectorReconnects(t *testing.T) {
	bar := func(m int) *models.Bar {
		ts := testNow.Add(time.Duration(m) * time.Minute)
		return &models.Bar{Symbol: "btcusd", Timestamp: ts, Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1}
	}
	stream := &scriptedStream{batches: [][]*models.Bar{{bar(0), bar(1)}, {bar(2)}}}
	cache := barcache.New()
	pipe := mid.NewBarPipeline(mid.CacheSink{Cache: cache}, metrics.Nop{}, applogger.Nop(), mid.WithMaxRPS(1000, 1000))
	c := NewBarCollector(stream, pipe, metrics.Nop{}, applogger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	assert.Eventually(t, func() bool { return cache.Len("BTCUSD") == 3 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	sctx, scancel := context.WithTimeout(context.Background(), time.Second)
	defer scancel()
	require.NoError(t, c.Shutdown(sctx))
	stream.mu.Lock()
	defer stream.mu.Unlock()
	assert.Equal(t, 1, stream.reconnects)
	assert.True(t, stream.closed)
}
