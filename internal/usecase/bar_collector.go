package usecase

import (
	"context"
	"sync"

	"PlanSentry/internal/domain/models"
	drepo "PlanSentry/internal/domain/repository"
	mid "PlanSentry/internal/middleware"
	applogger "PlanSentry/pkg/logger"
)

// BarCollector feeds live bars from a stream through the ingestion pipeline
// into the BarCache. The stream is optional; polling refreshes work without it.
type BarCollector struct {
	stream  drepo.BarStream
	pipe    *mid.BarPipeline
	metrics drepo.Metrics
	log     *applogger.Logger
	wg      sync.WaitGroup
}

func NewBarCollector(stream drepo.BarStream, pipe *mid.BarPipeline, metrics drepo.Metrics, log *applogger.Logger) *BarCollector {
	return &BarCollector{
		stream:  stream,
		pipe:    pipe,
		metrics: metrics,
		log:     log.With(applogger.String("component", "bar_collector")),
	}
}

// IsConnected returns true if the stream is connected.
func (c *BarCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *BarCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(ctx)
	}()
	return nil
}

func (c *BarCollector) consume(ctx context.Context) {
	for {
		barCh, errCh := c.stream.Read(ctx)
		c.drain(ctx, barCh, errCh)
		if ctx.Err() != nil {
			return
		}
		for {
			err := c.stream.Reconnect(ctx)
			if err == nil {
				c.log.Info("bar stream reconnected")
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("stream_reconnect")
			c.log.Warn("bar stream reconnect failed", applogger.Error(err))
		}
	}
}

// drain forwards bars until the stream reports an error or closes.
func (c *BarCollector) drain(ctx context.Context, barCh <-chan *models.Bar, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				c.metrics.RecordError("stream")
				c.log.Warn("bar stream error", applogger.Error(err))
			}
			return
		case b, ok := <-barCh:
			if !ok {
				return
			}
			if err := c.pipe.Process(ctx, b); err != nil {
				c.log.Debug("bar dropped", applogger.Error(err))
			}
		}
	}
}

// Shutdown closes the stream and waits for the consumer to exit.
func (c *BarCollector) Shutdown(ctx context.Context) error {
	err := c.stream.Close()
	done := make(chan struct{})
	go func() { c.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
