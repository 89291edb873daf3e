package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	applogger "GranStocks/pkg/logger"
)

// MessageHandler handles the payloads of one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var errInterrupted = errors.New("interrupted by shutdown")

type delivery struct {
	topic  string
	reader messageReader
	msg    kafka.Message
}

// Consumer runs one group reader per registered topic and a shared pool of
// workers. A message is committed once it is handled, dead-lettered, or
// given up on; shutdown leaves in-flight retries uncommitted for redelivery.
type Consumer struct {
	cfg        *ConsumerConfig
	log        *applogger.Logger
	obs        Observer
	handlers   map[string]MessageHandler
	readers    map[string]messageReader
	newReader  func(topic string) messageReader
	deadLetter messageWriter
	queue      chan delivery

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	fetchWg  sync.WaitGroup
	workWg   sync.WaitGroup
	stopOnce sync.Once
}

// NewConsumer validates the options. Readers are created by Start.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		log:      cfg.Logger,
		obs:      cfg.Observer,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]messageReader),
		queue:    make(chan delivery, cfg.BufferSize),
	}
	if c.log == nil {
		c.log = applogger.NewNop()
	}
	if c.obs == nil {
		c.obs = nopObserver{}
	}
	c.newReader = func(topic string) messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    topic,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	if cfg.DeadLetter != "" {
		c.deadLetter = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}
	return c, nil
}

// RegisterHandler binds handler to its topic. Calls after Start are ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	topic := handler.Topic()
	if c.started {
		c.log.Warn("kafka handler registered after start", applogger.String("topic", topic))
		return
	}
	if _, dup := c.handlers[topic]; dup {
		c.log.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start opens the readers and launches the fetch loops and workers.
func (c *Consumer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("consumer already started")
	}
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	c.started = true

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	for topic := range c.handlers {
		r := c.newReader(topic)
		c.readers[topic] = r
		c.fetchWg.Add(1)
		go c.fetch(ctx, topic, r)
	}
	for i := 0; i < c.cfg.Workers; i++ {
		c.workWg.Add(1)
		go c.work(ctx)
	}
	c.log.Info("kafka consumer started",
		applogger.String("group", c.cfg.GroupID),
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.Workers))
	return nil
}

// Stop ends fetching, lets the workers finish what is queued, and closes the
// readers. It is safe to call on a consumer that never started.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.mu.Lock()
		started := c.started
		c.mu.Unlock()
		if started {
			c.cancel()
			c.fetchWg.Wait()
			close(c.queue)
			err = wait(ctx, &c.workWg)
		}
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("kafka reader close error", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.deadLetter != nil {
			if cerr := c.deadLetter.Close(); cerr != nil {
				c.log.Warn("kafka dead letter close error", applogger.Error(cerr))
			}
		}
		if err == nil {
			c.log.Info("kafka consumer stopped")
		}
	})
	return err
}

func wait(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for kafka workers: %w", ctx.Err())
	}
}

func (c *Consumer) fetch(ctx context.Context, topic string, r messageReader) {
	defer c.fetchWg.Done()
	failures := 0
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			c.log.Error("kafka fetch error", applogger.String("topic", topic), applogger.Error(err))
			if !sleep(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, failures)) {
				return
			}
			continue
		}
		failures = 0
		select {
		case c.queue <- delivery{topic: topic, reader: r, msg: msg}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(ctx context.Context) {
	defer c.workWg.Done()
	for d := range c.queue {
		c.process(ctx, d)
	}
}

func (c *Consumer) process(ctx context.Context, d delivery) {
	start := time.Now()
	err := c.handleWithRetry(ctx, c.handlers[d.topic], d.msg)
	if errors.Is(err, errInterrupted) {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
		c.log.Error("kafka message failed",
			applogger.String("topic", d.topic),
			applogger.Int64("offset", d.msg.Offset),
			applogger.Error(err))
		if c.deadLetter != nil && c.forward(d) {
			result = "dead_letter"
		}
	}
	c.obs.ObserveKafkaHandle(d.topic, result, time.Since(start).Seconds())

	commitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.reader.CommitMessages(commitCtx, d.msg); err != nil {
		c.log.Error("kafka commit failed",
			applogger.String("topic", d.topic),
			applogger.Int64("offset", d.msg.Offset),
			applogger.Error(err))
	}
}

// handleWithRetry runs the handler until it succeeds, fails permanently, or
// runs out of attempts. Handler calls outlive ctx so a drain completes.
func (c *Consumer) handleWithRetry(ctx context.Context, h MessageHandler, msg kafka.Message) error {
	hctx := context.WithoutCancel(ctx)
	for attempt := 1; ; attempt++ {
		err := safeHandle(hctx, h, msg.Value)
		if err == nil || isPermanent(err) || attempt > c.cfg.RetryMax {
			return err
		}
		if !sleep(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return errInterrupted
		}
	}
}

func safeHandle(ctx context.Context, h MessageHandler, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h.Handle(ctx, payload)
}

func (c *Consumer) forward(d delivery) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.deadLetter.WriteMessages(ctx, kafka.Message{
		Topic:   c.cfg.DeadLetter,
		Key:     d.msg.Key,
		Value:   d.msg.Value,
		Headers: append(d.msg.Headers, kafka.Header{Key: "source_topic", Value: []byte(d.topic)}),
	})
	if err != nil {
		c.log.Error("kafka dead letter write failed", applogger.String("topic", c.cfg.DeadLetter), applogger.Error(err))
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// backoffWithJitter doubles from lo per attempt, caps at hi and subtracts up
// to half as jitter.
func backoffWithJitter(lo, hi time.Duration, attempt int) time.Duration {
	if lo <= 0 {
		lo = 50 * time.Millisecond
	}
	if hi < lo {
		hi = lo
	}
	if attempt < 1 {
		attempt = 1
	}
	d := hi
	if attempt < 32 {
		if exp := lo << uint(attempt-1); exp > 0 && exp < hi {
			d = exp
		}
	}
	if half := int64(d / 2); half > 0 {
		d -= time.Duration(rand.Int64N(half))
	}
	return d
}
