package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/player-console/internal/config"
	"github.com/player-console/internal/domain"
)

// handleTimeout bounds each handler call
const handleTimeout = 10 * time.Second

// ActionHandler processes activity records read from the topic
type ActionHandler interface {
	HandleAction(ctx context.Context, rec domain.ActionRecord) error
}

// HandlerFunc adapts a function to ActionHandler
type HandlerFunc func(ctx context.Context, rec domain.ActionRecord) error

// HandleAction calls f
func (f HandlerFunc) HandleAction(ctx context.Context, rec domain.ActionRecord) error {
	return f(ctx, rec)
}

// Consumer reads the activity topic as part of a consumer group
type Consumer struct {
	config        *config.KafkaConfig
	handler       ActionHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	ready         chan bool
}

// NewConsumer creates a consumer. Oldest offsets are read when fromStart is
// set, otherwise only new activity.
func NewConsumer(cfg *config.KafkaConfig, handler ActionHandler, fromStart bool, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	if fromStart {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: consumerGroup,
		ctx:           ctx,
		cancel:        cancel,
		ready:         make(chan bool),
	}, nil
}

// Start begins consuming and returns once the first session is set up
func (c *Consumer) Start() error {
	c.logger.Info("starting activity consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				ready:    c.ready,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if err == sarama.ErrClosedConsumerGroup {
					return
				}
				c.logger.Error("error from consumer", "error", err)
			}

			if c.ctx.Err() != nil {
				return
			}

			c.ready = make(chan bool)
		}
	}()

	<-c.ready
	c.logger.Info("activity consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop ends consumption and closes the group
func (c *Consumer) Stop() error {
	c.logger.Info("stopping activity consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	ready    chan bool
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim hands each decodable record to the handler. Undecodable
// messages are logged and skipped.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			rec, err := Decode(message.Value)
			if err != nil {
				h.consumer.logger.Warn("skipping activity message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			ctx, cancel := context.WithTimeout(session.Context(), handleTimeout)
			if err := h.consumer.handler.HandleAction(ctx, rec); err != nil {
				h.consumer.logger.Error("failed to handle activity", "error", err, "kind", rec.Kind)
			}
			cancel()
			session.MarkMessage(message, "")
		}
	}
}
