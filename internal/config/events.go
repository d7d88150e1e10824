package config

import (
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/training-assessment-service/internal/events"
)

// EventConfig holds configuration for attempt event publishing
type EventConfig struct {
	Enabled      bool
	Publisher    string // kafka, rabbitmq or mock
	KafkaBrokers string
	AttemptTopic string
	RabbitMQURL  string
	AttemptQueue string
}

// GetKafkaBrokers returns Kafka brokers as a slice
func (c *EventConfig) GetKafkaBrokers() []string {
	brokers := strings.Split(c.KafkaBrokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	return brokers
}

// CreateEventPublisher creates an event publisher based on configuration
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	if !c.Enabled {
		logger.Info("Event publishing disabled, using mock publisher")
		return events.NewMockEventPublisher(logger), nil
	}

	switch c.Publisher {
	case "kafka":
		logger.Info("Creating Kafka event publisher",
			"brokers", c.KafkaBrokers,
			"topic", c.AttemptTopic)

		return events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: c.GetKafkaBrokers(),
			TopicName:    c.AttemptTopic,
			Logger:       logger,
		})
	case "rabbitmq":
		logger.Info("Creating RabbitMQ event publisher", "queue", c.AttemptQueue)

		return events.NewRabbitMQEventPublisher(c.RabbitMQURL, c.AttemptQueue, logger)
	case "mock":
		logger.Info("Using mock event publisher")
		return events.NewMockEventPublisher(logger), nil
	default:
		logger.Warn("Unknown event publisher type, falling back to mock", "publisher", c.Publisher)
		return events.NewMockEventPublisher(logger), nil
	}
}
