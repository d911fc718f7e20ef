package worker

import (
	"time"

	"github.com/streamersales/goCollectionAgent/foundation/external/retriever"
	"github.com/streamersales/goCollectionAgent/foundation/pubsub"
	"go.uber.org/zap"
)

// Producer publishes committed turns to the external transcript channel.
type Producer interface {
	Produce(data any) error
}

type Settings struct {
	Config
	Logger   *zap.SugaredLogger
	Broker   *pubsub.Broker
	Producer Producer
	Registry *retriever.Registry
}

type Config struct {
	TtsDirectory          string
	TtsRetention          time.Duration
	DigitalHumanDirectory string
	DigitalHumanRetention time.Duration
	AsrDirectory          string
	AsrRetention          time.Duration
	HousekeepingInterval  time.Duration

	RagConfigPath string
	RagIndexDir   string
}
