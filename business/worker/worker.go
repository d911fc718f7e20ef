// Package worker runs the background operations of the service: artifact
// housekeeping, transcript publishing and retriever reindexing.
package worker

import (
	"sync"

	"github.com/streamersales/goCollectionAgent/foundation/external/retriever"
	"github.com/streamersales/goCollectionAgent/foundation/pubsub"
	"go.uber.org/zap"
)

type Worker struct {
	config   Config
	logger   *zap.SugaredLogger
	broker   *pubsub.Broker
	producer Producer
	registry *retriever.Registry

	wg    sync.WaitGroup
	shut  chan struct{}
	error chan error
}

func Run(s Settings) (*Worker, <-chan error) {
	w := &Worker{
		config:   s.Config,
		logger:   s.Logger,
		broker:   s.Broker,
		producer: s.Producer,
		registry: s.Registry,
		shut:     make(chan struct{}),
		error:    make(chan error),
	}

	operations := []func(){
		w.housekeepingOperation,
		w.publishOperation,
		w.reindexOperation,
	}

	g := len(operations)
	w.wg.Add(g)

	hasStarted := make(chan bool)

	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return w, w.error
}

func (w *Worker) Shutdown(err error) {
	w.logger.Infow("worker: shutdown: started")
	defer w.logger.Infow("worker: shutdown: completed")

	w.logger.Infow("worker: shutdown: terminate goroutines")
	close(w.shut)

	w.wg.Wait()

	if err != nil {
		w.error <- err
	}
}
