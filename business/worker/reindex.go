package worker

import (
	"github.com/streamersales/goCollectionAgent/foundation/pubsub"
)

const ragStoreID = "default"

// reindexOperation rebuilds the retrieval registration after a catalog
// update. The swap happens under the registry lock; retrievals already
// running against the old handle finish undisturbed.
func (w *Worker) reindexOperation() {
	w.logger.Infow("worker: reindexOperation: G started")
	defer w.logger.Infow("worker: reindexOperation: G completed")

	if w.registry == nil {
		w.logger.Infow("worker: reindexOperation: retrieval disabled, idling")
		<-w.shut
		return
	}

	sub := pubsub.NewSubscriber(8)
	w.broker.Subscribe(pubsub.CatalogUpdatedTopic, sub)
	defer w.broker.UnSubscribe(pubsub.CatalogUpdatedTopic, sub)

	dataCh := sub.GetChannel()

	w.logger.Infow("worker: reindexOperation: G listening")
	for {
		select {
		case <-dataCh:
			w.registry.Pop(ragStoreID)
			w.registry.Get(ragStoreID, w.config.RagConfigPath, w.config.RagIndexDir)
			w.logger.Infow("worker: reindexOperation: retriever rebuilt", "storeID", ragStoreID)

		case <-w.shut:
			w.logger.Infow("worker: reindexOperation: received shut signal")
			return
		}
	}
}
