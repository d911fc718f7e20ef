package worker

import (
	"github.com/streamersales/goCollectionAgent/foundation/pubsub"
)

func (w *Worker) publishOperation() {
	w.logger.Infow("worker: publishOperation: G started")
	defer w.logger.Infow("worker: publishOperation: G completed")

	if w.producer == nil {
		w.logger.Infow("worker: publishOperation: no producer configured, idling")
		<-w.shut
		return
	}

	sub := pubsub.NewSubscriber(64)
	w.broker.Subscribe(pubsub.TurnCommittedTopic, sub)
	defer w.broker.UnSubscribe(pubsub.TurnCommittedTopic, sub)

	dataCh := sub.GetChannel()

	w.logger.Infow("worker: publishOperation: G listening")
	for {
		select {
		case event := <-dataCh:
			if err := w.producer.Produce(event); err != nil {
				w.logger.Errorw("worker: publishOperation", "ERROR", err)
			}

		case <-w.shut:
			w.logger.Infow("worker: publishOperation: received shut signal")
			return
		}
	}
}
