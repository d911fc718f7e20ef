package worker

import (
	"time"

	"github.com/streamersales/goCollectionAgent/foundation/cleaner"
)

func (w *Worker) housekeepingOperation() {
	w.logger.Infow("worker: housekeepingOperation: G started")
	defer w.logger.Infow("worker: housekeepingOperation: G completed")

	interval := w.config.HousekeepingInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	w.purgeArtifacts()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.purgeArtifacts()

		case <-w.shut:
			w.logger.Infow("worker: housekeepingOperation: received shut signal")
			return
		}
	}
}

// purgeArtifacts sweeps each artifact directory under its own retention
// window. Directories left unconfigured are skipped.
func (w *Worker) purgeArtifacts() {
	targets := []struct {
		directory string
		retention time.Duration
	}{
		{w.config.TtsDirectory, w.config.TtsRetention},
		{w.config.DigitalHumanDirectory, w.config.DigitalHumanRetention},
		{w.config.AsrDirectory, w.config.AsrRetention},
	}

	for _, target := range targets {
		if target.directory == "" || target.retention <= 0 {
			continue
		}
		removed := cleaner.PurgeOlderThan(target.directory, target.retention, w.logger)
		if removed > 0 {
			w.logger.Infow("worker: housekeepingOperation: purged artifacts",
				"directory", target.directory, "removed", removed)
		}
	}
}
