// coordinator/publisher/status_publisher.go
package publisher

import (
	"context"
	"log"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/metrics"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
)

// StatusSource produces the current status report.
type StatusSource interface {
	Status() models.StatusReport
}

// SnapshotSink stores and fans out a status snapshot for one instance.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, serviceID string, report models.StatusReport) error
}

// StatusPublisher periodically snapshots coordinator status into Redis and the metrics gauges.
type StatusPublisher struct {
	source    StatusSource
	sink      SnapshotSink
	metrics   *metrics.Metrics
	serviceID string
	interval  time.Duration
	timeout   time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewStatusPublisher creates a new StatusPublisher. Each publish is bounded by timeout.
func NewStatusPublisher(source StatusSource, sink SnapshotSink, m *metrics.Metrics, serviceID string, interval, timeout time.Duration) *StatusPublisher {
	ctx, cancel := context.WithCancel(context.Background())
	return &StatusPublisher{
		source:    source,
		sink:      sink,
		metrics:   m,
		serviceID: serviceID,
		interval:  interval,
		timeout:   timeout,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start runs the publish loop. This should be run in a goroutine.
func (sp *StatusPublisher) Start() {
	defer close(sp.done)
	log.Printf("Status Publisher starting with interval: %v", sp.interval)
	ticker := time.NewTicker(sp.interval)
	defer ticker.Stop()

	sp.publish()
	for {
		select {
		case <-sp.ctx.Done():
			log.Println("Status Publisher shutting down.")
			return
		case <-ticker.C:
			sp.publish()
		}
	}
}

// Stop stops the publish loop and waits for it to exit.
func (sp *StatusPublisher) Stop() {
	sp.cancel()
	<-sp.done
}

func (sp *StatusPublisher) publish() {
	report := sp.source.Status()
	sp.metrics.ObserveStatus(report)

	ctx, cancel := context.WithTimeout(sp.ctx, sp.timeout)
	defer cancel()
	if err := sp.sink.SaveSnapshot(ctx, sp.serviceID, report); err != nil {
		log.Printf("ERROR: Status Publisher: failed to publish snapshot: %v", err)
	}
}
