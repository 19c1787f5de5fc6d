// coordinator/archiver/operation_archiver.go
package archiver

import (
	"context"
	"log"
	"time"

	"github.com/Ftotnem/RESPONSE-SERVICES/coordinator/metrics"
	"github.com/Ftotnem/RESPONSE-SERVICES/shared/models"
)

// Archive is the durable sink for completed operations.
type Archive interface {
	SaveOperation(ctx context.Context, op models.Operation) error
}

// OperationArchiver moves completed operations off the request path and into the archive.
// Enqueue never blocks; a full queue drops the operation and records it.
type OperationArchiver struct {
	archive      Archive
	metrics      *metrics.Metrics
	queue        chan models.Operation
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewOperationArchiver creates an archiver with a buffered queue of queueSize operations.
func NewOperationArchiver(archive Archive, queueSize int, writeTimeout time.Duration, m *metrics.Metrics) *OperationArchiver {
	ctx, cancel := context.WithCancel(context.Background())
	return &OperationArchiver{
		archive:      archive,
		metrics:      m,
		queue:        make(chan models.Operation, queueSize),
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Enqueue schedules op for archiving. It matches engine.CompletionHook.
func (a *OperationArchiver) Enqueue(op models.Operation) {
	if a.ctx.Err() != nil {
		log.Printf("WARNING: Archiver: stopped, dropping completed operation %s", op.ID)
		a.metrics.ArchiveWrite(metrics.ResultDropped)
		return
	}
	select {
	case a.queue <- op:
	default:
		log.Printf("WARNING: Archiver: queue full (%d), dropping completed operation %s", cap(a.queue), op.ID)
		a.metrics.ArchiveWrite(metrics.ResultDropped)
	}
}

// Start runs the archive loop. This should be run in a goroutine.
func (a *OperationArchiver) Start() {
	defer close(a.done)
	log.Printf("Operation Archiver starting with queue size %d", cap(a.queue))

	for {
		select {
		case op := <-a.queue:
			a.write(op)
		case <-a.ctx.Done():
			a.drain()
			log.Println("Operation Archiver shut down.")
			return
		}
	}
}

// Stop stops intake, flushes what is already queued and waits for the loop to exit.
func (a *OperationArchiver) Stop() {
	a.cancel()
	<-a.done
}

func (a *OperationArchiver) drain() {
	for {
		select {
		case op := <-a.queue:
			a.write(op)
		default:
			return
		}
	}
}

func (a *OperationArchiver) write(op models.Operation) {
	ctx, cancel := context.WithTimeout(context.Background(), a.writeTimeout)
	defer cancel()

	if err := a.archive.SaveOperation(ctx, op); err != nil {
		log.Printf("ERROR: Archiver: failed to archive operation %s: %v", op.ID, err)
		a.metrics.ArchiveWrite(metrics.ResultError)
		return
	}
	a.metrics.ArchiveWrite(metrics.ResultOK)
}
