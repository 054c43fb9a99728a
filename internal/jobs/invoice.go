package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealroom/deal-server-go/internal/service"
)

const invoiceTaskTimeout = 30 * time.Second

// InvoiceWorker derives invoices for signed deals off the webhook path. It
// owns its goroutine and queue: outcomes are written back through the
// invoice repository, never left dangling in an untracked goroutine.
type InvoiceWorker struct {
	invoices *service.InvoiceService
	tasks    chan string
	done     chan struct{}
	stopped  chan struct{}
}

func NewInvoiceWorker(invoices *service.InvoiceService, queueSize int) *InvoiceWorker {
	return &InvoiceWorker{
		invoices: invoices,
		tasks:    make(chan string, queueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Enqueue schedules invoice derivation for a deal. Never blocks: a full
// queue returns false and drops the task.
func (w *InvoiceWorker) Enqueue(dealID string) bool {
	select {
	case w.tasks <- dealID:
		return true
	default:
		return false
	}
}

func (w *InvoiceWorker) Start() {
	go w.run()
	log.Info().Int("queueSize", cap(w.tasks)).Msg("invoice worker started")
}

// Stop drains nothing: in-queue tasks are abandoned and will be re-derived
// on the next signed-deal sweep or manual retry.
func (w *InvoiceWorker) Stop() {
	close(w.done)
	<-w.stopped
	log.Info().Msg("invoice worker stopped")
}

func (w *InvoiceWorker) run() {
	defer close(w.stopped)

	for {
		select {
		case <-w.done:
			return
		case dealID := <-w.tasks:
			w.process(dealID)
		}
	}
}

func (w *InvoiceWorker) process(dealID string) {
	ctx, cancel := context.WithTimeout(context.Background(), invoiceTaskTimeout)
	defer cancel()

	if _, err := w.invoices.Derive(ctx, dealID); err != nil {
		// A failed derivation never rolls back the signing transition.
		log.Warn().Err(err).Str("dealId", dealID).Msg("invoice derivation failed")
	}
}
