package jobs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealroom/deal-server-go/internal/events"
	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/repository"
	"github.com/dealroom/deal-server-go/internal/service"
)

const (
	scanTaskTimeout = 60 * time.Second
	scanMaxBytes    = 25 << 20
)

// eicarSignature is the standard antivirus test string. A real deployment
// would hand the bytes to a scanning service; the pipeline shape is the same.
var eicarSignature = []byte(`X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`)

type scanTask struct {
	DealID  string
	FileURL string
}

// ScanWorker checks uploaded contract drafts in the background. The
// submission that registers a draft returns immediately with
// scan_status=pending; the verdict is written back through a conditional
// update and announced on the event broker.
type ScanWorker struct {
	dealRepo repository.DealRepository
	broker   service.EventPublisher
	client   *http.Client
	tasks    chan scanTask
	done     chan struct{}
	stopped  chan struct{}
}

func NewScanWorker(dealRepo repository.DealRepository, broker service.EventPublisher, queueSize int) *ScanWorker {
	return &ScanWorker{
		dealRepo: dealRepo,
		broker:   broker,
		client:   &http.Client{Timeout: scanTaskTimeout},
		tasks:    make(chan scanTask, queueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Enqueue schedules a scan. Never blocks; returns false when the queue is
// full and the draft stays pending.
func (w *ScanWorker) Enqueue(dealID, fileURL string) bool {
	select {
	case w.tasks <- scanTask{DealID: dealID, FileURL: fileURL}:
		return true
	default:
		return false
	}
}

func (w *ScanWorker) Start() {
	go w.run()
	log.Info().Int("queueSize", cap(w.tasks)).Msg("scan worker started")
}

func (w *ScanWorker) Stop() {
	close(w.done)
	<-w.stopped
	log.Info().Msg("scan worker stopped")
}

func (w *ScanWorker) run() {
	defer close(w.stopped)

	for {
		select {
		case <-w.done:
			return
		case task := <-w.tasks:
			w.process(task)
		}
	}
}

func (w *ScanWorker) process(task scanTask) {
	ctx, cancel := context.WithTimeout(context.Background(), scanTaskTimeout)
	defer cancel()

	verdict, err := w.scan(ctx, task.FileURL)
	if err != nil {
		// Left pending; the next registration of the draft re-enqueues.
		log.Warn().Err(err).Str("dealId", task.DealID).Msg("attachment scan failed")
		return
	}

	won, err := w.dealRepo.UpdateScanStatus(ctx, task.DealID, model.ScanStatusPending, verdict)
	if err != nil {
		log.Error().Err(err).Str("dealId", task.DealID).Msg("failed to record scan verdict")
		return
	}
	if !won {
		log.Info().Str("dealId", task.DealID).Msg("scan verdict dropped, draft changed meanwhile")
		return
	}

	log.Info().
		Str("dealId", task.DealID).
		Str("verdict", string(verdict)).
		Msg("attachment scanned")

	deal, err := w.dealRepo.FindByID(ctx, task.DealID)
	if err == nil && deal != nil {
		w.broker.PublishDeal(ctx, deal.CreatorID, events.TypeDealScanned, deal.ID)
	}
}

func (w *ScanWorker) scan(ctx context.Context, fileURL string) (model.ScanStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch attachment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch attachment: upstream returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, scanMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read attachment: %w", err)
	}

	if bytes.Contains(data, eicarSignature) {
		return model.ScanStatusFlagged, nil
	}
	return model.ScanStatusClean, nil
}
