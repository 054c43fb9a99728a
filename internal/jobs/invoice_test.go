package jobs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/service"
)

func TestInvoiceWorker(t *testing.T) {
	t.Run("derives the invoice off the webhook path", func(t *testing.T) {
		dealRepo := new(mockDealRepo)
		invoiceRepo := new(mockInvoiceRepo)
		publisher := newCapturePublisher()
		invoices := service.NewInvoiceService(invoiceRepo, dealRepo, publisher)
		worker := NewInvoiceWorker(invoices, 4)

		signedURL := "https://files.example.com/signed.pdf"
		dealRepo.On("FindByID", mock.Anything, "deal-1").Return(&model.Deal{
			ID:           "deal-1",
			CreatorID:    "creator-1",
			DealType:     model.DealTypePaid,
			DealAmount:   1500,
			ESignStatus:  model.ESignSigned,
			SignedPDFURL: &signedURL,
		}, nil)
		invoiceRepo.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateInvoiceParams) bool {
			return p.DealID == "deal-1" && p.Amount == 1500 && strings.HasPrefix(p.Number, "INV-")
		})).Return(&model.Invoice{ID: "invoice-1", DealID: "deal-1", Number: "INV-X"}, nil)
		invoiceRepo.On("MarkIssued", mock.Anything, "invoice-1").Return(nil)

		worker.Start()
		defer worker.Stop()

		require.True(t, worker.Enqueue("deal-1"))

		select {
		case event := <-publisher.events:
			assert.Equal(t, "invoice.ready:deal-1", event)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for invoice derivation")
		}
		invoiceRepo.AssertExpectations(t)
	})

	t.Run("full queue refuses the task", func(t *testing.T) {
		invoices := service.NewInvoiceService(new(mockInvoiceRepo), new(mockDealRepo), newCapturePublisher())
		worker := NewInvoiceWorker(invoices, 1)

		assert.True(t, worker.Enqueue("deal-1"))
		assert.False(t, worker.Enqueue("deal-2"))
	})

	t.Run("failed derivation does not crash the worker", func(t *testing.T) {
		dealRepo := new(mockDealRepo)
		invoiceRepo := new(mockInvoiceRepo)
		invoices := service.NewInvoiceService(invoiceRepo, dealRepo, newCapturePublisher())
		worker := NewInvoiceWorker(invoices, 4)

		loaded := make(chan struct{})
		dealRepo.On("FindByID", mock.Anything, "deal-gone").
			Run(func(mock.Arguments) { close(loaded) }).
			Return(nil, nil)

		worker.Start()
		defer worker.Stop()

		require.True(t, worker.Enqueue("deal-gone"))

		select {
		case <-loaded:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for derivation attempt")
		}
		invoiceRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}
