package jobs

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/dealroom/deal-server-go/internal/model"
	"github.com/dealroom/deal-server-go/internal/repository"
)

type mockDealRepo struct {
	mock.Mock
}

func (m *mockDealRepo) WithTx(tx *sqlx.Tx) repository.DealRepository {
	return m
}

func (m *mockDealRepo) Create(ctx context.Context, params model.CreateDealParams) (*model.Deal, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deal), args.Error(1)
}

func (m *mockDealRepo) FindByID(ctx context.Context, id string) (*model.Deal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deal), args.Error(1)
}

func (m *mockDealRepo) FindByInvitationID(ctx context.Context, invitationID string) (*model.Deal, error) {
	args := m.Called(ctx, invitationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deal), args.Error(1)
}

func (m *mockDealRepo) FindByCreatorID(ctx context.Context, creatorID string, limit, offset int) ([]model.Deal, error) {
	args := m.Called(ctx, creatorID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Deal), args.Error(1)
}

func (m *mockDealRepo) MarkSent(ctx context.Context, dealID, provider, invitationID, signURL string) (bool, error) {
	args := m.Called(ctx, dealID, provider, invitationID, signURL)
	return args.Bool(0), args.Error(1)
}

func (m *mockDealRepo) MarkPending(ctx context.Context, invitationID string) (bool, error) {
	args := m.Called(ctx, invitationID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDealRepo) MarkSigned(ctx context.Context, invitationID, signedPDFURL string) (bool, error) {
	args := m.Called(ctx, invitationID, signedPDFURL)
	return args.Bool(0), args.Error(1)
}

func (m *mockDealRepo) MarkSignFailed(ctx context.Context, invitationID string) (bool, error) {
	args := m.Called(ctx, invitationID)
	return args.Bool(0), args.Error(1)
}

func (m *mockDealRepo) SetContractFile(ctx context.Context, dealID, fileURL string) error {
	args := m.Called(ctx, dealID, fileURL)
	return args.Error(0)
}

func (m *mockDealRepo) UpdateScanStatus(ctx context.Context, dealID string, from, to model.ScanStatus) (bool, error) {
	args := m.Called(ctx, dealID, from, to)
	return args.Bool(0), args.Error(1)
}

type mockInvoiceRepo struct {
	mock.Mock
}

func (m *mockInvoiceRepo) Create(ctx context.Context, params model.CreateInvoiceParams) (*model.Invoice, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) FindByDealID(ctx context.Context, dealID string) (*model.Invoice, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) MarkIssued(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockInvoiceRepo) MarkFailed(ctx context.Context, id, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

type mockTokenRepo struct {
	mock.Mock
}

func (m *mockTokenRepo) WithTx(tx *sqlx.Tx) repository.AccessTokenRepository {
	return m
}

func (m *mockTokenRepo) Create(ctx context.Context, params model.CreateAccessTokenParams) (*model.AccessToken, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessToken), args.Error(1)
}

func (m *mockTokenRepo) FindByToken(ctx context.Context, token string) (*model.AccessToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessToken), args.Error(1)
}

func (m *mockTokenRepo) Consume(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepo) Revoke(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepo) RevokeActiveByDeal(ctx context.Context, dealID string, kind model.TokenKind) (int64, error) {
	args := m.Called(ctx, dealID, kind)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTokenRepo) LinkDeal(ctx context.Context, token, dealID string) error {
	args := m.Called(ctx, token, dealID)
	return args.Error(0)
}

func (m *mockTokenRepo) FindCanonicalByDeal(ctx context.Context, dealID string, kind model.TokenKind) (*model.AccessToken, error) {
	args := m.Called(ctx, dealID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessToken), args.Error(1)
}

func (m *mockTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// capturePublisher records published events on a channel so tests can wait
// for background workers without sleeping.
type capturePublisher struct {
	events chan string
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{events: make(chan string, 16)}
}

func (p *capturePublisher) PublishDeal(ctx context.Context, creatorID, eventType, dealID string) {
	p.events <- eventType + ":" + dealID
}
