package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

type serviceFixture struct {
	repo      *mockInvoiceRepo
	tx        *mockTxManager
	artifacts *mockArtifactStore
	inspector *mockInspector
	report    *mockReportWriter
	hook      *mockHook
	logger    *mockLogger
}

func newFixture() *serviceFixture {
	return &serviceFixture{
		repo:      &mockInvoiceRepo{},
		tx:        &mockTxManager{},
		artifacts: &mockArtifactStore{},
		inspector: &mockInspector{},
		report:    &mockReportWriter{},
		hook:      &mockHook{},
		logger:    &mockLogger{},
	}
}

func (f *serviceFixture) service() *invoiceServiceImpl {
	svc := NewInvoiceService(f.repo, f.tx, f.artifacts, f.inspector, f.report, f.hook, f.logger).(*invoiceServiceImpl)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func strPtr(s string) *string { return &s }

func TestInvoiceService_CreateInvoice(t *testing.T) {
	tests := []struct {
		name    string
		input   CreateInvoiceInput
		wantErr error
	}{
		{
			name:  "valid invoice",
			input: CreateInvoiceInput{Dealer: " Northwind Motors ", Phone: "+15550100", Total: decimal.RequireFromString("10.00"), Currency: "usd"},
		},
		{
			name:    "missing dealer",
			input:   CreateInvoiceInput{Phone: "+15550100", Total: decimal.NewFromInt(1)},
			wantErr: entity.ErrInvalidInvoice,
		},
		{
			name:    "bad phone",
			input:   CreateInvoiceInput{Dealer: "Northwind", Phone: "call me", Total: decimal.NewFromInt(1)},
			wantErr: entity.ErrInvalidInvoice,
		},
		{
			name:    "negative total",
			input:   CreateInvoiceInput{Dealer: "Northwind", Phone: "+15550100", Total: decimal.NewFromInt(-5)},
			wantErr: entity.ErrInvalidInvoice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			var stored *entity.Invoice
			f.repo.createFunc = func(ctx context.Context, invoice *entity.Invoice) error {
				invoice.ID = "inv-1"
				stored = invoice
				return nil
			}

			got, err := f.service().CreateInvoice(context.Background(), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, stored)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "inv-1", got.ID)
			assert.Equal(t, entity.InvoiceStatusCreated, got.Status)
			assert.Equal(t, "Northwind Motors", got.Dealer)
			assert.Equal(t, "USD", got.Currency)
		})
	}
}

func TestInvoiceService_UpdateInvoice(t *testing.T) {
	t.Run("created becomes draft", func(t *testing.T) {
		f := newFixture()
		f.repo.getByIDFunc = func(ctx context.Context, id string) (*entity.Invoice, error) {
			return &entity.Invoice{ID: id, Status: entity.InvoiceStatusCreated, Dealer: "Old", Phone: "+15550100", Total: decimal.NewFromInt(1)}, nil
		}
		var saved *entity.Invoice
		f.repo.updateFunc = func(ctx context.Context, invoice *entity.Invoice) error {
			saved = invoice
			return nil
		}

		total := decimal.RequireFromString("42.10")
		got, err := f.service().UpdateInvoice(context.Background(), "inv-1", UpdateInvoiceInput{
			Dealer: strPtr("New Dealer"),
			Total:  &total,
		})

		require.NoError(t, err)
		assert.Equal(t, entity.InvoiceStatusDraft, got.Status)
		assert.Equal(t, "New Dealer", saved.Dealer)
		assert.True(t, saved.Total.Equal(total))
		assert.Equal(t, "+15550100", saved.Phone)
	})

	t.Run("approved invoices are read-only", func(t *testing.T) {
		f := newFixture()
		f.repo.getByIDFunc = func(ctx context.Context, id string) (*entity.Invoice, error) {
			return approvedInvoice(), nil
		}
		f.repo.updateFunc = func(ctx context.Context, invoice *entity.Invoice) error {
			t.Fatal("update must not be called")
			return nil
		}

		_, err := f.service().UpdateInvoice(context.Background(), "inv-1", UpdateInvoiceInput{Dealer: strPtr("x")})
		assert.ErrorIs(t, err, entity.ErrInvalidTransition)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture()
		f.repo.getByIDFunc = func(ctx context.Context, id string) (*entity.Invoice, error) {
			return nil, entity.ErrInvoiceNotFound
		}

		_, err := f.service().UpdateInvoice(context.Background(), "ghost", UpdateInvoiceInput{})
		assert.ErrorIs(t, err, entity.ErrInvoiceNotFound)
	})
}

func TestInvoiceService_AttachDocument(t *testing.T) {
	t.Run("stores document and sets payload ref", func(t *testing.T) {
		f := newFixture()
		f.repo.getByIDFunc = func(ctx context.Context, id string) (*entity.Invoice, error) {
			return &entity.Invoice{ID: id, Status: entity.InvoiceStatusDraft, Dealer: "D", Phone: "+15550100"}, nil
		}
		var savedRef string
		f.artifacts.saveFunc = func(ctx context.Context, ref string, content []byte) error {
			savedRef = ref
			return nil
		}

		got, err := f.service().AttachDocument(context.Background(), "inv-1", []byte("%PDF"))

		require.NoError(t, err)
		assert.Equal(t, "inv-1/invoice.pdf", savedRef)
		assert.Equal(t, "inv-1/invoice.pdf", got.PayloadRef)
		assert.True(t, got.HasArtifact())
	})

	t.Run("rejects unreadable document", func(t *testing.T) {
		f := newFixture()
		f.inspector.pageCountFunc = func(content []byte) (int, error) {
			return 0, errors.New("cannot open document")
		}

		_, err := f.service().AttachDocument(context.Background(), "inv-1", []byte("nope"))
		assert.ErrorIs(t, err, entity.ErrInvalidDocument)
	})

	t.Run("rejects approved invoice", func(t *testing.T) {
		f := newFixture()
		f.repo.getByIDFunc = func(ctx context.Context, id string) (*entity.Invoice, error) {
			return approvedInvoice(), nil
		}

		_, err := f.service().AttachDocument(context.Background(), "inv-1", []byte("%PDF"))
		assert.ErrorIs(t, err, entity.ErrInvalidTransition)
	})
}

func TestInvoiceService_ApproveInvoice(t *testing.T) {
	t.Run("marks approved then fires hook", func(t *testing.T) {
		f := newFixture()
		approved := false
		var approvedAt time.Time
		f.repo.getByIDFunc = func(ctx context.Context, id string) (*entity.Invoice, error) {
			if !approved {
				return &entity.Invoice{ID: id, Status: entity.InvoiceStatusDraft, DeliveryStatus: entity.DeliveryStatusFailed, DeliveryAttempts: 10}, nil
			}
			return &entity.Invoice{ID: id, Status: entity.InvoiceStatusApproved, DeliveryStatus: entity.DeliveryStatusPending, ApprovedAt: &approvedAt}, nil
		}
		f.repo.markApprovedFunc = func(ctx context.Context, id string, at time.Time) error {
			assert.Empty(t, f.hook.approved, "hook must fire after the approval is stored")
			approved = true
			approvedAt = at
			return nil
		}

		got, err := f.service().ApproveInvoice(context.Background(), "inv-1")

		require.NoError(t, err)
		assert.Equal(t, entity.InvoiceStatusApproved, got.Status)
		assert.Equal(t, entity.DeliveryStatusPending, got.DeliveryStatus)
		assert.Zero(t, got.DeliveryAttempts)
		assert.Equal(t, fixedNow, approvedAt)
		require.Len(t, f.hook.approved, 1)
		assert.Equal(t, "inv-1", f.hook.approved[0].ID)
	})

	t.Run("hook not fired when transaction fails", func(t *testing.T) {
		f := newFixture()
		f.repo.markApprovedFunc = func(ctx context.Context, id string, at time.Time) error {
			return errors.New("database is locked")
		}

		_, err := f.service().ApproveInvoice(context.Background(), "inv-1")

		assert.Error(t, err)
		assert.Empty(t, f.hook.approved)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		f := newFixture()
		f.repo.getByIDFunc = func(ctx context.Context, id string) (*entity.Invoice, error) {
			return nil, entity.ErrInvoiceNotFound
		}

		_, err := f.service().ApproveInvoice(context.Background(), "ghost")
		assert.ErrorIs(t, err, entity.ErrInvoiceNotFound)
		assert.Empty(t, f.hook.approved)
	})
}

func TestInvoiceService_ResetDelivery(t *testing.T) {
	t.Run("exhausted invoice keeps its approval time", func(t *testing.T) {
		f := newFixture()
		exhausted := approvedInvoice()
		exhausted.DeliveryStatus = entity.DeliveryStatusFailed
		exhausted.DeliveryAttempts = entity.MaxDeliveryAttempts
		originalApproval := *exhausted.ApprovedAt

		f.repo.getByIDFunc = func(ctx context.Context, id string) (*entity.Invoice, error) {
			return exhausted, nil
		}
		var usedApproval time.Time
		f.repo.markApprovedFunc = func(ctx context.Context, id string, at time.Time) error {
			usedApproval = at
			return nil
		}

		_, err := f.service().ResetDelivery(context.Background(), "inv-1")

		require.NoError(t, err)
		assert.Equal(t, originalApproval, usedApproval)
		assert.Len(t, f.hook.approved, 1)
	})

	t.Run("sent invoice cannot be reset", func(t *testing.T) {
		f := newFixture()
		sent := approvedInvoice()
		sent.DeliveryStatus = entity.DeliveryStatusSent
		f.repo.getByIDFunc = func(ctx context.Context, id string) (*entity.Invoice, error) {
			return sent, nil
		}

		_, err := f.service().ResetDelivery(context.Background(), "inv-1")
		assert.ErrorIs(t, err, entity.ErrDeliveryNotApplicable)
		assert.Empty(t, f.hook.approved)
	})

	t.Run("draft invoice cannot be reset", func(t *testing.T) {
		f := newFixture()
		_, err := f.service().ResetDelivery(context.Background(), "inv-1")
		assert.ErrorIs(t, err, entity.ErrDeliveryNotApplicable)
	})
}

func TestInvoiceService_ListAndReport(t *testing.T) {
	f := newFixture()
	var gotFilter port.InvoiceFilter
	f.repo.listFunc = func(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
		gotFilter = filter
		return []*entity.Invoice{approvedInvoice()}, nil
	}
	f.report.writeFunc = func(w io.Writer, invoices []*entity.Invoice) error {
		_, err := w.Write([]byte(invoices[0].ID))
		return err
	}
	svc := f.service()

	_, err := svc.ListInvoices(context.Background(), port.InvoiceFilter{DeliveryStatus: "BOGUS"})
	assert.ErrorIs(t, err, entity.ErrInvalidStatus)

	var buf bytes.Buffer
	filter := port.InvoiceFilter{Status: entity.InvoiceStatusApproved}
	require.NoError(t, svc.ExportDeliveryReport(context.Background(), &buf, filter))
	assert.Equal(t, filter, gotFilter)
	assert.Equal(t, "inv-1", buf.String())
}
