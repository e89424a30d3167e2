package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/domain/entity"
	"github.com/garyjia/invoice-notifier/pkg/utils"
)

// DocumentFileName is the artifact name stored per invoice
const DocumentFileName = "invoice.pdf"

// CreateInvoiceInput carries the fields of a new invoice
type CreateInvoiceInput struct {
	Dealer   string
	Phone    string
	Total    decimal.Decimal
	Currency string
	Notes    string
}

// UpdateInvoiceInput carries edits; nil fields are left unchanged
type UpdateInvoiceInput struct {
	Dealer   *string
	Phone    *string
	Total    *decimal.Decimal
	Currency *string
	Notes    *string
}

// InvoiceService manages the invoice lifecycle up to approval
type InvoiceService interface {
	CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*entity.Invoice, error)
	GetInvoice(ctx context.Context, id string) (*entity.Invoice, error)
	ListInvoices(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, input UpdateInvoiceInput) (*entity.Invoice, error)
	AttachDocument(ctx context.Context, id string, content []byte) (*entity.Invoice, error)
	ApproveInvoice(ctx context.Context, id string) (*entity.Invoice, error)
	ResetDelivery(ctx context.Context, id string) (*entity.Invoice, error)
	ExportDeliveryReport(ctx context.Context, w io.Writer, filter port.InvoiceFilter) error
}

type invoiceServiceImpl struct {
	repo      port.InvoiceRepository
	txManager port.TransactionManager
	artifacts port.ArtifactStore
	inspector port.DocumentInspector
	report    port.DeliveryReportWriter
	hook      ApprovalHook
	logger    Logger
	now       func() time.Time
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	repo port.InvoiceRepository,
	txManager port.TransactionManager,
	artifacts port.ArtifactStore,
	inspector port.DocumentInspector,
	report port.DeliveryReportWriter,
	hook ApprovalHook,
	logger Logger,
) InvoiceService {
	return &invoiceServiceImpl{
		repo:      repo,
		txManager: txManager,
		artifacts: artifacts,
		inspector: inspector,
		report:    report,
		hook:      hook,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateInvoice validates and stores a new CREATED invoice
func (s *invoiceServiceImpl) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*entity.Invoice, error) {
	invoice := &entity.Invoice{
		Status:   entity.InvoiceStatusCreated,
		Dealer:   strings.TrimSpace(utils.SanitizeString(input.Dealer)),
		Phone:    strings.TrimSpace(input.Phone),
		Total:    input.Total,
		Currency: strings.ToUpper(strings.TrimSpace(input.Currency)),
		Notes:    utils.SanitizeString(input.Notes),
	}

	if err := validateInvoice(invoice); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, invoice); err != nil {
		s.logger.Error("Failed to create invoice", "error", err)
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	s.logger.Info("Invoice created", "invoice_id", invoice.ID, "dealer", invoice.Dealer)
	return invoice, nil
}

// GetInvoice retrieves an invoice by ID
func (s *invoiceServiceImpl) GetInvoice(ctx context.Context, id string) (*entity.Invoice, error) {
	invoice, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return invoice, nil
}

// ListInvoices lists invoices with pagination and filters
func (s *invoiceServiceImpl) ListInvoices(ctx context.Context, filter port.InvoiceFilter) ([]*entity.Invoice, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidStatus, filter.Status)
	}
	if filter.DeliveryStatus != "" && !filter.DeliveryStatus.IsValid() {
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidStatus, filter.DeliveryStatus)
	}

	invoices, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

// UpdateInvoice edits an invoice that has not been approved yet. A CREATED
// invoice becomes DRAFT on its first edit.
func (s *invoiceServiceImpl) UpdateInvoice(ctx context.Context, id string, input UpdateInvoiceInput) (*entity.Invoice, error) {
	var updated *entity.Invoice

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if err := moveToDraft(invoice); err != nil {
			return err
		}

		if input.Dealer != nil {
			invoice.Dealer = strings.TrimSpace(utils.SanitizeString(*input.Dealer))
		}
		if input.Phone != nil {
			invoice.Phone = strings.TrimSpace(*input.Phone)
		}
		if input.Total != nil {
			invoice.Total = *input.Total
		}
		if input.Currency != nil {
			invoice.Currency = strings.ToUpper(strings.TrimSpace(*input.Currency))
		}
		if input.Notes != nil {
			invoice.Notes = utils.SanitizeString(*input.Notes)
		}

		if err := validateInvoice(invoice); err != nil {
			return err
		}
		if err := s.repo.Update(txCtx, invoice); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		updated = invoice
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update invoice", "invoice_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("Invoice updated", "invoice_id", id, "status", updated.Status.String())
	return updated, nil
}

// AttachDocument stores the rendered PDF and points the invoice at it
func (s *invoiceServiceImpl) AttachDocument(ctx context.Context, id string, content []byte) (*entity.Invoice, error) {
	if s.inspector != nil {
		pages, err := s.inspector.PageCount(content)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", entity.ErrInvalidDocument, err)
		}
		if pages < 1 {
			return nil, fmt.Errorf("%w: document has no pages", entity.ErrInvalidDocument)
		}
	}

	var updated *entity.Invoice

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if err := moveToDraft(invoice); err != nil {
			return err
		}

		ref := invoice.ID + "/" + DocumentFileName
		if err := s.artifacts.Save(txCtx, ref, content); err != nil {
			return fmt.Errorf("save document: %w", err)
		}

		invoice.PayloadRef = ref
		if err := s.repo.Update(txCtx, invoice); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		updated = invoice
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to attach document", "invoice_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("Document attached", "invoice_id", id, "payload_ref", updated.PayloadRef, "size", len(content))
	return updated, nil
}

// ApproveInvoice commits the APPROVED transition, resets delivery to
// PENDING/0 and then fires the approval hook without waiting on it
func (s *invoiceServiceImpl) ApproveInvoice(ctx context.Context, id string) (*entity.Invoice, error) {
	var approved *entity.Invoice

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if !invoice.Status.CanTransitionTo(entity.InvoiceStatusApproved) {
			return fmt.Errorf("%w: %s -> %s", entity.ErrInvalidTransition, invoice.Status, entity.InvoiceStatusApproved)
		}

		if err := s.repo.MarkApproved(txCtx, id, s.now().UTC()); err != nil {
			return fmt.Errorf("mark approved: %w", err)
		}

		approved, err = s.repo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("reload invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to approve invoice", "invoice_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("Invoice approved", "invoice_id", id)
	s.hook.OnApproved(approved)

	return approved, nil
}

// ResetDelivery restarts delivery for an approved invoice that has not been
// delivered, typically after retries were exhausted. The approval time is
// kept so the idempotency key stays the same.
func (s *invoiceServiceImpl) ResetDelivery(ctx context.Context, id string) (*entity.Invoice, error) {
	var reset *entity.Invoice

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if invoice.Status != entity.InvoiceStatusApproved || invoice.DeliveryStatus == entity.DeliveryStatusSent {
			return fmt.Errorf("%w: status %s, delivery %s",
				entity.ErrDeliveryNotApplicable, invoice.Status, invoice.DeliveryStatus)
		}

		approvedAt := s.now().UTC()
		if invoice.ApprovedAt != nil {
			approvedAt = *invoice.ApprovedAt
		}
		if err := s.repo.MarkApproved(txCtx, id, approvedAt); err != nil {
			return fmt.Errorf("reset delivery: %w", err)
		}

		reset, err = s.repo.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("reload invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to reset delivery", "invoice_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("Invoice delivery reset", "invoice_id", id)
	s.hook.OnApproved(reset)

	return reset, nil
}

// ExportDeliveryReport writes the delivery state of matching invoices to w
func (s *invoiceServiceImpl) ExportDeliveryReport(ctx context.Context, w io.Writer, filter port.InvoiceFilter) error {
	invoices, err := s.ListInvoices(ctx, filter)
	if err != nil {
		return err
	}
	if err := s.report.Write(w, invoices); err != nil {
		s.logger.Error("Failed to write delivery report", "error", err)
		return fmt.Errorf("write delivery report: %w", err)
	}
	return nil
}

// moveToDraft rejects edits on approved invoices and moves CREATED to DRAFT
func moveToDraft(invoice *entity.Invoice) error {
	if invoice.Status == entity.InvoiceStatusApproved {
		return fmt.Errorf("%w: approved invoices cannot be edited", entity.ErrInvalidTransition)
	}
	if !invoice.Status.CanTransitionTo(entity.InvoiceStatusDraft) {
		return fmt.Errorf("%w: %s -> %s", entity.ErrInvalidTransition, invoice.Status, entity.InvoiceStatusDraft)
	}
	invoice.Status = entity.InvoiceStatusDraft
	return nil
}

func validateInvoice(invoice *entity.Invoice) error {
	if err := utils.ValidateDealer(invoice.Dealer); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidInvoice, err)
	}
	if err := utils.ValidatePhone(invoice.Phone); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidInvoice, err)
	}
	if err := utils.ValidateAmount(invoice.Total); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrInvalidInvoice, err)
	}
	return nil
}
