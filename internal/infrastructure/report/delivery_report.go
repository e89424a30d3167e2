package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-notifier/internal/application/port"
	"github.com/garyjia/invoice-notifier/internal/domain/entity"
)

// SheetName is the worksheet holding the delivery rows
const SheetName = "Deliveries"

var reportHeaders = []string{
	"Invoice ID", "Dealer", "Phone", "Total", "Currency", "Status",
	"Delivery Status", "Attempts", "Retry Exhausted", "Last Error",
	"Last Attempt", "Approved At",
}

// ExcelDeliveryReport writes invoice delivery state as an xlsx workbook
type ExcelDeliveryReport struct {
	maxAttempts int
	logger      *zap.Logger
}

// NewExcelDeliveryReport creates a new report writer
func NewExcelDeliveryReport(maxAttempts int, logger *zap.Logger) *ExcelDeliveryReport {
	return &ExcelDeliveryReport{
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Write renders one row per invoice into w
func (r *ExcelDeliveryReport) Write(w io.Writer, invoices []*entity.Invoice) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &reportHeaders); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(reportHeaders))
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	for i, inv := range invoices {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		total, _ := inv.Total.Float64()
		row := []interface{}{
			inv.ID,
			inv.Dealer,
			inv.Phone,
			total,
			inv.Currency,
			inv.Status.String(),
			inv.DeliveryStatus.String(),
			inv.DeliveryAttempts,
			yesNo(inv.RetryExhausted(r.maxAttempts)),
			inv.LastDeliveryError,
			formatTime(inv.LastDeliveryAt),
			formatTime(inv.ApprovedAt),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row for invoice %s: %w", inv.ID, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		r.logger.Warn("Failed to freeze header row", zap.Error(err))
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	r.logger.Info("Delivery report written", zap.Int("rows", len(invoices)))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

var _ port.DeliveryReportWriter = (*ExcelDeliveryReport)(nil)
