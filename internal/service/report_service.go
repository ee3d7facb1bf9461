package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ignatev/fitclub-api/internal/models"
	appErrors "github.com/ignatev/fitclub-api/pkg/errors"
	"github.com/ignatev/fitclub-api/pkg/export"
)

// ReportFormat selects the attendance report output encoding.
type ReportFormat string

const (
	FormatJSON ReportFormat = "json"
	FormatCSV  ReportFormat = "csv"
	FormatPDF  ReportFormat = "pdf"
)

type reportBookingRepository interface {
	AttendanceBetween(ctx context.Context, from, to time.Time) ([]models.AttendanceRow, error)
}

// ReportService aggregates per-program attendance over a date range and
// renders it as JSON rows, CSV or PDF.
type ReportService struct {
	bookings reportBookingRepository
	logger   *zap.Logger
}

// NewReportService creates a report service.
func NewReportService(bookings reportBookingRepository, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{bookings: bookings, logger: logger}
}

// Attendance returns per-program booking counts for [from, to).
func (s *ReportService) Attendance(ctx context.Context, from, to time.Time) ([]models.AttendanceRow, error) {
	if !to.After(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "report range end must be after start")
	}
	rows, err := s.bookings.AttendanceBetween(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	return rows, nil
}

// Export renders the attendance report in the requested format and returns
// the document bytes with their content type.
func (s *ReportService) Export(ctx context.Context, from, to time.Time, format ReportFormat) ([]byte, string, error) {
	rows, err := s.Attendance(ctx, from, to)
	if err != nil {
		return nil, "", err
	}

	table := export.Table{
		Title:   fmt.Sprintf("Attendance %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		Columns: []string{"Program ID", "Program", "Bookings"},
	}
	for _, row := range rows {
		table.Rows = append(table.Rows, []string{
			strconv.FormatInt(row.ProgramID, 10),
			row.ProgramName,
			strconv.Itoa(row.Bookings),
		})
	}

	switch format {
	case FormatCSV:
		data, err := export.WriteCSV(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return data, "text/csv", nil
	case FormatPDF:
		data, err := export.WritePDF(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return data, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
}
