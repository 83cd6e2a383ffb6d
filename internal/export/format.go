// Package export renders reports and invoices as downloadable files.
package export

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/deliverydesk/deliverydesk/internal/model"
)

// ErrUnsupportedFormat is returned for anything other than pdf, xlsx or csv.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is a report download format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts a case-insensitive format name. Empty means pdf.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type sent with the attachment.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/pdf"
	}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ReportFileName builds e.g. "sales_report_2024-05-01_2024-05-31_north.xlsx".
func ReportFileName(r *model.Report, f Format) string {
	name := fmt.Sprintf("sales_report_%s_%s", model.FormatDate(r.StartDate), model.FormatDate(r.EndDate))
	if r.Territory != "" {
		slug := strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(r.Territory), "_"), "_")
		if slug != "" {
			name += "_" + slug
		}
	}
	return name + "." + string(f)
}

// InvoiceFileName builds "invoice_<order id>.pdf".
func InvoiceFileName(orderID int64) string {
	return fmt.Sprintf("invoice_%d.pdf", orderID)
}

// WriteReport renders the report in the requested format.
func WriteReport(w io.Writer, r *model.Report, f Format) error {
	switch f {
	case FormatPDF:
		return WriteReportPDF(w, r)
	case FormatXLSX:
		return WriteReportXLSX(w, r)
	case FormatCSV:
		return WriteReportCSV(w, r)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

func reportTitle(r *model.Report) string {
	if r.Territory != "" {
		return "Sales Report - " + r.Territory
	}
	return "Sales Report"
}

func periodLine(r *model.Report) string {
	return fmt.Sprintf("Period: %s to %s", model.FormatDate(r.StartDate), model.FormatDate(r.EndDate))
}

func money(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
