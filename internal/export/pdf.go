package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/deliverydesk/deliverydesk/internal/model"
)

const (
	pageMarginMM = 12.7
	rowHeightMM  = 8.0
)

// Invoice is the data printed on a single-order invoice.
type Invoice struct {
	Order    *model.Order
	Customer *model.Customer
}

// WriteInvoicePDF renders a one-page invoice for an order.
func WriteInvoicePDF(w io.Writer, inv Invoice) error {
	if inv.Order == nil || inv.Customer == nil {
		return fmt.Errorf("invoice requires an order and its customer")
	}
	o := inv.Order
	line := o.Line()

	pdf := newDocument()
	pdf.heading("Invoice")

	pdf.SetFont("Helvetica", "", 12)
	for _, info := range []string{
		"Customer: " + inv.Customer.Name,
		"Address: " + inv.Customer.Address,
		"Order Date: " + model.FormatDate(o.OrderDate),
		"Delivery Date: " + model.FormatDate(o.DeliveryDate),
	} {
		pdf.CellFormat(0, rowHeightMM, pdf.tr(info), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	widths := []float64{100, 50}
	pdf.table(widths, []string{"Description", "Amount"}, [][]string{
		{"Total Cases", strconv.Itoa(o.TotalCases)},
		{"Total Cost", money(line.Cost)},
		{"Payment Received", money(line.Received())},
		{"Balance Due", money(line.Outstanding())},
	})

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, rowHeightMM, "Payment Details:", "", 1, "L", false, 0, "")
	pdf.table(widths, []string{"Payment Type", "Amount"}, [][]string{
		{"Cash", money(line.Cash)},
		{"Check", money(line.Check)},
		{"Credit", money(line.Credit)},
	})

	return pdf.Output(w)
}

// WriteReportPDF renders the summary and daily totals tables.
func WriteReportPDF(w io.Writer, r *model.Report) error {
	pdf := newDocument()
	pdf.heading(reportTitle(r))

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, rowHeightMM, pdf.tr(periodLine(r)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	s := r.Summary
	pdf.table([]float64{100, 50}, []string{"Metric", "Value"}, [][]string{
		{"Total Orders", strconv.Itoa(s.Totals.Count)},
		{"Total Cases", strconv.Itoa(s.Totals.Cases)},
		{"Total Revenue", money(s.Totals.Cost)},
		{"Total Payments", money(s.Totals.Received)},
		{"Outstanding Balance", money(s.Totals.Outstanding)},
		{"Driver Expenses", money(s.DriverExpenses)},
		{"Net Income", money(s.NetIncome)},
	})

	if len(r.Rows) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, rowHeightMM, "Daily Totals:", "", 1, "L", false, 0, "")

		rows := make([][]string, 0, len(r.Rows))
		for _, row := range r.Rows {
			t := row.Totals
			rows = append(rows, []string{
				model.FormatDate(row.Date),
				strconv.Itoa(t.Cases),
				money(t.Cost),
				money(t.Cash),
				money(t.Check),
				money(t.Credit),
				money(t.Received),
			})
		}
		pdf.table(
			[]float64{28, 20, 26, 26, 26, 26, 28},
			[]string{"Date", "Cases", "Cost", "Cash", "Check", "Credit", "Total Paid"},
			rows,
		)
	}

	return pdf.Output(w)
}

// document is an fpdf page whose text goes through tr. The core fonts are
// cp1252, so UTF-8 names like "Caffè" must be translated before drawing.
type document struct {
	*fpdf.Fpdf
	tr func(string) string
}

func newDocument() *document {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(pageMarginMM, pageMarginMM, pageMarginMM)
	pdf.SetAutoPageBreak(true, pageMarginMM)
	pdf.AddPage()
	return &document{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (pdf *document) heading(title string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 12, pdf.tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

// table draws a grey header row and centered grid cells.
func (pdf *document) table(widths []float64, header []string, rows [][]string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(245, 245, 245)
	for i, h := range header {
		pdf.CellFormat(widths[i], rowHeightMM, pdf.tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		for i, cell := range row {
			pdf.CellFormat(widths[i], rowHeightMM, pdf.tr(cell), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
}
