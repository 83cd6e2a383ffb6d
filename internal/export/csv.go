package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/deliverydesk/deliverydesk/internal/model"
)

// WriteReportCSV writes one line per delivery date followed by a TOTAL line.
func WriteReportCSV(w io.Writer, r *model.Report) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(dailyHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range r.Rows {
		t := row.Totals
		if err := cw.Write([]string{
			model.FormatDate(row.Date),
			strconv.Itoa(t.Count),
			strconv.Itoa(t.Cases),
			t.Cost.StringFixed(2),
			t.Cash.StringFixed(2),
			t.Check.StringFixed(2),
			t.Credit.StringFixed(2),
			t.Received.StringFixed(2),
			t.Outstanding.StringFixed(2),
			row.DriverExpense.StringFixed(2),
		}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	s := r.Summary
	if err := cw.Write([]string{
		"TOTAL",
		strconv.Itoa(s.Totals.Count),
		strconv.Itoa(s.Totals.Cases),
		s.Totals.Cost.StringFixed(2),
		s.Totals.Cash.StringFixed(2),
		s.Totals.Check.StringFixed(2),
		s.Totals.Credit.StringFixed(2),
		s.Totals.Received.StringFixed(2),
		s.Totals.Outstanding.StringFixed(2),
		s.DriverExpenses.StringFixed(2),
	}); err != nil {
		return fmt.Errorf("write totals: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
