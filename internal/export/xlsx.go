package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/deliverydesk/deliverydesk/internal/model"
)

const (
	summarySheet = "Summary"
	dailySheet   = "Daily"
)

var dailyHeader = []string{
	"delivery_date", "order_count", "total_cases", "total_cost",
	"payment_cash", "payment_check", "payment_credit",
	"payment_received", "outstanding", "driver_expense",
}

// WriteReportXLSX writes a workbook with Summary and Daily sheets.
func WriteReportXLSX(w io.Writer, r *model.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(dailySheet); err != nil {
		return fmt.Errorf("create daily sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	s := r.Summary
	summary := [][]interface{}{
		{reportTitle(r)},
		{periodLine(r)},
		{},
		{"Metric", "Value"},
		{"Total Orders", s.Totals.Count},
		{"Total Cases", s.Totals.Cases},
		{"Total Revenue", s.Totals.Cost.InexactFloat64()},
		{"Total Payments", s.Totals.Received.InexactFloat64()},
		{"Cash", s.Totals.Cash.InexactFloat64()},
		{"Check", s.Totals.Check.InexactFloat64()},
		{"Credit", s.Totals.Credit.InexactFloat64()},
		{"Outstanding Balance", s.Totals.Outstanding.InexactFloat64()},
		{"Driver Expenses", s.DriverExpenses.InexactFloat64()},
		{"Net Income", s.NetIncome.InexactFloat64()},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return err
	}
	_ = f.SetCellStyle(summarySheet, "A1", "A1", bold)
	_ = f.SetCellStyle(summarySheet, "A4", "B4", bold)
	_ = f.SetColWidth(summarySheet, "A", "A", 24)
	_ = f.SetColWidth(summarySheet, "B", "B", 16)

	daily := make([][]interface{}, 0, len(r.Rows)+1)
	header := make([]interface{}, len(dailyHeader))
	for i, h := range dailyHeader {
		header[i] = h
	}
	daily = append(daily, header)
	for _, row := range r.Rows {
		t := row.Totals
		daily = append(daily, []interface{}{
			model.FormatDate(row.Date),
			t.Count,
			t.Cases,
			t.Cost.InexactFloat64(),
			t.Cash.InexactFloat64(),
			t.Check.InexactFloat64(),
			t.Credit.InexactFloat64(),
			t.Received.InexactFloat64(),
			t.Outstanding.InexactFloat64(),
			row.DriverExpense.InexactFloat64(),
		})
	}
	if err := writeRows(f, dailySheet, daily); err != nil {
		return err
	}
	_ = f.SetCellStyle(dailySheet, "A1", "J1", bold)
	_ = f.SetColWidth(dailySheet, "A", "J", 16)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
