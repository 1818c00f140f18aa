package core

import "slices"

// MonthlySummary is one row of the per-month mileage and cost table: the
// calendar month, its odometer start/end pair, the miles driven and the
// maintenance spend attributed to that month.
type MonthlySummary struct {
	Month           Date
	StartingMileage int64
	EndingMileage   int64
	Mileage         int64
	Cost            Money
}

// AnnualMetrics aggregates a monthly summary into fleet-level figures.
// CostPerMile is in dollars per mile.
type AnnualMetrics struct {
	Mileage     int64
	TotalCost   Money
	CostPerMile float64
}

// BreakdownRow is one maintenance description with its per-month cost cells.
// Cells align with CategoryBreakdown.Months.
type BreakdownRow struct {
	Description string
	Cells       []Money
}

// BreakdownSection is the slice of rows belonging to one vocabulary category.
type BreakdownSection struct {
	Category string
	Rows     []BreakdownRow
}

// CategoryBreakdown is the description-by-month cost matrix. Rows holds the
// full table in vocabulary order; Sections is the same data partitioned by
// category for display; Totals is the derived "Total Monthly Costs" row, the
// column-wise sum across all description rows.
type CategoryBreakdown struct {
	Months   []Date
	Rows     []BreakdownRow
	Sections []BreakdownSection
	Totals   []Money
}

// ComputeMonthlySummary buckets a vehicle's maintenance logs into its monthly
// mileage ledger. Entries are sorted by month ascending; each entry's
// interval is the half-open [month start, month start + 1 calendar month).
// A log is attributed to the first interval containing its date, so a log
// dated exactly on a month boundary lands in the later month and is never
// double counted. Negative mileage deltas are surfaced as-is. An empty
// ledger yields an empty summary.
func ComputeMonthlySummary(mileage []MonthlyMileage, logs []MaintenanceLog) []MonthlySummary {
	if len(mileage) == 0 {
		return nil
	}
	sorted := sortedByMonth(mileage)
	out := make([]MonthlySummary, len(sorted))
	for i, mm := range sorted {
		out[i] = MonthlySummary{
			Month:           mm.Month.MonthStart(),
			StartingMileage: mm.StartingMileage,
			EndingMileage:   mm.EndingMileage,
			Mileage:         mm.EndingMileage - mm.StartingMileage,
		}
	}
	for _, l := range logs {
		if i, ok := monthIndex(sorted, l.Date); ok {
			out[i].Cost.Cents += l.TotalCost.Cents
		}
	}
	return out
}

// ComputeAnnualMetrics sums a monthly summary. Zero (or negative) total
// mileage yields a cost per mile of 0.0 rather than an error: a vehicle with
// no recorded mileage has no meaningful rate.
func ComputeAnnualMetrics(summary []MonthlySummary) AnnualMetrics {
	var m AnnualMetrics
	for _, row := range summary {
		m.Mileage += row.Mileage
		m.TotalCost.Cents += row.Cost.Cents
	}
	if m.Mileage > 0 {
		m.CostPerMile = m.TotalCost.Dollars() / float64(m.Mileage)
	}
	return m
}

// ComputeCategoryBreakdown builds the description-by-month cost matrix for
// one vehicle. Only logs whose description exactly matches a vocabulary
// string contribute; everything else is silently excluded here (but still
// counted by ComputeMonthlySummary). Each matching log is added to the first
// month interval containing its date, under the same half-open rule. When
// the mileage ledger is empty the computation is skipped entirely and ok is
// false: no table, not an empty one.
func ComputeCategoryBreakdown(mileage []MonthlyMileage, logs []MaintenanceLog, vocab Vocabulary) (CategoryBreakdown, bool) {
	if len(mileage) == 0 {
		return CategoryBreakdown{}, false
	}
	sorted := sortedByMonth(mileage)
	months := make([]Date, len(sorted))
	for i, mm := range sorted {
		months[i] = mm.Month.MonthStart()
	}

	cells := make(map[string][]Money, len(vocab.Sections)*8)
	for _, sec := range vocab.Sections {
		for _, desc := range sec.Descriptions {
			cells[desc] = make([]Money, len(months))
		}
	}
	for _, l := range logs {
		row, known := cells[l.Description]
		if !known {
			continue
		}
		if i, ok := monthIndex(sorted, l.Date); ok {
			row[i].Cents += l.TotalCost.Cents
		}
	}

	bd := CategoryBreakdown{
		Months:   months,
		Sections: make([]BreakdownSection, 0, len(vocab.Sections)),
		Totals:   make([]Money, len(months)),
	}
	for _, sec := range vocab.Sections {
		rows := make([]BreakdownRow, 0, len(sec.Descriptions))
		for _, desc := range sec.Descriptions {
			rows = append(rows, BreakdownRow{Description: desc, Cells: cells[desc]})
		}
		bd.Sections = append(bd.Sections, BreakdownSection{Category: sec.Name, Rows: rows})
		bd.Rows = append(bd.Rows, rows...)
	}
	for _, row := range bd.Rows {
		for i, c := range row.Cells {
			bd.Totals[i].Cents += c.Cents
		}
	}
	return bd, true
}

func sortedByMonth(mileage []MonthlyMileage) []MonthlyMileage {
	sorted := make([]MonthlyMileage, len(mileage))
	copy(sorted, mileage)
	slices.SortStableFunc(sorted, func(a, b MonthlyMileage) int {
		return a.Month.Compare(b.Month.Time)
	})
	return sorted
}

// monthIndex locates the first entry whose half-open month interval contains
// d. Entries must already be sorted by month ascending.
func monthIndex(entries []MonthlyMileage, d Date) (int, bool) {
	for i, mm := range entries {
		start := mm.Month.MonthStart()
		end := start.AddMonths(1)
		if !d.Before(start.Time) && d.Before(end.Time) {
			return i, true
		}
	}
	return 0, false
}
