package engine

import "github.com/shopspring/decimal"

// ViolationDetail is one FEFO violation: an older batch left with unused
// quantity while a newer one was consumed.
type ViolationDetail struct {
	// ConsumedBatchID is the first consumed line that skipped past the older batch.
	ConsumedBatchID string `json:"consumed_batch_id"`
	// SkippedBatchID is the older, under-consumed batch.
	SkippedBatchID string          `json:"skipped_batch_id"`
	SkippedKey     int64           `json:"skipped_order_key"`
	UnusedQuantity decimal.Decimal `json:"unused_quantity"`
}

// ViolationReport summarizes the FEFO violations of one allocation.
type ViolationReport struct {
	Count   int               `json:"violation_count"`
	Details []ViolationDetail `json:"details"`
}

// CountFEFOViolations counts, post hoc, how often the allocation consumed a
// later-expiring batch while an earlier-expiring one still had unused
// quantity. Each under-consumed older batch is counted exactly once, no
// matter how many newer lines skipped past it; the detail names the first
// such line. Batches no strategy was allowed to consume (ineligible,
// excluded by ID, or failing the warehouse or shelf-life constraints) are
// not counted as skippable, so an allocation is never charged for lots it
// was forbidden to touch.
func CountFEFOViolations(alloc *Allocation, pool []BatchRecord, excludeIDs []string, constraints *ConstraintSet) ViolationReport {
	report := ViolationReport{Details: []ViolationDetail{}}
	if alloc == nil || len(alloc.Lines) == 0 {
		return report
	}

	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	taken := make(map[string]decimal.Decimal, len(alloc.Lines))
	for _, line := range alloc.Lines {
		taken[line.BatchID] = taken[line.BatchID].Add(line.QuantityTaken)
	}

	for i := range pool {
		older := &pool[i]
		if !older.Eligible {
			continue
		}
		if _, ok := excluded[older.ID]; ok {
			continue
		}
		if constraints.excludes(older.ID) {
			continue
		}
		if !constraints.AllowsWarehouse(older.Warehouse) {
			continue
		}
		if !constraints.MeetsShelfLife(older) {
			continue
		}

		unused := older.AvailableQuantity.Sub(taken[older.ID])
		if !unused.IsPositive() {
			continue
		}

		// Lines are in consumption order; the first newer-keyed line is
		// the one that skipped this batch.
		for _, line := range alloc.Lines {
			if line.BatchID == older.ID || line.OrderKey <= older.OrderKey {
				continue
			}
			report.Count++
			report.Details = append(report.Details, ViolationDetail{
				ConsumedBatchID: line.BatchID,
				SkippedBatchID:  older.ID,
				SkippedKey:      older.OrderKey,
				UnusedQuantity:  unused,
			})
			break
		}
	}

	return report
}
