package engine

import (
	"fmt"
	"strings"
)

// Severity classifies a constraint violation.
type Severity string

const (
	// SeverityError marks violations that make an allocation invalid.
	SeverityError Severity = "error"
	// SeverityWarning marks informational violations; the allocation
	// already happened and stays valid.
	SeverityWarning Severity = "warning"
)

// ConstraintViolation describes one violated rule.
type ConstraintViolation struct {
	Constraint string   `json:"constraint"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
}

// ValidationResult is the outcome of checking an allocation against a
// constraint set. Valid is true iff no error-severity violations exist.
type ValidationResult struct {
	Valid      bool                  `json:"valid"`
	Violations []ConstraintViolation `json:"violations"`
}

// ValidateAllocation checks a completed allocation against the constraint
// set. Every rule is evaluated; nothing short-circuits, so one call reports
// all violated rules at once. The shelf-life and warehouse rules are
// re-checked against the pool snapshot even though the allocator
// pre-filters on them, to catch pools mutated between calls.
func ValidateAllocation(alloc *Allocation, pool []BatchRecord, constraints *ConstraintSet) ValidationResult {
	result := ValidationResult{Valid: true, Violations: []ConstraintViolation{}}
	if constraints == nil {
		return result
	}

	byID := make(map[string]*BatchRecord, len(pool))
	for i := range pool {
		byID[pool[i].ID] = &pool[i]
	}

	if constraints.MaxLines != nil && len(alloc.Lines) > *constraints.MaxLines {
		result.add(ConstraintViolation{
			Constraint: "max_lines",
			Message:    fmt.Sprintf("allocation spans %d lines, limit is %d", len(alloc.Lines), *constraints.MaxLines),
			Severity:   SeverityError,
		})
	}

	if constraints.RequireSingleWarehouse {
		warehouses := distinctWarehouses(alloc.Lines)
		if len(warehouses) > 1 {
			result.add(ConstraintViolation{
				Constraint: "require_single_warehouse",
				Message:    fmt.Sprintf("allocation spans %d warehouses: %s", len(warehouses), strings.Join(warehouses, ", ")),
				Severity:   SeverityError,
			})
		}
	}

	if constraints.MaxCostPerUnit != nil {
		for _, line := range alloc.Lines {
			if line.UnitCost.GreaterThan(*constraints.MaxCostPerUnit) {
				result.add(ConstraintViolation{
					Constraint: "max_cost_per_unit",
					Message: fmt.Sprintf("batch %s unit cost %s exceeds ceiling %s",
						line.BatchID, line.UnitCost.String(), constraints.MaxCostPerUnit.String()),
					Severity: SeverityWarning,
				})
			}
		}
	}

	if constraints.MinShelfLifeDays != nil {
		for _, line := range alloc.Lines {
			batch, ok := byID[line.BatchID]
			if !ok {
				result.add(ConstraintViolation{
					Constraint: "min_remaining_shelf_life_days",
					Message:    fmt.Sprintf("batch %s is no longer present in the pool snapshot", line.BatchID),
					Severity:   SeverityError,
				})
				continue
			}
			if batch.ShelfLifeDays == nil || *batch.ShelfLifeDays < *constraints.MinShelfLifeDays {
				result.add(ConstraintViolation{
					Constraint: "min_remaining_shelf_life_days",
					Message: fmt.Sprintf("batch %s does not meet the minimum remaining shelf life of %d days",
						line.BatchID, *constraints.MinShelfLifeDays),
					Severity: SeverityError,
				})
			}
		}
	}

	if len(constraints.AllowedWarehouses) > 0 {
		for _, line := range alloc.Lines {
			batch, ok := byID[line.BatchID]
			if !ok {
				result.add(ConstraintViolation{
					Constraint: "allowed_warehouses",
					Message:    fmt.Sprintf("batch %s is no longer present in the pool snapshot", line.BatchID),
					Severity:   SeverityError,
				})
				continue
			}
			if !constraints.AllowsWarehouse(batch.Warehouse) {
				result.add(ConstraintViolation{
					Constraint: "allowed_warehouses",
					Message:    fmt.Sprintf("batch %s is stored in warehouse %q, which is not allowed", line.BatchID, batch.Warehouse),
					Severity:   SeverityError,
				})
			}
		}
	}

	return result
}

func (r *ValidationResult) add(v ConstraintViolation) {
	r.Violations = append(r.Violations, v)
	if v.Severity == SeverityError {
		r.Valid = false
	}
}

// distinctWarehouses returns the warehouses touched by the lines, in first-use order.
func distinctWarehouses(lines []AllocationLine) []string {
	seen := make(map[string]struct{}, len(lines))
	var warehouses []string
	for _, line := range lines {
		if _, ok := seen[line.Warehouse]; ok {
			continue
		}
		seen[line.Warehouse] = struct{}{}
		warehouses = append(warehouses, line.Warehouse)
	}
	return warehouses
}
