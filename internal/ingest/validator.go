package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/windfleet/turbinewatch/internal/domain"
)

// SchemaError reports required columns missing from a batch. It is fatal for
// the whole batch; nothing downstream runs.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("batch schema is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// GroupMismatchError reports turbine ids that do not belong to the expected
// group. Also fatal for the whole batch.
type GroupMismatchError struct {
	Group      domain.TurbineGroup
	TurbineIDs []int
}

func (e *GroupMismatchError) Error() string {
	return fmt.Sprintf("turbine ids %v outside expected range %d-%d for group %d",
		e.TurbineIDs, e.Group.MinTurbineID, e.Group.MaxTurbineID, e.Group.ID)
}

// Validator checks structural correctness of a raw batch before any
// transformation. It never mutates the batch.
type Validator struct {
	log zerolog.Logger
}

// NewValidator creates a new batch validator.
func NewValidator(log zerolog.Logger) *Validator {
	return &Validator{
		log: log.With().Str("component", "validator").Logger(),
	}
}

// Validate verifies that all required columns are present and that every
// turbine id in the batch belongs to the expected group. Turbines from the
// group that are absent from the batch are logged but tolerated; their gap is
// handled by the cleaning policy, not here.
func (v *Validator) Validate(batch *domain.Batch, group domain.TurbineGroup) error {
	have := make(map[string]bool, len(batch.Columns))
	for _, col := range batch.Columns {
		have[col] = true
	}

	var missing []string
	for _, col := range domain.RequiredColumns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}

	seen := make(map[int]bool)
	var outside []int
	for _, row := range batch.Rows {
		if !row.HasTurbineID || seen[row.TurbineID] {
			continue
		}
		seen[row.TurbineID] = true
		if !group.Contains(row.TurbineID) {
			outside = append(outside, row.TurbineID)
		}
	}
	if len(outside) > 0 {
		sort.Ints(outside)
		return &GroupMismatchError{Group: group, TurbineIDs: outside}
	}

	for id := group.MinTurbineID; id <= group.MaxTurbineID; id++ {
		if !seen[id] {
			v.log.Warn().Int("turbine_id", id).Int("group", group.ID).Msg("Turbine has no rows in batch")
		}
	}

	return nil
}
