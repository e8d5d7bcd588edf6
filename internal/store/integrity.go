package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tigerroll/mibel/pkg/support/exception"
	"github.com/tigerroll/mibel/pkg/support/logger"
)

// duplicateGroup is one key combination that appears more than once.
type duplicateGroup struct {
	N int64 `gorm:"column:n"`
}

// ScanResidualDuplicates checks that no key combination survives conflict
// resolution more than once. Any hit means the resolver itself is defective,
// so the error wraps exception.ErrResidualDuplicate and is fatal to the batch.
func (o *Ops) ScanResidualDuplicates(ctx context.Context, tableName string) error {
	keys, ok := tableKeys[tableName]
	if !ok {
		return exception.NewPipelineErrorf(moduleName, "unknown canonical table %q", tableName)
	}

	keyList := strings.Join(keys, ", ")
	var groups []duplicateGroup
	query := fmt.Sprintf("SELECT COUNT(*) AS n FROM %s GROUP BY %s HAVING COUNT(*) > 1", tableName, keyList)
	if err := o.exec.ExecuteRawQuery(ctx, &groups, query); err != nil {
		return exception.NewPipelineError(moduleName, "failed to scan "+tableName+" for residual duplicates", err, false, false)
	}

	if len(groups) > 0 {
		return exception.NewPipelineError(moduleName,
			fmt.Sprintf("table %s holds %d duplicated key combinations", tableName, len(groups)),
			exception.ErrResidualDuplicate, false, false)
	}
	return nil
}

// GapReport lists the hours missing for one entity of one table against a
// reference hour index.
type GapReport struct {
	Table   string
	Entity  string
	Missing []time.Time
}

// ScanGaps compares the stored timestamps of one entity against the reference
// hour index and reports every missing hour. Gaps are logged as GapDetected
// and are non-fatal: panel assembly fills them with explicit nulls.
func (o *Ops) ScanGaps(ctx context.Context, tableName, entityColumn, entity string, hourIndex []time.Time) (*GapReport, error) {
	if _, ok := tableKeys[tableName]; !ok {
		return nil, exception.NewPipelineErrorf(moduleName, "unknown canonical table %q", tableName)
	}

	stored, err := o.entityHours(ctx, tableName, entityColumn, entity)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to scan "+tableName+" for gaps", err, false, false)
	}

	present := make(map[int64]struct{}, len(stored))
	for _, ts := range stored {
		present[ts.UTC().Unix()] = struct{}{}
	}

	report := &GapReport{Table: tableName, Entity: entity}
	for _, t := range hourIndex {
		if _, ok := present[t.Unix()]; !ok {
			report.Missing = append(report.Missing, t)
		}
	}

	if len(report.Missing) > 0 {
		logger.Warnf("GapDetected: table=%s entity=%s missing=%d first=%s last=%s",
			tableName, entity, len(report.Missing),
			report.Missing[0].Format(time.RFC3339), report.Missing[len(report.Missing)-1].Format(time.RFC3339))
	}
	return report, nil
}

// CanonicalTables lists every table participating in integrity scans.
func CanonicalTables() []string {
	tables := make([]string, 0, len(tableKeys))
	for name := range tableKeys {
		tables = append(tables, name)
	}
	return tables
}
