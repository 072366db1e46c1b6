package storage

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/JakeFAU/page-summarizer/internal/summary"
)

// StatusGuard restricts an UPDATE to rows whose current status may move to to.
// A target with no predecessors matches nothing.
func StatusGuard(to summary.Status) sq.Sqlizer {
	preds := summary.Predecessors(to)
	values := make([]string, 0, len(preds))
	for _, p := range preds {
		values = append(values, string(p))
	}
	return sq.Eq{"status": values}
}
