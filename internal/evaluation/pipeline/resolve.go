package pipeline

import "creditflow/internal/evaluation/models"

// Resolve maps the record's flags to its terminal status. Manual review
// wins over a hard failure, and an empty trail never approves.
func Resolve(rec *models.Record) models.Status {
	if rec.NeedsManualReview() {
		return models.StatusManualReview
	}
	trail := rec.Trail()
	if len(trail) == 0 {
		return models.StatusRejected
	}
	for _, e := range trail {
		if !e.Passed {
			return models.StatusRejected
		}
	}
	return models.StatusApproved
}
