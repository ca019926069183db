package service

import (
	"context"

	"bookmark_sync/internal/domain"
	"bookmark_sync/internal/metrics"
)

type persistOutcome struct {
	Inserted  []domain.ContentRecord
	Duplicate bool
	Skipped   int
}

// persistPage inserts every record of the page in order. A record whose URL is
// already stored sets Duplicate; the rest of the page is still inserted.
func (s *SyncService) persistPage(ctx context.Context, records []domain.ContentRecord) persistOutcome {
	var out persistOutcome

	for i := range records {
		rec := records[i]

		inserted, err := s.contents.Insert(ctx, &rec)
		if err != nil {
			out.Skipped++
			metrics.RecordsSkipped.WithLabelValues("error").Inc()
			s.logger.Warn("failed to insert record",
				"url", rec.URL,
				"error", err,
			)
			continue
		}

		if !inserted {
			out.Duplicate = true
			out.Skipped++
			metrics.RecordsSkipped.WithLabelValues("duplicate").Inc()
			continue
		}

		out.Inserted = append(out.Inserted, rec)
		metrics.RecordsInserted.Inc()
	}

	return out
}
