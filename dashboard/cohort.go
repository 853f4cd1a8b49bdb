package dashboard

import (
	"context"
	"fmt"
)

// ResolveCohort returns the ids of the user's applications in scope for q,
// in applied order. The source bucket is derived, so it is filtered here
// after the pushed-down query.
func ResolveCohort(ctx context.Context, reader Reader, userID string, q Query) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("dashboard: missing user id")
	}
	candidates, err := reader.CohortCandidates(ctx, userID, q)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if q.Filters.SourceBucket != nil && classifyPtr(c.Source) != *q.Filters.SourceBucket {
			continue
		}
		ids = append(ids, c.ID)
	}
	return ids, nil
}
