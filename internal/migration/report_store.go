package migration

import (
	"context"
	"fmt"

	"github.com/traillog/traillog/backend/go-services/internal/persistence"
)

// ReportStore persists run reports in the MigrationRun collection.
type ReportStore struct {
	repo persistence.Repository[Report]
}

func NewReportStore(repo persistence.Repository[Report]) *ReportStore {
	return &ReportStore{repo: repo}
}

// SaveReport upserts the report by its run id.
func (s *ReportStore) SaveReport(ctx context.Context, r *Report) error {
	existing, err := s.repo.FindByID(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("load migration run: %w", err)
	}
	if existing != nil {
		_, err = s.repo.Update(ctx, r.ID, r)
	} else {
		_, err = s.repo.Create(ctx, r)
	}
	if err != nil {
		return fmt.Errorf("save migration run: %w", err)
	}
	return nil
}

// Load fetches a persisted report. Returns nil when not found.
func (s *ReportStore) Load(ctx context.Context, id string) (*Report, error) {
	return s.repo.FindByID(ctx, id)
}

// History lists the reports recorded for one collection.
func (s *ReportStore) History(ctx context.Context, collection string) ([]*Report, error) {
	return s.repo.FindByProperty(ctx, ReportCollection.Is(collection))
}

// ReportCollection addresses the migrated collection of a report.
var ReportCollection = persistence.NewField[Report, string]("collection")
