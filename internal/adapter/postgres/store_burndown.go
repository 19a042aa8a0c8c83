package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/scrumix/scrumix/internal/domain/velocity"
)

// UpsertSnapshot records the sprint's burndown figures for the snapshot day,
// replacing any earlier figures for the same day.
func (s *Store) UpsertSnapshot(ctx context.Context, snap *velocity.Snapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO burndown_snapshots (id, sprint_id, project_id, snapshot_date, completed_points, remaining_points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (sprint_id, snapshot_date) DO UPDATE
		SET completed_points = EXCLUDED.completed_points, remaining_points = EXCLUDED.remaining_points
		RETURNING id, created_at`,
		snap.ID, snap.SprintID, snap.ProjectID, velocity.Day(snap.Date), snap.CompletedPoints, snap.RemainingPoints, snap.CreatedAt,
	).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		return constraintWrap(err, "upsert burndown snapshot %s", snap.SprintID)
	}
	return nil
}

func (s *Store) ListSnapshots(ctx context.Context, sprintID string) ([]velocity.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sprint_id, project_id, snapshot_date, completed_points, remaining_points, created_at
		FROM burndown_snapshots WHERE sprint_id = $1 ORDER BY snapshot_date`, sprintID)
	if err != nil {
		return nil, fmt.Errorf("list burndown snapshots: %w", err)
	}
	return collect(rows, func(r scannable) (velocity.Snapshot, error) {
		var sn velocity.Snapshot
		err := r.Scan(&sn.ID, &sn.SprintID, &sn.ProjectID, &sn.Date, &sn.CompletedPoints, &sn.RemainingPoints, &sn.CreatedAt)
		return sn, err
	})
}
