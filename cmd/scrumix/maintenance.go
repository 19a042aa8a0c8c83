package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/scrumix/scrumix/internal/config"
	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/project"
	"github.com/scrumix/scrumix/internal/domain/sprint"
	"github.com/scrumix/scrumix/internal/port/database"
	"github.com/scrumix/scrumix/internal/service"
)

// maxMaintenanceWorkers bounds concurrent per-project maintenance work.
const maxMaintenanceWorkers = 4

func newMaintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Repair derived data",
	}

	var projectID string
	rebuild := &cobra.Command{
		Use:   "rebuild-hierarchy",
		Short: "Recompute backlog level, path and root for every item",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMaintenanceStore(cmd, func(ctx context.Context, _ *config.Config, store database.Store) error {
				backlogs := service.NewBacklogService(store, nil, nil)
				return forEachProject(ctx, store, projectID, func(ctx context.Context, p project.Project) error {
					n, err := backlogs.RebuildHierarchy(ctx, p.ID)
					if err != nil {
						return fmt.Errorf("project %s: %w", p.ID, err)
					}
					slog.Info("hierarchy rebuilt", "project_id", p.ID, "updated", n)
					return nil
				})
			})
		},
	}
	rebuild.Flags().StringVar(&projectID, "project", "", "limit to one project ID")

	var sprintID string
	recalc := &cobra.Command{
		Use:   "recalc-velocity",
		Short: "Recompute sprint velocity points from completed items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMaintenanceStore(cmd, func(ctx context.Context, cfg *config.Config, store database.Store) error {
				vel := service.NewVelocityService(store, nil, nil, cfg.Velocity, nil)
				if sprintID != "" {
					return recalcSprint(ctx, vel, sprintID)
				}
				return forEachProject(ctx, store, projectID, func(ctx context.Context, p project.Project) error {
					sprints, err := store.ListSprints(ctx, sprint.Filter{ProjectID: p.ID, Page: domain.All})
					if err != nil {
						return fmt.Errorf("list sprints of %s: %w", p.ID, err)
					}
					for i := range sprints {
						if err := recalcSprint(ctx, vel, sprints[i].ID); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
	recalc.Flags().StringVar(&projectID, "project", "", "limit to one project ID")
	recalc.Flags().StringVar(&sprintID, "sprint", "", "recalculate a single sprint")

	cmd.AddCommand(rebuild, recalc)
	return cmd
}

func withMaintenanceStore(cmd *cobra.Command, fn func(context.Context, *config.Config, database.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := requirePostgres(cfg); err != nil {
		return err
	}
	sh, err := openStore(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer sh.close()
	if err := fn(cmd.Context(), cfg, sh.store); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Done.")
	return nil
}

// forEachProject runs fn for the given project, or for every project when
// projectID is empty, with bounded concurrency.
func forEachProject(ctx context.Context, store database.Store, projectID string, fn func(context.Context, project.Project) error) error {
	if projectID != "" {
		p, err := store.GetProject(ctx, projectID)
		if err != nil {
			return fmt.Errorf("project %s: %w", projectID, err)
		}
		return fn(ctx, *p)
	}

	projects, err := store.ListProjects(ctx, project.Filter{Page: domain.All})
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxMaintenanceWorkers)
	for i := range projects {
		p := projects[i]
		g.Go(func() error { return fn(gctx, p) })
	}
	return g.Wait()
}

func recalcSprint(ctx context.Context, vel *service.VelocityService, id string) error {
	sp, err := vel.Recalculate(ctx, id)
	if err != nil {
		return fmt.Errorf("sprint %s: %w", id, err)
	}
	slog.Info("velocity recalculated", "sprint_id", sp.ID, "velocity_points", sp.VelocityPoints)
	return nil
}
