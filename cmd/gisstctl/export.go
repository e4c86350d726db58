package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gisst-archive/gisst/internal/catalog"
)

func newExportCmd(a *app) *cobra.Command {
	var id string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "export <entity>",
		Short: "export a catalog record (--id) or a page of records as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cArgs []string) error {
			ctx := context.Background()
			if id != "" {
				uid, err := parseUUIDArg(id)
				if err != nil {
					return err
				}
				v, err := a.exportByID(ctx, cArgs[0], uid)
				if err != nil {
					return err
				}
				return printJSON(v)
			}
			v, err := a.exportAll(ctx, cArgs[0], catalog.ListOptions{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			return printJSON(v)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "export a single record by UUID")
	cmd.Flags().IntVar(&limit, "limit", 100, "page size when exporting a listing")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset when exporting a listing")
	return cmd
}

func (a *app) exportByID(ctx context.Context, entity string, id uuid.UUID) (any, error) {
	switch entity {
	case "file":
		return a.files.GetByID(ctx, id)
	case "object":
		return a.objects.GetByID(ctx, id)
	case "work":
		return a.works.GetByID(ctx, id)
	case "environment":
		return a.envs.GetByID(ctx, id)
	case "instance":
		return a.instances.GetByID(ctx, id)
	case "state":
		return a.states.GetByID(ctx, id)
	case "replay":
		return a.replays.GetByID(ctx, id)
	case "save":
		return a.saves.GetByID(ctx, id)
	case "screenshot":
		return a.screenshots.GetByID(ctx, id)
	case "creator":
		return a.creators.GetByID(ctx, id)
	default:
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
}

func (a *app) exportAll(ctx context.Context, entity string, opts catalog.ListOptions) (any, error) {
	switch entity {
	case "file":
		rows, _, err := a.files.GetAll(ctx, opts)
		return rows, err
	case "object":
		rows, _, err := a.objects.GetAll(ctx, opts)
		return rows, err
	case "work":
		rows, _, err := a.works.GetAll(ctx, opts)
		return rows, err
	case "environment":
		rows, _, err := a.envs.GetAll(ctx, opts)
		return rows, err
	case "instance":
		rows, _, err := a.instances.GetAll(ctx, opts)
		return rows, err
	case "creator":
		rows, _, err := a.creators.GetAll(ctx, opts)
		return rows, err
	default:
		return nil, fmt.Errorf("%q has no listing export — export by --id instead", entity)
	}
}
