package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "delete <entity>",
		Short: "delete a catalog record by --id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cArgs []string) error {
			if id == "" {
				return fmt.Errorf("--id is required")
			}
			uid, err := parseUUIDArg(id)
			if err != nil {
				return err
			}
			ctx := context.Background()
			if err := a.delete(ctx, cArgs[0], uid); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "UUID of the record to delete (required)")
	return cmd
}

func (a *app) delete(ctx context.Context, entity string, id uuid.UUID) error {
	switch entity {
	case "file":
		return a.files.DeleteByID(ctx, id)
	case "object":
		return a.objects.DeleteByID(ctx, id)
	case "state":
		return a.states.DeleteByID(ctx, id)
	case "replay":
		return a.replays.DeleteByID(ctx, id)
	case "save":
		return a.saves.DeleteByID(ctx, id)
	case "screenshot":
		return a.screenshots.DeleteByID(ctx, id)
	default:
		return fmt.Errorf("%q does not support delete — it is referenced by downstream records and immutable", entity)
	}
}
