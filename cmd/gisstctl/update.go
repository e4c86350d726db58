package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gisst-archive/gisst/internal/catalog"
)

func newUpdateCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "update <entity>",
		Short: "update a catalog record from a JSON payload (--file or stdin)",
		Long: `Most GISST records are immutable after creation (see the data
model's Lifecycles); update is only meaningful for entities that carry
mutable fields. Attempting it on any other entity is a typed error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cArgs []string) error {
			payload, err := readPayload(file)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			ctx := context.Background()
			if err := a.update(ctx, cArgs[0], payload); err != nil {
				return err
			}
			fmt.Println("updated")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a JSON payload, or - / omitted for stdin")
	return cmd
}

func (a *app) update(ctx context.Context, entity string, payload []byte) error {
	switch entity {
	case "creator":
		var v catalog.Creator
		if err := json.Unmarshal(payload, &v); err != nil {
			return fmt.Errorf("decode creator: %w", err)
		}
		return a.creators.Update(ctx, &v)
	default:
		return fmt.Errorf("%q is immutable after creation — update is not supported", entity)
	}
}
