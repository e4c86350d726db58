package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gisst-archive/gisst/internal/catalog"
)

func newLinkCmd(a *app) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "link <record_type> <source_uuid> <target_uuid>",
		Short: "link a source record to a target record",
		Long: `Today the only linkable record type is "object": link object
<object_uuid> <instance_uuid> --role {content,dependency,config} appends
an InstanceObject row, assigning the next gapless role_index for that
(instance, role) pair.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, cArgs []string) error {
			recordType, sourceArg, targetArg := cArgs[0], cArgs[1], cArgs[2]
			source, err := parseUUIDArg(sourceArg)
			if err != nil {
				return err
			}
			target, err := parseUUIDArg(targetArg)
			if err != nil {
				return err
			}
			ctx := context.Background()
			return a.link(ctx, recordType, source, target, role)
		},
	}
	cmd.Flags().StringVar(&role, "role", "content", "InstanceObject role: content, dependency, or config")
	return cmd
}

func (a *app) link(ctx context.Context, recordType string, source, target uuid.UUID, role string) error {
	switch recordType {
	case "object":
		objRole := catalog.ObjectRole(role)
		idx, err := a.objects.NextRoleIndex(ctx, target, objRole)
		if err != nil {
			return fmt.Errorf("next role index: %w", err)
		}
		if err := a.objects.LinkToInstance(ctx, source, target, objRole, idx); err != nil {
			return fmt.Errorf("link object to instance: %w", err)
		}
		fmt.Printf("linked object %s to instance %s as %s[%d]\n", source, target, role, idx)
		return nil
	default:
		return fmt.Errorf("unknown record type %q", recordType)
	}
}
