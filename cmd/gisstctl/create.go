package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gisst-archive/gisst/internal/catalog"
)

func newCreateCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create <entity>",
		Short: "create a catalog record from a JSON payload (--file or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cArgs []string) error {
			payload, err := readPayload(file)
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}
			ctx := context.Background()
			id, err := a.create(ctx, cArgs[0], payload)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a JSON payload, or - / omitted for stdin")
	return cmd
}

func (a *app) create(ctx context.Context, entity string, payload []byte) (string, error) {
	switch entity {
	case "file":
		var v catalog.File
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("decode file: %w", err)
		}
		if err := a.files.Insert(ctx, &v); err != nil {
			return "", err
		}
		return v.ID.String(), nil
	case "object":
		var v catalog.Object
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("decode object: %w", err)
		}
		if err := a.objects.Insert(ctx, &v); err != nil {
			return "", err
		}
		return v.ID.String(), nil
	case "work":
		var v catalog.Work
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("decode work: %w", err)
		}
		if err := a.works.Insert(ctx, &v); err != nil {
			return "", err
		}
		return v.ID.String(), nil
	case "environment":
		var v catalog.Environment
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("decode environment: %w", err)
		}
		if err := a.envs.Insert(ctx, &v); err != nil {
			return "", err
		}
		return v.ID.String(), nil
	case "instance":
		var v catalog.Instance
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("decode instance: %w", err)
		}
		if err := a.instances.Insert(ctx, &v); err != nil {
			return "", err
		}
		return v.ID.String(), nil
	case "state":
		var v catalog.State
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("decode state: %w", err)
		}
		if err := a.states.Insert(ctx, &v); err != nil {
			return "", err
		}
		return v.ID.String(), nil
	case "replay":
		var v catalog.Replay
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("decode replay: %w", err)
		}
		if err := a.replays.Insert(ctx, &v); err != nil {
			return "", err
		}
		return v.ID.String(), nil
	case "save":
		var v catalog.Save
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("decode save: %w", err)
		}
		if err := a.saves.Insert(ctx, &v); err != nil {
			return "", err
		}
		return v.ID.String(), nil
	case "screenshot":
		var v catalog.Screenshot
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("decode screenshot: %w", err)
		}
		if err := a.screenshots.Insert(ctx, &v); err != nil {
			return "", err
		}
		return v.ID.String(), nil
	case "creator":
		var v catalog.Creator
		if err := json.Unmarshal(payload, &v); err != nil {
			return "", fmt.Errorf("decode creator: %w", err)
		}
		if err := a.creators.Insert(ctx, &v); err != nil {
			return "", err
		}
		return v.ID.String(), nil
	default:
		return "", fmt.Errorf("unknown entity %q", entity)
	}
}
