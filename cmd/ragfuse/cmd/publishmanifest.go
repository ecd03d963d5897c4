package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragfuse/manifest"
)

func newPublishManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish-manifest <manifest.json>",
		Short: "Validate a manifest file and upload it to the configured key",
		Long: `Validates the manifest locally (version present, corpus pointers complete,
codec known) and uploads it. Retrievers pick the new version up on their
next search via the version probe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var mf manifest.Manifest
			if err := json.Unmarshal(data, &mf); err != nil {
				return fmt.Errorf("parse manifest: %w", err)
			}

			if err := mf.Validate(); err != nil {
				return err
			}

			store, err := buildStore(ctx, cfg)
			if err != nil {
				return err
			}

			if err := store.Put(ctx, cfg.Store.ManifestKey, data); err != nil {
				return fmt.Errorf("upload manifest: %w", err)
			}

			fmt.Printf("published manifest %s with %d corpora to %s\n", mf.Version, len(mf.Corpora), cfg.Store.ManifestKey)

			return nil
		},
	}

	return cmd
}
