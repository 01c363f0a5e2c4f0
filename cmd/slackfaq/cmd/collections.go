package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sfarag/slackfaq/internal/store"
)

func newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List registered collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollections(cmd.Context(), cmd)
		},
	}
	return cmd
}

func runCollections(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	meta, err := store.NewMetadataStore(metadataPath(cfg))
	if err != nil {
		return err
	}
	defer func() { _ = meta.Close() }()

	infos, err := meta.ListCollections(ctx)
	if err != nil {
		return err
	}

	out := newWriter(cmd)
	if len(infos) == 0 {
		out.Status("", "No collections. Run 'slackfaq ingest' to create one.")
		return nil
	}

	for _, info := range infos {
		out.Statusf("📁", "%s  mode=%s model=%s dim=%d", info.Name, info.Mode, info.Model, info.Dimensions)
	}
	return nil
}
