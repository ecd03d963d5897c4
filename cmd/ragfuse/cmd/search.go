package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragfuse"
)

func newSearchCmd() *cobra.Command {
	var (
		topK     int
		showText bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search all corpora and print the fused ranking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if topK <= 0 {
				topK = cfg.Retrieve.TopK
			}

			store, err := buildStore(ctx, cfg)
			if err != nil {
				return err
			}

			embedder, err := buildEmbedder(cfg)
			if err != nil {
				return err
			}

			r, err := ragfuse.New(store, cfg.Store.ManifestKey, embedder,
				ragfuse.WithFusionK(cfg.Retrieve.FusionK),
				ragfuse.WithPerCorpusK(cfg.Retrieve.PerCorpusK),
				ragfuse.WithCacheDir(cfg.Store.CacheDir),
				ragfuse.WithLogger(newLogger()),
			)
			if err != nil {
				return err
			}
			defer r.Close()

			if _, err := r.Initialize(ctx); err != nil {
				return err
			}

			out, err := r.Search(ctx, args[0], topK)
			if err != nil {
				return err
			}

			for i, res := range out.Results {
				fmt.Printf("%2d. %-24s score=%.6f", i+1, res.ChunkID, res.Score)
				for _, src := range res.Sources {
					fmt.Printf("  [%s rank=%d]", src.Corpus, src.Rank)
				}
				fmt.Println()

				if showText {
					fmt.Printf("    %s\n", res.Text)
				}
			}

			if len(out.SkippedCorpora) > 0 {
				fmt.Printf("skipped corpora: %v\n", out.SkippedCorpora)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().BoolVar(&showText, "text", false, "print chunk text")

	return cmd
}
