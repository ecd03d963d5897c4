// Package cmd implements the ragfuse command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"

	"github.com/hupe1980/ragfuse"
	"github.com/hupe1980/ragfuse/blobstore"
	blobminio "github.com/hupe1980/ragfuse/blobstore/minio"
	blobs3 "github.com/hupe1980/ragfuse/blobstore/s3"
	"github.com/hupe1980/ragfuse/config"
	"github.com/hupe1980/ragfuse/embedding"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:          "ragfuse",
	Short:        "Multi-corpus retrieval with rank fusion",
	Long:         "ragfuse searches versioned vector corpora in a blob store and fuses the per-corpus rankings into one result list.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ragfuse.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newBuildIndexCmd())
	rootCmd.AddCommand(newPublishManifestCmd())
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = "ragfuse.yaml"
	}

	return config.Load(path)
}

func newLogger() *ragfuse.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	return ragfuse.NewTextLogger(level)
}

// buildStore constructs the configured blob store backend.
func buildStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	switch cfg.Store.Backend {
	case "s3":
		var opts []func(*awsconfig.LoadOptions) error
		if cfg.Store.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.Store.Region))
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		return blobs3.NewStore(awss3.NewFromConfig(awsCfg), cfg.Store.Bucket, ""), nil
	case "minio":
		client, err := miniogo.New(cfg.Store.Endpoint, &miniogo.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: true,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio client: %w", err)
		}

		return blobminio.NewStore(client, cfg.Store.Bucket, ""), nil
	case "local":
		return blobstore.NewLocalStore(cfg.Store.Bucket), nil
	case "memory":
		return blobstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildEmbedder constructs the configured query embedder.
func buildEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	if cfg.Embedding.Offline {
		return embedding.NewMock(cfg.Embedding.Dimension), nil
	}

	apiKey := os.Getenv(cfg.Embedding.APIKeyEnv)

	embedder, err := embedding.NewOpenAIEmbedder(apiKey, cfg.Embedding.Model, cfg.Embedding.Dimension, func(o *embedding.OpenAIOptions) {
		if cfg.Embedding.BaseURL != "" {
			o.BaseURL = cfg.Embedding.BaseURL
		}
	})
	if err != nil {
		return nil, err
	}

	if cfg.Embedding.CacheSize > 0 {
		return embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}

	return embedder, nil
}
