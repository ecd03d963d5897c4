package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/hupe1980/ragfuse/codec"
	"github.com/hupe1980/ragfuse/index/flat"
)

// dumpLine is one record of a corpus dump: the chunk plus its precomputed
// embedding.
type dumpLine struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	Embedding []float32      `json:"embedding"`
}

func newBuildIndexCmd() *cobra.Command {
	var (
		corpusName string
		version    string
		codecName  string
	)

	cmd := &cobra.Command{
		Use:   "build-index <dump.jsonl>",
		Short: "Build and upload a corpus artifact set from an embedded dump",
		Long: `Reads a JSONL dump where each line carries a chunk id, text, metadata and
its precomputed embedding, then uploads index.flat, ids.jsonl and
docs.jsonl under corpora/<name>/<version>/ in the configured store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := buildStore(ctx, cfg)
			if err != nil {
				return err
			}

			comp, ok := codec.ByName(codecName)
			if !ok {
				return fmt.Errorf("unknown codec %q", codecName)
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var (
				vectors [][]float32
				ids     []byte
				docs    []byte
				dim     int
			)

			sc := bufio.NewScanner(f)
			sc.Buffer(make([]byte, 0, 64*1024), 16<<20)

			line := 0
			for sc.Scan() {
				line++
				if len(sc.Bytes()) == 0 {
					continue
				}

				var rec dumpLine
				if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}

				if rec.ID == "" || len(rec.Embedding) == 0 {
					return fmt.Errorf("line %d: missing id or embedding", line)
				}

				if dim == 0 {
					dim = len(rec.Embedding)
				} else if len(rec.Embedding) != dim {
					return fmt.Errorf("line %d: embedding dimension %d, expected %d", line, len(rec.Embedding), dim)
				}

				idLine, err := json.Marshal(map[string]any{"ann_id": len(vectors), "id": rec.ID})
				if err != nil {
					return err
				}

				docLine, err := json.Marshal(map[string]any{"id": rec.ID, "text": rec.Text, "metadata": rec.Metadata})
				if err != nil {
					return err
				}

				ids = append(ids, append(idLine, '\n')...)
				docs = append(docs, append(docLine, '\n')...)
				vectors = append(vectors, rec.Embedding)
			}
			if err := sc.Err(); err != nil {
				return err
			}

			if len(vectors) == 0 {
				return fmt.Errorf("dump contains no records")
			}

			blob, err := flat.EncodeBlob(dim, vectors)
			if err != nil {
				return err
			}

			compressed, err := comp.Compress(blob)
			if err != nil {
				return err
			}

			indexName := "index.flat"
			if comp.Name() != "none" {
				indexName += "." + comp.Name()
			}

			prefix := path.Join("corpora", corpusName, version)

			for name, data := range map[string][]byte{
				indexName:    compressed,
				"ids.jsonl":  ids,
				"docs.jsonl": docs,
			} {
				if err := store.Put(ctx, path.Join(prefix, name), data); err != nil {
					return fmt.Errorf("upload %s: %w", name, err)
				}
			}

			fmt.Printf("uploaded %d chunks (dimension %d) to %s\n", len(vectors), dim, prefix)
			fmt.Printf("manifest pointer: {\"version\": %q, \"location\": %q, \"dimension\": %d, \"count\": %d, \"codec\": %q}\n",
				version, prefix, dim, len(vectors), comp.Name())

			return nil
		},
	}

	cmd.Flags().StringVar(&corpusName, "corpus", "", "corpus name (required)")
	cmd.Flags().StringVar(&version, "version", "", "corpus version (required)")
	cmd.Flags().StringVar(&codecName, "codec", "", "index compression: none, zstd or lz4")
	_ = cmd.MarkFlagRequired("corpus")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}
