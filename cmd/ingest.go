package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	weaviateClient "github.com/weaviate/weaviate-go-client/v4/weaviate"

	"deepsearch/src/core/rag"
	"deepsearch/src/infrastructure/integrations/ollama"
	"deepsearch/src/storage/weaviate"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Index documents into the vector store",
	Long: `The ingest command extracts, chunks and indexes documents. Without
arguments it processes the configured documents directory; explicit file
arguments are indexed regardless of the current index state.`,
	Run: RunIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolP("force", "f", false, "Reindex even when the index is already populated")
	ingestCmd.Flags().StringP("dir", "d", "", "Documents directory (defaults to rag.documents_path)")
	settingDefaultConfig()
}

func RunIngest(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	force, _ := cmd.Flags().GetBool("force")
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = viper.GetString("rag.documents_path")
	}

	oc := ollama.NewClient(viper.GetString("ollama.url"), &http.Client{
		Timeout: 120 * time.Second,
	})
	wc := weaviateClient.New(weaviateClient.Config{
		Host:   viper.GetString("weaviate.host"),
		Scheme: viper.GetString("weaviate.scheme"),
	})
	index, err := weaviate.NewIndex(wc, oc,
		viper.GetString("weaviate.class"),
		viper.GetString("rag.embedding_model"),
	)
	if err != nil {
		fmt.Printf("Failed to create vector index: %v\n", err)
		return
	}

	chunker := rag.NewChunker(viper.GetInt("rag.chunk_size"), viper.GetInt("rag.chunk_overlap"))
	ragService, err := rag.NewService(index, chunker)
	if err != nil {
		fmt.Printf("Failed to create rag service: %v\n", err)
		return
	}

	paths := args
	if len(paths) == 0 {
		if !force {
			count, err := index.Count(ctx)
			if err != nil {
				fmt.Printf("Failed to query the vector index: %v\n", err)
				return
			}
			if count > 0 {
				fmt.Printf("Index already holds %d chunks, skipping (use --force to reindex)\n", count)
				return
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			fmt.Printf("Failed to read documents directory %s: %v\n", dir, err)
			return
		}
		for _, entry := range entries {
			if entry.IsDir() || !rag.SupportedExtension(entry.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
		if len(paths) == 0 {
			fmt.Printf("No supported documents in %s\n", dir)
			return
		}
	}

	bar := progressbar.Default(int64(len(paths)), "indexing")
	totalChunks := 0
	totalDocs := 0
	for _, path := range paths {
		result, err := ragService.Ingest(ctx, rag.IngestRequest{
			Dir:   dir,
			Paths: []string{path},
			Force: true,
		})
		if err != nil {
			fmt.Printf("\nFailed to ingest %s: %v\n", path, err)
			return
		}
		totalChunks += result.ChunksAdded
		totalDocs += result.DocumentsCount
		bar.Add(1)
	}

	fmt.Printf("Indexed %d chunks from %d documents\n", totalChunks, totalDocs)
}
