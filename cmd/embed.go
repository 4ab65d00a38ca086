package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/embedding"
	"github.com/spigell/cv-matcher/internal/logger"
)

const previewSize = 8

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed a text with the configured provider and print a preview of the vector",
	Run: func(cmd *cobra.Command, _ []string) {
		embed(cmd)
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().StringP("text", "t", "", "text to embed")
	embedCmd.Flags().BoolP("query", "q", false, "embed the text as a search query (job description)")

	embedCmd.MarkFlagRequired("text")
}

func embed(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	chain, err := newChain(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the embedding provider", zap.Error(err))
	}

	text, _ := cmd.Flags().GetString("text")
	query, _ := cmd.Flags().GetBool("query")

	batch, err := chain.Embed(ctx, []string{text}, query)
	if err != nil {
		logger.Fatal("embedding", zap.Error(err))
	}
	if batch.Degraded != nil {
		logger.Warn("remote provider unavailable, local vector used", zap.Error(batch.Degraded))
	}

	printVector(os.Stdout, batch)
}

func printVector(w io.Writer, batch embedding.Batch) {
	vec := batch.Vectors[0]

	preview := make([]string, 0, previewSize)
	for i := 0; i < len(vec) && i < previewSize; i++ {
		preview = append(preview, fmt.Sprintf("%.4f", vec[i]))
	}
	suffix := ""
	if len(vec) > previewSize {
		suffix = ", ..."
	}

	fmt.Fprintf(w, "Provider: %s\n", batch.Provider)
	fmt.Fprintf(w, "Dimensions: %d\n", vec.Dimensions())
	fmt.Fprintf(w, "Vector: [%s%s]\n", strings.Join(preview, ", "), suffix)
}
