package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fpang/product-catalog/internal/cli"
)

var checkKeyCmd = &cobra.Command{
	Use:   "check-key",
	Short: "Validate the Gemini API key with a minimal request",
	Run: func(cmd *cobra.Command, args []string) {
		cli.InitGeminiClient(context.Background(), cfg.GeminiModel)
		fmt.Fprintln(os.Stdout, "API key OK")
	},
}
