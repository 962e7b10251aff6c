package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("gateway failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Document analysis gateway for receipts and invoices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default $CONFIG_FILE or ./config.yaml)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), configPath)
			},
		},
		newAnalyzeCmd(&configPath),
		&cobra.Command{
			Use:   "models",
			Short: "Check availability of the configured vision models",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runModels(cmd.Context(), configPath, cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "bot",
			Short: "Run the Telegram intake bot (long polling)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runBot(cmd.Context(), configPath)
			},
		},
	)
	return root
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var file, url, engine string
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one document image and print the extracted fields as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalyze(cmd.Context(), *configPath, file, url, engine, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "local image file")
	cmd.Flags().StringVar(&url, "url", "", "image URL")
	cmd.Flags().StringVar(&engine, "engine", "", "vision engine (ollama, gemini, openai); default VISION_PROVIDER")
	return cmd
}
