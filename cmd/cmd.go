package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vocabtrim/vocabtrim/envconfig"
	"github.com/vocabtrim/vocabtrim/logutil"
	"github.com/vocabtrim/vocabtrim/version"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vocabtrim",
		Short:         "Adapt pretrained embeddings to a fine-tuning vocabulary",
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			slog.SetDefault(logutil.NewLogger(os.Stderr, logutil.Level(envconfig.Debug), cmd.Name()))
		},
	}

	cobra.EnableCommandSorting = false

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build a dictionary from tokenized corpora",
		Args:  cobra.NoArgs,
		RunE:  BuildHandler,
	}

	buildCmd.Flags().String("corpus-data", "", "Path pattern (glob) of the tokenized corpus files")
	buildCmd.Flags().String("langs", "", "Comma separated language codes of the pretrained model")
	buildCmd.Flags().StringP("output", "o", "", "Dictionary file to write")
	buildCmd.Flags().Int("padding-factor", envconfig.PaddingFactor, "Pad the dictionary, language tags and mask to a multiple of this")
	buildCmd.Flags().Int("workers", envconfig.NumWorkers, "Number of corpus files scanned in parallel")
	buildCmd.Flags().Bool("relaxed", envconfig.Relaxed, "Skip lines that produce no symbols instead of failing")
	buildCmd.Flags().Int("threshold", 0, "Drop symbols seen fewer times than this")
	buildCmd.Flags().Int("nwords", 0, "Keep at most this many symbols, excluding specials")
	for _, name := range []string{"corpus-data", "langs", "output"} {
		_ = buildCmd.MarkFlagRequired(name)
	}

	remapCmd := &cobra.Command{
		Use:   "remap",
		Short: "Remap pretrained embeddings onto a fine-tuning dictionary",
		Args:  cobra.NoArgs,
		RunE:  RemapHandler,
	}

	remapCmd.Flags().String("pre-train-dir", "", "Pretrained model directory containing dict.txt and the model checkpoint")
	remapCmd.Flags().String("ft-dict", "", "Fine-tuning dictionary")
	remapCmd.Flags().String("langs", "", "Comma separated language codes of the pretrained model")
	remapCmd.Flags().StringP("output", "o", "", "Checkpoint file to write (safetensors)")
	remapCmd.Flags().StringSlice("embedding", envconfig.Embeddings, "Embedding tensor to remap (repeatable)")
	remapCmd.Flags().String("mapping-out", "", "Also write the index mapping to this file (CBOR)")
	for _, name := range []string{"pre-train-dir", "ft-dict", "langs", "output"} {
		_ = remapCmd.MarkFlagRequired(name)
	}

	showCmd := &cobra.Command{
		Use:   "show CHECKPOINT",
		Short: "Show the tensors of a checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE:  ShowHandler,
	}

	showCmd.Flags().Bool("stats", false, "Summarize embedding rows")
	showCmd.Flags().StringSlice("embedding", envconfig.Embeddings, "Embedding tensor to summarize with --stats")

	envVars := envconfig.AsMap()
	appendEnvDocs(buildCmd, envVars["VOCABTRIM_NUM_WORKERS"], envVars["VOCABTRIM_PADDING_FACTOR"], envVars["VOCABTRIM_RELAXED"])
	appendEnvDocs(remapCmd, envVars["VOCABTRIM_EMBEDDINGS"], envVars["VOCABTRIM_TMPDIR"])
	appendEnvDocs(rootCmd, envVars["VOCABTRIM_CONFIG"], envVars["VOCABTRIM_DEBUG"])

	rootCmd.AddCommand(buildCmd, remapCmd, showCmd)

	return rootCmd
}

func appendEnvDocs(cmd *cobra.Command, envs ...envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString("\nEnvironment Variables:\n")
	for _, e := range envs {
		fmt.Fprintf(&sb, "      %-26s %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + sb.String())
}
