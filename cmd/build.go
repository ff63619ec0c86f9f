package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vocabtrim/vocabtrim/format"
	"github.com/vocabtrim/vocabtrim/logutil"
	"github.com/vocabtrim/vocabtrim/progress"
	"github.com/vocabtrim/vocabtrim/types/errtypes"
	"github.com/vocabtrim/vocabtrim/vocab"
)

func BuildHandler(cmd *cobra.Command, _ []string) error {
	pattern, _ := cmd.Flags().GetString("corpus-data")
	langsFlag, _ := cmd.Flags().GetString("langs")
	output, _ := cmd.Flags().GetString("output")
	paddingFactor, _ := cmd.Flags().GetInt("padding-factor")
	workers, _ := cmd.Flags().GetInt("workers")
	relaxed, _ := cmd.Flags().GetBool("relaxed")
	threshold, _ := cmd.Flags().GetInt("threshold")
	nwords, _ := cmd.Flags().GetInt("nwords")

	langs, err := vocab.ParseLanguages(langsFlag)
	if err != nil {
		return err
	}

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("invalid corpus pattern %q: %w", pattern, err)
	} else if len(paths) == 0 {
		return &errtypes.MissingFileError{Path: pattern}
	}

	mode := vocab.Strict
	if relaxed {
		mode = vocab.Relaxed
	}

	opts := []vocab.BuilderOption{
		vocab.WithWorkers(workers),
		vocab.WithLineMode(mode),
	}

	var p *progress.Progress
	if term.IsTerminal(int(os.Stderr.Fd())) {
		p = progress.NewProgress(os.Stderr)
		bar := progress.NewBar("counting symbols", "files", int64(len(paths)))
		p.Add(bar)
		opts = append(opts, vocab.WithFileDone(func(string, int) { bar.Add(1) }))
	}

	b := vocab.NewBuilder(opts...)
	done := logutil.Timed("counted corpus", "files", len(paths), "workers", workers)
	err = b.AddFiles(pattern)
	if p != nil {
		p.Stop()
	}
	done("symbols", b.Len())

	if err != nil {
		return err
	}

	d := b.Finalize(vocab.FinalizeOptions{
		Threshold:       threshold,
		NWords:          nwords,
		PaddingFactor:   paddingFactor,
		NumExtraSymbols: vocab.NumExtraSymbols(langs),
	})

	if err := d.Save(output); err != nil {
		return err
	}

	slog.Info("wrote dictionary", "path", output, "symbols", d.Len(), "corpus_symbols", b.Len(), "mode", mode)
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s symbols to %s (%s after %d language tags and mask)\n",
		format.HumanNumber(uint64(d.Len())), output,
		format.HumanNumber(uint64(d.Len()+vocab.NumExtraSymbols(langs))), len(langs))
	return nil
}
