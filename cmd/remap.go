package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vocabtrim/vocabtrim/checkpoint"
	"github.com/vocabtrim/vocabtrim/envconfig"
	"github.com/vocabtrim/vocabtrim/logutil"
	"github.com/vocabtrim/vocabtrim/progress"
	"github.com/vocabtrim/vocabtrim/remap"
	"github.com/vocabtrim/vocabtrim/types/errtypes"
	"github.com/vocabtrim/vocabtrim/vocab"
)

const pretrainedDict = "dict.txt"

// pretrainedModels are looked up in the pretrained directory in this order.
var pretrainedModels = []string{"model.safetensors", "model.pt"}

func findModel(dir string) (string, error) {
	for _, name := range pretrainedModels {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	}

	return "", &errtypes.MissingFileError{Path: filepath.Join(dir, pretrainedModels[len(pretrainedModels)-1])}
}

// loadExtended loads a dictionary and appends the language tags and mask.
func loadExtended(path string, langs []string) (*vocab.Dictionary, error) {
	d, err := vocab.Load(path)
	if err != nil {
		return nil, err
	}

	return d.Extend(langs)
}

func RemapHandler(cmd *cobra.Command, _ []string) error {
	preDir, _ := cmd.Flags().GetString("pre-train-dir")
	ftDict, _ := cmd.Flags().GetString("ft-dict")
	langsFlag, _ := cmd.Flags().GetString("langs")
	output, _ := cmd.Flags().GetString("output")
	names, _ := cmd.Flags().GetStringSlice("embedding")
	mappingOut, _ := cmd.Flags().GetString("mapping-out")

	langs, err := vocab.ParseLanguages(langsFlag)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		return errors.New("no embedding tensors to remap")
	}

	if ext := filepath.Ext(output); !strings.EqualFold(ext, ".safetensors") {
		return fmt.Errorf("output %s: remapped checkpoints are written as safetensors, use the .safetensors extension", output)
	}

	preDictPath := filepath.Join(preDir, pretrainedDict)
	prev, err := loadExtended(preDictPath, langs)
	if err != nil {
		return fmt.Errorf("pretrained dictionary: %w", err)
	}

	next, err := loadExtended(ftDict, langs)
	if err != nil {
		return fmt.Errorf("fine-tuning dictionary: %w", err)
	}

	modelPath, err := findModel(preDir)
	if err != nil {
		return err
	}

	m := remap.BuildMapping(prev, next)
	if err := m.CheckAligned(prev, next, langs); err != nil {
		return err
	}

	var p *progress.Progress
	if term.IsTerminal(int(os.Stderr.Fd())) {
		p = progress.NewProgress(os.Stderr)
		p.Add(progress.NewSpinner("loading " + filepath.Base(modelPath)))
	}

	done := logutil.Timed("loaded checkpoint", "path", modelPath)
	ckpt, err := checkpoint.Load(modelPath)
	if p != nil {
		p.Stop()
	}

	if err != nil {
		return err
	}
	done("tensors", ckpt.Len())

	report, err := remap.Embeddings(ckpt, names, m, prev.Len())
	if err != nil {
		return err
	}

	checkpoint.Provenance{
		Source:       modelPath,
		Dictionary:   ftDict,
		Languages:    strings.Join(langs, ","),
		Embeddings:   strings.Join(names, ","),
		OldVocabSize: prev.Len(),
		NewVocabSize: next.Len(),
		Mapped:       report.Mapped,
		Unmapped:     report.Unmapped,
	}.Apply(ckpt.Metadata)

	done = logutil.Timed("saved checkpoint", "path", output, "tensors", ckpt.Len())
	if err := checkpoint.Save(ckpt, output, checkpoint.WithTempDir(envconfig.TmpDir)); err != nil {
		return err
	}
	done()

	if mappingOut != "" {
		if err := writeMapping(mappingOut, m, next, langs); err != nil {
			return err
		}
	}

	slog.Info("remapped embeddings", "output", output, "tensors", report.Tensors, "hidden", report.Hidden, "vocab", next.Len())
	fmt.Fprintf(cmd.OutOrStdout(), "remapped %d embeddings to %d rows: %d mapped, %d zero-initialized\n",
		len(report.Tensors), next.Len(), report.Mapped, report.Unmapped)
	return nil
}

func writeMapping(path string, m remap.Mapping, next *vocab.Dictionary, langs []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := m.WriteCBOR(f, next, langs); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}

	return f.Close()
}
