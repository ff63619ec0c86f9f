package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vocabtrim/vocabtrim/checkpoint"
	"github.com/vocabtrim/vocabtrim/format"
)

func ShowHandler(cmd *cobra.Command, args []string) error {
	stats, _ := cmd.Flags().GetBool("stats")
	names, _ := cmd.Flags().GetStringSlice("embedding")

	ckpt, err := checkpoint.Load(args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	var data [][]string
	var total int64
	for _, t := range ckpt.Tensors() {
		data = append(data, []string{t.Name, t.DType, format.Shape(t.Shape), format.HumanBytes(int64(len(t.Data)))})
		total += int64(len(t.Data))
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"NAME", "TYPE", "SHAPE", "SIZE"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	fmt.Fprintf(w, "\n%d tensors, %s\n", ckpt.Len(), format.HumanBytes(total))

	if p, ok, err := checkpoint.DecodeProvenance(ckpt.Metadata); err != nil {
		return err
	} else if ok {
		fmt.Fprintf(w, "\nremapped from %s with %s\n", p.Source, p.Dictionary)
		fmt.Fprintf(w, "  languages   %s\n", p.Languages)
		fmt.Fprintf(w, "  vocabulary  %d -> %d\n", p.OldVocabSize, p.NewVocabSize)
		fmt.Fprintf(w, "  rows        %d mapped, %d zero-initialized\n", p.Mapped, p.Unmapped)
	}

	if !stats {
		return nil
	}

	data = data[:0]
	for _, name := range names {
		t, ok := ckpt.Tensor(name)
		if !ok {
			continue
		}

		s, err := checkpoint.Stats(t)
		if err != nil {
			return err
		}

		data = append(data, []string{
			name,
			strconv.Itoa(s.Rows),
			strconv.Itoa(s.Dim),
			strconv.Itoa(s.ZeroRows),
			strconv.FormatFloat(s.MeanNorm, 'f', 4, 64),
		})
	}

	fmt.Fprintln(w)
	table = tablewriter.NewWriter(w)
	table.SetHeader([]string{"EMBEDDING", "ROWS", "DIM", "ZERO ROWS", "MEAN NORM"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}
