package main

import (
	"context"
	"log"

	"github.com/spf13/cobra"

	"github.com/vocabtrim/vocabtrim/cmd"
)

func main() {
	if err := cmd.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}

	cobra.CheckErr(cmd.NewCLI().ExecuteContext(context.Background()))
}
