package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/eleanorfrajka/seagliderOG1/internal/fetch"
)

var registryCmd = &cobra.Command{
	Use:   "registry DIR",
	Short: "Write the digest registry of a directory of dive files.",
	Long: `registry hashes every dive file in DIR and writes one "name sha256:hex"
line per file, sorted by name. The output can be served next to the files and
passed to convert --registry.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeRegistry(args[0], Cfg.GetString("output"), cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

func writeRegistry(dir, output string, stdout io.Writer) error {
	reg, err := fetch.BuildRegistry(dir)
	if err != nil {
		return err
	}
	if output == "" {
		_, err = reg.WriteTo(stdout)
		return err
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if _, err := reg.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	logger.Info("Wrote registry", "path", output, "files", len(reg))
	return f.Close()
}
