package main

import (
	"fmt"
	"os"

	"github.com/Siguza/imobax/internal/manifest"
	"github.com/spf13/cobra"
)

var listJSON bool

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list SRC",
		Short: "List the files in a backup's manifest",
		Long: `List every regular file in the manifest of the backup in SRC, one per
line: the file ID, the domain and the path within the domain. Nothing is
written to disk.`,
		Example: `  imobax list ./backup
  imobax list --json ./backup | jq -r .relative_path`,
		Args: cobra.ExactArgs(1),
		RunE: listRun,
	}

	cmd.Flags().BoolVar(&listJSON, "json", false, "print entries as JSON lines")

	return cmd
}

func listRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	maxSize, err := globalCfg.MaxManifestSize()
	if err != nil {
		return err
	}

	m, err := manifest.Open(commandContext(cmd), args[0], manifest.Options{Logger: logger, MaxBinarySize: maxSize})
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	if listJSON {
		return manifest.WriteListingJSON(os.Stdout, m.Entries)
	}
	return manifest.WriteListing(os.Stdout, m.Entries)
}
