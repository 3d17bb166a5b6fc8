package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shyim/filestore/internal/storage"
)

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "List the available storage driver types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range storage.Drivers() {
			fmt.Println(name)
		}
		return nil
	},
}

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "Initialize the configured pools and show their state",
	Args:  cobra.NoArgs,
	RunE:  runPools,
}

func runPools(cmd *cobra.Command, args []string) (err error) {
	pm, err := openPools(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pm.Close(cmd.Context()); err == nil {
			err = closeErr
		}
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTYPE\tKEY\tSTATE\tDEFAULT\tEXCLUDED")
	_, _ = fmt.Fprintln(w, "----\t----\t---\t-----\t-------\t--------")

	for _, name := range pm.List() {
		backend, err := pm.Get(name)
		if err != nil {
			return err
		}

		excluded := "-"
		if fs, ok := backend.(*storage.FileSystem); ok && len(fs.ExcludedExtensions()) > 0 {
			excluded = strings.Join(fs.ExcludedExtensions(), ",")
		}

		isDefault := ""
		if name == cfg.DefaultStorage {
			isDefault = "*"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", name, backend.Key().Type(), backend.Key(), backend.State(), isDefault, excluded)
	}
	_ = w.Flush()

	return nil
}
