package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write cloud-diagnostics.json (or .yaml) with every setting at its default
value into the target directory.`,
	RunE: runInit,
}

var (
	initForce  bool
	initFormat string
	initDir    string
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
	initCmd.Flags().StringVar(&initFormat, "format", "json", "File format (json, yaml)")
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to write the file into")
}

func runInit(cmd *cobra.Command, _ []string) error {
	var ext string
	switch initFormat {
	case "json":
		ext = ".json"
	case "yaml", "yml":
		ext = ".yaml"
	default:
		return fmt.Errorf("unsupported format %q (use json or yaml)", initFormat)
	}

	path := filepath.Join(initDir, config.ConfigName+ext)
	if err := config.WriteFile(path, config.Default(), initForce); err != nil {
		if !initForce {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
