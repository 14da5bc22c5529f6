package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/Siguza/imobax/internal/config"
	"github.com/spf13/cobra"
)

var configInitForce bool

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage imobax configuration. Subcommands show the effective
configuration or write a default config file.`,
		Example: `  imobax config show
  imobax config init ~/.config/imobax/imobax.yaml`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigInitCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration in YAML format. If a config file
is loaded, shows the loaded configuration; otherwise the defaults.`,
		Example: `  imobax config show
  imobax config show --config /etc/imobax/imobax.yaml`,
		Args: cobra.NoArgs,
		RunE: configShowRun,
	}

	return cmd
}

func configShowRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}

	data, err := globalCfg.Marshal()
	if err != nil {
		return err
	}

	if cfgPath != "" {
		fmt.Printf("# loaded from %s\n", cfgPath)
	} else {
		fmt.Println("# defaults")
	}
	fmt.Print(string(data))

	return nil
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write a config file with the default settings",
		Long: `Write the default configuration to PATH, or to ` + config.FileName + ` in the
current directory. An existing file is only replaced with --force.`,
		Example: `  imobax config init
  imobax config init --force /etc/imobax/imobax.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: configInitRun,
	}

	cmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")

	return cmd
}

func configInitRun(cmd *cobra.Command, args []string) error {
	path := config.FileName
	if len(args) == 1 {
		path = args[0]
	}

	if err := config.DefaultConfig().Write(path, configInitForce); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
		return err
	}

	logger.Info("config file written", "path", path)
	if !quiet {
		fmt.Printf("Wrote %s\n", path)
	}
	return nil
}
