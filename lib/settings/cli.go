package settings

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigCmd builds the `config` command tree used to inspect the configuration.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the server configuration",
		Long: `Inspect the server configuration.

Every key can be set in settings.json or through its environment variable.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show every key with its current and default value",
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := load("")
				if err != nil {
					return err
				}
				configShow(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "dump",
			Short: "Dump the effective configuration as JSON",
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := load("")
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), v.AllSettings())
			},
		},
		&cobra.Command{
			Use:   "env",
			Short: "List the environment variable of every key",
			Run: func(cmd *cobra.Command, args []string) {
				configEnv(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "get <json-key>",
			Short: "Print the current value of a key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := load("")
				if err != nil {
					return err
				}
				return configGet(cmd.OutOrStdout(), v, args[0])
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Print a settings.json holding every default",
			RunE: func(cmd *cobra.Command, args []string) error {
				return configInit(cmd.OutOrStdout())
			},
		},
	)
	return cmd
}

func configShow(out io.Writer, v *viper.Viper) {
	fmt.Fprintf(out,
		"%-35s %-45s %-20s %-20s %s\n",
		"JSON KEY",
		"ENV VAR",
		"CURRENT",
		"DEFAULT",
		"DESCRIPTION",
	)

	for _, c := range Registry {
		fmt.Fprintf(out,
			"%-35s %-45s %-20v %-20v %s\n",
			c.Key,
			EnvVar(c.Key),
			v.Get(c.Key),
			c.Default,
			c.Description,
		)
	}
}

func configEnv(out io.Writer) {
	fmt.Fprintf(out, "%-45s %s\n", "ENV VAR", "JSON KEY")

	for _, c := range Registry {
		fmt.Fprintf(out, "%-45s %s\n", EnvVar(c.Key), c.Key)
	}
}

func configGet(out io.Writer, v *viper.Viper, key string) error {
	for _, c := range Registry {
		if c.Key == key {
			fmt.Fprintln(out, v.Get(key))
			return nil
		}
	}
	return fmt.Errorf("unknown config key: %s", key)
}

// configInit prints the defaults nested the way settings.json expects them.
func configInit(out io.Writer) error {
	v := viper.New()
	for _, c := range Registry {
		v.Set(c.Key, c.Default)
	}
	return writeJSON(out, v.AllSettings())
}

func writeJSON(out io.Writer, value any) error {
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
