package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soyeahso/ragrelay/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Get or set configuration values",
	}

	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUnsetCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a configuration value or section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := config.OpenDocument(paths.Config)
			if err != nil {
				return err
			}
			val, err := doc.Get(args[0])
			if err != nil {
				return keyError(args[0], err)
			}
			return printValue(cmd.OutOrStdout(), val)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := parseValue(args[1])
			return editConfig(func(doc *config.Document) error {
				if err := doc.Set(args[0], value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", args[0], value)
				return nil
			})
		},
	}
}

func newConfigUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editConfig(func(doc *config.Document) error {
				if err := doc.Unset(args[0]); err != nil {
					return keyError(args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])
				return nil
			})
		},
	}
}

// editConfig opens the config document, applies edit and saves the result.
// Nothing is written when edit fails.
func editConfig(edit func(*config.Document) error) error {
	doc, err := config.OpenDocument(paths.Config)
	if err != nil {
		return err
	}
	if err := edit(doc); err != nil {
		return err
	}
	return doc.Save()
}

func keyError(key string, err error) error {
	if errors.Is(err, config.ErrKeyNotFound) {
		return fmt.Errorf("key %q not found", key)
	}
	return err
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), paths.Config)
		},
	}
}

// printValue outputs a value in a human-readable format. Secrets are masked.
func printValue(w io.Writer, v any) error {
	switch val := v.(type) {
	case string:
		fmt.Fprintln(w, val)
	case map[string]any:
		data, err := yaml.Marshal(maskSecrets(val))
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(data))
	case []any:
		data, err := yaml.Marshal(val)
		if err != nil {
			return err
		}
		fmt.Fprint(w, string(data))
	default:
		fmt.Fprintln(w, val)
	}
	return nil
}

// secretKeys are config leaves never echoed when a whole section is printed.
var secretKeys = map[string]bool{
	"apiKey":   true,
	"token":    true,
	"password": true,
}

func maskSecrets(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if secretKeys[k] {
			out[k] = "********"
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			out[k] = maskSecrets(sub)
			continue
		}
		out[k] = v
	}
	return out
}

// parseValue types a command-line value the way YAML would read it:
// true/false, integers and floats, with anything else kept as a string.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
