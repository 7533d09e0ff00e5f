package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"prefs-manager/core/config"
	"prefs-manager/core/logger"
	"prefs-manager/core/prefs"

	"github.com/spf13/cobra"
)

var (
	// Flags for the get command
	getDefault string
	getDecrypt bool
	getNoCache bool

	// Flags for the set command
	setEncrypt    bool
	setSkipChecks bool
)

// openStack loads configuration, builds the preference stack and
// initializes the providers. Shared by all data commands.
func openStack(ctx context.Context) (*stack, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	st, err := buildStack(cfg, l)
	if err != nil {
		return nil, err
	}
	if err := st.injector.Initialize(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

// getCmd resolves one preference and prints it as JSON.
var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Resolve a preference across all providers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStack(cmd.Context())
		if err != nil {
			return err
		}

		opts := &prefs.GetOptions{
			NoCache: getNoCache,
			Decrypt: getDecrypt,
		}
		if getDefault != "" {
			def, err := prefs.ParseValue([]byte(getDefault))
			if err != nil {
				return fmt.Errorf("--default is not valid JSON: %w", err)
			}
			opts.Default = &def
		}

		value, err := st.injector.Get(cmd.Context(), args[0], opts)
		if err != nil {
			return err
		}

		data, err := value.MarshalJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

// setCmd writes one preference to every provider.
var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a preference to all providers",
	Long: `Write a preference to all providers. The value is parsed as JSON;
anything that does not parse is stored as a plain string.

Examples:
  prefs-manager set ui.theme dark
  prefs-manager set editor '{"font":{"size":12}}'
  prefs-manager set api.token hunter2 --encrypt`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStack(cmd.Context())
		if err != nil {
			return err
		}

		value, err := prefs.ParseValue([]byte(args[1]))
		if err != nil {
			value = prefs.String(args[1])
		}

		err = st.injector.Set(cmd.Context(), args[0], value, &prefs.SetOptions{
			SkipValidation: setSkipChecks,
			Encrypt:        setEncrypt,
		})
		if err != nil {
			return err
		}
		fmt.Printf("set %s\n", args[0])
		return nil
	},
}

// delCmd removes one preference from every provider.
var delCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Delete a preference from all providers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStack(cmd.Context())
		if err != nil {
			return err
		}

		removed, err := st.injector.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !removed {
			fmt.Printf("%s not found\n", args[0])
			os.Exit(1)
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

// listCmd prints every resolved preference as JSON.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every resolved preference",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStack(cmd.Context())
		if err != nil {
			return err
		}

		all, err := st.injector.GetAll(cmd.Context())
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	getCmd.Flags().StringVar(&getDefault, "default", "", "Fallback value as JSON when the key is missing")
	getCmd.Flags().BoolVar(&getDecrypt, "decrypt", false, "Decrypt encrypted values")
	getCmd.Flags().BoolVar(&getNoCache, "no-cache", false, "Bypass the resolution cache")

	setCmd.Flags().BoolVar(&setEncrypt, "encrypt", false, "Encrypt string values at rest")
	setCmd.Flags().BoolVar(&setSkipChecks, "skip-validation", false, "Skip validation rules")

	RootCmd.AddCommand(getCmd)
	RootCmd.AddCommand(setCmd)
	RootCmd.AddCommand(delCmd)
	RootCmd.AddCommand(listCmd)
}
