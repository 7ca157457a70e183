package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rtm0/cdsstore/internal/store"
)

var (
	// Global flags
	verbose        bool
	cdsURL         string
	cdsKey         string
	normalizeNames bool
	paramsArg      string
	paramsFile     string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cdsstore",
	Short: "Open Copernicus Climate Data Store products as gridded datasets",
	Long: `cdsstore lists, describes and opens ERA5, satellite soil moisture and
satellite sea ice thickness products of the Copernicus Climate Data Store.

Credentials are read from --url and --key, then from CDSAPI_URL and
CDSAPI_KEY, then from the file named by CDSAPI_RC (default ~/.cdsapirc).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the supported data ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		titles, _ := cmd.Flags().GetBool("titles")
		for id := range newStore().DataIDs(titles) {
			if titles {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", id.ID(), id.Title())
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), id.ID())
		}
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <data-id>",
	Short: "Describe a dataset without fetching data",
	Long: `Prints the descriptor of the dataset "open" would return for the given
parameters. Without parameters the default variable selection is described.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := readParams()
		if err != nil {
			return err
		}
		d, err := newStore().Describe(args[0], params)
		if err != nil {
			return err
		}
		return printJSON(cmd, d)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema <data-id>",
	Short: "Print the JSON schema of the open parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore().OpenParamsSchema(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, s.ToMap())
	},
}

func newStore() *store.Store {
	return store.New(
		store.WithLogger(logger),
		store.WithCredentials(cdsURL, cdsKey),
		store.WithNormalizeNames(normalizeNames),
	)
}

// readParams reads open parameters given as JSON or YAML, inline or from a
// file. It returns nil if neither is set.
func readParams() (map[string]any, error) {
	var b []byte
	switch {
	case paramsArg != "" && paramsFile != "":
		return nil, fmt.Errorf("--params and --params-file are mutually exclusive")
	case paramsArg != "":
		b = []byte(paramsArg)
	case paramsFile != "":
		var err error
		if b, err = os.ReadFile(paramsFile); err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}
	params := map[string]any{}
	if err := yaml.Unmarshal(b, &params); err != nil {
		return nil, fmt.Errorf("cannot parse params: %w", err)
	}
	return params, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
	rootCmd.PersistentFlags().StringVar(&cdsURL, "url", "", "CDS API URL")
	rootCmd.PersistentFlags().StringVar(&cdsKey, "key", "", "CDS API key as <uid>:<api-key>")
	rootCmd.PersistentFlags().BoolVar(&normalizeNames, "normalize-names", false, "replace characters other than letters, digits and underscores in variable names")

	for _, cmd := range []*cobra.Command{describeCmd, openCmd, exportCmd} {
		cmd.Flags().StringVarP(&paramsArg, "params", "p", "", "open parameters as JSON or YAML")
		cmd.Flags().StringVarP(&paramsFile, "params-file", "f", "", "file with open parameters as JSON or YAML")
	}
	listCmd.Flags().Bool("titles", false, "print the title of every data id")

	rootCmd.AddCommand(listCmd, describeCmd, schemaCmd, openCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
