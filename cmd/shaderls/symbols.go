package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"shaderls/internal/config"
	"shaderls/internal/document"
	"shaderls/internal/search/symbols"
	"shaderls/internal/workspace"
)

var kindFlag string

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "Print the declarations of one shader file as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving %s: %w", args[0], err)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		languageID := "hlsl"
		if config.Default(filepath.Dir(path)).IsGLSL(path) {
			languageID = "glsl"
		}
		doc := document.New(document.URIFromPath(path), languageID, 0, string(content))
		return printJSON(cmd.OutOrStdout(), symbols.NewExtractor(newLogger()).Extract(doc))
	},
}

var workspaceCmd = &cobra.Command{
	Use:   "workspace [query]",
	Short: "Print the declarations found under the root as JSON",
	Long: `workspace scans every shader file under the root and prints the
declarations found. With a query, only names containing it (ignoring case)
are printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		cfg, err := config.Load(rootFlag)
		if err != nil {
			return err
		}
		index, err := workspace.NewFromConfig(cfg, nil, logger)
		if err != nil {
			return err
		}

		query := ""
		if len(args) > 0 {
			query = args[0]
		}
		kind, err := parseKindFlag()
		if err != nil {
			return err
		}

		// the index does not filter by query; callers do
		result := []symbols.Symbol{}
		for _, sym := range index.QueryWorkspace(cmd.Context(), query) {
			if kind != 0 && sym.Kind != kind {
				continue
			}
			if query != "" && !strings.Contains(strings.ToLower(sym.Name), strings.ToLower(query)) {
				continue
			}
			result = append(result, sym)
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	workspaceCmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "only print this kind (function, struct, variable, field)")
	rootCmd.AddCommand(symbolsCmd, workspaceCmd)
}

func parseKindFlag() (symbols.Kind, error) {
	if kindFlag == "" {
		return 0, nil
	}
	kind, ok := symbols.ParseKind(kindFlag)
	if !ok {
		return 0, fmt.Errorf("unknown kind %q", kindFlag)
	}
	return kind, nil
}
