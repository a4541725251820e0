package main

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"shaderls/internal/config"
	"shaderls/internal/document"
	"shaderls/internal/search/grep"
	"shaderls/internal/search/symbols"
	"shaderls/internal/store"
	"shaderls/internal/workspace"
)

var limitFlag int

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Snapshot the workspace declarations into SQLite",
	Args:  cobra.NoArgs,
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
		matcher, err := workspace.MatcherFromConfig(cfg, afero.NewOsFs())
		if err != nil {
			return err
		}

		start := time.Now()
		logger.Info("indexing", "root", cfg.Root, "search", cfg.Search.String(), "db", cfg.IndexPath())

		files, err := grep.NewFileLister(afero.NewOsFs(), cfg.Root, matcher, logger).List(cmd.Context())
		if err != nil {
			return err
		}
		// a failed scan must not replace the snapshot with empty files
		found, err := index.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scanning workspace: %w", err)
		}
		byPath := make(map[string][]symbols.Symbol)
		for _, sym := range found {
			path, err := document.PathFromURI(sym.Location.URI)
			if err != nil {
				continue
			}
			byPath[path] = append(byPath[path], sym)
		}

		db, err := store.Open(cfg.IndexPath())
		if err != nil {
			return err
		}
		defer db.Close()

		listed := make(map[string]bool, len(files))
		for _, path := range files {
			listed[path] = true
			if err := db.ReplaceFile(path, byPath[path]); err != nil {
				return err
			}
		}
		indexed, err := db.Files()
		if err != nil {
			return err
		}
		for _, path := range indexed {
			if !listed[path] {
				if err := db.RemoveFile(path); err != nil {
					return err
				}
			}
		}

		symbolCount, fileCount, err := db.Stats()
		if err != nil {
			logger.Warn("could not get stats", "error", err)
			return nil
		}
		logger.Info("indexing complete",
			"symbols", symbolCount,
			"files", fileCount,
			"duration", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find <name>",
	Short: "Look up declarations in the snapshot written by index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(rootFlag)
		if err != nil {
			return err
		}
		kind, err := parseKindFlag()
		if err != nil {
			return err
		}

		db, err := store.Open(cfg.IndexPath())
		if err != nil {
			return err
		}
		defer db.Close()

		found, err := db.FindSymbol(args[0], kind, limitFlag)
		if err != nil {
			return fmt.Errorf("searching snapshot: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), found)
	},
}

func init() {
	findCmd.Flags().StringVarP(&kindFlag, "kind", "k", "", "only match this kind (function, struct, variable, field)")
	findCmd.Flags().IntVarP(&limitFlag, "limit", "n", store.DefaultLimit, "maximum results")
	rootCmd.AddCommand(indexCmd, findCmd)
}
