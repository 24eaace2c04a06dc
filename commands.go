package main

import (
	"fmt"
	"os"
	"path/filepath"

	"phototagger/database"
	"phototagger/metadata"
	"phototagger/scanner"
	"phototagger/signalhandler"

	"github.com/spf13/cobra"
)

func newAllTagsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "alltags",
		Short: "List every keyword used in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			library, err := ctx.requireLibrary()
			if err != nil {
				return err
			}
			dbPath, err := ctx.requireIndex()
			if err != nil {
				return err
			}

			session, err := database.OpenSession(dbPath, library, database.SessionOptions{QueryTimeout: cfg.QueryTimeout()})
			if err != nil {
				return err
			}
			defer session.Close()

			keywords, err := session.AllKeywords(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, kw := range keywords {
				fmt.Fprintln(out, kw)
			}
			return nil
		},
	}
}

func newDumpCommand(ctx *commandContext) *cobra.Command {
	var verbose, asTable bool

	cmd := &cobra.Command{
		Use:   "dump <path>",
		Short: "Print every metadata property of the photos at path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := scanner.ValidateTarget(args[0]); err != nil {
				return err
			}

			store, err := newMetadataStore(cfg, cfg.MetadataBackend)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			for path, err := range scanner.Enumerate(args[0]) {
				if err != nil {
					return err
				}
				if cmd.Context().Err() != nil {
					return cmd.Context().Err()
				}
				if verbose {
					fmt.Fprintln(out, path)
				}

				props, err := store.Open(path)
				if err != nil {
					fmt.Fprintf(out, "   (cannot read properties: %v)\n\n", err)
					continue
				}
				all := props.ReadAll()
				metadata.SortProperties(all)

				if asTable {
					rows := make([][]string, len(all))
					for i, p := range all {
						rows[i] = []string{p.Key, p.Value.String()}
					}
					fmt.Fprintln(out, renderTable(filepath.Base(path), []string{"Property", "Value"}, rows, nil))
				} else {
					for _, p := range all {
						fmt.Fprintf(out, "   %s: %s\n", p.Key, p.Value.String())
					}
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Print each file name before its properties")
	cmd.Flags().BoolVar(&asTable, "table", false, "Render properties as a table")
	return cmd
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	var force, prune bool

	cmd := &cobra.Command{
		Use:   "index [folder]",
		Short: "Build or refresh the library catalogue",
		Long: `index walks a library folder (the configured library by default) and
records each photo's file name, dimensions, camera model, capture time and
keywords in the catalogue used by match and alltags.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var folder string
			if len(args) == 1 {
				folder = args[0]
			} else if folder, err = ctx.requireLibrary(); err != nil {
				return err
			}

			if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create catalogue directory %q: %w", dir, err)
				}
			}
			db, err := database.InitDatabase(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			store, err := newMetadataStore(cfg, cfg.MetadataBackend)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			_, err = scanner.ScanAndStoreFolder(cmd.Context(), db, scanner.ScanOptions{
				FolderPath:    folder,
				ForceRewrite:  force,
				Prune:         prune,
				DebugMode:     cfg.Debug,
				MaxWorkers:    signalhandler.GetOptimalProcs(),
				CaptureOffset: cfg.CaptureOffset(),
				Store:         store,
				Out:           out,
			})
			if err != nil {
				return err
			}

			stats, err := database.GetScanStats(db, folder)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Catalogue holds %d photos under %s (%d with camera and capture time, %d distinct keywords).\n",
				stats.TotalImages, folder, stats.WithCaptureInfo, stats.UniqueKeywords)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-read every photo, even unchanged ones")
	cmd.Flags().BoolVar(&prune, "prune", false, "Remove catalogue entries for photos no longer on disk")
	return cmd
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return configCmd
}
