package main

import (
	"fmt"
	"io"
	"sync"

	"phototagger/config"
	"phototagger/database"
	"phototagger/scanner"
	"phototagger/tagger"

	"github.com/spf13/cobra"
)

type matchFlags struct {
	tag          string
	deleteSource bool
	backup       string
	simulate     bool
	verbose      bool
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	flags := &matchFlags{}

	cmd := &cobra.Command{
		Use:   "match <path>",
		Short: "Tag the library copies of the photos at path",
		Long: `match looks every photo at path (a file, a folder of JPEGs, or a wildcard
pattern) up in the library catalogue, verifies candidates pixel for pixel and
adds the tag to each verified library copy.`,
		Example: `  phototagger match ~/Downloads/trip -tag vacation2024 -backup ~/tag-backups
  phototagger match '/mnt/card/*.JPG' -tag card -simulate -verbose`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, ctx, flags, args[0])
		},
	}

	cmd.Flags().StringVar(&flags.tag, "tag", "", "Keyword to add to matching library photos")
	cmd.Flags().BoolVar(&flags.deleteSource, "delsrc", false, "Delete a source photo once a library copy was tagged")
	cmd.Flags().StringVar(&flags.backup, "backup", "", "Back up library photos to this folder before tagging")
	cmd.Flags().BoolVar(&flags.simulate, "simulate", false, "Report what would happen without changing any file")
	cmd.Flags().BoolVar(&flags.verbose, "verbose", false, "Print the outcome for every photo")
	_ = cmd.MarkFlagRequired("tag")

	return cmd
}

func runMatch(cmd *cobra.Command, ctx *commandContext, flags *matchFlags, target string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	library, err := ctx.requireLibrary()
	if err != nil {
		return err
	}
	if err := scanner.ValidateTarget(target); err != nil {
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

	store, err := newMetadataStore(cfg, config.BackendExifTool)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	var outMu sync.Mutex
	opts := tagger.Options{
		Library:       library,
		Source:        target,
		Tag:           flags.tag,
		DeleteSource:  flags.deleteSource,
		BackupDir:     flags.backup,
		Simulate:      flags.simulate,
		Workers:       cfg.Workers,
		CaptureOffset: cfg.CaptureOffset(),
	}
	if flags.verbose {
		opts.OnResult = func(r tagger.SourceResult) {
			outMu.Lock()
			defer outMu.Unlock()
			printSourceResult(out, r)
		}
	}

	orch, err := tagger.NewOrchestrator(session, store, newDecoder(cfg), opts)
	if err != nil {
		return err
	}

	stats, err := orch.Run(cmd.Context(), scanner.Enumerate(target))
	fmt.Fprintln(out, renderRunSummary(stats, flags.simulate))
	if script := orch.RestoreScript(); script != "" {
		fmt.Fprintf(out, "Restore with: sh %s\n", script)
	}
	if err != nil {
		return err
	}
	return cmd.Context().Err()
}

func printSourceResult(w io.Writer, r tagger.SourceResult) {
	line := fmt.Sprintf("%s: %s", r.Path, r.State)
	if r.Tier != "" {
		line += fmt.Sprintf(" (%d candidate(s) by %s)", r.Candidates, r.Tier)
	}
	if r.Err != nil {
		line += ": " + r.Err.Error()
	}
	fmt.Fprintln(w, line)

	for _, t := range r.Tags {
		detail := t.Outcome.String()
		if t.Reason != "" {
			detail += ", " + t.Reason
		}
		if t.Backup != nil {
			detail += ", backup " + t.Backup.BackupPath
		}
		fmt.Fprintf(w, "   %s: %s\n", t.Path, detail)
	}
	for _, rej := range r.Rejections {
		fmt.Fprintf(w, "   %s: rejected, %s\n", rej.Path, rej.Reason)
	}
	if r.Deleted {
		fmt.Fprintf(w, "   source deleted\n")
	}
}
