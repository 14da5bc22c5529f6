package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Siguza/imobax/internal/fsutil"
	"github.com/Siguza/imobax/internal/manifest"
	"github.com/Siguza/imobax/internal/restore"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	restoreForce         bool
	restoreIgnoreMissing bool
	restoreWorkers       int
	restoreProgress      bool
)

// progressInterval is the minimum time between progress lines.
const progressInterval = 2 * time.Second

func newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore SRC DST",
		Short: "Restore the files of a backup into a directory",
		Long: `Restore every regular file listed in the manifest of the backup in SRC
into DST. Files are placed at DST/<domain>/<relative path>, where the first
hyphen of the domain becomes a directory separator, so that
"AppDomain-com.example.app" becomes "AppDomain/com.example.app".

DST is created if it does not exist. Without --force, an existing file at a
destination aborts the restore. Without --ignore-missing, a file listed in
the manifest but absent from the backup aborts the restore.`,
		Example: `  imobax restore ./backup ./restored
  imobax restore --force --ignore-missing ./backup ./restored
  imobax restore -j 8 --progress ./backup ./restored`,
		Args: cobra.ExactArgs(2),
		RunE: restoreRun,
	}

	cmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "overwrite existing files")
	cmd.Flags().BoolVarP(&restoreIgnoreMissing, "ignore-missing", "i", false, "skip files missing from the backup")
	cmd.Flags().IntVarP(&restoreWorkers, "workers", "j", 1, "number of files restored concurrently")
	cmd.Flags().BoolVar(&restoreProgress, "progress", false, "print progress to stderr (default: on when stderr is a terminal)")

	return cmd
}

func restoreRun(cmd *cobra.Command, args []string) error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}
	src, dst := args[0], args[1]

	rc := globalCfg.Restore
	if cmd.Flags().Changed("force") {
		rc.Force = restoreForce
	}
	if cmd.Flags().Changed("ignore-missing") {
		rc.IgnoreMissing = restoreIgnoreMissing
	}
	if cmd.Flags().Changed("workers") {
		rc.Workers = restoreWorkers
	}
	if rc.Workers < 1 {
		return fmt.Errorf("--workers must be at least 1, got %d", rc.Workers)
	}

	maxSize, err := globalCfg.MaxManifestSize()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := manifest.Open(ctx, src, manifest.Options{Logger: logger, MaxBinarySize: maxSize})
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}

	r, err := restore.New(restore.Options{
		Source:        src,
		Target:        dst,
		Layout:        m.Layout(),
		Force:         rc.Force,
		IgnoreMissing: rc.IgnoreMissing,
		Workers:       rc.Workers,
		Copy: fsutil.CopyOptions{
			Xattrs: rc.PreserveXattrs,
			Times:  rc.PreserveTimes,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	showProgress := restoreProgress
	if !cmd.Flags().Changed("progress") {
		showProgress = !quiet && term.IsTerminal(int(os.Stderr.Fd()))
	}
	stopProgress := func() {}
	if showProgress {
		done := make(chan struct{})
		finished := make(chan struct{})
		go func() {
			defer close(finished)
			reportProgress(os.Stderr, r.Tracker(), done)
		}()
		stopProgress = func() {
			close(done)
			<-finished
		}
	}

	report, err := r.Restore(ctx, m.Entries)
	stopProgress()
	if report != nil && !quiet {
		printRestoreSummary(os.Stdout, m, report)
	}
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	return nil
}

// reportProgress writes a progress line to w at most every
// progressInterval, and a final one when done is closed.
func reportProgress(w io.Writer, tracker *restore.Tracker, done <-chan struct{}) {
	var last time.Time
	for {
		select {
		case <-done:
			printProgress(w, tracker.Snapshot())
			return
		case <-tracker.Wait():
		}

		if time.Since(last) < progressInterval {
			continue
		}
		last = time.Now()
		printProgress(w, tracker.Snapshot())
	}
}

func printProgress(w io.Writer, p restore.Progress) {
	fmt.Fprintf(w, "%5.1f%%  %s/%s files  %s  %s/s  [%s]\n",
		p.Percent,
		humanize.Comma(int64(p.RestoredFiles+p.SkippedFiles)),
		humanize.Comma(int64(p.TotalFiles)),
		humanize.Bytes(uint64(p.BytesCopied)),
		humanize.Bytes(uint64(p.BytesPerSecond)),
		p.Phase)
}

func printRestoreSummary(w io.Writer, m *manifest.Manifest, report *restore.Report) {
	fmt.Fprintf(w, "Manifest: %s (%s, %s layout)\n", m.Path, m.Source, m.Layout())
	fmt.Fprintf(w, "  Entries:  %s\n", humanize.Comma(int64(len(report.Results))))
	fmt.Fprintf(w, "  Restored: %s\n", humanize.Comma(int64(report.Restored)))
	fmt.Fprintf(w, "  Skipped:  %s\n", humanize.Comma(int64(report.Skipped)))
	fmt.Fprintf(w, "  Bytes:    %s\n", humanize.Bytes(uint64(report.Bytes)))

	if missing := report.Missing(); len(missing) > 0 {
		fmt.Fprintln(w, "  Missing from backup:")
		for _, e := range missing {
			fmt.Fprintf(w, "    - %s %s/%s\n", e.FileID, e.Domain, e.RelativePath)
		}
	}
}
