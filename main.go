package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"retrace/internal/config"
)

var projectFlag string

func main() {
	root := &cobra.Command{
		Use:           "retrace",
		Short:         "Reconstruct project file history from recorded editor operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "project root (default: current directory)")

	root.AddCommand(
		ingestCmd(),
		followCmd(),
		checkoutCmd(),
		diffCmd(),
		logCmd(),
		branchesCmd(),
		exportCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Fatalf("retrace: %v", err)
	}
}

// openApp resolves the project root and wires the app.
func openApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	project := projectFlag
	if project == "" {
		project, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}
	project, err = filepath.Abs(project)
	if err != nil {
		return nil, err
	}

	return NewApp(cfg, project)
}

func printReport(report *BuildReport) {
	fmt.Printf("processed %d operations (%d skipped, %d bootstrapped)\n",
		report.Processed, report.Skipped, report.Bootstrapped)
	if report.HeadRevisionID != "" {
		fmt.Printf("head revision: %s\n", report.HeadRevisionID)
	}
	for _, w := range report.ExtractionWarnings {
		fmt.Printf("warning: extract: %s\n", w)
	}
	for _, w := range report.ApplyWarnings {
		fmt.Printf("warning: apply: %s\n", w)
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Scan all session files and rebuild the revision chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}
}

func followCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow",
		Short: "Watch session files and fold new operations as they appear",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Catch up before tailing.
			report, err := app.Ingest(ctx)
			if err != nil {
				return err
			}
			printReport(report)

			err = app.Follow(ctx, printReport)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}

func checkoutCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "checkout <operation-id>",
		Short: "Show or materialize the project state after one operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if outDir != "" {
				written, err := app.ExportDirectory(args[0], outDir)
				if err != nil {
					return err
				}
				fmt.Printf("wrote %d files to %s\n", written, outDir)
				return nil
			}

			files, err := app.Checkout(args[0])
			if err != nil {
				return err
			}
			for _, path := range files.Paths() {
				snap, _ := files.Get(path)
				fmt.Printf("%-12s %s\n", humanize.Bytes(uint64(snap.Size)), path)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "materialize files into this directory")
	return cmd
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <operation-id-a> <operation-id-b>",
		Short: "Compare the project state between two operations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			changes, err := app.Diff(args[0], args[1])
			if err != nil {
				return err
			}
			if changes.Empty() {
				fmt.Println("no changes")
				return nil
			}
			for _, path := range changes.Added {
				fmt.Printf("A  %s\n", path)
			}
			for _, path := range changes.Removed {
				fmt.Printf("D  %s\n", path)
			}
			for _, path := range changes.Changed {
				fmt.Printf("M  %s\n", path)
			}
			return nil
		},
	}
}

func logCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log",
		Short: "List revisions in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			for _, rev := range app.Revisions() {
				fmt.Printf("%s  op=%s  files=%d  %s\n",
					rev.ID, rev.OperationID, rev.Files.Len(), humanize.Time(rev.Timestamp))
			}
			return nil
		},
	}
}

func branchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "branches",
		Short: "List branch head revisions (main line first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			for i, id := range app.Branches() {
				marker := " "
				if i == 0 {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, id)
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var asGit bool
	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Export the current head (or the whole main line as a git repository)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if asGit {
				commits, err := app.ExportGit(args[0])
				if err != nil {
					return err
				}
				fmt.Printf("exported %d commits to %s\n", commits, args[0])
				return nil
			}

			head := app.Head()
			if head == nil {
				return fmt.Errorf("nothing to export: no revisions")
			}
			written, err := app.ExportDirectory(head.OperationID, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d files to %s\n", written, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&asGit, "git", false, "export the main line as a git repository, one commit per revision")
	return cmd
}
