package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nathan-walker/marchiver/internal/backup"
	"github.com/nathan-walker/marchiver/internal/config"
	"github.com/nathan-walker/marchiver/internal/contacts"
	"github.com/nathan-walker/marchiver/internal/conversation"
	"github.com/nathan-walker/marchiver/internal/logging"
	"github.com/nathan-walker/marchiver/internal/render"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "marchiver",
		Short: "Render a device backup's messages as a browsable archive",
		Long: `Marchiver reads the message and contact databases inside an
iTunes-style device backup, reconstructs conversation threads, and writes
static HTML pages, JSON exports, and the referenced media attachments.`,
	}

	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("marchiver %s (%s, %s)\n", version, commit, buildDate)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\n[ERR] %v\n\n", err)
		os.Exit(1)
	}
}

func newExtractCmd() *cobra.Command {
	var (
		inputDir   string
		outputDir  string
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract conversations from a backup into HTML and JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Failures past flag parsing are run failures, not usage errors.
			cmd.SilenceUsage = true
			cmd.SilenceErrors = true

			opts, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if opts.InputDir, err = filepath.Abs(inputDir); err != nil {
				return fmt.Errorf("invalid input path: %w", err)
			}
			if opts.OutputDir, err = filepath.Abs(outputDir); err != nil {
				return fmt.Errorf("invalid output path: %w", err)
			}
			opts.Verbose = verbose
			if err := opts.Validate(); err != nil {
				return err
			}
			return run(opts)
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "path of the device backup directory")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output path; must be absent or an empty directory")
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML settings file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func run(opts config.Options) error {
	log, err := logging.New(opts.LogFile, opts.Verbose)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer log.Sync()

	bk, err := backup.Open(opts.InputDir)
	if err != nil {
		return err
	}
	if err := prepareOutput(opts.OutputDir); err != nil {
		return err
	}

	log.Info("extraction starting",
		zap.String("input", opts.InputDir),
		zap.String("output", opts.OutputDir))

	messagesDB, err := bk.OpenMessages()
	if err != nil {
		return err
	}
	defer messagesDB.Close()

	contactsDB, err := bk.OpenContacts()
	if err != nil {
		return err
	}
	defer contactsDB.Close()

	handles, err := contacts.LoadHandles(messagesDB)
	if err != nil {
		return err
	}
	log.Info("handles loaded", zap.Int("handles", len(handles)))

	resolver, err := contacts.NewResolver(contactsDB, log)
	if err != nil {
		return err
	}
	records := contacts.Bind(handles, resolver)

	builder := conversation.NewBuilder(
		messagesDB, bk,
		filepath.Join(opts.OutputDir, "attachments"),
		opts.AttachmentWorkers, log,
	)
	convs, err := builder.BuildAll(context.Background())
	if err != nil {
		return err
	}
	log.Info("conversations built", zap.Int("conversations", len(convs)))

	renderer, err := render.New(opts.OutputDir, records, log)
	if err != nil {
		return err
	}
	if err := renderer.Render(convs); err != nil {
		return err
	}

	log.Info("extraction complete", zap.String("index", filepath.Join(opts.OutputDir, "index.html")))
	return nil
}

// prepareOutput enforces the empty-or-absent rule, then creates the output
// tree.
func prepareOutput(dir string) error {
	entries, err := os.ReadDir(dir)
	switch {
	case err == nil:
		if len(entries) != 0 {
			return fmt.Errorf("output directory %s is not empty", dir)
		}
	case os.IsNotExist(err):
		// Created below.
	default:
		if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
			return fmt.Errorf("output path %s is not a directory", dir)
		}
		return fmt.Errorf("cannot read output directory: %w", err)
	}

	for _, sub := range []string{dir, filepath.Join(dir, "attachments"), filepath.Join(dir, "conversations")} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return nil
}
