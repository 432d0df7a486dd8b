package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/mediaqueue/pkg/logger"
	"github.com/dmitrymomot/mediaqueue/pkg/upload"
)

type uploadOptions struct {
	prefix      string
	batch       string
	thumbnails  bool
	concurrency int
}

func newUploadCommand() *cobra.Command {
	opts := &uploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload DIR [DIR...]",
		Short: "Upload every file under the given directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "Key prefix, overrides UPLOAD_KEY_PREFIX")
	cmd.Flags().StringVar(&opts.batch, "batch", "", "Batch id used for status tracking (default: random)")
	cmd.Flags().BoolVar(&opts.thumbnails, "thumbnails", false, "Store thumbnails next to uploaded images")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Maximum light uploads at once, overrides UPLOAD_MAX_CONCURRENT")

	return cmd
}

func runUpload(cmd *cobra.Command, opts *uploadOptions, dirs []string) error {
	ctx := cmd.Context()

	d, err := loadDeps(cmd, true)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	cfg := d.uploadCfg
	if opts.prefix != "" {
		cfg.KeyPrefix = opts.prefix
	}
	if opts.thumbnails {
		cfg.Thumbnails = true
	}
	if opts.concurrency > 0 {
		cfg.MaxConcurrent = opts.concurrency
	}
	if opts.batch == "" {
		opts.batch = uuid.NewString()
	}

	statuses, err := d.newStatusStore(ctx, opts.batch)
	if err != nil {
		return err
	}

	log := d.logger.With(logger.Component("uploader"), "batch", opts.batch)
	u, err := upload.New(d.storage, cfg,
		upload.WithLogger(log),
		upload.WithStatusStore(statuses),
		upload.WithProgress(func(p upload.Progress) {
			if p.Sent == p.Total {
				log.Debug("upload sent", logger.UploadID(p.ID), logger.Key(p.Key), logger.Size(p.Total))
			}
		}),
	)
	if err != nil {
		return err
	}
	defer func() { _ = u.Close() }()

	log.Info("batch started", "dirs", dirs)

	// Cancel is only needed for signals; UploadDir already stops waiting on its own.
	done := make(chan struct{})
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		select {
		case <-ctx.Done():
			log.Warn("interrupted, cancelling pending uploads", "pending", u.Pending())
			u.Cancel()
		case <-watchCtx.Done():
		}
		close(done)
	}()

	results := make([][]upload.Result, len(dirs))
	errs := make([]error, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	for i, dir := range dirs {
		g.Go(func() error {
			res, err := u.UploadDir(gctx, dir)
			results[i] = res
			if errors.Is(err, upload.ErrFailedToScanDir) || errors.Is(err, upload.ErrNotDirectory) {
				return err
			}
			errs[i] = err
			return nil
		})
	}
	waitErr := g.Wait()
	stopWatch()
	<-done

	if waitErr != nil {
		return waitErr
	}

	if err := printResults(cmd, results); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := errors.Join(errs...); err != nil {
		log.Error("batch finished with failures", logger.Error(err))
		return fmt.Errorf("some uploads failed: %w", err)
	}
	log.Info("batch finished")
	return nil
}

func printResults(cmd *cobra.Command, results [][]upload.Result) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tKIND\tSIZE\tURL")
	for _, batch := range results {
		for _, r := range batch {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Key, r.Kind, r.Size, r.URL)
		}
	}
	return w.Flush()
}
