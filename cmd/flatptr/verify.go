package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rawbytedev/flatptr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errVerifyFailed = errors.New("verification failed")

func (a *app) verifyCmd() *cobra.Command {
	var jobs int
	cmd := &cobra.Command{
		Use:   "verify FILE...",
		Short: "Check that every pointer in each message resolves",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("jobs") {
				a.cfg.Jobs = jobs
			}
			return a.verify(cmd, args)
		},
	}
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "files verified concurrently")
	return cmd
}

func (a *app) verify(cmd *cobra.Command, paths []string) error {
	results := make([]error, len(paths))
	g, _ := errgroup.WithContext(context.Background())
	if a.cfg.Jobs > 0 {
		g.SetLimit(a.cfg.Jobs)
	}
	for i, path := range paths {
		g.Go(func() error {
			msg, err := a.readMessage(cmd, path)
			if err == nil {
				err = flatptr.Verify(msg)
			}
			results[i] = err
			a.log.Debug("verified", zap.String("path", path), zap.Error(err))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i, err := range results {
		if err == nil {
			fmt.Fprintf(out, "%s: ok\n", paths[i])
			continue
		}
		failed++
		var merr *multierror.Error
		if errors.As(err, &merr) {
			fmt.Fprintf(out, "%s: %d problems\n", paths[i], len(merr.Errors))
			for _, e := range merr.Errors {
				fmt.Fprintf(out, "\t%v\n", e)
			}
			continue
		}
		fmt.Fprintf(out, "%s: %v\n", paths[i], err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files: %w", failed, len(paths), errVerifyFailed)
	}
	return nil
}
