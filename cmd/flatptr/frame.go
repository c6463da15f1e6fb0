package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rawbytedev/flatptr"
	"github.com/rawbytedev/flatptr/pkg/frame"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (a *app) frameOptions() (frame.Options, error) {
	c, err := frame.CompressorByName(a.cfg.Compression)
	if err != nil {
		return frame.Options{}, err
	}
	return frame.Options{
		Compression:  c,
		MaxFrameSize: a.cfg.MaxFrameSize,
		SkipCorrupt:  a.cfg.SkipCorrupt,
		Logger:       a.log,
		Read:         a.readOptions(),
	}, nil
}

func (a *app) frameCmd() *cobra.Command {
	var output, compress string
	cmd := &cobra.Command{
		Use:   "frame FILE...",
		Short: "Wrap messages in checksummed, optionally compressed frames",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("compress") {
				a.cfg.Compression = compress
			}
			opts, err := a.frameOptions()
			if err != nil {
				return err
			}
			w, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			fw := frame.NewWriter(w, opts)
			for _, path := range args {
				msg, err := a.readMessage(cmd, path)
				if err != nil {
					w.Close()
					return err
				}
				if err := fw.WriteMessage(msg); err != nil {
					w.Close()
					return fmt.Errorf("%s: %w", path, err)
				}
			}
			a.log.Debug("framed", zap.Int("messages", len(args)), zap.String("compression", a.cfg.Compression))
			return w.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&compress, "compress", "none", "compression: none, zstd, lz4 or xz")
	return cmd
}

func (a *app) unframeCmd() *cobra.Command {
	var output string
	var skipCorrupt bool
	cmd := &cobra.Command{
		Use:   "unframe FILE",
		Short: "Extract the messages of a frame stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("skip-corrupt") {
				a.cfg.SkipCorrupt = skipCorrupt
			}
			opts, err := a.frameOptions()
			if err != nil {
				return err
			}
			in, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			w, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			n, err := a.unframe(w, in, opts)
			a.log.Debug("unframed", zap.Int("messages", n), zap.Error(err))
			if err != nil {
				w.Close()
				return err
			}
			return w.Close()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&skipCorrupt, "skip-corrupt", false, "drop corrupt frames instead of failing")
	return cmd
}

func (a *app) unframe(w io.Writer, in []byte, opts frame.Options) (int, error) {
	r := frame.NewReader(bytes.NewReader(in), opts)
	enc := flatptr.NewEncoder(w)
	if a.cfg.Packed {
		enc = flatptr.NewPackedEncoder(w)
	}
	for n := 0; ; n++ {
		msg, err := r.ReadMessage()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := enc.Encode(msg); err != nil {
			return n, err
		}
	}
}
