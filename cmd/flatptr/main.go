// Command flatptr inspects, verifies and converts flat pointer messages.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rawbytedev/flatptr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the state shared by every subcommand.
type app struct {
	configPath string
	verbose    bool
	packed     bool

	cfg Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	root := &cobra.Command{
		Use:   "flatptr",
		Short: "Inspect, verify and convert flat pointer messages",
		Long: `flatptr works on messages in the segment-table framing, optionally
packed. Use "-" as a file name to read standard input.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			if a.verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			log, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.log = log

			cfg, err := loadConfig(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("packed") {
				cfg.Packed = a.packed
			}
			a.cfg = cfg
			a.log.Debug("configuration loaded", zap.String("path", a.configPath), zap.Any("config", cfg))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&a.packed, "packed", false, "messages are packed")

	root.AddCommand(
		a.inspectCmd(),
		a.verifyCmd(),
		a.packCmd(),
		a.unpackCmd(),
		a.canonCmd(),
		a.frameCmd(),
		a.unframeCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func (a *app) readOptions() flatptr.ReadOptions {
	return flatptr.ReadOptions{
		TraverseLimit:  a.cfg.TraverseLimit,
		DepthLimit:     a.cfg.DepthLimit,
		MaxMessageSize: a.cfg.MaxMessageSize,
	}
}

// readMessage decodes the message stored in path with the configured limits.
func (a *app) readMessage(cmd *cobra.Command, path string) (*flatptr.Message, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	var msg *flatptr.Message
	if a.cfg.Packed {
		msg, err = flatptr.UnmarshalPackedWith(data, a.readOptions())
	} else {
		msg, err = flatptr.UnmarshalWith(data, a.readOptions())
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.log.Debug("message read",
		zap.String("path", path),
		zap.Int("bytes", len(data)),
		zap.Int("segments", msg.NumSegments()))
	return msg, nil
}

// openOutput returns the file named by path, or standard output for "" and "-".
func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	w, err := openOutput(cmd, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
