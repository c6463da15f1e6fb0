package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"github.com/rawbytedev/flatptr"
	"github.com/spf13/cobra"
)

func (a *app) packCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pack FILE",
		Short: "Pack a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			if _, err := flatptr.Unmarshal(data); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if len(data)%8 != 0 {
				return fmt.Errorf("%s: %d bytes is not a whole number of words", args[0], len(data))
			}
			return writeOutput(cmd, output, flatptr.Pack(nil, data))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) unpackCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "unpack FILE",
		Short: "Unpack a packed message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			raw, err := flatptr.UnpackLimit(nil, data, a.cfg.MaxMessageSize)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return writeOutput(cmd, output, raw)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (a *app) canonCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "canon FILE",
		Short: "Print the digest of a message's canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.readMessage(cmd, args[0])
			if err != nil {
				return err
			}
			root, err := msg.Root()
			if err != nil {
				return err
			}
			if root.IsValid() && !root.Struct().IsValid() {
				return fmt.Errorf("%s: root is %v, want struct: %w", args[0], root, flatptr.ErrWrongPointerType)
			}
			canon, err := flatptr.Canonicalize(root.Struct())
			if err != nil {
				return err
			}
			d := digest.FromBytes(canon)
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s (%s canonical)\n", d, args[0], humanize.IBytes(uint64(len(canon))))
			if output == "" {
				return nil
			}
			return writeOutput(cmd, output, canon)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the canonical segment to this file")
	return cmd
}
