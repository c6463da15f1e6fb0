package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rawbytedev/flatptr"
	"github.com/spf13/cobra"
)

func (a *app) inspectCmd() *cobra.Command {
	var maxNodes int
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the segments and object tree of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.readMessage(cmd, args[0])
			if err != nil {
				return err
			}
			return a.inspect(cmd, msg, maxNodes)
		},
	}
	cmd.Flags().IntVar(&maxNodes, "max-nodes", 1000, "stop listing objects after this many")
	return cmd
}

func (a *app) inspect(cmd *cobra.Command, msg *flatptr.Message, maxNodes int) error {
	out := cmd.OutOrStdout()

	segs := table.NewWriter()
	segs.SetOutputMirror(out)
	segs.SetTitle("Segments")
	segs.AppendHeader(table.Row{"ID", "Words", "Size"})
	var total uint64
	for i := 0; i < msg.NumSegments(); i++ {
		seg, err := msg.Segment(flatptr.SegmentID(i))
		if err != nil {
			return err
		}
		n := uint64(len(seg.Data()))
		total += n
		segs.AppendRow(table.Row{i, n / 8, humanize.IBytes(n)})
	}
	segs.AppendFooter(table.Row{"", "Total", humanize.IBytes(total)})
	segs.Render()

	objs := table.NewWriter()
	objs.SetOutputMirror(out)
	objs.SetTitle("Objects")
	objs.AppendHeader(table.Row{"Path", "Kind", "Segment", "Offset", "Layout"})
	count := 0
	walkErr := flatptr.Walk(msg, func(n flatptr.Node) error {
		if count == maxNodes {
			return errTruncated
		}
		count++
		objs.AppendRow(table.Row{n.Path, n.Kind, n.Segment, n.Offset, layout(n)})
		return nil
	})
	objs.Render()
	switch {
	case walkErr == nil:
	case errors.Is(walkErr, errTruncated):
		fmt.Fprintf(out, "listing stopped after %d objects\n", maxNodes)
	default:
		return walkErr
	}
	return nil
}

var errTruncated = errors.New("object listing truncated")

func layout(n flatptr.Node) string {
	switch n.Kind {
	case flatptr.StructNode:
		return fmt.Sprintf("data %s, %d pointers",
			humanize.IBytes(uint64(n.Size.DataSize)), n.Size.PointerCount)
	case flatptr.ListNode:
		if n.Elem == flatptr.CompositeElement {
			return fmt.Sprintf("%d x %v", n.Len, n.Size)
		}
		return fmt.Sprintf("%d x %v", n.Len, n.Elem)
	case flatptr.CapabilityNode:
		return fmt.Sprintf("capability %d", n.Capability)
	}
	return ""
}
