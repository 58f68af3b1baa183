package main

import (
	"context"
	"os"

	"github.com/babarot/storax/internal/core/types"
	"github.com/babarot/storax/internal/orchestrator"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

type lsCmd struct {
	Trash   bool   `long:"trash" description:"List the trash index instead of a directory"`
	Recurse bool   `long:"recursive" description:"Traverse breadth-first instead of listing one level"`
	Args    struct {
		Path string `positional-arg-name:"path"`
	} `positional-args:"yes"`
}

func (c *lsCmd) Execute([]string) error {
	o, err := orch()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if c.Trash {
		return c.printTrash(o)
	}

	path := c.Args.Path
	if path == "" {
		path = "."
	}

	var nodes []types.Node
	if c.Recurse {
		nodes, err = o.TraverseDirectory(ctx, path, -1)
	} else {
		nodes, err = o.ListDirectory(ctx, path)
	}
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Type", "Size"})
	for _, n := range nodes {
		kind := "file"
		name := n.Name
		if c.Recurse {
			name = n.Location
		}
		if n.IsDirectory {
			kind = "dir"
		}
		table.Append([]string{name, kind, humanize.Bytes(uint64(n.Size))})
	}
	table.Render()
	return nil
}

func (c *lsCmd) printTrash(o *orchestrator.Orchestrator) error {
	entries, err := o.ListTrash()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Name", "Trashed", "Size", "Original"})
	for _, e := range entries {
		table.Append([]string{
			e.ID,
			e.DisplayName,
			humanize.Time(e.TrashedAtTime()),
			humanize.Bytes(uint64(e.Size)),
			e.OriginalLocation,
		})
	}
	table.Render()
	return nil
}
