package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/babarot/storax/internal/core/types"
)

type createCmd struct {
	Directory bool       `short:"d" long:"directory" description:"Create a directory instead of a file"`
	OnConflict PolicyFlag `long:"on-conflict" description:"fail|replace|rename|rename-manual" default:"fail"`
	ManualName string     `long:"manual-name" description:"Name to use under rename-manual"`
	Args       struct {
		Path string `positional-arg-name:"path" required:"true"`
	} `positional-args:"yes"`
}

func (c *createCmd) Execute([]string) error {
	o, err := orch()
	if err != nil {
		return err
	}
	policy, err := c.OnConflict.resolve()
	if err != nil {
		return err
	}

	nodeType := types.NodeFile
	if c.Directory {
		nodeType = types.NodeDirectory
	}

	parent := filepath.Dir(c.Args.Path)
	name := filepath.Base(c.Args.Path)

	res, err := o.Create(context.Background(), parent, name, nodeType, policy, c.ManualName)
	if err != nil {
		return err
	}
	fmt.Println(res.Location)
	return nil
}
