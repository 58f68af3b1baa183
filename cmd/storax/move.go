package main

import (
	"context"
	"path/filepath"
)

type moveCmd struct {
	OnConflict PolicyFlag `long:"on-conflict" description:"fail|replace|rename|rename-manual" default:"fail"`
	ManualName string     `long:"manual-name" description:"Name to use under rename-manual"`
	Args       struct {
		Source string `positional-arg-name:"source" required:"true"`
		Dest   string `positional-arg-name:"dest" required:"true"`
	} `positional-args:"yes"`
}

func (c *moveCmd) Execute([]string) error {
	o, err := orch()
	if err != nil {
		return err
	}
	policy, err := c.OnConflict.resolve()
	if err != nil {
		return err
	}

	destParent := filepath.Dir(c.Args.Dest)
	newName := filepath.Base(c.Args.Dest)

	ok, err := o.Move(context.Background(), c.Args.Source, destParent, newName, policy, c.ManualName)
	if err != nil {
		return err
	}
	if !ok {
		warnf("move declined\n")
	} else {
		okf("moved\n")
	}
	return nil
}
