package main

import (
	"context"
	"path/filepath"
)

type copyCmd struct {
	OnConflict PolicyFlag `long:"on-conflict" description:"fail|replace|rename|rename-manual" default:"fail"`
	ManualName string     `long:"manual-name" description:"Name to use under rename-manual"`
	Progress   bool       `long:"progress" description:"Force the transactional path so progress is streamed even for small objects"`
	Args       struct {
		Source string `positional-arg-name:"source" required:"true"`
		Dest   string `positional-arg-name:"dest" required:"true"`
	} `positional-args:"yes"`
}

func (c *copyCmd) Execute([]string) error {
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

	handle, err := o.Copy(context.Background(), c.Args.Source, destParent, newName, policy, c.ManualName, c.Progress)
	if err != nil {
		return err
	}
	return drainProgress(handle)
}
