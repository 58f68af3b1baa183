package main

import (
	"context"
)

type renameCmd struct {
	OnConflict PolicyFlag `long:"on-conflict" description:"fail|replace|rename|rename-manual" default:"fail"`
	ManualName string     `long:"manual-name" description:"Name to use under rename-manual"`
	Args       struct {
		Source  string `positional-arg-name:"source" required:"true"`
		NewName string `positional-arg-name:"new-name" required:"true"`
	} `positional-args:"yes"`
}

func (c *renameCmd) Execute([]string) error {
	o, err := orch()
	if err != nil {
		return err
	}
	policy, err := c.OnConflict.resolve()
	if err != nil {
		return err
	}

	ok, err := o.Rename(context.Background(), c.Args.Source, c.Args.NewName, policy, c.ManualName)
	if err != nil {
		return err
	}
	if !ok {
		warnf("rename declined\n")
	} else {
		okf("renamed\n")
	}
	return nil
}
