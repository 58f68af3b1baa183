package main

import (
	"context"
	"fmt"
)

type restoreCmd struct {
	Args struct {
		ID string `positional-arg-name:"trash-id" required:"true"`
	} `positional-args:"yes"`
}

func (c *restoreCmd) Execute([]string) error {
	o, err := orch()
	if err != nil {
		return err
	}
	ctx := context.Background()

	entries, err := o.ListTrash()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ID == c.Args.ID {
			if err := o.RestoreFromTrash(ctx, e); err != nil {
				return err
			}
			okf("restored to %s\n", e.OriginalLocation)
			return nil
		}
	}
	return fmt.Errorf("no trash entry with id %q", c.Args.ID)
}
