package main

import "context"

type rmCmd struct {
	Permanent bool `long:"permanent" description:"Delete directly, bypassing trash"`
	Args      struct {
		Path string `positional-arg-name:"path" required:"true"`
	} `positional-args:"yes"`
}

func (c *rmCmd) Execute([]string) error {
	o, err := orch()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if c.Permanent {
		ok, err := o.PermanentDelete(ctx, c.Args.Path)
		if err != nil {
			return err
		}
		if !ok {
			warnf("permanent delete failed\n")
			return nil
		}
		okf("permanently deleted\n")
		return nil
	}

	entry, err := o.ToTrash(ctx, c.Args.Path)
	if err != nil {
		return err
	}
	okf("trashed: %s\n", entry.ID)
	return nil
}
