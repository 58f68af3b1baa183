package main

import "context"

type emptyTrashCmd struct{}

func (c *emptyTrashCmd) Execute([]string) error {
	o, err := orch()
	if err != nil {
		return err
	}
	ok, err := o.EmptyTrash(context.Background())
	if err != nil {
		return err
	}
	if !ok {
		warnf("some trash entries could not be permanently deleted\n")
		return nil
	}
	okf("trash emptied\n")
	return nil
}
