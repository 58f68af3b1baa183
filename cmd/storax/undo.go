package main

import "context"

type undoCmd struct{}

func (c *undoCmd) Execute([]string) error {
	o, err := orch()
	if err != nil {
		return err
	}
	ok, err := o.Undo(context.Background())
	if err != nil {
		return err
	}
	if !ok {
		warnf("nothing to undo\n")
		return nil
	}
	okf("undone\n")
	return nil
}

type redoCmd struct{}

func (c *redoCmd) Execute([]string) error {
	o, err := orch()
	if err != nil {
		return err
	}
	ok, err := o.Redo(context.Background())
	if err != nil {
		return err
	}
	if !ok {
		warnf("nothing to redo\n")
		return nil
	}
	okf("redone\n")
	return nil
}
