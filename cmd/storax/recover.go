package main

import (
	"context"
	"fmt"
)

// recoverCmd drains journal/WAL recovery without taking any further
// action beyond what recovery itself performs (§4.15).
type recoverCmd struct{}

func (c *recoverCmd) Execute([]string) error {
	o, err := orch()
	if err != nil {
		return err
	}
	handles, err := o.RecoverPendingOperations(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("resumed %d copy job(s)\n", len(handles))
	for _, h := range handles {
		if err := drainProgress(h); err != nil {
			warnf("job %s: %v\n", h.JobID, err)
		}
	}
	return nil
}
