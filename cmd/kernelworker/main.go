// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Command kernelworker is the process a Handle spawns to run one Work
// Unit. It never runs standalone: a parent process execs it with four
// extra file descriptors already open (descriptor, tell, listen, result,
// in that fd order starting at 3) and nothing on the command line.
package main

import (
	"flag"
	"os"

	"github.com/ceetaro/suitkaise/autoreconnect"
	"github.com/ceetaro/suitkaise/clog"
	"github.com/ceetaro/suitkaise/handle"
	"github.com/ceetaro/suitkaise/kernelproc"
	"github.com/ceetaro/suitkaise/procpipe"
	"github.com/ceetaro/suitkaise/registry"
	"github.com/ceetaro/suitkaise/unit"
)

const (
	fdDescriptor = 3
	fdTell       = 4
	fdListen     = 5
	fdResult     = 6
)

func main() {
	verbose := flag.Bool("l", false, "enable conditional logging")
	flag.Parse()
	if *verbose {
		clog.Enable()
	}

	logger := clog.New("kernelworker ")

	descPoint := procpipe.AdoptPoint(fdDescriptor, procpipe.RecvOnly)
	specAny, err := descPoint.Recv()
	if err != nil {
		logger.Errorf("reading bootstrap spec: %v", err)
		os.Exit(1)
	}
	descPoint.Close()

	spec, ok := specAny.(handle.Spec)
	if !ok {
		logger.Errorf("bootstrap message had unexpected type %T", specAny)
		os.Exit(1)
	}

	u, err := registry.Build(spec.Name, spec.Input)
	if err != nil {
		logger.Errorf("building work unit %q: %v", spec.Name, err)
		os.Exit(1)
	}
	// Resolving deferred-reconnect placeholders is folded into prerun
	// itself rather than done eagerly here, so a failure to reconnect
	// goes through the normal lifecycle: it consumes a life and, once
	// the budget is exhausted, is reported as a PreRunError in the
	// result envelope like any other prerun failure, instead of exiting
	// the process before a result message is ever sent.
	priorPreRun := u.PreRunOrNoop()
	u.PreRun = func(ctx *unit.Context) error {
		if err := autoreconnect.Reconnect(u); err != nil {
			return err
		}
		return priorPreRun(ctx)
	}

	chans := kernelproc.Channels{
		Tell:   procpipe.AdoptPoint(fdTell, procpipe.RecvOnly),
		Listen: procpipe.AdoptPoint(fdListen, procpipe.SendOnly),
		Result: procpipe.AdoptPoint(fdResult, procpipe.SendOnly),
	}
	kernelproc.Run(u, u.Config, chans)
}
