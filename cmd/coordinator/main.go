// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

/*
Starts a Shared-State Coordinator (C6) that listens for Proxy sessions on a
gRPC address, tracks shared objects, and shuts down gracefully on SIGTERM.

For usage details, run coordinator with the command line flag -h.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ceetaro/suitkaise/clog"
	"github.com/ceetaro/suitkaise/share/coordinator"
	"github.com/ceetaro/suitkaise/share/proxy"
)

func main() {
	var addr string
	var stopDeadline time.Duration
	var help bool
	var verbose bool

	flag.Usage = usage
	flag.StringVar(&addr, "a", ":8910", "address (host:port) to listen on for Proxy sessions")
	flag.DurationVar(&stopDeadline, "s", 5*time.Second, "deadline to wait for in-flight sessions on shutdown")
	flag.BoolVar(&help, "h", false, "show usage information")
	flag.BoolVar(&verbose, "l", false, "enable conditional logging")
	flag.Parse()

	if help {
		usage()
		os.Exit(0)
	}

	if verbose {
		clog.Enable()
	}

	c := coordinator.New()
	proxy.Install(addr)

	served := make(chan error, 1)
	go func() {
		served <- c.ListenAndServe(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	fmt.Printf("coordinator listening on %s\n", addr)

	select {
	case sig := <-sigCh:
		fmt.Printf("terminating coordinator on signal %v...\n", sig)
		proxy.Uninstall()
		if err := c.Stop(stopDeadline); err != nil {
			fmt.Fprintf(os.Stderr, "coordinator: shutdown deadline exceeded: %v\n", err)
			os.Exit(1)
		}
	case err := <-served:
		proxy.Uninstall()
		if err != nil {
			fmt.Fprintf(os.Stderr, "coordinator: %v\n", err)
			os.Exit(1)
		}
	}
}

func usage() {
	fmt.Printf(`usage: coordinator [-h] [-l] [-a address] [-s deadline]

Starts the Shared-State Coordinator process and installs its dial address
into this process's proxy registry. Worker processes do not share that
registry; each must install the address itself before dialing.

Flags:
`)
	flag.PrintDefaults()
}
