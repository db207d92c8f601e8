// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

/*
kerneldemo exercises the kernel's three process-facing subsystems from one
driver program: it spawns a counter Work Unit behind a Worker Handle (C3/C4),
dispatches a batch of doubling closures through a Pool (C5), and starts a
Shared-State Coordinator (C6) in-process to demonstrate a counter tracked
object incremented from several concurrent Proxies.

For usage details, run kerneldemo with the command line flag -h.
*/
package main

import (
	"context"
	"encoding/gob"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ceetaro/suitkaise/clog"
	"github.com/ceetaro/suitkaise/handle"
	"github.com/ceetaro/suitkaise/pool"
	"github.com/ceetaro/suitkaise/registry/counter"
	"github.com/ceetaro/suitkaise/share/coordinator"
	"github.com/ceetaro/suitkaise/share/proxy"
)

// sharedCounter is the tracked object for runShareDemo: a minimal user
// type with one mutating method, exercising the Coordinator's CALL
// dispatch instead of raw member SET/GET.
type sharedCounter struct{ Total int }

func (c *sharedCounter) Increment(by int) (any, error) {
	c.Total += by
	return c.Total, nil
}

func init() {
	gob.Register(sharedCounter{})
}

func main() {
	var help bool
	var verbose bool
	var workerBinary string

	flag.Usage = usage
	flag.BoolVar(&help, "h", false, "show usage information")
	flag.BoolVar(&verbose, "l", false, "enable conditional logging")
	flag.StringVar(&workerBinary, "w", "", "path to the kernelworker binary (defaults alongside this executable)")
	flag.Parse()

	if help {
		usage()
		os.Exit(0)
	}
	if verbose {
		clog.Enable()
	}
	if workerBinary != "" {
		handle.WorkerBinaryPath = workerBinary
	}

	fmt.Println("== Worker Handle: counting to 5 ==")
	if err := runHandleDemo(); err != nil {
		fmt.Fprintf(os.Stderr, "handle demo: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("== Batch Pool: doubling 1..5 ==")
	if err := runPoolDemo(); err != nil {
		fmt.Fprintf(os.Stderr, "pool demo: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("== Shared-State Coordinator: four workers incrementing one counter ==")
	if err := runShareDemo(); err != nil {
		fmt.Fprintf(os.Stderr, "share demo: %v\n", err)
		os.Exit(1)
	}
}

func runHandleDemo() error {
	h := handle.New(handle.Spec{Name: counter.Name, Input: counter.Input{Start: 0, Runs: 5}})
	if err := h.Start(); err != nil {
		return err
	}
	for {
		v, ok := h.Listen(time.Second)
		if !ok {
			break
		}
		fmt.Printf("counter told us: %v\n", v)
	}
	ok, err := h.Wait(5 * time.Second)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("worker did not finish in time")
	}
	result, err := h.Result()
	if err != nil {
		return err
	}
	fmt.Printf("final count: %v\n", result)
	return nil
}

func runPoolDemo() error {
	p := pool.New(3)
	results, err := p.Map(any(func(n int) (any, error) { return n * 2, nil }), []any{1, 2, 3, 4, 5})
	if err != nil {
		return err
	}
	fmt.Printf("doubled: %v\n", results)
	return nil
}

func runShareDemo() error {
	c := coordinator.New()
	lis := make(chan error, 1)
	go func() { lis <- c.ListenAndServe(":0") }()
	time.Sleep(50 * time.Millisecond) // let the listener bind before dialing

	target := c.Addr().String()
	proxy.Install(target)
	defer proxy.Uninstall()

	ctx := context.Background()
	setup, err := proxy.DialRegistered(ctx, "demo-counter")
	if err != nil {
		return err
	}
	defer setup.Close()
	if err := setup.Set("", sharedCounter{}); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := proxy.DialRegistered(ctx, "demo-counter")
			if err != nil {
				return
			}
			defer p.Close()
			for i := 0; i < 10; i++ {
				p.Call("Increment", 1)
			}
		}()
	}
	wg.Wait()

	final, err := setup.Get("Total")
	if err != nil {
		return err
	}
	fmt.Printf("tracked total: %v\n", final)
	return c.Stop(time.Second)
}

func usage() {
	fmt.Printf(`usage: kerneldemo [-h] [-l] [-w workerBinary]

Exercises the Worker Handle, Batch Pool, and Shared-State Coordinator from
one driver program.

Flags:
`)
	flag.PrintDefaults()
}
