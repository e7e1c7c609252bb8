package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

type handler func(args []string) error

type command struct {
	usage string
	run   handler
}

// console reads line commands from the terminal and dispatches them.
type console struct {
	in       io.Reader
	scr      *screen
	commands map[string]command
}

func newConsole(in io.Reader, scr *screen) *console {
	return &console{in: in, scr: scr, commands: make(map[string]command)}
}

func (c *console) handle(name, usage string, fn handler) {
	c.commands[name] = command{usage: usage, run: fn}
}

// run reads commands until quit, end of input, or ctx is done.
func (c *console) run(ctx context.Context) error {
	c.scr.printf("Gõ help để xem lệnh.\n")
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok || c.exec(line) {
				return nil
			}
		}
	}
}

// exec runs one line and reports whether the console should stop.
func (c *console) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	name := strings.ToLower(fields[0])
	switch name {
	case "quit", "exit":
		return true
	case "help":
		c.help()
		return false
	}
	cmd, ok := c.commands[name]
	if !ok {
		c.scr.printf("Không có lệnh %q, gõ help.\n", name)
		return false
	}
	if err := cmd.run(fields[1:]); err != nil {
		c.scr.printf("%s: %v\n", name, err)
	}
	return false
}

func (c *console) help() {
	names := make([]string, 0, len(c.commands))
	for n := range c.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "  %-8s %s\n", n, c.commands[n].usage)
	}
	fmt.Fprintf(&b, "  %-8s %s\n", "quit", "leave the room")
	c.scr.printf("%s", b.String())
}

// positions parses n one-based numbers into zero-based indexes.
func positions(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(args))
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("%q is not a position", a)
		}
		out[i] = v - 1
	}
	return out, nil
}
