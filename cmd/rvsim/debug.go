package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/core"
)

func newDebugCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "debug <program.elf>",
		Short: "Step through a program interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The console owns stdin; the program reads see end of file.
			c, err := bootCore(flags, args[0], strings.NewReader(""),
				cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			con := &console{core: c, out: cmd.OutOrStdout()}
			return con.loop(cmd.InOrStdin())
		},
	}
}

// console is the interactive debugger. Each line is one command; an empty
// line repeats the previous one.
type console struct {
	core *core.Core
	out  io.Writer
	last string
}

const consoleHelp = `commands:
  s, step [n]      advance n cycles (default 1)
  c, continue      run until the program halts
  p, print         show latches, stations, and the reorder buffer
  r, regs          show the register files
  m, mem addr [n]  show n words of memory from addr (default 4)
  stats            show performance statistics
  reset            reload the program
  undo             step back one cycle
  h, help          show this help
  q, quit          leave the debugger`

func (c *console) loop(in io.Reader) error {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return c.interactive()
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if c.exec(scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

func (c *console) interactive() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "(rvsim) ",
		HistoryFile: filepath.Join(os.TempDir(), "rvsim_history"),
	})
	if err != nil {
		return fmt.Errorf("failed to start readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if c.exec(line) {
			return nil
		}
	}
}

// exec runs one command line and reports whether the console should exit.
func (c *console) exec(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		line = c.last
	}
	if line == "" {
		return false
	}
	c.last = line

	fields := strings.Fields(line)
	args := fields[1:]

	switch fields[0] {
	case "s", "step":
		n, err := count(args, 0, 1)
		if err != nil {
			c.printf("%v\n", err)
			return false
		}
		c.core.RunCycles(n)
		c.status()
	case "c", "continue":
		_, err := c.core.Run(c.core.Config().MaxCycles)
		if err != nil {
			c.printf("%v\n", err)
		}
		c.status()
	case "p", "print":
		c.printf("%s", c.core.Report())
	case "r", "regs":
		c.regs()
	case "m", "mem":
		c.mem(args)
	case "stats":
		printStats(c.out, c.core.Stats())
	case "reset":
		if err := c.core.Reset(); err != nil {
			c.printf("%v\n", err)
			return false
		}
		c.status()
	case "undo":
		if err := c.core.Undo(); err != nil {
			c.printf("%v\n", err)
		}
	case "h", "help":
		c.printf("%s\n", consoleHelp)
	case "q", "quit", "exit":
		return true
	default:
		c.printf("unknown command %q, type help for a list\n", fields[0])
	}

	return false
}

func (c *console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *console) status() {
	s := c.core.Stats()
	c.printf("cycle %d, pc 0x%08x, retired %d", s.Cycles, c.core.PC(), s.Instructions)
	if c.core.Halted() {
		c.printf(", halted with exit code %d", c.core.ExitCode())
		if err := c.core.Err(); err != nil {
			c.printf(" (%v)", err)
		}
	}
	c.printf("\n")
}

func (c *console) regs() {
	rf := c.core.RegFile()
	for i := 0; i < emu.NumRegs; i++ {
		c.printf("x%-2d %08x", i, rf.X[i])
		if i%4 == 3 {
			c.printf("\n")
		} else {
			c.printf("  ")
		}
	}
	for i := 0; i < emu.NumRegs; i++ {
		c.printf("f%-2d %08x", i, rf.F[i])
		if i%4 == 3 {
			c.printf("\n")
		} else {
			c.printf("  ")
		}
	}
	c.printf("pc  %08x  fflags %02x\n", rf.PC, rf.FFlags)
}

func (c *console) mem(args []string) {
	if len(args) == 0 {
		c.printf("usage: mem addr [n]\n")
		return
	}

	addr, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		c.printf("invalid address %q\n", args[0])
		return
	}
	n, err := count(args, 1, 4)
	if err != nil {
		c.printf("%v\n", err)
		return
	}

	mem := c.core.Memory()
	for i := uint64(0); i < n; i++ {
		a := uint32(addr) + uint32(i)*4
		c.printf("%08x: %08x\n", a, mem.Read32(a))
	}
}

// count parses args[i] as a positive count, or returns def if absent.
func count(args []string, i int, def uint64) (uint64, error) {
	if len(args) <= i {
		return def, nil
	}

	n, err := strconv.ParseUint(args[i], 0, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid count %q", args[i])
	}
	return n, nil
}
