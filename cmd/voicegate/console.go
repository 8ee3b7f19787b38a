package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cwbudde/voicegate/monitor"
	"github.com/cwbudde/voicegate/monitor/topology"
)

const consoleHelp = `commands:
  start [mode]        open a session (quality | low-latency)
  stop                close the session
  restart             reopen the session in the selected mode
  retry               ask for microphone access again
  mode <mode>         select the mode for the next restart
  volume <0..2>       set the volume
  mute | unmute       toggle mute
  sensitivity <0.05..0.5>
  status              print the current status
  quit                stop and exit`

var errQuit = errors.New("quit")

// engineCommands is the command surface the console drives.
type engineCommands interface {
	Start(ctx context.Context, mode topology.Mode) error
	Stop() error
	Restart(ctx context.Context) error
	RetryPermission(ctx context.Context) error
	SetMode(mode topology.Mode) error
	SetVolume(v float64) error
	SetMuted(m bool)
	SetSensitivity(s float64) error
	Status() monitor.Status
}

// execute runs one console line against e. It returns errQuit for quit.
func execute(ctx context.Context, e engineCommands, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "start":
		mode := e.Status().PendingMode
		if len(args) > 0 {
			m, err := topology.ParseMode(args[0])
			if err != nil {
				return err
			}
			mode = m
		}
		return e.Start(ctx, mode)
	case "stop":
		return e.Stop()
	case "restart":
		return e.Restart(ctx)
	case "retry":
		return e.RetryPermission(ctx)
	case "mode":
		if len(args) != 1 {
			return errors.New("usage: mode <quality|low-latency>")
		}
		m, err := topology.ParseMode(args[0])
		if err != nil {
			return err
		}
		return e.SetMode(m)
	case "volume", "vol":
		v, err := floatArg(args, "volume")
		if err != nil {
			return err
		}
		return e.SetVolume(v)
	case "mute":
		e.SetMuted(true)
		return nil
	case "unmute":
		e.SetMuted(false)
		return nil
	case "sensitivity", "sens":
		s, err := floatArg(args, "sensitivity")
		if err != nil {
			return err
		}
		return e.SetSensitivity(s)
	case "status":
		fmt.Fprintln(out, renderStatus(e.Status()))
		return nil
	case "help", "?":
		fmt.Fprintln(out, consoleHelp)
		return nil
	case "quit", "exit", "q":
		return errQuit
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

func floatArg(args []string, name string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: %s <value>", name)
	}
	v, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// readCommands feeds lines from r to execute until quit, EOF or ctx ends
// and reports whether quit was requested. Command errors are printed and
// do not stop the loop.
func readCommands(ctx context.Context, e engineCommands, r io.Reader, out io.Writer) bool {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
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
			return false
		case line, ok := <-lines:
			if !ok {
				return false
			}
			err := execute(ctx, e, line, out)
			if errors.Is(err, errQuit) {
				return true
			}
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
			}
		}
	}
}
