package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/shlex"

	"burstgen/core"
	"burstgen/host/mcu"
	"burstgen/host/sequence"
)

// burstClient is the part of *mcu.Client the console drives.
type burstClient interface {
	Load(seq []core.Burst) (mcu.State, error)
	Start() (mcu.State, error)
	StartAfter(d time.Duration) (mcu.State, error)
	Stop() error
	Query() (mcu.State, error)
	Clock() (uint32, error)
	EmergencyStop() error
	Events() ([]core.TimingEvent, mcu.State, error)
	Play(ctx context.Context, seq []core.Burst, opts mcu.PlayOptions) error
	DictionaryRaw() []byte
}

var errQuit = errors.New("quit")

func runConsole(ctx context.Context, client burstClient, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		err := consoleLine(ctx, client, scanner.Text(), out)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

// consoleLine runs one console command. Arguments are split shell-style,
// so a quoted sequence counts as one argument.
func consoleLine(ctx context.Context, client burstClient, line string, out io.Writer) error {
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		printHelp(out)

	case "load":
		seq, err := sequence.Parse(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		st, err := client.Load(seq)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, st)

	case "start":
		var st mcu.State
		if len(args) > 1 {
			ms, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("start delay: %w", err)
			}
			st, err = client.StartAfter(time.Duration(ms) * time.Millisecond)
			if err != nil {
				return err
			}
		} else {
			st, err = client.Start()
			if err != nil {
				return err
			}
		}
		fmt.Fprintln(out, st)

	case "stop":
		return client.Stop()

	case "query", "state":
		st, err := client.Query()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, st)

	case "clock":
		clock, err := client.Clock()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "clock=%d\n", clock)

	case "play":
		seq, err := sequence.Parse(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		return client.Play(ctx, seq, mcu.PlayOptions{})

	case "events":
		return printEvents(out, client)

	case "estop":
		return client.EmergencyStop()

	case "dict":
		fmt.Fprintf(out, "%s\n", client.DictionaryRaw())

	default:
		return fmt.Errorf("unknown command %q (type 'help' for available commands)", args[0])
	}
	return nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  load <bursts>   - Load bursts, e.g. load 1x1000 2x2000")
	fmt.Fprintln(out, "  start [ms]      - Start now, or after ms on the MCU clock")
	fmt.Fprintln(out, "  stop            - Stop playback")
	fmt.Fprintln(out, "  query           - Print the playback state")
	fmt.Fprintln(out, "  clock           - Print the MCU clock")
	fmt.Fprintln(out, "  play <bursts>   - Load, start and wait, paging long sequences")
	fmt.Fprintln(out, "  events          - Dump the firmware timing ring")
	fmt.Fprintln(out, "  estop           - Emergency stop")
	fmt.Fprintln(out, "  dict            - Print the raw dictionary")
	fmt.Fprintln(out, "  quit/exit/q     - Exit the console")
	fmt.Fprintln(out)
}

var eventNames = map[uint8]string{
	core.EvtBurstLoad:    "load",
	core.EvtBurstStart:   "start",
	core.EvtBurstAdvance: "advance",
	core.EvtBurstDone:    "done",
	core.EvtBurstStop:    "stop",
	core.EvtSpuriousIRQ:  "spurious",
	core.EvtLateIRQ:      "late",
}

func printEvents(out io.Writer, client burstClient) error {
	events, st, err := client.Events()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLOCK\tEVENT\tV1\tV2")
	for _, e := range events {
		name, ok := eventNames[e.EventType]
		if !ok {
			name = strconv.Itoa(int(e.EventType))
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", e.Clock, name, e.Value1, e.Value2)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out, st)
	return nil
}
