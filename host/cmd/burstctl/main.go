// Command burstctl loads, plays and inspects burst sequences on a burst
// generator board over its USB serial link.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"burstgen/core"
	"burstgen/host/mcu"
	"burstgen/host/sequence"
	"burstgen/host/serial"
)

var (
	device  = flag.String("device", "auto", "Serial device path, or auto")
	baud    = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	backend = flag.String("backend", string(serial.BackendTarm), "Serial backend: tarm or bugst")
	timeout = flag.Duration("timeout", time.Second, "Per-command ACK and response timeout")
	verbose = flag.Bool("verbose", false, "Enable debug logging")
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\n", os.Args[0])
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  ports                 List serial ports")
	fmt.Fprintln(out, "  play <bursts>         Play bursts, e.g. \"1x1000 2x2000 1x500\"")
	fmt.Fprintln(out, "  midi [flags] <file>   Play a monophonic MIDI file")
	fmt.Fprintln(out, "  query                 Print the playback state")
	fmt.Fprintln(out, "  stop                  Stop playback")
	fmt.Fprintln(out, "  events                Dump the firmware timing ring")
	fmt.Fprintln(out, "  console               Interactive console")
	fmt.Fprintln(out, "\nFlags:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(log, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Error("burstctl failed", "cmd", flag.Arg(0), "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, cmd string, args []string) error {
	if cmd == "ports" {
		return listPorts()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch cmd {
	case "play", "midi", "query", "stop", "events", "console":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	var seq []core.Burst
	switch cmd {
	case "play":
		var err error
		if seq, err = sequence.Parse(strings.Join(args, " ")); err != nil {
			return err
		}
	case "midi":
		var err error
		if seq, err = loadMIDI(args); err != nil {
			return err
		}
	}

	client, err := connect(log)
	if err != nil {
		return err
	}
	defer client.Close()

	switch cmd {
	case "play", "midi":
		return play(ctx, log, client, seq)
	case "query":
		st, err := client.Query()
		if err != nil {
			return err
		}
		fmt.Println(st)
	case "stop":
		return client.Stop()
	case "events":
		return printEvents(os.Stdout, client)
	case "console":
		return runConsole(ctx, client, os.Stdin, os.Stdout)
	}
	return nil
}

func connect(log *slog.Logger) (*mcu.Client, error) {
	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	cfg.Backend = serial.Backend(*backend)

	log.Debug("connecting", "device", cfg.Device, "backend", cfg.Backend)
	client, err := mcu.Connect(cfg, log)
	if err != nil {
		return nil, err
	}
	client.SetTimeout(*timeout)
	return client, nil
}

func listPorts() error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func loadMIDI(args []string) ([]core.Burst, error) {
	fs := flag.NewFlagSet("midi", flag.ContinueOnError)
	opts := sequence.DefaultMIDIOptions()
	fs.IntVar(&opts.Track, "track", opts.Track, "Track to import (-1 for all)")
	fs.IntVar(&opts.Channel, "channel", opts.Channel, "Channel to import (-1 for all)")
	fs.IntVar(&opts.Transpose, "transpose", 0, "Transpose by semitones")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, errors.New("midi: expected one file")
	}
	return sequence.FromMIDIFile(fs.Arg(0), opts)
}

func play(ctx context.Context, log *slog.Logger, client *mcu.Client, seq []core.Burst) error {
	log.Info("playing", "bursts", len(seq), "seconds", sequence.Duration(seq))
	return client.Play(ctx, seq, mcu.PlayOptions{
		Progress: func(page, pages int, s []core.Burst) {
			log.Info("page", "n", page+1, "of", pages, "bursts", sequence.Format(s))
		},
	})
}
