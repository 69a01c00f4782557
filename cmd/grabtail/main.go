// Command grabtail is the device side of the bridge for bench testing: it
// reads grab event lines from a serial port (or stdin) and prints them
// decoded.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/grabsend/internal/grab"
	"github.com/banshee-data/grabsend/internal/serialbridge"
)

var (
	port  = flag.String("port", serialbridge.DefaultPortPath(), "Serial port to read from; \"-\" reads stdin")
	baud  = flag.Int("baud", serialbridge.DefaultBaudRate, "Serial baud rate")
	quiet = flag.Bool("quiet", false, "Only report malformed lines")
)

func main() {
	flag.Parse()

	var r io.Reader = os.Stdin
	if *port != "-" {
		p, err := serialbridge.RealFactory{}.Open(*port, serialbridge.PortOptions{BaudRate: *baud})
		if err != nil {
			log.Fatalf("failed to open serial port %s: %v", *port, err)
		}
		defer p.Close()
		r = p
		log.Printf("reading %s@%d", *port, *baud)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var counts tally
	err := serialbridge.Tail(ctx, r, counts.handler(*quiet), func(line string, err error) {
		log.Printf("error handling line %q: %v", line, err)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("tail stopped: %v", err)
	}
	log.Printf("%d events, %d malformed", counts.events, counts.malformed)
}

// tally counts decoded and rejected lines.
type tally struct {
	events    int
	malformed int
}

func (t *tally) handler(quiet bool) func(string) error {
	return func(line string) error {
		ev, err := grab.ParseEvent(line)
		if err != nil {
			t.malformed++
			return err
		}
		t.events++
		if !quiet {
			log.Printf("%s", ev)
		}
		return nil
	}
}
