// Command-line entry point for the OGN beacon parser.
//
// Input is the raw APRS text of the Open Glider Network: one beacon per line,
// as received from an APRS-IS server or replayed from a log file. Lines
// beginning with '#' are server comments and are skipped.
//
// Commands:
//
//	decode    decode lines from a file or stdin and write JSON lines
//	ingest    decode a live feed (APRS-IS, NATS or a file) into the configured stores
//	ddb-sync  mirror the device database into PostgreSQL
//	lookup    look up device addresses in the device database
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "ogn_parser - commands:")
	fmt.Fprintln(w, "  decode    - decode OGN beacon lines to JSON")
	fmt.Fprintln(w, "  ingest    - run the ingest pipeline against a live feed")
	fmt.Fprintln(w, "  ddb-sync  - copy the device database into PostgreSQL")
	fmt.Fprintln(w, "  lookup    - look up device addresses")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ogn_parser decode [--input beacons.txt[.gz]] [--ref 2015-04-02T12:00:00Z] [--trace] [--stats] [--pretty]")
	fmt.Fprintln(w, "  ogn_parser ingest [--source aprs|nats|file] [--filter r/45/6/200] [--api]")
	fmt.Fprintln(w, "  ogn_parser ddb-sync [--ddb URL]")
	fmt.Fprintln(w, "  ogn_parser lookup [--ddb URL] ADDRESS...")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Connection settings come from the environment and an optional .env file.")
	fmt.Fprintln(w, "  - Beacons carry only a time of day; --ref sets the date they are resolved against.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "decode":
		runDecode(os.Args[2:])
	case "ingest":
		runIngest(os.Args[2:])
	case "ddb-sync":
		runDDBSync(os.Args[2:])
	case "lookup":
		runLookup(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
