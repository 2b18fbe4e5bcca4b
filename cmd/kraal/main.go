// Command kraal is a terminal front end for the Kraal livestock marketplace:
// browse listings, manage a cart, publish buy requests, trade offers, and
// walk a cart through the Paystack escrow checkout. State (tokens, profile,
// cart) persists under the configured state directory so sessions survive
// between invocations. The --demo flag boots a seeded in-process marketplace
// on a loopback listener and signs in as the demo buyer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

type command struct {
	name        string
	description string
	usage       string
	run         func(ctx context.Context, a *app, args []string) error
}

func commands() []command {
	return []command{
		{
			name:        "browse",
			description: "Browse livestock listings",
			usage:       `kraal browse [--species cattle] [--location kano] [--search term] [--max-price 450000] [--sort "price_minor asc"] [--all]`,
			run:         browseCommand,
		},
		{
			name:        "listing",
			description: "Show one listing in detail",
			usage:       "kraal listing <listing-id>",
			run:         listingCommand,
		},
		{
			name:        "search",
			description: "Search listings in plain language",
			usage:       `kraal search [--limit 5] "balami rams under 160k"`,
			run:         searchCommand,
		},
		{
			name:        "login",
			description: "Sign in and persist the session",
			usage:       "kraal login --email you@example.com --password secret",
			run:         loginCommand,
		},
		{
			name:        "register",
			description: "Create an account and sign in",
			usage:       "kraal register --email you@example.com --password secret [--roles buyer,seller]",
			run:         registerCommand,
		},
		{
			name:        "logout",
			description: "Revoke the session and clear local state",
			usage:       "kraal logout",
			run:         logoutCommand,
		},
		{
			name:        "whoami",
			description: "Show the signed-in account",
			usage:       "kraal whoami [--refresh]",
			run:         whoamiCommand,
		},
		{
			name:        "cart",
			description: "Manage the cart",
			usage:       "kraal cart show|add|rm|qty|clear [args]",
			run:         cartCommand,
		},
		{
			name:        "buyreq",
			description: "Publish and manage buy requests",
			usage:       "kraal buyreq list|show|create|cancel|offers|matches|accept-offer [args]",
			run:         buyreqCommand,
		},
		{
			name:        "offer",
			description: "Respond to a buy request with an offer",
			usage:       "kraal offer send --request <id> --price 42000 --qty 3 [--listing <id>] [--message text]",
			run:         offerCommand,
		},
		{
			name:        "checkout",
			description: "Price the cart and start a Paystack payment",
			usage:       "kraal checkout preview|start|cancel [args]",
			run:         checkoutCommand,
		},
		{
			name:        "orders",
			description: "List your orders",
			usage:       "kraal orders",
			run:         ordersCommand,
		},
		{
			name:        "order",
			description: "Show one order",
			usage:       "kraal order [--refresh-lock] <order-id>",
			run:         orderCommand,
		},
		{
			name:        "upload",
			description: "Upload a media file",
			usage:       "kraal upload [--kind listing-media] <file>",
			run:         uploadCommand,
		},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, cmd := range commands() {
		if cmd.name == name {
			return cmd, true
		}
	}
	return command{}, false
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kraal:", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	fs := flag.NewFlagSet("kraal", flag.ExitOnError)
	demo := fs.Bool("demo", false, "run against a seeded in-process marketplace")
	configFile := fs.String("config", "", "path to a YAML config file (defaults to $KRAAL_CONFIG)")
	fs.Usage = func() { printHelp(os.Stderr) }
	if err := fs.Parse(argv); err != nil {
		return err
	}

	args := fs.Args()
	if len(args) == 0 {
		printHelp(os.Stdout)
		return fmt.Errorf("no command specified")
	}

	switch args[0] {
	case "help", "-h", "--help":
		printHelp(os.Stdout)
		return nil
	case "version":
		fmt.Printf("kraal %s (%s)\n", version, commit)
		return nil
	}

	cmd, ok := lookupCommand(args[0])
	if !ok {
		printHelp(os.Stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{Demo: *demo, ConfigFile: *configFile})
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd.run(ctx, a, args[1:])
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "kraal - livestock marketplace client")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "    kraal [--demo] [--config file] <command> [arguments]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	for _, cmd := range commands() {
		fmt.Fprintf(w, "    %-10s %s\n", cmd.name, cmd.description)
	}
	fmt.Fprintf(w, "    %-10s %s\n", "version", "Show version information")
	fmt.Fprintf(w, "    %-10s %s\n", "help", "Show this help")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'kraal <command> --help' for more information on a command.")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "    # Browse seeded demo listings")
	fmt.Fprintln(w, "    kraal --demo browse --species sheep")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "    # Ask the matcher in plain language")
	fmt.Fprintln(w, "    kraal --demo search \"rams for sallah in kaduna\"")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "    # Add two rams and walk the cart through checkout")
	fmt.Fprintln(w, "    kraal --demo checkout start --buy lst-balami-rams:2 --watch 15s")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "    # Accept the seeded offer on your buy request")
	fmt.Fprintln(w, "    kraal --demo buyreq accept-offer req-amina-rams off-musa-rams")
}
