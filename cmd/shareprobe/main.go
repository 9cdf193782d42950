// Command shareprobe checks a share account against every known endpoint
// candidate and reports which (host, application id, payload casing)
// combinations accept it.
//
// Usage:
//
//	shareprobe [--username NAME] [--region US|OUS] [--stop-on-success] [--timeout 15s]
//
// The password is always read from the terminal with echo disabled, or from
// the first line of stdin when stdin is not a terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	shareadapter "github.com/ericfisherdev/diasync/internal/adapter/driven/share"
	"github.com/ericfisherdev/diasync/internal/application"
	"github.com/ericfisherdev/diasync/internal/config"
	"github.com/ericfisherdev/diasync/internal/domain/model"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	probePerMin = 60
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		username      string
		region        string
		candidateFile string
		stopOnSuccess bool
		verbose       bool
		timeout       time.Duration
	)

	flagSet := pflag.NewFlagSet("shareprobe", pflag.ContinueOnError)
	flagSet.StringVarP(&username, "username", "u", "", "share account username (prompted when empty)")
	flagSet.StringVarP(&region, "region", "r", "US", "account region hint: US or OUS")
	flagSet.StringVar(&candidateFile, "candidates", "", "YAML file overriding the built-in candidate set")
	flagSet.BoolVar(&stopOnSuccess, "stop-on-success", false, "stop at the first candidate that accepts the account")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log every attempt to stderr")
	flagSet.DurationVar(&timeout, "timeout", 15*time.Second, "per-request timeout")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	parsedRegion, err := model.ParseRegion(region)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	candidates := shareadapter.DefaultCandidates()
	if candidateFile != "" {
		if candidates, err = config.LoadCandidates(candidateFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitUsage
		}
	}

	stdin := bufio.NewReader(os.Stdin)
	if username == "" {
		fmt.Fprint(os.Stderr, "Username: ")
		if username, err = readLine(stdin); err != nil {
			fmt.Fprintln(os.Stderr, "reading username:", err)
			return exitUsage
		}
	}
	password, err := readPassword(stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reading password:", err)
		return exitUsage
	}

	account := model.ShareAccount{Username: username, Password: password, Region: parsedRegion}
	if err := account.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, application.PublicMessage(err))
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := shareadapter.NewClient(timeout, probePerMin, len(candidates))
	discovery := application.NewEndpointDiscovery(client, candidates, nil)

	return probe(ctx, os.Stdout, discovery, account, stopOnSuccess)
}

// probe runs the diagnosis and writes the report to out. It returns the
// process exit code.
func probe(ctx context.Context, out io.Writer, discovery *application.EndpointDiscovery, account model.ShareAccount, stopOnSuccess bool) int {
	fmt.Fprintf(out, "Probing share endpoints for %s (region %s)\n\n", account.Username, account.Region)

	if stopOnSuccess {
		session, err := discovery.Discover(ctx, account)
		if err == nil {
			printSuccess(out, session.Via)
			return exitOK
		}

		var discoveryErr *model.DiscoveryError
		if errors.As(err, &discoveryErr) {
			printAttempts(out, discoveryErr.Attempts)
			printFailure(out)
			return exitFailed
		}
		fmt.Fprintln(out, application.PublicMessage(err))
		return exitFailed
	}

	attempts, err := discovery.Probe(ctx, account)
	printAttempts(out, attempts)
	if err != nil {
		fmt.Fprintln(out, application.PublicMessage(err))
		return exitFailed
	}

	var accepted []model.EndpointCandidate
	for _, a := range attempts {
		if a.Outcome == model.OutcomeSuccess {
			accepted = append(accepted, a.Candidate)
		}
	}
	if len(accepted) == 0 {
		printFailure(out)
		return exitFailed
	}

	printSuccess(out, accepted[0])
	if len(accepted) > 1 {
		fmt.Fprintf(out, "%d candidates accepted the account in total.\n", len(accepted))
	}
	return exitOK
}

func printAttempts(out io.Writer, attempts []model.DiscoveryAttempt) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tAPP ID\tSHAPE\tREGION\tRESULT")
	for _, a := range attempts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.Candidate.Host,
			shortID(a.Candidate.ApplicationID),
			a.Candidate.Shape,
			a.Candidate.Region,
			describeOutcome(a),
		)
	}
	_ = tw.Flush()
	fmt.Fprintln(out)
}

func describeOutcome(a model.DiscoveryAttempt) string {
	switch a.Outcome {
	case model.OutcomeSuccess:
		return "accepted"
	case model.OutcomeZeroSentinel:
		return "rejected (zero session)"
	case model.OutcomeHTTPError:
		if a.Code != "" {
			return fmt.Sprintf("HTTP %d %s", a.StatusCode, a.Code)
		}
		return fmt.Sprintf("HTTP %d", a.StatusCode)
	case model.OutcomeMalformed:
		return "malformed response"
	default:
		return "network error"
	}
}

func printSuccess(out io.Writer, via model.EndpointCandidate) {
	fmt.Fprintln(out, "SUMMARY: connected")
	fmt.Fprintf(out, "  host:           %s\n", via.Host)
	fmt.Fprintf(out, "  application id: %s\n", via.ApplicationID)
	fmt.Fprintf(out, "  payload shape:  %s\n", via.Shape)
	fmt.Fprintf(out, "  region:         %s\n", via.Region)
}

func printFailure(out io.Writer) {
	fmt.Fprint(out, `SUMMARY: no candidate accepted the account

Troubleshooting:
  1. Sign in to the mobile app and open the Share tab.
  2. Make sure Share is turned on and at least one follower is set up.
     Logins are often refused while sharing is inactive.
  3. If the account has a separate username and e-mail, try both.
  4. Accounts outside the United States should use --region OUS.
  5. Confirm the password on the vendor's web portal.
`)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword prompts with echo disabled when stdin is a terminal and
// otherwise reads one line from stdin.
func readPassword(stdin *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readLine(stdin)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	passwordBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(passwordBytes), nil
}
