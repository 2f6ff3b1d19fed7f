package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/vote-kiosk/apiclient"
	"github.com/danielhkuo/vote-kiosk/cliparse"
	"github.com/danielhkuo/vote-kiosk/credentials"
	"github.com/danielhkuo/vote-kiosk/models"
	"github.com/danielhkuo/vote-kiosk/qrgate"
	"github.com/danielhkuo/vote-kiosk/results"
	"github.com/danielhkuo/vote-kiosk/session"
	"github.com/danielhkuo/vote-kiosk/storage"
	"github.com/danielhkuo/vote-kiosk/voting"
)

func main() {
	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Open the local state file
	store, err := storage.OpenSQLite(cfg.StatePath)
	if err != nil {
		slog.Error("failed to open state file", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	creds := credentials.NewManager(store)

	client, err := apiclient.New(cfg, creds, store)
	if err != nil {
		slog.Error("failed to build API client", "error", err)
		os.Exit(1)
	}

	k := &kiosk{cfg: cfg, client: client, creds: creds}

	// Auth exhaustion sends the view back to the login prompt.
	client.AtLoginBoundary = func() bool { return k.atLogin.Load() }
	client.NavigateToLogin = func() {
		k.atLogin.Store(true)
		fmt.Println("Session expired. Please log in again.")
	}

	k.sess = session.New(session.Config{
		Store:  store,
		Window: cfg.SessionWindow,
		OnTerminal: func(status session.Status) {
			// The web client reloads the page here; the kiosk soft
			// resets the voting view instead.
			k.resetView(status)
		},
	})
	k.gate = qrgate.New(client, k.sess)
	k.flow = voting.New(client, k.sess, k.gate)

	k.phase.Store(models.PhaseIdle)
	k.poller = results.New(client, cfg.PollInterval, func() string {
		return k.phase.Load().(string)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		cancel()
		k.teardown()
		os.Exit(0)
	}()

	if k.sess.IsActive() {
		fmt.Printf("Resumed active session, %s\n", remaining(k.sess))
	}

	k.run(ctx)
	k.teardown()
}

type kiosk struct {
	cfg    cliparse.Config
	client *apiclient.Client
	creds  *credentials.Manager
	sess   *session.Machine
	gate   *qrgate.Gate
	flow   *voting.Flow
	poller *results.Poller

	phase   atomic.Value
	atLogin atomic.Bool
}

func (k *kiosk) run(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("vote-kiosk ready. Commands: login, scan, pick, submit, status, phase, watch, results, reset, logout, quit")

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "login":
			if len(fields) != 4 {
				fmt.Println("usage: login <role> <username> <password>")
				continue
			}
			if err := k.client.Login(ctx, fields[1], fields[2], fields[3]); err != nil {
				fmt.Println("Login failed:", userMessage(err))
				continue
			}
			k.atLogin.Store(false)
			fmt.Println("Logged in as", fields[1])

		case "scan":
			if len(fields) < 2 {
				fmt.Println("usage: scan <qr-content>")
				continue
			}
			raw := strings.Join(fields[1:], " ")
			result, err := k.gate.Validate(ctx, raw)
			if err != nil {
				fmt.Println("Validation failed:", userMessage(err))
				continue
			}
			if err := k.sess.Activate(result.Token, result.WargaNIK); err != nil {
				fmt.Println("Could not start session:", userMessage(err))
				continue
			}
			if err := k.flow.LoadRoster(ctx); err != nil {
				fmt.Println("Could not load candidates:", userMessage(err))
			}
			fmt.Printf("Voter %s authorized, %s\n", result.WargaNIK, remaining(k.sess))
			for _, p := range k.flow.Roster() {
				fmt.Printf("  %d. %s\n", p.ID, p.Name)
			}

		case "pick":
			if len(fields) != 2 {
				fmt.Println("usage: pick <paslon-id>")
				continue
			}
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println("paslon id must be a number")
				continue
			}
			k.flow.Select(id)
			fmt.Println("Selected paslon", id)

		case "submit":
			if err := k.flow.Submit(ctx); err != nil {
				fmt.Println("Submission failed:", userMessage(err))
				continue
			}
			fmt.Println("Vote cast. Thank you.")

		case "status":
			fmt.Printf("session=%s gate=%s", k.sess.Status(), k.gate.State())
			if k.sess.IsActive() {
				fmt.Printf(" (%s)", remaining(k.sess))
			}
			fmt.Println()

		case "phase":
			if len(fields) != 2 {
				fmt.Println("usage: phase <active|idle|finished>")
				continue
			}
			k.phase.Store(fields[1])

		case "watch":
			k.poller.Start(ctx)
			fmt.Println("Polling live results every", k.cfg.PollInterval)

		case "results":
			standings := k.poller.Snapshot()
			if len(standings) == 0 {
				fmt.Println("No results yet.")
				continue
			}
			for i, s := range standings {
				fmt.Printf("%d. %s - %s votes (%.1f%%)\n", i+1, s.Name, humanize.Comma(int64(s.VoteCount)), s.Percentage)
			}

		case "reset":
			k.sess.Reset()
			k.gate.Reset()
			k.flow.Select(0)
			fmt.Println("Session reset.")

		case "logout":
			if err := k.client.Logout(ctx); err != nil {
				fmt.Println("Logout failed:", userMessage(err))
				continue
			}
			k.atLogin.Store(true)
			fmt.Println("Logged out.")

		case "quit", "exit":
			return

		default:
			fmt.Println("Unknown command:", fields[0])
		}
	}
}

// resetView is the kiosk's stand-in for the web client's terminal-state
// page reload: wipe the voting view back to its initial form.
func (k *kiosk) resetView(status session.Status) {
	k.gate.Reset()
	k.flow.Select(0)
	switch status {
	case session.StatusCompleted:
		fmt.Println("\nSession complete. Ready for the next voter.")
	case session.StatusExpired:
		fmt.Println("\nSession expired. Please scan again.")
	}
	fmt.Print("> ")
}

func (k *kiosk) teardown() {
	k.poller.Stop()
	k.flow.Close()
}

func remaining(sess *session.Machine) string {
	return humanize.RelTime(time.Now(), time.Now().Add(sess.Remaining()), "remaining", "ago")
}

// userMessage maps an error to the operator-facing line, preferring
// the server's own message when one was sent.
func userMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var serr *models.SessionError
	if errors.As(err, &serr) {
		return serr.Message
	}
	var nerr *models.NetworkError
	if errors.As(err, &nerr) {
		return "network problem, please try again"
	}
	return err.Error()
}
