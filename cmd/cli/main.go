// Command fibox is a CLI client for the fibox HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ---- config/session store ----

type session struct {
	Username string    `json:"username"`
	Token    string    `json:"token"`
	SavedAt  time.Time `json:"saved_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "fibox")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fibox")
}

func sessionPath() string { return filepath.Join(cfgDir(), "session.json") }

func saveSession(username, token string) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(sessionPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(session{Username: username, Token: token, SavedAt: time.Now().UTC()})
}

func loadSession() (session, error) {
	var s session
	b, err := os.ReadFile(sessionPath())
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, err
	}
	if s.Username == "" || s.Token == "" {
		return s, errors.New("no session (login required)")
	}
	return s, nil
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `fibox CLI
Usage:
  fibox -addr HOST:PORT <cmd> [args]

Commands:
  version
  health
  signup        -u <username> -p <password>
  login         -u <username> -p <password>       (saves session)
  link-token                                      (create a Plaid link token)
  link          -public <public_token>            (link an item)
  accounts                                        (balances across all items)
  transactions  -item <item_id> -account <account_id> [-start YYYY-MM-DD] [-end YYYY-MM-DD]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands.
func main() {
	addr := flag.String("addr", "localhost:4000", "server addr")
	timeout := flag.Duration("timeout", 60*time.Second, "request timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	api := newAPIClient(*addr, *timeout)
	if err := run(ctx, api, flag.Arg(0), flag.Args()[1:], os.Stdout); err != nil {
		cancel()
		fail(err)
	}
}

var errUsage = errors.New("usage")

// run executes one subcommand and writes its result to out.
func run(ctx context.Context, api *apiClient, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "version":
		fmt.Fprintf(out, "fibox %s (%s)\n", version, buildDate)
		return nil

	case "health":
		if _, err := api.get(ctx, "/health", nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil

	case "signup", "login":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *u == "" || *p == "" {
			return fmt.Errorf("%w: need -u and -p", errUsage)
		}
		if cmd == "signup" {
			var data struct {
				UserID string `json:"user_id"`
			}
			if _, err := api.get(ctx, "/signup", credParams(*u, *p), &data); err != nil {
				return err
			}
			fmt.Fprintln(out, data.UserID)
			return nil
		}
		var data struct {
			Token string `json:"token"`
		}
		if _, err := api.get(ctx, "/login", credParams(*u, *p), &data); err != nil {
			return err
		}
		if err := saveSession(*u, data.Token); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil

	case "link-token":
		s, err := loadSession()
		if err != nil {
			return err
		}
		var data json.RawMessage
		if _, err := api.get(ctx, "/newLinkToken", s.params(), &data); err != nil {
			return err
		}
		printJSON(out, data)
		return nil

	case "link":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		pub := fs.String("public", "", "public token from Plaid Link")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *pub == "" {
			return fmt.Errorf("%w: need -public", errUsage)
		}
		s, err := loadSession()
		if err != nil {
			return err
		}
		params := s.params()
		params.Set("public_token", *pub)
		var data struct {
			ItemID string `json:"item_id"`
		}
		if _, err := api.get(ctx, "/submitPublicToken", params, &data); err != nil {
			return err
		}
		fmt.Fprintln(out, data.ItemID)
		return nil

	case "accounts":
		s, err := loadSession()
		if err != nil {
			return err
		}
		var data json.RawMessage
		msg, err := api.get(ctx, "/getAllAccountData", s.params(), &data)
		if err != nil {
			return err
		}
		if msg != "" {
			fmt.Fprintln(os.Stderr, "warning:", msg)
		}
		printJSON(out, data)
		return nil

	case "transactions":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		item := fs.String("item", "", "item id")
		account := fs.String("account", "", "account id")
		start := fs.String("start", "", "start date (YYYY-MM-DD)")
		end := fs.String("end", "", "end date (YYYY-MM-DD)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *item == "" || *account == "" {
			return fmt.Errorf("%w: need -item and -account", errUsage)
		}
		s, err := loadSession()
		if err != nil {
			return err
		}
		params := s.params()
		params.Set("item_id", *item)
		params.Set("account_id", *account)
		if *start != "" {
			params.Set("start_date", *start)
		}
		if *end != "" {
			params.Set("end_date", *end)
		}
		var data json.RawMessage
		if _, err := api.get(ctx, "/getTransactions", params, &data); err != nil {
			return err
		}
		printJSON(out, data)
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

// ---- helpers ----

func fail(err error) {
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		usage()
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
