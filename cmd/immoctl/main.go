// Command immoctl drives a dashboard session from the terminal.
//
// Usage:
//
//	immoctl [-config path] <command> [flags]
//
// Commands:
//
//	login   -email addr [-password pw]   exchange credentials for a session
//	logout                               clear the session
//	refresh                              rotate the access token
//	status                               print the session state
//	watch   [-metrics-addr :9090]        run the expiry watch until interrupted
//	get     <path>                       authorized GET against the backend
//
// The password falls back to IMMOCTL_PASSWORD. Configuration is read from the YAML
// file, .env and the environment (see internal/appconfig).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/client"
	"github.com/MrEthical07/goSession/internal/appconfig"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("immoctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML config path; CONFIG_PATH is used when empty")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: immoctl [-config path] <login|logout|refresh|status|watch|get> [flags]")
		return 2
	}

	if os.Getenv("STORAGE_PATH") == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			_ = os.Setenv("STORAGE_PATH", filepath.Join(dir, "immoctl", "session.json"))
		}
	}

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logger := cfg.Logger(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "storage: %v\n", err)
		return 1
	}
	defer closeStore()

	m, err := goSession.New().
		WithConfig(cfg.ManagerConfig()).
		WithStore(store).
		WithLogger(logger).
		WithAuditSink(goSession.NewJSONWriterSink(stderr)).
		Build()
	if err != nil {
		fmt.Fprintf(stderr, "session: %v\n", err)
		return 1
	}
	defer m.Close()

	if err := m.Initialize(ctx); err != nil {
		logger.Warn("initialize failed", slog.Any("error", err))
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "login":
		err = cmdLogin(ctx, m, rest, stdout, stderr)
	case "logout":
		err = m.Logout(ctx)
	case "refresh":
		err = m.RefreshToken(ctx)
	case "status":
		err = printStatus(m, stdout)
	case "watch":
		err = cmdWatch(ctx, m, rest, stdout, stderr, logger)
	case "get":
		err = cmdGet(ctx, m, cfg.Backend.BaseURL, rest, stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func cmdLogin(ctx context.Context, m *goSession.Manager, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password; IMMOCTL_PASSWORD when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("IMMOCTL_PASSWORD")
	}

	if err := m.Login(ctx, *email, *password); err != nil {
		var authErr *goSession.AuthError
		if errors.As(err, &authErr) && authErr.Message != "" {
			return errors.New(authErr.Message)
		}
		return err
	}
	return printStatus(m, stdout)
}

type status struct {
	State     string    `json:"state"`
	Role      string    `json:"role,omitempty"`
	SubjectID string    `json:"subject_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitzero"`
	ExpiresIn string    `json:"expires_in,omitempty"`
}

func printStatus(m *goSession.Manager, w io.Writer) error {
	s := m.Snapshot()
	out := status{
		State:     m.State().String(),
		Role:      s.Role,
		SubjectID: s.SubjectID,
		IssuedAt:  s.IssuedAt,
	}
	if s.Authenticated() {
		left := m.Config().Session.TTL - s.Age(time.Now())
		out.ExpiresIn = left.Round(time.Second).String()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func cmdWatch(ctx context.Context, m *goSession.Manager, args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promexport.Handler(promexport.NewCollector(m)),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	unsubscribe := m.OnChange(func(s goSession.Session) {
		fmt.Fprintf(stdout, "%s state=%s role=%s\n", time.Now().Format(time.RFC3339), s.State(), s.Role)
	})
	defer unsubscribe()

	if err := m.StartExpiryWatch(ctx); err != nil {
		return err
	}
	_ = printStatus(m, stdout)

	<-ctx.Done()
	return nil
}

func cmdGet(ctx context.Context, m *goSession.Manager, baseURL string, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: immoctl get <path>")
	}
	if !m.Authenticated() {
		return errors.New("not logged in")
	}

	backend, err := client.New(baseURL)
	if err != nil {
		return err
	}
	hc := client.NewAuthorizedClient(m, nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, backend.Endpoint(args[0]), nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}

	data, err := client.Decode[json.RawMessage](resp)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
