// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bvk/snipebot/cli"
	"github.com/bvk/snipebot/config"
	"github.com/bvk/snipebot/ctxutil"
	"github.com/bvk/snipebot/daemonize"
	"github.com/bvk/snipebot/httputil"
	"github.com/bvk/snipebot/server"
	"github.com/bvk/snipebot/subcmds/cmdutil"
	"github.com/bvk/snipebot/telegram"
	"github.com/bvkgo/kv/kvhttp"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
	"github.com/nightlyone/lockfile"
	"github.com/visvasity/sglog"
)

type Run struct {
	cmdutil.ServerFlags

	background bool

	restart         bool
	shutdownTimeout time.Duration

	noPprof bool

	configPath  string
	secretsPath string
	dataDir     string
}

func (c *Run) Command() (*flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	c.ServerFlags.SetFlags(fset)
	fset.BoolVar(&c.background, "background", false, "runs the daemon in background")
	fset.BoolVar(&c.restart, "restart", false, "when true, kills any old instance")
	fset.DurationVar(&c.shutdownTimeout, "shutdown-timeout", 30*time.Second, "max timeout for shutdown when restarting")
	fset.BoolVar(&c.noPprof, "no-pprof", false, "when true net/http/pprof handler is not registered")
	fset.StringVar(&c.configPath, "config-file", "", "path to the configuration file")
	fset.StringVar(&c.secretsPath, "secrets-file", "", "path to telegram credentials file")
	fset.StringVar(&c.dataDir, "data-dir", "", "path to the data directory")
	return fset, cli.CmdFunc(c.run)
}

func (c *Run) Synopsis() string {
	return "Runs snipebot in foreground or background"
}

func (c *Run) CommandHelp() string {
	return `

Command "run" starts the snipebot daemon. The daemon scans the chain for
token creations and trades matching the configured patterns and copy
targets, and tracks every opened position with automatic sell triggers.

CONFIG FILE

The configuration file is JSON with the chain endpoint, target contract,
selector table, pattern file path, safety limits, tracker thresholds and
collaborating service addresses. See the config package for the full
schema.

SECRETS FILE

When a secrets file with telegram bot credentials is present, trade
notifications are sent to the configured users and operator commands are
served over the bot. A secrets file looks like:

    {
        "telegram":{
            "token":"111111111",
            "owner":"2222222222"
        }
    }

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(c.dataDir) == 0 {
		c.dataDir = filepath.Join(os.Getenv("HOME"), ".snipebot")
	}
	if _, err := os.Stat(c.dataDir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("could not stat data directory %q: %w", c.dataDir, err)
		}
		if err := os.MkdirAll(c.dataDir, 0700); err != nil {
			return fmt.Errorf("could not create data directory %q: %w", c.dataDir, err)
		}
	}
	dataDir, err := filepath.Abs(c.dataDir)
	if err != nil {
		return fmt.Errorf("could not determine data-dir %q absolute path: %w", c.dataDir, err)
	}

	if len(c.configPath) == 0 {
		c.configPath = filepath.Join(dataDir, "snipebot.json")
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	if len(c.secretsPath) == 0 {
		c.secretsPath = filepath.Join(dataDir, "secrets.json")
	}
	var secrets *server.Secrets
	if _, err := os.Stat(c.secretsPath); err == nil {
		if secrets, err = server.SecretsFromFile(c.secretsPath); err != nil {
			return err
		}
	}

	if ip := net.ParseIP(c.IP); ip == nil {
		return fmt.Errorf("invalid ip address")
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid port number")
	}
	addr := &net.TCPAddr{
		IP:   net.ParseIP(c.IP),
		Port: c.Port,
	}

	// Health checker for the background process initialization. The /pid
	// handler distinguishes our instance from an older one on the same port.
	check := func(ctx context.Context) error {
		client := http.Client{Timeout: time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/pid", addr.String()))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http status: %d", resp.StatusCode)
		}
		if _, err := io.ReadAll(resp.Body); err != nil {
			return err
		}
		return nil
	}

	if c.background {
		if err := daemonize.Daemonize(ctx, check); err != nil {
			return err
		}

		logDir := filepath.Join(dataDir, "logs")
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return fmt.Errorf("could not create log directory %q: %w", logDir, err)
		}
		backend := sglog.NewBackend(&sglog.Options{
			LogDirs: []string{logDir},
		})
		defer backend.Close()
		slog.SetDefault(slog.New(backend.Handler()))
	}

	log.SetFlags(log.Flags() | log.Lmicroseconds)
	log.Printf("using data directory %s and config file %s", dataDir, c.configPath)

	lockPath := filepath.Join(dataDir, "snipebot.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		if !c.restart {
			return fmt.Errorf("could not get lock on file %q: %w", lockPath, err)
		}
		owner, err := flock.GetOwner()
		if err != nil {
			return fmt.Errorf("could not get current owner of the lock file: %w", err)
		}
		if err := owner.Signal(os.Interrupt); err == nil {
			log.Printf("waiting for the previous instance to shutdown")
			if err := ctxutil.RetryTimeout(ctx, time.Second, c.shutdownTimeout, flock.TryLock); err != nil {
				if err := owner.Signal(os.Kill); err != nil {
					return fmt.Errorf("could not kill current owner of the lock file: %w", err)
				}
				ctxutil.Sleep(ctx, time.Millisecond)
			}
		}
		if err := flock.TryLock(); err != nil {
			return fmt.Errorf("could not get lock on file %q after killing previous instance: %w", lockPath, err)
		}
	}
	defer flock.Unlock()

	// Start HTTP server.
	s, err := httputil.New(nil /* opts */)
	if err != nil {
		return err
	}
	defer s.Close()

	tcpServer, err := s.StartTCP(ctx, addr)
	if err != nil {
		return fmt.Errorf("could not start http server on %s: %w", addr, err)
	}
	defer s.Stop(tcpServer)

	if !c.noPprof {
		s.AddHandler("/debug/pprof/heap", pprof.Handler("heap"))
		s.AddHandler("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		s.AddHandler("/debug/pprof/allocs", pprof.Handler("allocs"))
		s.AddHandler("/debug/pprof/block", pprof.Handler("block"))
		s.AddHandler("/debug/pprof/mutex", pprof.Handler("mutex"))
	}

	// Open the database.
	bopts := badger.DefaultOptions(filepath.Join(dataDir, "db"))
	bdb, err := badger.Open(bopts)
	if err != nil {
		return fmt.Errorf("could not open the database: %w", err)
	}
	defer bdb.Close()
	db := kvbadger.New(bdb, isGoodKey)

	s.AddHandler("/db/", http.StripPrefix("/db", kvhttp.Handler(db)))

	var tg *telegram.Client
	if secrets != nil && secrets.Telegram != nil {
		tg, err = telegram.New(ctx, db, secrets.Telegram)
		if err != nil {
			return fmt.Errorf("could not create telegram client: %w", err)
		}
		defer tg.Close()
	}

	// Start the engine.
	bot, err := server.New(ctx, db, cfg, tg)
	if err != nil {
		return err
	}
	defer bot.Close()

	botAPIs := bot.HandlerMap()
	for k, v := range botAPIs {
		s.AddHandler(k, v)
	}
	defer func() {
		for k := range botAPIs {
			s.RemoveHandler(k)
		}
	}()

	if err := bot.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := bot.Stop(context.Background()); err != nil {
			log.Printf("could not stop all loops (ignored): %v", err)
		}
	}()

	log.Printf("started snipebot server at %s", addr)
	s.AddHandler("/pid", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, fmt.Sprintf("%d", os.Getpid()))
	}))

	<-ctx.Done()
	log.Printf("snipebot server is shutting down")
	return nil
}

func isGoodKey(k string) bool {
	return path.IsAbs(k) && k == path.Clean(k)
}
