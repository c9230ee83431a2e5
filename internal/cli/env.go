package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/kart-storefront/internal/cartstore"
	"github.com/xenking/kart-storefront/internal/checkout"
	"github.com/xenking/kart-storefront/internal/client"
	"github.com/xenking/kart-storefront/internal/kv"
	"github.com/xenking/kart-storefront/internal/session"
)

// env holds the collaborators a command works with.
type env struct {
	cfg      Config
	lg       *zap.Logger
	out      io.Writer
	api      *client.Client
	state    kv.Store
	session  string
	carts    *cartstore.Store
	checkout *checkout.Service
}

// openEnv connects to the API and the state store, loads the session and
// restores the persisted cart.
func openEnv(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*env, error) {
	cfg := opts.cfg
	lg := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	api, err := client.New(cfg.APIURL,
		client.WithTimeout(cfg.Timeout),
		client.WithLogger(lg.Named("client")),
	)
	if err != nil {
		return nil, WrapExitError(ExitUsage, "invalid API URL", err)
	}

	if path, ok := strings.CutPrefix(cfg.State, "file:"); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, WrapExitError(ExitFailure, "create state directory", err)
		}
	}
	state, err := kv.Open(ctx, cfg.State)
	if err != nil {
		return nil, WrapExitError(ExitUsage, "open state store", err)
	}

	sid, err := session.Load(ctx, state)
	if err != nil {
		_ = state.Close()
		return nil, WrapExitError(ExitFailure, "load session", err)
	}
	lg = lg.With(zap.String("session_id", sid))

	rules, err := cfg.Pricing.Rules()
	if err != nil {
		_ = state.Close()
		return nil, WrapExitError(ExitUsage, "invalid pricing", err)
	}

	notifier := &printNotifier{w: cmd.ErrOrStderr(), lg: lg}
	carts := cartstore.New(api, state, sid,
		cartstore.WithNotifier(notifier),
		cartstore.WithRules(rules),
		cartstore.WithLogger(lg.Named("cart")),
	)
	if err := carts.Hydrate(ctx); err != nil {
		_ = state.Close()
		return nil, WrapExitError(ExitFailure, "restore cart", err)
	}

	return &env{
		cfg:     cfg,
		lg:      lg,
		out:     cmd.OutOrStdout(),
		api:     api,
		state:   state,
		session: sid,
		carts:   carts,
		checkout: checkout.New(api, carts, state, sid,
			checkout.WithNotifier(notifier),
			checkout.WithLogger(lg.Named("checkout")),
		),
	}, nil
}

func (e *env) Close() error {
	if err := e.state.Close(); err != nil {
		return errors.Wrap(err, "close state store")
	}
	return nil
}

// json reports whether output should be JSON.
func (e *env) json() bool { return e.cfg.Format == "json" }

// withEnv runs fn with an opened env and closes it afterwards.
func withEnv(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnv(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			e.lg.Warn("Close failed", zap.Error(err))
		}
	}()
	return fn(ctx, e)
}

// newLogger writes human-readable logs to w: warnings by default, debug
// with verbose.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

// printNotifier shows cart and checkout notifications on the terminal and
// mirrors them to the log.
type printNotifier struct {
	w  io.Writer
	lg *zap.Logger
}

func (n *printNotifier) Success(message string) {
	n.lg.Debug(message)
	_, _ = fmt.Fprintln(n.w, message)
}

func (n *printNotifier) Error(message string, err error) {
	n.lg.Debug(message, zap.Error(err))
	_, _ = fmt.Fprintln(n.w, "Error: "+message)
}
