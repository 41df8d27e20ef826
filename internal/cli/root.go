// Package cli implements the crudkit command-line interface: CRUD, search,
// sync and watch against any REST resource, with an optional local cache.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/crudkit/internal/localstore"
	"github.com/mesh-intelligence/crudkit/pkg/crudkit"
	"github.com/mesh-intelligence/crudkit/pkg/document"
	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	typeName  string
	endpoint  string
	policy    string
	jsonMode  bool
	verbose   bool
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	flags  rootFlags
	v      *viper.Viper
	cfg    types.Config
	logger *zap.Logger
}

// userError marks failures caused by bad input rather than the system.
type userError struct{ err error }

func (e userError) Error() string { return e.err.Error() }
func (e userError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return userError{fmt.Errorf(format, args...)}
}

// NewRootCmd creates the top-level "crudkit" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "crudkit",
		Short: "CRUD client for REST resources with a local cache",
		Long: "crudkit reads and writes records of any REST resource. Types with the\n" +
			"local policy are mirrored into a key/value cache (sqlite, file or redis).",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (env CRUDKIT_CONFIG_DIR)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory for the local cache")
	pf.StringVar(&a.flags.typeName, "type", "", "entity type name, e.g. ContactMessage")
	pf.StringVar(&a.flags.endpoint, "endpoint", "", "API resource name (default: derived from --type)")
	pf.StringVar(&a.flags.policy, "policy", string(types.PolicyRemote), "persistence policy: local or remote")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newSaveCmd(a),
		newDeleteCmd(a),
		newSearchCmd(a),
		newSyncCmd(a),
		newWatchCmd(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, NewRootCmd(), os.Args[1:], os.Stderr)
}

func run(ctx context.Context, root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var ue userError
	var he *types.HTTPError
	var ve *types.ValidationError
	switch {
	case errors.As(err, &ue), errors.As(err, &ve):
		return exitUserError
	case errors.As(err, &he) && he.Status < 500:
		return exitUserError
	case errors.Is(err, context.Canceled):
		return exitSuccess
	default:
		return exitSysError
	}
}

// setup loads the configuration and builds the logger.
func (a *app) setup() error {
	if a.v != nil {
		return nil
	}
	v, cfg, err := loadConfig(a.flags.configDir, a.flags.dataDir)
	if err != nil {
		return err
	}
	a.v, a.cfg = v, cfg

	logger, err := newLogger(v.GetString(cfgKeyLogLevel), a.flags.verbose)
	if err != nil {
		return usagef("log_level: %w", err)
	}
	a.logger = logger
	return nil
}

// resource resolves the endpoint, cache key and policy from the flags.
func (a *app) resource() (endpoint, key string, policy types.Policy, err error) {
	policy = types.Policy(a.flags.policy)
	if !policy.Valid() {
		return "", "", "", usagef("--policy must be local or remote, got %q", a.flags.policy)
	}
	switch {
	case a.flags.typeName != "":
		key = localstore.KeyFor(a.flags.typeName)
	case a.flags.endpoint != "":
		key = a.flags.endpoint
	default:
		return "", "", "", usagef("--type or --endpoint is required")
	}
	endpoint = a.flags.endpoint
	if endpoint == "" {
		endpoint = key
	}
	return endpoint, key, policy, nil
}

// service opens the backend (local policy only) and builds the document
// service. The returned func releases both.
func (a *app) service() (*crudkit.Service[document.Document, *document.Document], func(), error) {
	endpoint, key, policy, err := a.resource()
	if err != nil {
		return nil, nil, err
	}
	if a.cfg.APIBaseURL == "" {
		return nil, nil, usagef("api_base_url is not set (config.yaml or CRUDKIT_API_BASE_URL)")
	}

	var kv types.KVStore
	if policy == types.PolicyLocal {
		kv, err = crudkit.OpenKV(a.cfg, a.logger)
		if err != nil {
			return nil, nil, err
		}
	}
	svc, err := crudkit.NewService[document.Document](a.cfg, kv,
		crudkit.WithEndpoint(endpoint),
		crudkit.WithKey(key),
		crudkit.WithPolicy(policy),
		crudkit.WithNotifier(logNotifier{a.logger}),
		crudkit.WithLogger(a.logger),
	)
	if err != nil {
		if kv != nil {
			_ = kv.Close()
		}
		return nil, nil, err
	}
	release := func() {
		svc.Close()
		if kv != nil {
			if err := kv.Close(); err != nil {
				a.logger.Warn("close backend", zap.Error(err))
			}
		}
	}
	return svc, release, nil
}

// logNotifier turns proxy notifications into log lines.
type logNotifier struct{ logger *zap.Logger }

func (n logNotifier) Add(title, message string, kind types.NotifyKind) {
	if kind == types.NotifyError {
		n.logger.Debug(title, zap.String("message", message))
		return
	}
	n.logger.Info(title, zap.String("message", message))
}
