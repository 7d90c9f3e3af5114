package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/client"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
)

// Options wires the command tree. Zero values use the process defaults.
type Options struct {
	Out io.Writer
	Err io.Writer
	// Config bypasses the config file and the environment.
	Config *config.Config
	// Prompter overrides terminal detection; nil disables prompting only
	// when stdin is not a terminal.
	Prompter Prompter
	// NonInteractive never prompts; missing flags are errors.
	NonInteractive bool
	Clock          func() time.Time
	// Publisher overrides the AMQP publisher built from AMQP_URL.
	Publisher services.Publisher
}

type app struct {
	opts Options

	flagLedger  string
	flagBackend string
	flagDebug   bool

	cfg     *config.Config
	logger  *applog.Logger
	store   *backend.Result
	session *ledger.Session
	service *services.LedgerService
	calc    *client.Client
	broker  *amqp.Client
}

// Execute runs the fintrack CLI against the process arguments and returns
// the exit code.
func Execute() int {
	cmd := NewRootCmd(Options{})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, errCancelled) {
			fmt.Fprintln(os.Stderr, "Cancelled.")
			return 0
		}
		fmt.Fprintln(os.Stderr, errStyle.Render("Error: "+err.Error()))
		return 1
	}
	return 0
}

func NewRootCmd(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:               "fintrack",
		Short:             "Personal finance tracker",
		Long:              "Track accounts and expenses, and ask the budget calculators how you are doing.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.run(a.runDashboard),
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	root.PersistentFlags().StringVar(&a.flagLedger, "ledger", "", "Ledger file (json backend) or database (sqlite backend)")
	root.PersistentFlags().StringVar(&a.flagBackend, "backend", "", "Ledger backend: json, sqlite or memory")
	root.PersistentFlags().BoolVar(&a.flagDebug, "debug", false, "Log calculator payloads and correlation ids")

	root.AddCommand(
		a.dashboardCmd(),
		a.accountCmd(),
		a.expenseCmd(),
		a.dailyLimitCmd(),
		a.aggregateCmd(),
		a.projectCmd(),
		a.alertsCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if a.opts.Config != nil {
		c := *a.opts.Config
		a.cfg = &c
	} else {
		LoadEnvFile()
		c, err := LoadConfig()
		if err != nil {
			return err
		}
		a.cfg = c
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		a.cfg.LedgerBackend = a.flagBackend
	}
	if flags.Changed("ledger") {
		if a.cfg.LedgerBackend == string(backend.SQLiteBackend) {
			a.cfg.SQLiteDBPath = a.flagLedger
		} else {
			a.cfg.LedgerPath = a.flagLedger
		}
	}
	if a.flagDebug {
		a.cfg.Debug = true
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	level := slog.LevelWarn
	if a.cfg.Debug {
		level = slog.LevelDebug
	}
	a.logger = applog.New(applog.Config{
		Level:     level,
		Format:    a.cfg.LogFormat,
		Component: applog.ComponentCLI,
		Output:    a.opts.Err,
	})

	bcfg, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return err
	}
	a.store, err = backend.OpenLedgerStore(ctx, bcfg, a.logger)
	if err != nil {
		return err
	}
	a.session, err = ledger.Open(ctx, a.store.Store, a.logger)
	if err != nil {
		_ = a.close()
		return err
	}
	a.service = services.NewLedgerService(a.session, a.opts.Publisher, a.logger)
	a.calc = client.New(client.FromAppConfig(a.cfg, a.logger))
	return nil
}

// connectPublisher swaps in an AMQP-backed service when a broker is
// configured. Connection failures only disable publishing.
func (a *app) connectPublisher() {
	if a.opts.Publisher != nil || a.cfg.AMQPURL == "" || a.broker != nil {
		return
	}
	broker, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue, a.logger)
	if err != nil {
		a.logger.Warn("Expense events disabled", applog.FieldError, err.Error())
		return
	}
	a.broker = broker
	a.service = services.NewLedgerService(a.session, broker, a.logger)
}

func (a *app) close() error {
	var errs []error
	if a.broker != nil {
		errs = append(errs, a.broker.Close())
		a.broker = nil
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	return errors.Join(errs...)
}

// run closes the store and broker after fn, whether or not it failed.
func (a *app) run(fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := a.close(); err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (a *app) out() io.Writer { return a.opts.Out }

func (a *app) prompter() Prompter {
	if a.opts.NonInteractive {
		return nil
	}
	if a.opts.Prompter != nil {
		return a.opts.Prompter
	}
	return defaultPrompter()
}

func (a *app) today() core.Date {
	return core.DateOf(a.opts.Clock().In(a.cfg.Location()))
}
