package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/amoylab/mdprovider/internal/admin"
	"github.com/amoylab/mdprovider/internal/auth"
	"github.com/amoylab/mdprovider/internal/common/cnst"
	"github.com/amoylab/mdprovider/internal/common/config"
	"github.com/amoylab/mdprovider/internal/core"
	"github.com/amoylab/mdprovider/internal/dictionary"
	dictdomain "github.com/amoylab/mdprovider/internal/domain/dictionary"
	"github.com/amoylab/mdprovider/internal/domain/directory"
	"github.com/amoylab/mdprovider/internal/domain/login"
	"github.com/amoylab/mdprovider/internal/domain/marketprice"
	"github.com/amoylab/mdprovider/internal/notifier"
	"github.com/amoylab/mdprovider/internal/session"
	"github.com/amoylab/mdprovider/internal/transport/ws"
	"github.com/amoylab/mdprovider/pkg/helper"
	"github.com/amoylab/mdprovider/pkg/logger"
	"github.com/amoylab/mdprovider/pkg/metrics"
	"github.com/amoylab/mdprovider/pkg/omm"
	"github.com/amoylab/mdprovider/pkg/trace"
	"github.com/amoylab/mdprovider/pkg/utils"
	"github.com/amoylab/mdprovider/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	pidFile    string
	stateText  string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + cnst.CommandName,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", cnst.CommandName, version.String())
		},
	}

	testCmd = &cobra.Command{
		Use:   "test",
		Short: "Check the configuration and dictionaries, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return testConfig()
		},
	}

	reloadCmd = &cobra.Command{
		Use:   "reload",
		Short: "Ask the running provider to reload its dictionaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadConfig[config.ProviderConfig](configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			pf := utils.NewPIDFile(resolvePID(cfg))
			if err := pf.Signal(syscall.SIGHUP); err != nil {
				return err
			}
			fmt.Printf("reload signal sent to %s\n", pf.Path())
			return nil
		},
	}

	serviceCmd = &cobra.Command{
		Use:       "service [up|down] NAME",
		Short:     "Change the advertised state of a service on every provider",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{notifier.StateUp, notifier.StateDown},
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendState(cmd.Context(), args[0], args[1])
		},
	}

	rootCmd = &cobra.Command{
		Use:          cnst.CommandName,
		Short:        "Interactive market data provider",
		Long:         `mdprovider publishes login, directory, dictionary and market price streams to websocket consumers`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.ProviderYaml, "path to configuration file, like /etc/mdprovider/mdprovider.yaml")
	rootCmd.PersistentFlags().StringVar(&pidFile, "pid", "", "path to PID file, overrides the configured one")
	serviceCmd.Flags().StringVar(&stateText, "text", "", "status text shown to consumers when the service goes down")
	rootCmd.AddCommand(versionCmd, testCmd, reloadCmd, serviceCmd)
}

func resolvePID(cfg *config.ProviderConfig) string {
	if pidFile != "" {
		return pidFile
	}
	path := cfg.PID
	if path == "" {
		path = cnst.AppName + ".pid"
	}
	return helper.GetPIDPath(path)
}

// parseDomains resolves the configured instrument domains. Login, directory
// and dictionary have their own managers and cannot be served as instruments.
func parseDomains(names []string) ([]omm.MsgModelType, error) {
	models := make([]omm.MsgModelType, 0, len(names))
	for _, name := range names {
		model, err := omm.ParseModelType(name)
		if err != nil {
			return nil, fmt.Errorf("%w: service.domains: %v", cnst.ErrInvalidConfig, err)
		}
		switch model {
		case omm.ModelLogin, omm.ModelSource, omm.ModelDictionary:
			return nil, fmt.Errorf("%w: service.domains: %s is not an instrument domain", cnst.ErrInvalidConfig, model)
		}
		models = append(models, model)
	}
	return models, nil
}

func testConfig() error {
	cfg, cfgPath, err := config.LoadConfig[config.ProviderConfig](configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg, cfgPath); err != nil {
		return err
	}
	if _, err := parseDomains(cfg.Service.Domains); err != nil {
		return err
	}
	if cfg.Dictionary.FieldPath != "" {
		d, err := dictionary.Load(cfg.Dictionary.FieldPath, cfg.Dictionary.EnumPath)
		if err != nil {
			return fmt.Errorf("failed to load dictionary: %w", err)
		}
		fmt.Printf("dictionary ok: %d fields, %d enum tables\n", d.FieldCount(), len(d.EnumTables()))
	}
	fmt.Printf("configuration file %s test is successful\n", cfgPath)
	return nil
}

func sendState(ctx context.Context, state, service string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, _, err := config.LoadConfig[config.ProviderConfig](configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Notifier.Type != cnst.BackendRedis {
		return fmt.Errorf("%w: the service command needs the redis notifier, got %q", cnst.ErrUnsupportedBackend, cfg.Notifier.Type)
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Sync()

	n, err := notifier.NewRedisNotifier(ctx, lg, cfg.Notifier.Redis, config.RoleSender)
	if err != nil {
		return err
	}
	defer n.Close()

	update := &notifier.StateUpdate{Service: service, State: state, Text: stateText, At: time.Now()}
	if err := update.Validate(); err != nil {
		return err
	}
	if err := n.NotifyUpdate(ctx, update); err != nil {
		return err
	}
	fmt.Printf("service %s marked %s\n", service, update.State)
	return nil
}

func run() error {
	cfg, cfgPath, err := config.LoadConfig[config.ProviderConfig](configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	lg, level, err := logger.NewLeveled(&cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Sync()

	if err := config.Validate(cfg, cfgPath); err != nil {
		lg.Error("invalid configuration", zap.String("path", cfgPath), zap.Error(err))
		return err
	}
	models, err := parseDomains(cfg.Service.Domains)
	if err != nil {
		return err
	}
	lg.Info("starting provider",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pf := utils.NewPIDFile(resolvePID(cfg))
	if err := pf.Write(); err != nil {
		if errors.Is(err, utils.ErrProcessRunning) {
			return err
		}
		lg.Warn("failed to write PID file", zap.String("path", pf.Path()), zap.Error(err))
	} else {
		defer func() {
			if err := pf.Remove(); err != nil {
				lg.Warn("failed to remove PID file", zap.Error(err))
			}
		}()
	}

	shutdownTracing, err := trace.InitTracing(ctx, &cfg.Tracing, lg)
	if err != nil {
		lg.Warn("tracing disabled", zap.Error(err))
	} else {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				lg.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	m := metrics.New(cfg.Metrics)

	store, err := session.NewStore(ctx, lg, &cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to create session store: %w", err)
	}
	ntf, err := notifier.NewNotifier(ctx, lg, &cfg.Notifier)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}
	authenticator, err := auth.NewAuthenticator(lg, &cfg.Login)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	svc := core.NewServiceInfo(cfg.Service.Name, cfg.Service.ID)
	svc.Vendor = cfg.Service.Vendor
	svc.IsSource = cfg.Service.IsSource
	svc.QoS = cfg.Service.QoS

	tr := ws.New(lg, cfg.Transport, m)
	pub := core.NewPubContext(lg, tr,
		core.WithMetrics(m),
		core.WithSessionStore(store),
		core.WithService(svc),
		core.WithQueueSize(cfg.Transport.QueueSize),
	)
	tr.Bind(pub)

	dicts, err := wireManagers(pub, cfg, authenticator, models)
	if err != nil {
		return err
	}

	// The dispatcher outlives the listeners so sessions can be closed cleanly.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pub.Run(dispatchCtx)
	})
	if ntf.CanReceive() {
		g.Go(func() error {
			return notifier.Forward(gctx, lg, ntf, pub)
		})
	}
	if cfg.Admin.Enabled {
		srv := admin.NewServer(lg, cfg.Admin, pub,
			admin.WithMetrics(m),
			admin.WithSessionStore(store),
			admin.WithNotifier(ntf),
			admin.WithLogLevel(level))
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
	}
	g.Go(func() error {
		addr := net.JoinHostPort(cfg.Listen.Host, strconv.Itoa(cfg.Listen.Port))
		return tr.ListenAndServe(gctx, addr, cfg.Listen.Path)
	})
	g.Go(func() error {
		return handleReload(gctx, lg, pub, dicts, &cfg.Dictionary)
	})

	<-gctx.Done()
	lg.Info("shutting down provider")

	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := pub.Do(cctx, func(ctx context.Context, p *core.PubContext) { p.CloseAll(ctx) }); err != nil &&
		!errors.Is(err, core.ErrDispatcherClosed) {
		lg.Warn("failed to close sessions", zap.Error(err))
	}
	cancel()
	stopDispatch()

	err = g.Wait()
	if closer, ok := store.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil {
			lg.Warn("failed to close session store", zap.Error(cerr))
		}
	}
	if closer, ok := ntf.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil {
			lg.Warn("failed to close notifier", zap.Error(cerr))
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("provider stopped with error", zap.Error(err))
		return err
	}
	lg.Info("provider stopped")
	return nil
}

// wireManagers registers every domain manager on pub and marks the default
// service up once they are all in place.
func wireManagers(pub *core.PubContext, cfg *config.ProviderConfig, authenticator auth.Authenticator, models []omm.MsgModelType) (*dictdomain.Manager, error) {
	pub.AddDomainMgr(login.New(pub, authenticator, &cfg.Login))
	pub.AddDomainMgr(directory.New(pub))
	dicts := dictdomain.New(pub, &cfg.Dictionary)
	if cfg.Dictionary.FieldPath != "" {
		if err := dicts.AutoDictionary(cfg.Dictionary.FieldPath, cfg.Dictionary.EnumPath); err != nil {
			return nil, err
		}
	}
	for _, model := range models {
		pub.AddDomainMgr(marketprice.New(pub, model, &cfg.Service))
	}
	dicts.IndicateServiceInitialized()
	return dicts, nil
}

// handleReload reloads the dictionary files on SIGHUP. A failed load keeps the
// published dictionary.
func handleReload(ctx context.Context, lg *zap.Logger, pub *core.PubContext, dicts *dictdomain.Manager, cfg *config.DictionaryConfig) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			if cfg.FieldPath == "" {
				lg.Info("reload requested, no dictionary configured")
				continue
			}
			d, err := dictionary.Load(cfg.FieldPath, cfg.EnumPath)
			if err != nil {
				lg.Error("failed to reload dictionary", zap.Error(err))
				continue
			}
			err = pub.Do(ctx, func(context.Context, *core.PubContext) { dicts.UseDictionary(d) })
			if err != nil {
				lg.Warn("failed to publish reloaded dictionary", zap.Error(err))
			}
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
