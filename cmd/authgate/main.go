package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-authgate"
	authgateadapter "github.com/goliatone/go-authgate/adapters/featuregate"
	"github.com/goliatone/go-authgate/config"
	"github.com/goliatone/go-authgate/messaging"
	"github.com/goliatone/go-authgate/metrics"
	"github.com/goliatone/go-authgate/provider/identitytoolkit"
	"github.com/goliatone/go-authgate/provider/remoteconfig"
	"github.com/goliatone/go-authgate/provider/rtdb"
	"github.com/goliatone/go-authgate/repository"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/time/rate"
)

type App struct {
	config   *config.Config
	bunDB    *bun.DB
	repo     repository.RepositoryManager
	identity *identitytoolkit.Client
	hub      *messaging.Hub
	registry *prometheus.Registry
	srv      *fiber.App
	core     *authgate.App
	logger   *glog.BaseLogger
	out      io.Writer
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	envFile := flag.String("env", ".env", "optional .env file")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lgr := newLogger(cfg.Logging)

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
		out:    os.Stdout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}
	defer app.bunDB.Close()

	if err := WithIdentity(ctx, app); err != nil {
		panic(err)
	}

	if err := WithCore(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	if err := app.core.Start(ctx); err != nil {
		panic(err)
	}
	app.printLogin()

	done := make(chan struct{})
	go func() {
		defer close(done)
		RunShell(ctx, app, os.Stdin)
	}()

	select {
	case <-done:
	case sig := <-exitSignal():
		app.GetLogger("app").Info("exit signal received", "signal", sig.String())
	}

	app.core.Stop()
	app.identity.Close()
	if app.srv != nil {
		if err := app.srv.Shutdown(); err != nil {
			app.GetLogger("app").Error("http shutdown failed", "error", err)
		}
	}
}

func newLogger(cfg config.LoggingConfig) *glog.BaseLogger {
	level := glog.WithLevel(glog.Info)
	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "trace":
		level = glog.WithLevel(glog.Trace)
	case "debug":
		level = glog.WithLevel(glog.Debug)
	case "warn":
		level = glog.WithLevel(glog.Warn)
	case "error":
		level = glog.WithLevel(glog.Error)
	}

	if cfg.Format == "pretty" {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			level,
			glog.WithName("authgate"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		level,
		glog.WithName("authgate"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

func WithPersistence(ctx context.Context, app *App) error {
	cfg := app.config.Persistence
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetServer())
	if err != nil {
		return err
	}

	client, err := repository.NewPersistence(cfg, sqldb, sqlitedialect.New(), app.GetLogger("persistence"))
	if err != nil {
		return err
	}

	if err := repository.Migrate(ctx, client); err != nil {
		return err
	}

	if report := client.Report(); report != nil && !report.IsZero() {
		app.GetLogger("persistence").Info("migrations applied", "report", report.String())
	}

	app.bunDB = client.DB()
	app.repo = repository.NewRepositoryManager(app.bunDB)
	app.repo.MustValidate()
	return nil
}

func WithIdentity(ctx context.Context, app *App) error {
	icfg := app.config.Identity
	app.identity = identitytoolkit.New(identitytoolkit.Config{
		APIKey:           icfg.APIKey,
		ProjectID:        icfg.ProjectID,
		IdentityURL:      icfg.IdentityURL,
		SecureTokenURL:   icfg.SecureTokenURL,
		JWKSURL:          icfg.JWKSURL,
		SkipVerification: icfg.SkipVerification,
		Store:            app.repo.KeyValues(),
		Logger:           app.GetLogger("identity"),
	})

	user, err := app.identity.Restore(ctx)
	if err != nil {
		app.GetLogger("identity").Warn("stored session not restored", "error", err)
		return nil
	}
	if user != nil {
		app.GetLogger("identity").Info("session restored", "uid", user.UID)
	}
	return nil
}

func WithCore(ctx context.Context, app *App) error {
	cfg := app.config

	var datastore authgate.Datastore = app.repo.Profiles()
	if cfg.Database.URL != "" {
		datastore = rtdb.New(rtdb.Config{
			BaseURL: cfg.Database.URL,
			Tokens:  app.identity,
			Logger:  app.GetLogger("rtdb"),
		})
	}

	var remote authgate.RemoteConfig
	if cfg.RemoteConfig.Enabled {
		remote = remoteconfig.New(remoteconfig.Config{
			APIKey:    cfg.Identity.APIKey,
			ProjectID: cfg.Identity.ProjectID,
			AppID:     cfg.RemoteConfig.AppID,
			BaseURL:   cfg.RemoteConfig.BaseURL,
			Logger:    app.GetLogger("remoteconfig"),
		})
	}

	app.hub = messaging.NewHub(messaging.WithHubLogger(app.GetLogger("messaging")))

	app.registry = prometheus.NewRegistry()
	collector := metrics.NewCollector(app.registry)

	claims := authgateadapter.NewClaimsProvider()
	transitionLogger := app.GetLogger("transitions")

	app.core = authgate.NewApp(cfg, authgate.Collaborators{
		Identity:     app.identity,
		Datastore:    datastore,
		RemoteConfig: remote,
		Messaging:    app.hub,
		Store:        app.repo.KeyValues(),
		Navigator:    authgate.NavigatorFunc(app.navigate),
		Notifier:     terminalNotifier{out: app.out},
	},
		authgate.WithAppLoggerProvider(app.logger),
		authgate.WithAppActivitySink(authgate.ActivitySinks(app.repo.Activity(), collector)),
		authgate.WithAppTransitionHook(func(ctx context.Context, tc authgate.TransitionContext) {
			actor, err := claims.ClaimsFromContext(ctx)
			if err != nil {
				transitionLogger.Error("claims lookup failed", "error", err)
				return
			}
			transitionLogger.Info("session transition",
				"from", tc.From.State,
				"to", tc.To.State,
				"subject", actor.SubjectID,
				"org", actor.OrgID,
				"roles", actor.Roles,
			)
		}),
		authgate.WithAppNotificationOpenedHandler(func(_ context.Context, msg *authgate.RemoteMessage) error {
			if screen := msg.Data[authgate.DataKeyScreen]; screen != "" {
				fmt.Fprintf(app.out, "-> notification wants screen %q\n", screen)
			}
			return nil
		}),
	)
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	cfg := app.config
	if !cfg.Ingress.Enabled && !cfg.Metrics.Enabled {
		return nil
	}

	srv := fiber.New(fiber.Config{
		AppName:               "authgate",
		DisableStartupMessage: true,
	})

	if cfg.Ingress.Enabled {
		ingress := messaging.NewIngress(app.hub, messaging.IngressConfig{
			Limit: rate.Limit(cfg.Ingress.Rate),
			Burst: cfg.Ingress.Burst,
		})
		ingress.Register(srv.Group("/push"))
	}

	if cfg.Metrics.Enabled {
		srv.Get(cfg.Metrics.Path, adaptor.HTTPHandler(metrics.Handler(app.registry)))
	}

	addr := cfg.Ingress.Addr
	if addr == "" {
		addr = config.Default().Ingress.Addr
	}

	app.srv = srv
	go func() {
		if err := srv.Listen(addr); err != nil {
			app.GetLogger("http").Error("http server stopped", "error", err)
		}
	}()
	app.GetLogger("http").Info("http server listening", "addr", addr)
	return nil
}

func (a *App) navigate(route authgate.Route) {
	fmt.Fprintf(a.out, "-> navigate %s\n", route)
	if route.Group() == authgate.RouteGroupProtected {
		a.printHome()
		return
	}
	a.printLogin()
}

func (a *App) printLogin() {
	fmt.Fprintln(a.out, print.MaybeHighlightJSON(a.core.Login.View()))
}

func (a *App) printHome() {
	fmt.Fprintln(a.out, print.MaybeHighlightJSON(a.core.Home.View()))
}

type terminalNotifier struct {
	out io.Writer
}

func (n terminalNotifier) Alert(title, message string, kind authgate.AlertKind) {
	fmt.Fprintf(n.out, "[%s] %s: %s\n", strings.ToUpper(string(kind)), title, message)
}

func (n terminalNotifier) Toast(toast authgate.Toast) {
	fmt.Fprintf(n.out, "(%s) %s: %s\n", toast.Kind, toast.Title, toast.Body)
}

const shellHelp = `commands:
  email <address>       set the email field
  password <secret>     set the password field
  signin | signup       submit the form
  forgot                request a password reset email
  signout               sign out
  view                  print the current screen
  refresh               fetch remote config
  push <title> [body]   deliver a push message
  background | foreground
  activity [n]          list recent activity
  quit`

// RunShell reads commands from in until EOF, "quit" or ctx is done.
func RunShell(ctx context.Context, app *App, in io.Reader) {
	fmt.Fprintln(app.out, shellHelp)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(app.out, "> ")
		if !scanner.Scan() || ctx.Err() != nil {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if cmd == "quit" || cmd == "exit" {
			return
		}
		if err := runCommand(ctx, app, cmd, strings.TrimSpace(arg)); err != nil {
			fmt.Fprintf(app.out, "error: %v\n", err)
		}
	}
}

func runCommand(ctx context.Context, app *App, cmd, arg string) error {
	login := app.core.Login

	switch cmd {
	case "":
		return nil
	case "email":
		login.SetEmail(arg)
	case "password":
		login.SetPassword(arg)
	case "signin":
		_, err := login.SignIn(ctx)
		return err
	case "signup":
		_, err := login.SignUp(ctx)
		return err
	case "forgot":
		return login.ForgotPassword(ctx)
	case "signout":
		return app.core.Home.SignOut(ctx)
	case "view":
		if app.core.Gate.Route().Group() == authgate.RouteGroupProtected {
			app.printHome()
		} else {
			app.printLogin()
		}
	case "refresh":
		activated := app.core.Flags.Refresh(ctx)
		fmt.Fprintf(app.out, "remote config activated=%v title=%q\n", activated, app.core.Flags.Title())
	case "push":
		title, body, _ := strings.Cut(arg, " ")
		return app.hub.Deliver(ctx, &authgate.RemoteMessage{
			From:         "shell",
			Notification: &authgate.Notification{Title: title, Body: body},
		})
	case "background":
		app.hub.SetForeground(false)
	case "foreground":
		app.hub.SetForeground(true)
	case "activity":
		limit := 10
		if arg != "" {
			if _, err := fmt.Sscanf(arg, "%d", &limit); err != nil {
				return err
			}
		}
		records, err := app.repo.Activity().Recent(ctx, "", limit)
		if err != nil {
			return err
		}
		fmt.Fprintln(app.out, print.MaybeHighlightJSON(records))
	case "help":
		fmt.Fprintln(app.out, shellHelp)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func exitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
