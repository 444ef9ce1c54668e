package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-garage-auth"
	"github.com/goliatone/go-garage-auth/adapters/natssink"
	"github.com/goliatone/go-garage-auth/adapters/promsink"
	"github.com/goliatone/go-garage-auth/config"
	"github.com/goliatone/go-garage-auth/provider/local"
	"github.com/goliatone/go-garage-auth/repository"
	"github.com/goliatone/go-garage-auth/storage"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type loggerProvider struct {
	base *glog.BaseLogger
}

func (p loggerProvider) GetLogger(name string) auth.Logger {
	return p.base.GetLogger(name)
}

type demoFlags struct {
	envFile  string
	email    string
	password string
	name     string
	signUp   bool
	signOut  bool
	avatar   string
}

func main() {
	var flags demoFlags
	flag.StringVar(&flags.envFile, "env", ".env", "optional env file")
	flag.StringVar(&flags.email, "email", "", "account email for the demo flow")
	flag.StringVar(&flags.password, "password", "", "account password for the demo flow")
	flag.StringVar(&flags.name, "name", "", "display name used with -signup")
	flag.BoolVar(&flags.signUp, "signup", false, "register the account before signing in")
	flag.BoolVar(&flags.signOut, "signout", false, "sign out at the end of the demo flow")
	flag.StringVar(&flags.avatar, "avatar", "", "image file uploaded as avatar after sign in")
	flag.Parse()

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("garage"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
	provider := loggerProvider{base: lgr}
	logger := provider.GetLogger("main")

	if err := run(flags, lgr, provider); err != nil {
		logger.Error("garage-auth failed", "error", err)
		os.Exit(1)
	}
}

func run(flags demoFlags, lgr *glog.BaseLogger, provider loggerProvider) error {
	logger := provider.GetLogger("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, lgr.GetLogger("config"), flags.envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Redacted()))
	fmt.Println("============")

	client, err := repository.Open(cfg.Database, repository.WithLogger(lgr.GetLogger("persistence")))
	if err != nil {
		return err
	}
	db := client.DB()
	defer db.Close()

	if err := repository.Migrate(ctx, client); err != nil {
		return err
	}

	store, err := local.NewStore(db, []byte(cfg.Session.Secret),
		local.WithTokenTTL(cfg.Session.TokenTTL),
		local.WithIssuer(cfg.Session.Issuer),
		local.WithMinPasswordLength(cfg.MinPasswordLength),
		local.WithLoggerProvider(provider),
	)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	sinks := []auth.ActivitySink{promsink.New(registry)}

	if cfg.NATS.Enabled() {
		natsSink, err := natssink.Connect(cfg.NATS.URL, natssink.WithSubjectPrefix(cfg.NATS.SubjectPrefix))
		if err != nil {
			logger.Warn("nats unavailable, activity events stay local", "error", err)
		} else {
			defer natsSink.Close()
			sinks = append(sinks, natsSink)
		}
	}

	noticeLogger := provider.GetLogger("notices")
	svc := auth.NewLifecycleService(store, repository.NewProfiles(db),
		auth.WithConfig(cfg),
		auth.WithLoggerProvider(provider),
		auth.WithActivitySink(auth.MultiSink(sinks...)),
		auth.WithNotifier(auth.NotifierFunc(func(n auth.Notice) {
			noticeLogger.Warn(n.Message, "level", n.Level, "code", n.TextCode)
		})),
	)
	defer svc.Close()

	viewLogger := provider.GetLogger("views")
	defer svc.Subscribe(func(state auth.State) {
		var userID string
		if state.User != nil {
			userID = state.User.ID
		}
		viewLogger.Debug("state", "readiness", state.Readiness, "user_id", userID, "loading", state.Loading)
	})()
	defer svc.OnNavigate(func(nav auth.NavigationSignal) {
		viewLogger.Info("navigate", "path", nav.Path, "reason", nav.Reason)
	})()

	if cfg.Metrics.Enabled() {
		srv := serveMetrics(cfg.Metrics.Addr, registry, provider.GetLogger("metrics"))
		defer srv.Shutdown(context.Background())
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, cfg.GetReadinessTimeout()+time.Second)
	state, err := svc.WaitReady(waitCtx)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("lifecycle ready", "signed_in", state.IsSignedIn())

	if flags.email != "" {
		if err := runDemo(ctx, svc, cfg, flags, provider); err != nil {
			return err
		}
	}

	if !cfg.Metrics.Enabled() {
		return nil
	}

	logger.Info("serving metrics, press ctrl+c to exit", "addr", cfg.Metrics.Addr)
	<-ctx.Done()
	return nil
}

func runDemo(ctx context.Context, svc *auth.LifecycleService, cfg *config.Config, flags demoFlags, provider loggerProvider) error {
	logger := provider.GetLogger("demo")

	if flags.signUp {
		err := svc.SignUp(ctx, auth.SignUpRequest{
			Email:       flags.email,
			Password:    flags.password,
			DisplayName: flags.name,
		})
		if err != nil {
			return err
		}
	} else if err := svc.SignIn(ctx, flags.email, flags.password); err != nil {
		return err
	}

	if err := waitForUser(ctx, svc); err != nil {
		return err
	}
	fmt.Println(print.MaybeHighlightJSON(svc.CurrentUser()))

	if flags.avatar != "" {
		if !cfg.Storage.Enabled() {
			logger.Warn("avatar upload skipped, no bucket configured")
		} else if err := uploadAvatar(ctx, svc, cfg, flags.avatar, provider); err != nil {
			return err
		}
	}

	if flags.signOut {
		return svc.SignOut(ctx)
	}
	return nil
}

func waitForUser(ctx context.Context, svc *auth.LifecycleService) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.After(5 * time.Second)
	for svc.CurrentUser() == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return goerrors.New("signed in user was not reconciled in time", goerrors.CategoryOperation)
		case <-ticker.C:
		}
	}
	return nil
}

func uploadAvatar(ctx context.Context, svc *auth.LifecycleService, cfg *config.Config, file string, provider loggerProvider) error {
	objects, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
		UsePathStyle:    cfg.Storage.UsePathStyle,
	})
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}

	uploader := storage.NewAvatarUploader(objects, svc, storage.WithAvatarLoggerProvider(provider))
	url, err := uploader.Upload(ctx, filepath.Base(file), http.DetectContentType(head[:n]), f)
	if err != nil {
		return err
	}
	provider.GetLogger("demo").Info("avatar uploaded", "url", url)
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger auth.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return srv
}
