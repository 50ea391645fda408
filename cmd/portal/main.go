package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenant-portal/internal/di"
	"tenant-portal/internal/gateway"
	"tenant-portal/internal/metrics"
	rtmodel "tenant-portal/internal/realtime/domain/model"
	"tenant-portal/internal/shared/logger"

	"github.com/joho/godotenv"
)

func main() {
	host := flag.String("host", "", "host the application is loaded from (default PORTAL_HOST)")
	path := flag.String("path", "/", "initial route")
	email := flag.String("email", "", "log in with this email")
	password := flag.String("password", "", "password for -email")
	follow := flag.Bool("follow", false, "stay connected and print realtime messages until interrupted")
	logout := flag.Bool("logout", false, "log out before exiting")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}
	cfg, err := di.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logger)
	logger.SetDefault(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.New(ctx, cfg, di.Options{
		Host:   *host,
		Logger: appLogger,
		Redirector: gateway.RedirectFunc(func(p string) {
			appLogger.Warnf("Application restart required, continue at %s", p)
		}),
	})
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			appLogger.Errorf("Failed to close container: %v", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.SetupMetricsRoute(container.Registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLogger.Errorf("Metrics server failed: %v", err)
			}
		}()
		appLogger.Infof("Metrics available on %s/metrics", cfg.MetricsAddr)
	}

	if container.Channel != nil {
		container.Channel.OnMessage("*", printMessage)
	}

	if err := container.Boot(ctx, *path); err != nil {
		appLogger.Errorf("Boot failed: %v", err)
	}
	if *email != "" {
		if err := container.Login(ctx, *email, *password); err != nil {
			appLogger.Errorf("Login failed: %v", err)
		}
	}
	printSession(ctx, container)

	if *follow && container.Channel != nil && container.Session.Authenticated() {
		fmt.Println("Listening for realtime messages, press Ctrl+C to stop")
		<-ctx.Done()
	}

	if *logout {
		if err := container.Logout(context.Background()); err != nil {
			appLogger.Errorf("Logout failed: %v", err)
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
}

func printSession(ctx context.Context, c *di.Container) {
	fmt.Printf("Application: %s (tenant %q)\n", c.Application.Name, c.Subdomain)
	if m := c.Router.Current(); m != nil {
		fmt.Printf("Route:       %s\n", m.FullPath())
	}
	if !c.Session.Authenticated() {
		fmt.Println("Session:     not authenticated")
		return
	}
	if u := c.Session.User(); u != nil {
		fmt.Printf("User:        %s <%s> role=%s\n", u.Name, u.Email, u.Role)
	}
	if exp, err := c.Session.TokenExpiry(); err == nil {
		fmt.Printf("Token until: %s\n", exp.Format(time.RFC3339))
	}
	if cp := c.Session.Company(); cp != nil {
		fmt.Printf("Company:     %s (%s)\n", cp.Name, cp.SubscriptionStatus)
		broadcasts, err := c.API.Broadcasts(ctx)
		if err != nil {
			fmt.Printf("Broadcasts:  unavailable: %v\n", err)
			return
		}
		fmt.Printf("Broadcasts:  %d\n", len(broadcasts))
		for _, b := range broadcasts {
			mark := " "
			if !b.IsRead {
				mark = "*"
			}
			fmt.Printf("  %s [%d] %s  %s\n", mark, b.ID, b.Timestamp.Format("2006-01-02 15:04"), b.Message)
		}
	}
}

func printMessage(msg rtmodel.Message) {
	switch m := msg.(type) {
	case *rtmodel.BroadcastNotice:
		fmt.Printf("[broadcast] #%d %s\n", m.ID, m.Message)
	case *rtmodel.SuperAdminDashboardUpdate:
		fmt.Printf("[dashboard] companies=%d active=%d trial=%d expired=%d\n",
			m.TotalCompanies, m.ActiveSubscriptions, m.TrialSubscriptions, m.ExpiredSubscriptions)
	case *rtmodel.SuperAdminNotification:
		fmt.Printf("[notification] %s\n", m.Message)
	default:
		fmt.Printf("[%s] %s\n", msg.Type(), string(msg.Envelope().Payload))
	}
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nBoots the tenant application for a host against API_BASE_URL.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
}
