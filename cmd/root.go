// Package cmd contains the examgate CLI.
package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/grindolympiads/examgate/api"
	apicache "github.com/grindolympiads/examgate/api/cache"
	"github.com/grindolympiads/examgate/config"
	"github.com/grindolympiads/examgate/database"
	"github.com/grindolympiads/examgate/notifications"
	"github.com/grindolympiads/examgate/notify/webpush"
	"github.com/grindolympiads/examgate/olympiads"
	"github.com/grindolympiads/examgate/scheduler"
	"github.com/grindolympiads/examgate/session"
	"github.com/spf13/cobra"
)

var rootCmdPersistentFlags struct {
	LogFile    string
	ConfigFile string
	LogLevel   string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogFile, "log-file", "", "File to write logs to")
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to config file (default: search for config.yml in current dir, ~/.examgate, /etc/examgate)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

var rootCmd = &cobra.Command{
	Use:   "examgate",
	Short: "Examgate is the session and authorization gateway of the GrindOlympiads exam platform",
	Long: `Examgate sits between the GrindOlympiads SPA and the Cloud-Function backend.
It owns the visitor sessions: login, logout, admin mode, notification feeds
and the exam listing, so the SPA only ever talks to one origin.`,
	Example: `examgate --config config.yml
  examgate -c /path/to/config.yml --log-level debug`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setLogLevel(rootCmdPersistentFlags.LogLevel)
		logToFile()
	},
	Run: root,
}

func root(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	client := olympiads.New(cfg.Backend)
	manager := session.NewManager(client, client, db)
	defer manager.Close()

	push, err := webpush.New(cfg.WebPush, db)
	if err != nil {
		log.Fatalf("failed to initialize webpush: %v", err)
	}

	avatarCache := apicache.NewAvatarCache(cfg.Cache.AvatarDir)

	server, err := api.New(ctx, cfg, client, manager, avatarCache, push)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	sched, err := setupScheduler(cfg, db, manager, push, avatarCache)
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	sched.Start()
	defer sched.Stop() //nolint:errcheck

	go func() {
		log.Info("starting API server", "listen", cfg.Listen)
		if err := server.Run(ctx); err != nil {
			log.Error("API server error", "error", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	log.Info("examgate started successfully")
	<-c
	log.Info("shutting down gracefully...")

	cancel()
	time.Sleep(2 * time.Second)
}

// setupScheduler registers the periodic jobs: polling notification feeds for
// logged-in sessions, pruning stale sessions and cleaning the avatar cache.
func setupScheduler(
	cfg *config.Config,
	db *database.DB,
	manager *session.Manager,
	push *webpush.Client,
	avatarCache *apicache.AvatarCache,
) (*scheduler.Scheduler, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, err
	}

	pollInterval := time.Duration(cfg.NotificationPollInterval) * time.Minute
	if err := sched.AddJob("notification-poll", pollInterval, func(ctx context.Context) error {
		manager.Range(func(s *session.Session, feed *notifications.Feed) bool {
			state := s.Snapshot()
			if !state.IsLoggedIn || feed == nil {
				return true
			}
			fresh, err := feed.Refresh(ctx)
			if err != nil || push == nil || state.User == nil {
				return true
			}
			for _, n := range fresh {
				if err := push.NotifyUser(ctx, state.User.ID, n); err != nil {
					log.Warn("failed to push notification", "user_id", state.User.ID, "error", err)
				}
			}
			return true
		})
		return nil
	}); err != nil {
		return nil, err
	}

	maxAge := time.Duration(cfg.SessionMaxAge) * time.Second
	if err := sched.AddJob("session-prune", time.Hour, func(ctx context.Context) error {
		removed, err := db.PruneSessions(ctx, maxAge)
		if err != nil {
			return err
		}
		if dropped := manager.Prune(); dropped > 0 || removed > 0 {
			log.Debug("pruned sessions", "records", removed, "live", dropped)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := sched.AddJob("avatar-cache-cleanup", 24*time.Hour, func(_ context.Context) error {
		return avatarCache.CleanupOld(7 * 24 * time.Hour)
	}); err != nil {
		return nil, err
	}

	return sched, nil
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "":
		log.SetLevel(log.InfoLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile() {
	if rootCmdPersistentFlags.LogFile == "" {
		return
	}
	file, err := os.OpenFile(rootCmdPersistentFlags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.Info("logging to both console and file", "file", rootCmdPersistentFlags.LogFile)
}

func Execute() error {
	return rootCmd.Execute()
}
