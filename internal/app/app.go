package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/slack-go/slack"
	"github.com/spf13/cobra"

	"clubbot/internal/config"
	"clubbot/internal/domain"
	"clubbot/internal/health"
	"clubbot/internal/httpx"
	slackbot "clubbot/internal/integrations/slack"
	"clubbot/internal/roster"
	"clubbot/internal/storage/sqlite"
)

func Main() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the clubbot command tree. With no subcommand it runs
// the bot.
func NewRootCmd() *cobra.Command {
	opts := &offlineOptions{}
	root := &cobra.Command{
		Use:          "clubbot",
		Short:        "Club Slack bot: commands, attendance hours and sign-in reports",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "sqlite database path for offline commands (default $DB_PATH or ./clubbot.db)")
	root.PersistentFlags().StringVar(&opts.timezone, "tz", "Local", "time zone used to close open sessions")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Connect to Slack and answer commands",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context())
			},
		},
		newImportCmd(opts),
		newHoursCmd(opts),
		newCSVCmd(opts),
		newMemberCmd(opts),
	)
	return root
}

func serve(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Printf(
		"Config loaded. Prefix=%s Admins=%d Roles=%d Events=%d Timezone=%s ConfirmTimeout=%s MemberRefresh=%q ExternalHTTPTimeout=%s",
		cfg.Prefix,
		len(cfg.AdminSlackIDs),
		len(cfg.ToggleableRoles),
		len(cfg.Events),
		cfg.Timezone,
		cfg.ConfirmTimeout(),
		cfg.MemberRefreshSchedule,
		appliedHTTPTimeout,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	log.Printf("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	members := roster.New(func() ([]domain.Member, error) { return sqlite.GetMembers(db) })
	if err := members.Refresh(); err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	log.Printf("Members loaded count=%d", len(members.Members()))
	roster.StartRefreshScheduler(ctx, members, cfg.MemberRefreshSchedule, cfg.Location)

	if cfg.HealthAddr != "" {
		h := health.New(func(ctx context.Context) error { return sqlite.Ping(ctx, db) })
		go func() {
			if err := health.Serve(ctx, cfg.HealthAddr, h); err != nil {
				log.Printf("health server error: %v", err)
			}
		}()
	}

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)
	bot, err := slackbot.New(cfg, db, api, members, stop)
	if err != nil {
		return err
	}

	log.Println("Starting club bot...")
	if err := bot.Run(ctx); err != nil {
		return fmt.Errorf("slack bot: %w", err)
	}
	log.Println("Club bot stopped")
	return nil
}
