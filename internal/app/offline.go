package app

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"clubbot/internal/domain"
	"clubbot/internal/importer"
	"clubbot/internal/report"
	"clubbot/internal/storage/sqlite"
)

const defaultDBPath = "./clubbot.db"

// offlineOptions are shared by the commands that work on the database
// without connecting to Slack.
type offlineOptions struct {
	dbPath   string
	timezone string
}

func (o *offlineOptions) openDB() (*sql.DB, error) {
	path := o.dbPath
	if path == "" {
		path = os.Getenv("DB_PATH")
	}
	if path == "" {
		path = defaultDBPath
	}
	db, err := sqlite.InitDB(path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return db, nil
}

func (o *offlineOptions) now() (time.Time, error) {
	if o.timezone == "" || strings.EqualFold(o.timezone, "Local") {
		return time.Now(), nil
	}
	loc, err := time.LoadLocation(o.timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone '%s': %w", o.timezone, err)
	}
	return time.Now().In(loc), nil
}

func newImportCmd(opts *offlineOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Load a JSON export of the attendance store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			sum, err := importer.ImportFile(db, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d members, %d sessions and %d corrections from %s\n", sum.Members, sum.Sessions, sum.Corrections, args[0])
			return nil
		},
	}
}

func newHoursCmd(opts *offlineOptions) *cobra.Command {
	var includeBoard bool
	cmd := &cobra.Command{
		Use:   "hours [full name]",
		Short: "Print the leaderboard, or one member's hours and time table",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := opts.now()
			if err != nil {
				return err
			}
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			members, err := sqlite.GetMembers(db)
			if err != nil {
				return fmt.Errorf("load members: %w", err)
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				logs, err := sqlite.GetAllMemberLogs(db)
				if err != nil {
					return fmt.Errorf("load logs: %w", err)
				}
				fmt.Fprintln(out, report.FormatLeaderboard(report.Leaderboard(members, logs, includeBoard, now)))
				return nil
			}

			name := strings.Join(args, " ")
			m, ok := domain.FindMember(members, name)
			if !ok {
				return fmt.Errorf("no member named %q", name)
			}
			memberLog, err := sqlite.GetMemberLog(db, m.Name)
			if err != nil {
				return fmt.Errorf("load log for %s: %w", m.Name, err)
			}
			st := report.Status(m, memberLog, true, now)
			fmt.Fprintln(out, strings.ReplaceAll(st.Summary(), "*", ""))
			fmt.Fprintf(out, "Hours needed: %s (%d%%)\n", st.Remaining(), st.Percent)
			if st.Result.Table != "" {
				fmt.Fprintln(out, st.Result.Table)
			}
			for _, entry := range st.Result.Malformed {
				fmt.Fprintf(out, "skipped malformed entry %s\n", entry)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeBoard, "include-board", false, "include board members in the leaderboard")
	return cmd
}

func newCSVCmd(opts *offlineOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "csv",
		Short: "Print every member's total seconds as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := opts.now()
			if err != nil {
				return err
			}
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			members, err := sqlite.GetMembers(db)
			if err != nil {
				return fmt.Errorf("load members: %w", err)
			}
			logs, err := sqlite.GetAllMemberLogs(db)
			if err != nil {
				return fmt.Errorf("load logs: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.FormatCSV(report.AttendanceRows(members, logs, now), true))
			return nil
		},
	}
}

func newMemberCmd(opts *offlineOptions) *cobra.Command {
	member := &cobra.Command{
		Use:   "member",
		Short: "Manage the member roster",
	}

	var slackID, groups string
	add := &cobra.Command{
		Use:   "add <full name>",
		Short: "Add or update a member",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := domain.Member{
				Name:    strings.Join(args, " "),
				SlackID: strings.TrimSpace(slackID),
				Groups:  strings.Join(strings.Fields(groups), " "),
			}
			if err := validator.New().Struct(m); err != nil {
				return fmt.Errorf("invalid member: %w", err)
			}
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := sqlite.UpsertMember(db, m); err != nil {
				return fmt.Errorf("save member %s: %w", m.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", m.Name)
			return nil
		},
	}
	add.Flags().StringVar(&slackID, "slack-id", "", "Slack user ID")
	add.Flags().StringVar(&groups, "groups", "", "space separated groups, e.g. \"board\"")

	list := &cobra.Command{
		Use:   "list",
		Short: "List members in storage order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			members, err := sqlite.GetMembers(db)
			if err != nil {
				return fmt.Errorf("load members: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, m := range members {
				fmt.Fprintf(out, "%s\t%s\t%s\n", m.Name, m.SlackID, m.Groups)
			}
			return nil
		},
	}

	member.AddCommand(add, list)
	return member
}
