package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/mmdatafocus/clients_backend/clientsync"
	"github.com/mmdatafocus/clients_backend/config"
	"github.com/mmdatafocus/clients_backend/models"
	"github.com/mmdatafocus/clients_backend/utils"
	"github.com/spf13/cobra"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
)

func printJSON(v any) error {
	return utils.WriteIndentedJSON(os.Stdout, v)
}

func parseID(name, s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", name, s)
	}
	return id, nil
}

func mismatchesCmd(opts *globalOptions) *cobra.Command {
	var exportPath string
	cmd := &cobra.Command{
		Use:   "mismatches",
		Short: "List field mismatches between linked clients and WordPress users",
		Long: `Run a reconciliation pass and print the divergent, non-ignored fields of
every linked pair, followed by clients that are not linked yet.

Examples:
  clientsync mismatches
  clientsync mismatches --export mismatches.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				if exportPath != "" {
					f, err := os.Create(exportPath)
					if err != nil {
						return err
					}
					defer f.Close()
					if err := a.svc.ExportMismatches(ctx, f); err != nil {
						return err
					}
					okColor.Printf("✓ Report written to %s\n", exportPath)
					return nil
				}

				report, err := a.svc.Reconcile(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(report)
				}
				displayReport(report)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "write the report to an xlsx file")
	return cmd
}

func displayReport(report *clientsync.Report) {
	if len(report.Mismatches) == 0 {
		okColor.Println("No mismatches.")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CLIENT\tWP USER\tFIELD\tCLIENT VALUE\tWORDPRESS VALUE")
		fmt.Fprintln(w, "------\t-------\t-----\t------------\t---------------")
		for _, m := range report.Mismatches {
			fmt.Fprintf(w, "%d\t%d\t%s\t%q\t%q\n", m.ClientID, m.WpUserID, m.FieldName, m.ValueFromClient, m.ValueFromWP)
		}
		w.Flush()
	}
	if report.IgnoredCount > 0 {
		fmt.Printf("(%d ignored)\n", report.IgnoredCount)
	}

	if len(report.Unlinked) > 0 {
		fmt.Println()
		warnColor.Printf("Unlinked clients: %d\n", len(report.Unlinked))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  CLIENT\tEMAIL\tSUGGESTED WP USER")
		for _, c := range report.Unlinked {
			suggested := "-"
			if c.SuggestedUserID > 0 {
				suggested = strconv.Itoa(c.SuggestedUserID)
			}
			fmt.Fprintf(w, "  %d\t%s\t%s\n", c.ClientID, c.Email, suggested)
		}
		w.Flush()
	}

	if len(report.Orphaned) > 0 {
		fmt.Println()
		errColor.Printf("Links to missing WordPress users: %d\n", len(report.Orphaned))
		for _, o := range report.Orphaned {
			fmt.Printf("  client %d -> wp user %d\n", o.ClientID, o.WpUserID)
		}
	}
}

func pushCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <wp-user-id> <field> <value>",
		Short: "Write a value to a WordPress user's field",
		Long: `Fields: first_name, last_name, email, phone, postal_code.

Examples:
  clientsync push 42 email new@example.com`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID("wp-user-id", args[0])
			if err != nil {
				return err
			}
			return withApp(opts, func(ctx context.Context, a *app) error {
				if err := a.svc.PushField(ctx, userID, clientsync.Field(args[1]), args[2]); err != nil {
					return err
				}
				okColor.Printf("✓ WordPress user %d %s set to %q\n", userID, args[1], args[2])
				return nil
			})
		},
	}
}

func pushClientCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push-client <client-id> <field> <value>",
		Short: "Write a value to a client's field",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID("client-id", args[0])
			if err != nil {
				return err
			}
			return withApp(opts, func(ctx context.Context, a *app) error {
				if err := a.svc.PushClientField(ctx, clientID, clientsync.Field(args[1]), args[2]); err != nil {
					return err
				}
				okColor.Printf("✓ Client %d %s set to %q\n", clientID, args[1], args[2])
				return nil
			})
		},
	}
}

func ignoreCmd(opts *globalOptions, ignored bool) *cobra.Command {
	use, short := "ignore", "Ignore a mismatch while both values stay the same"
	if !ignored {
		use, short = "unignore", "Stop ignoring a mismatch"
	}
	return &cobra.Command{
		Use:   use + " <field> <client-value> <wordpress-value>",
		Short: short,
		Long: short + `.

Values are matched exactly, whitespace and case included.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				if err := a.svc.SetIgnored(ctx, clientsync.Field(args[0]), args[1], args[2], ignored); err != nil {
					return err
				}
				okColor.Printf("✓ %s %s %q / %q\n", use, args[0], args[1], args[2])
				return nil
			})
		},
	}
}

func rulesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List ignore rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				rules, err := a.svc.ListIgnoreRules(ctx)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(rules)
				}
				if len(rules) == 0 {
					fmt.Println("No ignore rules.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "FIELD\tCLIENT VALUE\tWORDPRESS VALUE\tBY\tAT")
				for _, r := range rules {
					fmt.Fprintf(w, "%s\t%q\t%q\t%s\t%s\n", r.FieldName, r.SourceValue, r.TargetValue, r.IgnoredBy, r.CreatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}
}

func linkCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link <client-id> <wp-user-id>",
		Short: "Link a client to a WordPress user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID("client-id", args[0])
			if err != nil {
				return err
			}
			userID, err := parseID("wp-user-id", args[1])
			if err != nil {
				return err
			}
			return withApp(opts, func(ctx context.Context, a *app) error {
				if err := a.svc.LinkClientToUser(ctx, clientID, userID); err != nil {
					return err
				}
				okColor.Printf("✓ Client %d linked to WordPress user %d\n", clientID, userID)
				return nil
			})
		},
	}
}

func syncPairCmd(opts *globalOptions) *cobra.Command {
	var direction string
	cmd := &cobra.Command{
		Use:   "sync-pair <client-id>",
		Short: "Push every mismatched field of one linked pair",
		Long: `Push every divergent, non-ignored field of a client and its WordPress user.

Examples:
  clientsync sync-pair 7 --direction to_wordpress
  clientsync sync-pair 7 --direction to_client`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID("client-id", args[0])
			if err != nil {
				return err
			}
			dir, err := clientsync.ParseDirection(direction)
			if err != nil {
				return err
			}
			return withApp(opts, func(ctx context.Context, a *app) error {
				result, err := a.svc.SyncPair(ctx, clientID, dir)
				if result != nil && opts.jsonOut {
					if jsonErr := printJSON(result); jsonErr != nil {
						return jsonErr
					}
				} else if result != nil {
					if len(result.Fields) == 0 {
						okColor.Println("Nothing to sync.")
					}
					for _, f := range result.Fields {
						if f.Error != "" {
							errColor.Printf("✗ %s: %s\n", f.FieldName, f.Error)
						} else {
							okColor.Printf("✓ %s = %q\n", f.FieldName, f.Value)
						}
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&direction, "direction", string(clientsync.DirectionToWordPress), "to_wordpress or to_client")
	return cmd
}

func auditCmd(opts *globalOptions) *cobra.Command {
	var clientID, limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the sync audit log, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				entries, err := a.svc.ListAuditLog(ctx, clientID, limit)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(entries)
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "AT\tACTOR\tACTION\tCLIENT\tWP USER\tFIELD\tOLD\tNEW\tSOURCE")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%q\t%q\t%s\n",
						e.CreatedAt.Format("2006-01-02 15:04:05"), e.ActorName, e.Action,
						e.ClientID, e.WpUserID, e.FieldName, e.OldValue, e.NewValue, e.Source)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&clientID, "client-id", 0, "only entries of this client")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries (up to 500)")
	return cmd
}

func staffCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff WordPress logins excluded from reconciliation",
	}

	var name, email string
	var wpUserID int
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a staff member and their WordPress login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || wpUserID <= 0 {
				return fmt.Errorf("--name and a positive --wp-user-id are required")
			}
			return withApp(opts, func(ctx context.Context, a *app) error {
				member := &models.StaffMember{Name: name, Email: email, WpUserId: &wpUserID}
				if err := a.stores.Staff.Create(ctx, member); err != nil {
					return err
				}
				okColor.Printf("✓ Staff member %d (%s) uses WordPress user %d\n", member.ID, name, wpUserID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "staff member name")
	add.Flags().StringVar(&email, "email", "", "staff member email")
	add.Flags().IntVar(&wpUserID, "wp-user-id", 0, "WordPress user id of the staff login")
	cmd.AddCommand(add)
	return cmd
}

func migrateCmd(opts *globalOptions) *cobra.Command {
	var wordPressTables, lock bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the client database tables",
		Long: `Create or update the tables owned by this service.

--wordpress-tables also creates the WordPress users and usermeta tables,
for local databases only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(ctx context.Context, a *app) error {
				var redisStore *config.RedisStore
				if lock {
					var err error
					redisStore, err = config.ConnectRedisWithRetry(ctx, a.cfg.RedisAddress, a.logger)
					if err != nil {
						return err
					}
					defer redisStore.Close()
				}
				if err := clientsync.Migrate(ctx, a.clientDB, redisStore, a.logger); err != nil {
					return err
				}
				if wordPressTables {
					if err := models.MigrateWordPressTables(a.wordPressDB, a.cfg.WpTablePrefix); err != nil {
						return err
					}
				}
				okColor.Println("✓ Migrated")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&wordPressTables, "wordpress-tables", false, "also create WordPress user tables (local only)")
	cmd.Flags().BoolVar(&lock, "lock", false, "hold the Redis migration lock while migrating")
	return cmd
}
