package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/yatube/internal/auth"
	"github.com/sakif/yatube/internal/config"
	"github.com/sakif/yatube/internal/media"
	sqliteRepo "github.com/sakif/yatube/internal/repository/sqlite"
	"github.com/sakif/yatube/internal/server"
	"github.com/sakif/yatube/internal/service"
)

// app is what every subcommand works with. It is filled in by the root
// command's PersistentPreRunE, after flags are parsed.
type app struct {
	out    io.Writer
	cfg    config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB

	dbPath string
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "yatubectl",
		Short:         "Administer a yatube installation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (default: DB_PATH)")

	root.AddCommand(a.groupCmd(), a.userCmd(), a.postCmd(), a.cacheCmd())
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return nil
}

// openDB opens the database lazily; "cache clear" never needs it.
func (a *app) openDB() (*sqliteRepo.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := sqliteRepo.New(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.db = db
	return db, nil
}

// =========================================================================
// GROUPS
// =========================================================================

func (a *app) groupService() (*service.GroupService, error) {
	db, err := a.openDB()
	if err != nil {
		return nil, err
	}
	return service.NewGroupService(db, a.logger), nil
}

func (a *app) groupCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "group", Short: "Manage post groups"}

	var title, slug, description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := a.groupService()
			if err != nil {
				return err
			}
			g, err := groups.Create(cmd.Context(), title, slug, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created group %d %q (/group/%s/)\n", g.ID, g.Title, g.Slug)
			return nil
		},
	}
	create.Flags().StringVar(&title, "title", "", "Group title (required)")
	create.Flags().StringVar(&slug, "slug", "", "URL slug: letters, digits, - and _ (required)")
	create.Flags().StringVar(&description, "description", "", "Group description")
	create.MarkFlagRequired("title")
	create.MarkFlagRequired("slug")

	list := &cobra.Command{
		Use:   "list",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := a.groupService()
			if err != nil {
				return err
			}
			all, err := groups.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSLUG\tTITLE")
			for _, g := range all {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", g.ID, g.Slug, g.Title)
			}
			return tw.Flush()
		},
	}

	del := &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete a group; its posts stay and lose their group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := a.groupService()
			if err != nil {
				return err
			}
			if err := groups.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted group %q\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, list, del)
	return cmd
}

// =========================================================================
// USERS
// =========================================================================

func (a *app) authService() (*service.AuthService, error) {
	db, err := a.openDB()
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(a.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	return service.NewAuthService(db, tokens, auth.NewPasswordService(), a.logger), nil
}

func (a *app) userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage accounts"}

	var email, password string
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a password account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.authService()
			if err != nil {
				return err
			}
			u, err := accounts.CreateUser(cmd.Context(), args[0], email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created user %d %q\n", u.ID, u.Username)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "Email address")
	create.Flags().StringVar(&password, "password", "", "Password (required)")
	create.MarkFlagRequired("password")

	del := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete an account with its posts, comments and follows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := a.authService()
			if err != nil {
				return err
			}
			if err := accounts.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted user %q\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, del)
	return cmd
}

// =========================================================================
// POSTS
// =========================================================================

func (a *app) postCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "post", Short: "Manage posts"}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a post, its comments and its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := service.ParseID("post", args[0])
			if err != nil {
				return err
			}
			db, err := a.openDB()
			if err != nil {
				return err
			}
			posts := service.NewPostService(db, db, db, a.logger)

			post, err := posts.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := posts.Delete(cmd.Context(), id); err != nil {
				return err
			}
			if post.Image != "" {
				store, err := media.NewStore(a.cfg.MediaRoot)
				if err != nil {
					return err
				}
				if err := store.Delete(post.Image); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "deleted post %d\n", id)
			return nil
		},
	}

	cmd.AddCommand(del)
	return cmd
}

// =========================================================================
// CACHE
// =========================================================================

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Manage the page cache"}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.CacheBackend != config.CacheRedis {
				fmt.Fprintln(a.out, "the memory cache lives inside the server process; restart the server to clear it")
				return nil
			}
			return clearRedis(cmd.Context(), a.cfg, a.out)
		},
	}

	cmd.AddCommand(clearCmd)
	return cmd
}

func clearRedis(ctx context.Context, cfg config.Config, out io.Writer) error {
	store, closer, err := server.OpenCacheStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	fmt.Fprintln(out, "page cache cleared")
	return nil
}
