package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"threadline/internal/app"
	"threadline/internal/config"
	"threadline/internal/logger"
	"threadline/internal/models"
	"threadline/internal/services"

	"github.com/spf13/cobra"
)

// threadService is the part of the comment service the CLI drives.
type threadService interface {
	TreeFor(ctx context.Context, ref models.CommentableRef, minScore *int) ([]*services.TreeNode, error)
	RefreshSnapshots(ctx context.Context, id uint) (services.CascadeResult, error)
}

// opener connects to the backing services; the returned func releases them.
type opener func(ctx context.Context) (threadService, func(), error)

func openApp(ctx context.Context) (threadService, func(), error) {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a.Comments, func() {
		_ = a.Close(context.Background())
		logger.Sync()
	}, nil
}

func newRootCommand(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "threadctl",
		Short:         "Threadline maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newMigrateCommand(open))
	rootCmd.AddCommand(newRefreshCommand(open))
	rootCmd.AddCommand(newThreadCommand(open))
	return rootCmd
}

func newMigrateCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newRefreshCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <comment-id>",
		Short: "Rewrite the comment's title on every descendant notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.RefreshSnapshots(cmd.Context(), id)
			fmt.Fprintf(cmd.OutOrStdout(), "descendants: %d\nnotifications: %d\nupdated: %d\n",
				res.Descendants, res.Notifications, res.Updated)
			return err
		},
	}
}

func newThreadCommand(open opener) *cobra.Command {
	var minScore int

	cmd := &cobra.Command{
		Use:   "thread <articles|podcast_episodes> <id>",
		Short: "Print a comment thread in display order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, ok := models.CommentableTypeFromSlug(args[0])
			if !ok {
				return fmt.Errorf("unknown commentable type %q", args[0])
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			svc, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var threshold *int
			if cmd.Flags().Changed("min-score") {
				threshold = &minScore
			}
			roots, err := svc.TreeFor(cmd.Context(), models.CommentableRef{Type: typ, ID: id}, threshold)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, row := range services.FlattenTree(roots) {
				fmt.Fprintf(out, "%s[%d] %s (score %d): %s\n",
					strings.Repeat("  ", row.Depth), row.ID, row.User.Username, row.Score, row.Title())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Hide comments (and their replies) scoring below this")
	return cmd
}

func parseID(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(v), nil
}
