package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"corkboard/internal/board"
	"corkboard/internal/boardsync"
	"corkboard/internal/store"
)

// closeTimeout bounds the final flush of pending pushes on exit.
const closeTimeout = 5 * time.Second

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	styleDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleID    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
)

type rootFlags struct {
	configPath  string
	user        string
	backend     string
	redisAddr   string
	mongoURI    string
	logFile     string
	metricsAddr string
	verbose     bool
}

// cli holds the state shared by every command.
type cli struct {
	flags  rootFlags
	config *Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "corkboard",
		Short:        "Corkboard is a shared canvas of notes, images and drawings",
		Long:         `Corkboard opens a shared board in the terminal. Everyone on the board sees every note, emoji, sticker, image and drawing move as it is edited.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(c.flags.configPath)
			if err != nil {
				return err
			}
			c.applyFlags(config)
			if err := config.validate(); err != nil {
				return err
			}
			c.config = config
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "config file (default ~/.corkboard.toml)")
	pf.StringVar(&c.flags.user, "user", "", "act as this user")
	pf.StringVar(&c.flags.backend, "store", "", "store backend: memory, redis, mongo or none")
	pf.StringVar(&c.flags.redisAddr, "redis-addr", "", "redis address")
	pf.StringVar(&c.flags.mongoURI, "mongo-uri", "", "mongodb connection string")
	pf.StringVar(&c.flags.logFile, "log-file", "", "log file for interactive sessions (default <cache dir>/corkboard.log)")
	pf.StringVar(&c.flags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	pf.BoolVarP(&c.flags.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.openCommand())
	root.AddCommand(c.newCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.deleteCommand())
	return root
}

func (c *cli) applyFlags(config *Config) {
	f := c.flags
	if f.user != "" {
		config.User = f.user
	}
	if f.backend != "" {
		config.Store.Backend = strings.ToLower(f.backend)
	}
	if f.redisAddr != "" {
		config.Store.RedisAddr = f.redisAddr
	}
	if f.mongoURI != "" {
		config.Store.MongoURI = f.mongoURI
	}
}

// start builds the logger and the app for cmd. Interactive sessions log to
// a file because the TUI owns the terminal. The returned func releases
// everything.
func (c *cli) start(cmd *cobra.Command, interactive bool) (context.Context, *app, func(), error) {
	level := log.InfoLevel
	if c.flags.verbose {
		level = log.DebugLevel
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	logger := newLogger(os.Stderr, level)
	if interactive {
		path := c.flags.logFile
		if path == "" {
			path = filepath.Join(c.config.CacheDirectory, "corkboard.log")
		}
		f, err := openLogFile(path)
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, func() { f.Close() })
		logger = newLogger(f, level)
	}

	ctx, cancel := context.WithCancel(withLogger(cmd.Context(), logger))
	closers = append(closers, cancel)

	a, err := newApp(ctx, c.config)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	closers = append(closers, func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing store", "err", err)
		}
	})

	if c.flags.metricsAddr != "" {
		serveMetrics(ctx, c.flags.metricsAddr, a.registry, logger)
	}
	return ctx, a, cleanup, nil
}

func (c *cli) openCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open <board-id>",
		Short: "Open an existing board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := c.start(cmd, true)
			if err != nil {
				return err
			}
			defer cleanup()

			notify, changes := changeNotifier()
			ctrl := a.newController(notify)
			defer closeController(ctrl, a.logger)
			if err := ctrl.Open(ctx, args[0]); err != nil {
				return err
			}
			return runTUI(ctx, a, ctrl, changes)
		},
	}
}

func (c *cli) newCommand() *cobra.Command {
	var (
		noOpen bool
		public bool
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "new <topic>",
		Short: "Create a board hosted by you",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := c.start(cmd, !noOpen)
			if err != nil {
				return err
			}
			defer cleanup()

			notify, changes := changeNotifier()
			ctrl := a.newController(notify)
			defer closeController(ctrl, a.logger)

			b, err := ctrl.Create(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if public || limit > 0 {
				settings := board.Settings{}
				if public {
					settings.IsPublic = &public
				}
				if limit > 0 {
					settings.MaxItemsPerUser = &limit
				}
				if err := ctrl.SetBoardField(settings); err != nil {
					return err
				}
			}
			fmt.Println(b.ID)

			if noOpen {
				flushCtx, cancel := context.WithTimeout(ctx, closeTimeout)
				defer cancel()
				return ctrl.Flush(flushCtx)
			}
			return runTUI(ctx, a, ctrl, changes)
		},
	}
	cmd.Flags().BoolVar(&noOpen, "no-open", false, "print the id without opening the board")
	cmd.Flags().BoolVar(&public, "public", false, "list the board publicly")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum items per user (0 = unlimited)")
	return cmd
}

func (c *cli) listCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List public boards, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := c.start(cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			dir, err := a.directory()
			if err != nil {
				return err
			}
			boards, err := dir.ListPublic(ctx, limit)
			if err != nil {
				return fmt.Errorf("list boards: %w", err)
			}
			if len(boards) == 0 {
				fmt.Println(styleDim.Render("No public boards"))
				return nil
			}
			fmt.Println(styleTitle.Render(fmt.Sprintf("%d public boards", len(boards))))
			for _, s := range boards {
				fmt.Println(formatSummary(s))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "maximum boards to list")
	return cmd
}

func formatSummary(s board.Summary) string {
	created := time.UnixMilli(s.CreatedAt).Format(time.DateTime)
	return fmt.Sprintf("%s  %s  %s",
		styleID.Render(s.ID),
		s.Topic,
		styleDim.Render("by "+s.Host+", "+created),
	)
}

func (c *cli) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <board-id> <file.png|file.txt>",
		Short: "Render a board to a PNG image or a text file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := c.start(cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()

			ctrl := a.newController(nil)
			defer closeController(ctrl, a.logger)
			if err := ctrl.Open(ctx, args[0]); err != nil {
				return err
			}
			view := ctrl.View()

			filename := args[1]
			switch strings.ToLower(filepath.Ext(filename)) {
			case exportPNGExt:
				err = exportPNG(view.Board, filename)
			case exportTextExt:
				err = exportVisualTXT(view, fullViewport(view.Board), filename)
			default:
				return fmt.Errorf("unsupported export format %q (use .png or .txt)", filepath.Ext(filename))
			}
			if err != nil {
				return fmt.Errorf("export %s: %w", args[0], err)
			}
			a.logger.Info("exported board", "board", args[0], "file", filename, "items", len(view.Board.Items))
			return nil
		},
	}
}

func (c *cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <board-id>",
		Short: "Delete a board you host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := c.start(cmd, false)
			if err != nil {
				return err
			}
			defer cleanup()
			return deleteBoard(ctx, a, args[0])
		},
	}
}

// deleteBoard removes board id from the store and the local cache. Only the
// host may delete a board.
func deleteBoard(ctx context.Context, a *app, id string) error {
	if a.backend == nil {
		return errors.New("no remote store configured")
	}
	b, err := a.backend.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("delete board %s: %w", id, err)
	}
	if !b.IsHost(a.user.Name) {
		return fmt.Errorf("delete board %s: %w: hosted by %s", id, board.ErrForbidden, b.Host)
	}
	if err := a.backend.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete board %s: %w", id, err)
	}
	if a.cache != nil {
		if err := a.cache.Delete(ctx, id); err != nil {
			a.logger.Debug("cache delete failed", "board", id, "err", err)
		}
	}
	a.logger.Info("deleted board", "board", id, "topic", b.Topic)
	return nil
}

func closeController(ctrl *boardsync.Controller, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := ctrl.Close(ctx); err != nil {
		logger.Warn("pending changes may not have been pushed", "err", err)
	}
}
