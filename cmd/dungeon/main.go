package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gubarz/dungeon/internal/config"
	"github.com/gubarz/dungeon/internal/executor"
	"github.com/gubarz/dungeon/internal/logging"
	"github.com/gubarz/dungeon/internal/metrics"
	"github.com/gubarz/dungeon/internal/notify"
	"github.com/gubarz/dungeon/internal/parser"
	"github.com/gubarz/dungeon/internal/server"
	"github.com/gubarz/dungeon/internal/store"
	"github.com/gubarz/dungeon/internal/ui"
	"github.com/gubarz/dungeon/internal/watch"
)

var version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "dungeon [file]",
	Short: "Plaintext infinite canvas",
	Long: `Serves a canvas kept in a single plaintext file.

Text boxes, rectangles and lines are stored one after another, each under a
header line. The file can be edited by hand while the canvas is open: changes
are picked up and pushed to the browser, and edits made in the browser are
written back without touching anything else in the file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve the canvas and watch the file for changes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Parse the file and show what saving it would change",
	Long: `Parses the canvas file and renders it back. Text is kept verbatim, so the
only differences are in header lines (padding, number formatting, defaults).
Exits non-zero when the file is not already in that form, unless --fix
rewrites it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var dumpCmd = &cobra.Command{
	Use:   "dump [file]",
	Short: "Print the parsed document",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDump,
}

var browseCmd = &cobra.Command{
	Use:   "browse [file]",
	Short: "Browse the elements of the canvas in the terminal",
	Long: `Lists every element with a preview of its content. Press Enter to print
the element's key, which is what the HTTP API addresses it by.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd, checkCmd, dumpCmd, browseCmd)

	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console, json")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().StringP("addr", "a", "", "Listen address")
		cmd.Flags().String("front", "", "Directory of the browser front end")
		cmd.Flags().Bool("no-metrics", false, "Disable the /metrics endpoint")
	}

	checkCmd.Flags().Bool("fix", false, "Rewrite the file in canonical form")
	dumpCmd.Flags().StringP("format", "f", "json", "Output format: json, yaml")
	browseCmd.Flags().StringP("query", "q", "", "Initial filter")
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
	}
}

// applyServeFlags lets flags override config for the serve command only
// (they are declared on two commands, so they can't be bound globally)
func applyServeFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("addr") {
		v, _ := cmd.Flags().GetString("addr")
		viper.Set("addr", v)
	}
	if cmd.Flags().Changed("front") {
		v, _ := cmd.Flags().GetString("front")
		viper.Set("front", v)
	}
	if off, _ := cmd.Flags().GetBool("no-metrics"); off {
		viper.Set("metrics", false)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	applyServeFlags(cmd)

	fs := afero.NewOsFs()
	path, err := resolvePath(fs, args)
	if err != nil {
		return err
	}

	log, err := logging.New(config.GetLogLevel(), config.GetLogFormat(), os.Stderr)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if config.GetMetrics() {
		m = metrics.New("dungeon")
	}

	st := store.New(fs, path,
		store.WithGrace(config.GetGrace()),
		store.WithLogger(logging.Component(log, "store")),
		store.WithMetrics(m),
	)
	if err := st.Load(); err != nil {
		return err
	}

	hub := notify.NewHub(logging.Component(log, "notify"), m)
	// only changes made outside the browser need pushing back to it
	st.OnChange(func(ev store.Event) {
		if ev.Kind == store.Reloaded {
			hub.Publish(notify.Message{Type: notify.TypeFileChange, Created: ev.Doc.Created})
		}
	})

	hooks := executor.NewHooks(
		executor.NewExecutor(config.GetShell()),
		path,
		config.GetPostSaveHook(),
		config.GetPostReloadHook(),
		logging.Component(log, "hooks"),
	)
	if hooks.Enabled() {
		st.OnChange(hooks.Handle)
	}
	defer hooks.Wait()

	w, err := watch.New(st, path, config.GetDebounce(), logging.Component(log, "watch"))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Run(ctx) }()

	srv := server.New(server.Options{
		Store:       st,
		Hub:         hub,
		Metrics:     m,
		Logger:      logging.Component(log, "server"),
		Fs:          fs,
		Front:       config.GetFront(),
		CORSOrigins: config.GetCORSOrigins(),
	})

	err = srv.ListenAndServe(ctx, config.GetAddr())
	stop()
	if werr := <-watchErr; werr != nil {
		err = errors.Join(err, werr)
	}
	return err
}

func runCheck(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	path, err := resolvePath(fs, args)
	if err != nil {
		return err
	}
	fix, _ := cmd.Flags().GetBool("fix")

	result, err := checkFile(fs, path, fix)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case result.Diff == "":
		fmt.Fprintf(out, "%s: %d elements, canonical\n", path, result.Elements)
	case fix:
		fmt.Fprintf(out, "%s: %d elements, rewritten\n", path, result.Elements)
	default:
		fmt.Fprint(out, result.Diff)
		return fmt.Errorf("%s is not in canonical form", path)
	}
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	path, err := resolvePath(fs, args)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")

	doc, err := parser.ParseFile(fs, path)
	if err != nil {
		return err
	}
	return dump(cmd.OutOrStdout(), doc, format)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	fs := afero.NewOsFs()
	path, err := resolvePath(fs, args)
	if err != nil {
		return err
	}
	query, _ := cmd.Flags().GetString("query")

	log, err := logging.New(config.GetLogLevel(), config.GetLogFormat(), os.Stderr)
	if err != nil {
		return err
	}
	// the terminal belongs to the browser, only errors get through
	log = log.Level(max(log.GetLevel(), zerolog.ErrorLevel))

	st := store.New(fs, path, store.WithLogger(logging.Component(log, "store")))
	if err := st.Load(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if w, err := watch.New(st, path, config.GetDebounce(), logging.Component(log, "watch")); err == nil {
		go w.Run(ctx)
	}

	return ui.Run(st, query, cmd.OutOrStdout())
}

func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
