package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/wailsapp/wails/v2/pkg/logger"

	"auto-typer/internal/config"
	"auto-typer/internal/domain"
	"auto-typer/internal/emitter"
	"auto-typer/internal/keymap"
	"auto-typer/internal/logging"
	"auto-typer/internal/typing"
)

var readClipboard = clipboard.ReadAll

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "autotyper",
		Short:         "Replay text as synthetic keystrokes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "log controller activity at debug level")

	root.AddCommand(newTypeCmd(&verbose))
	root.AddCommand(newKeymapCmd())
	return root
}

func loadSettings() (domain.Settings, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("resolve user home: %w", err)
	}
	settings, err := config.NewJSONStore(config.SettingsPath(homeDir)).Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return config.Normalize(settings), nil
}

func newTypeCmd(verbose *bool) *cobra.Command {
	var (
		text       string
		fromClip   bool
		dryRun     bool
		startDelay float64
		charDelay  float64
		lineDelay  float64
	)

	cmd := &cobra.Command{
		Use:   "type [file]",
		Short: "Type a file, inline text or the clipboard into the focused window",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := resolveSource(args, text, cmd.Flags().Changed("text"), fromClip)
			if err != nil {
				return err
			}

			settings, err := loadSettings()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("start-delay") {
				settings.StartDelaySeconds = startDelay
			}
			if flags.Changed("char-delay") {
				settings.InterCharDelaySeconds = charDelay
			}
			if flags.Changed("line-delay") {
				settings.LineEndDelaySeconds = lineDelay
			}
			settings.SoundEnabled = false

			log := logging.Discard()
			if settings.LoggingEnabled || *verbose {
				if log, err = logging.New(settings.LogPath, true); err != nil {
					return fmt.Errorf("open log: %w", err)
				}
				if *verbose {
					log.SetLevel(logger.DEBUG)
				}
			}

			var backend typing.Backend = emitter.NewRobot()
			recorder := emitter.NewRecorder()
			if dryRun {
				backend = recorder
			}

			result, err := runJob(cmd.Context(), typing.New(backend, typing.WithLogger(log)),
				domain.JobFromSettings(src, settings), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if dryRun {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), recorder.Text())
			}
			switch result.State {
			case domain.RunStateFailed:
				return result.Err
			case domain.RunStateStopped:
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "stopped after %d lines (%d characters)\n", result.Lines, result.Chars)
			default:
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "typed %d lines (%d characters)\n", result.Lines, result.Chars)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "inline text to type instead of a file")
	cmd.Flags().BoolVar(&fromClip, "clipboard", false, "type the current clipboard contents")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be typed instead of sending keys")
	cmd.Flags().Float64Var(&startDelay, "start-delay", 0, "seconds to wait before typing (default from settings)")
	cmd.Flags().Float64Var(&charDelay, "char-delay", 0, "seconds between characters (default from settings)")
	cmd.Flags().Float64Var(&lineDelay, "line-delay", 0, "seconds after each line (default from settings)")
	return cmd
}

// resolveSource picks exactly one of the file argument, --text and --clipboard.
func resolveSource(args []string, text string, hasText, fromClip bool) (domain.Source, error) {
	chosen := 0
	for _, set := range []bool{len(args) == 1, hasText, fromClip} {
		if set {
			chosen++
		}
	}
	if chosen != 1 {
		return domain.Source{}, errors.New("give exactly one of a file argument, --text or --clipboard")
	}

	switch {
	case hasText:
		return domain.InlineText(text), nil
	case fromClip:
		content, err := readClipboard()
		if err != nil {
			return domain.Source{}, fmt.Errorf("read clipboard: %w", err)
		}
		return domain.InlineText(content), nil
	default:
		return domain.FileRef(args[0]), nil
	}
}

// runJob starts job and blocks until it finishes. An interrupt stops the job.
func runJob(ctx context.Context, controller *typing.Controller, job domain.TypingJob, progress io.Writer) (typing.Result, error) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lastSecond := -1
	if _, err := controller.Start(job, typing.Hooks{
		OnProgress: func(event domain.ProgressEvent) {
			switch event.Phase {
			case domain.RunStateCountingDown, domain.RunStateResuming:
				second := int(math.Ceil(event.RemainingSeconds))
				if second != lastSecond && second > 0 {
					lastSecond = second
					_, _ = fmt.Fprintf(progress, "starting in %d...\n", second)
				}
			case domain.RunStateRunning:
				_, _ = fmt.Fprintf(progress, "line %d/%d\n", event.LineIndex+1, event.TotalLines)
			}
		},
	}); err != nil {
		return typing.Result{}, err
	}

	go func() {
		<-sigCtx.Done()
		if controller.Current().State.Terminal() {
			return
		}
		_ = controller.Stop()
	}()

	return controller.Wait(context.Background())
}

func newKeymapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keymap",
		Short: "List characters typed through key chords or substitutions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, mapping := range keymap.Default().Entries() {
				keys := append(append([]string(nil), mapping.Entry.Modifiers...), mapping.Entry.Key)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%c\t%s\n", mapping.Char, strings.Join(keys, "+"))
			}
			return nil
		},
	}
}
