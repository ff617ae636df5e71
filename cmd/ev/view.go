package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/expview/pkg/config"
	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/ui"
)

func (c *cli) newViewCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "view [files...]",
		Short: "Open experiment logs in the terminal viewer",
		Long: `Open one or more experiment logs in the terminal viewer.

Without arguments the most recently modified log in the current directory
is opened. If there is none the viewer starts empty; press o to open a file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("ev view needs a terminal; use ev summary or ev export instead")
			}

			paths, err := resolveInputs(args)
			if err != nil && len(args) > 0 {
				return err
			}

			var rows []model.Row
			if len(paths) > 0 {
				rows, err = loadLogs(cmd.Context(), paths)
				if err != nil {
					return err
				}
			}

			m := ui.NewModel(c.cfg).Load(rows, sourceName(paths), paths...)
			if (watch || c.cfg.UI.Watch) && len(paths) > 0 {
				if m, err = m.WithWatcher(); err != nil {
					slog.Warn("Live reload disabled", "err", err)
				}
			}

			final, err := runTUIProgram(m)
			if err != nil {
				return fmt.Errorf("running viewer: %w", err)
			}

			cfg := final.Config()
			for _, p := range paths {
				cfg.AddRecentFile(p)
			}
			if err := config.Save(cfg); err != nil {
				slog.Warn("Could not save recent files", "err", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload when the files change")
	return cmd
}

func runTUIProgram(m ui.Model) (ui.Model, error) {
	defer m.Stop()

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}

		p.Quit()

		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}

		p.Kill()
	}()

	// Optional auto-quit for automated tests: set EV_TUI_AUTOCLOSE_MS.
	if v := os.Getenv("EV_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()

				select {
				case <-runDone:
					return
				case <-timer.C:
				}

				p.Quit()

				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}

				p.Kill()
			}()
		}
	}

	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		err = nil
	}
	if fm, ok := final.(ui.Model); ok {
		return fm, err
	}
	return m, err
}
