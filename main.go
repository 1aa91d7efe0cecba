// Margo is a desktop PDF annotation tool: capture a region or text span of
// a page, attach a conversation or note to it, and keep everything synced
// with the chat backend that does the answering and the persistence.
package main

import (
	"context"
	"os"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"
	"github.com/phuslu/log"

	"github.com/pkukic/margo/internal/app"
	"github.com/pkukic/margo/internal/backend"
	"github.com/pkukic/margo/internal/version"
	"github.com/pkukic/margo/ui/mainwindow"
)

func main() {
	cfg := app.LoadConfig()

	log.DefaultLogger = log.Logger{
		Level:      cfg.LogLevel(),
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			ColorOutput:    true,
			EndWithMessage: true,
		},
	}
	log.Info().Str("version", version.Version).Msg("starting margo")

	client := backend.NewClient(cfg.Backend.URL, backend.WithTimeout(cfg.RequestTimeout()))
	monitor := backend.NewMonitor(client, cfg.PollInterval())

	state := app.NewState(client, monitor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	fyneApp := fyneapp.NewWithID("com.pkukic.margo")
	fyneApp.Settings().SetTheme(&app.MargoTheme{})

	win := mainwindow.New(fyneApp, state, cfg)

	if len(os.Args) > 1 {
		win.OpenPDF(os.Args[1])
	}

	setupHotReload(win)

	win.ShowAndRun()
}

// setupHotReload restarts the process when a newer binary lands next to the
// running one, after asking first.
func setupHotReload(win *mainwindow.MainWindow) {
	reloader := app.NewHotReloader(2 * time.Second)
	if reloader == nil {
		log.Debug().Msg("hot reload unavailable")
		return
	}

	reloader.OnNewBinary(func() {
		fyne.Do(func() {
			dialog.ShowConfirm("New Version Available",
				"The application binary has been updated.\nRestart now?",
				func(restart bool) {
					if !restart {
						reloader.ResetBaseline()
						reloader.Start()
						return
					}
					if err := reloader.Restart(); err != nil {
						log.Error().Err(err).Msg("restart failed")
					}
				}, win)
		})
	})

	reloader.Start()
}
