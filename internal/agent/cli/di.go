package cli

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tiomoreno/requiety-sub000/internal/agent/api"
	"github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/agent/executor"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
)

// для тестов
var (
	OpenStore          = docstore.Open
	OpenCodec          = crypto.OpenCodec
	NewAPIClient       = api.NewClient
	ReadMasterPassword = func(cmd *cobra.Command, fromStdin bool) (string, error) {
		return readMasterPassword(cmd, fromStdin)
	}

	// NewExecutor собирает исполнитель запросов поверх репозиториев App.
	NewExecutor = func(app *App) runner.Executor {
		r := app.Repos
		return executor.New(executor.Deps{
			Requests:  r.Requests,
			Variables: r.Variables,
			Settings:  r.Settings,
			History:   r.Responses,
			Tokens:    r.OAuthTokens,
		}, filepath.Join(app.Cfg.DataDir, "responses"), executor.WithLogger(app.Log))
	}

	// Interrupts отдаёт канал Ctrl-C/SIGTERM и функцию отписки.
	Interrupts = func() (<-chan os.Signal, func()) {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		return ch, func() { signal.Stop(ch) }
	}
)
