// Package cli реализует командный интерфейс (CLI) Requiety.
//
// Пакет отвечает за:
//   - определение root-команды и набора подкоманд;
//   - разбор аргументов и флагов командной строки;
//   - загрузку конфига и открытие локального хранилища;
//   - выполнение команд и вывод результата пользователю.
//
// Точка входа пакета — функция Execute.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	"github.com/tiomoreno/requiety-sub000/internal/server/config"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
)

// DefaultConfigPath — конфиг, который читается без --config.
const DefaultConfigPath = "./configs/requiety.yaml"

// App содержит состояние CLI-приложения, разделяемое между командами.
//
// Хранилище и репозитории открываются лениво (Open): команды вроде version
// не трогают данные.
type App struct {
	// ConfigPath — путь к requiety.yaml; отсутствие файла не ошибка.
	ConfigPath string
	// DataDir перекрывает data_dir из конфига.
	DataDir string
	// AskPassword — спросить мастер-пароль в терминале.
	AskPassword bool
	// PasswordStdin — прочитать мастер-пароль из STDIN.
	PasswordStdin bool

	Cfg   *config.Config
	Log   *logger.HTTPLogger
	Store docstore.Store
	Repos *repository.Repositories
}

// Open открывает хранилище и кодек секретов. Повторный вызов ничего не делает.
func (a *App) Open(cmd *cobra.Command) error {
	if a.Repos != nil {
		return nil
	}
	if a.Cfg == nil {
		return errors.New("config is not loaded")
	}

	store, err := OpenStore(cmd.Context(), a.Cfg.Store, a.Log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	opts := crypto.KeyOptions{CreateKeyFile: true}
	if a.AskPassword || a.PasswordStdin {
		opts.Prompt = func() (string, error) {
			return ReadMasterPassword(cmd, a.PasswordStdin)
		}
	}
	codec, source, err := OpenCodec(a.Cfg.Crypto, opts)
	if err != nil {
		store.Close()
		return err
	}
	a.Log.Debug("secret codec ready", zap.String("source", source))

	a.Store = store
	a.Repos = repository.New(store, codec, a.Log)
	return nil
}

// Close закрывает хранилище и сбрасывает логгер.
func (a *App) Close() error {
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store, a.Repos = nil, nil
	return err
}

// NewRootCmd создаёт root-команду CLI и регистрирует подкоманды.
//
// buildVersion и buildDate используются для вывода информации о сборке (команда version).
func NewRootCmd(buildVersion, buildDate string) *cobra.Command {
	return newRootCmd(&App{}, buildVersion, buildDate)
}

func newRootCmd(app *App, buildVersion, buildDate string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requiety",
		Short: "Requiety CLI — локальный HTTP-клиент: воркспейсы, окружения, прогон коллекций",
		Long: `Requiety CLI.

Команды:
  workspace  Воркспейсы (create/list/rename/delete)
  folder     Папки (create/move/delete)
  request    Запросы (create/list/send/delete)
  env        Окружения (create/list/activate/deactivate)
  var        Переменные окружения (set/list/delete)
  tree       Дерево воркспейса
  run        Прогон папки или воркспейса
  remote     Управление запущенным локальным API
  version    Версия и дата сборки

Примеры:
  requiety workspace create "Payments"
  requiety request create --parent wrk_... --method POST --url '{{host}}/pay' charge
  requiety run workspace wrk_...
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefaultIn(app.ConfigPath, app.DataDir)
			if err != nil {
				return err
			}
			app.Cfg = cfg
			app.Log = logger.New(cfg.Log)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", DefaultConfigPath, "path to requiety.yaml")
	cmd.PersistentFlags().StringVar(&app.DataDir, "data-dir", "", "data directory (overrides data_dir)")
	cmd.PersistentFlags().BoolVar(&app.AskPassword, "ask-password", false, "prompt for the master password")
	cmd.PersistentFlags().BoolVar(&app.PasswordStdin, "master-password-stdin", false, "read master password from STDIN (for scripts)")

	cmd.AddCommand(NewWorkspaceCmd(app))
	cmd.AddCommand(NewFolderCmd(app))
	cmd.AddCommand(NewRequestCmd(app))
	cmd.AddCommand(NewEnvCmd(app))
	cmd.AddCommand(NewVarCmd(app))
	cmd.AddCommand(NewTreeCmd(app))
	cmd.AddCommand(NewRunCmd(app))
	cmd.AddCommand(NewRemoteCmd(app))
	cmd.AddCommand(NewVersionCmd(buildVersion, buildDate))

	return cmd
}

// Execute запускает обработку CLI-команд.
//
// При ошибке выполнения команды сообщение выводится в stderr, после чего процесс
// завершается с кодом 1 (os.Exit(1)).
func Execute(buildVersion, buildDate string) {
	app := &App{}
	err := newRootCmd(app, buildVersion, buildDate).Execute()
	// PostRun не вызывается, если команда упала
	app.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
