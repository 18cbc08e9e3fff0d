package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiomoreno/requiety-sub000/internal/agent/api"
	"github.com/tiomoreno/requiety-sub000/internal/agent/config"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
)

// ErrNotRunning — нет действующих учётных данных запущенного API.
var ErrNotRunning = errors.New("local API is not running or token expired: start the local API server first")

// NewRemoteCmd создаёт группу команд для запущенного локального API.
//
// Адрес и токен берутся из <data_dir>/credentials.json, который пишет
// сервер при старте. Хранилище эти команды не открывают.
//
// Примеры использования:
//
//	requiety remote status
//	requiety remote run workspace wrk_...
//	requiety remote stop
func NewRemoteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Управление запущенным локальным API",
	}
	cmd.AddCommand(
		newRemoteStatusCmd(app),
		newRemoteRunCmd(app),
		newRemoteStopCmd(app),
		newRemoteWorkspacesCmd(app),
		newRemoteSendCmd(app),
	)
	return cmd
}

// remoteClient создаёт клиент по сохранённым учётным данным.
func remoteClient(app *App) (*api.Client, error) {
	creds, err := config.Load(config.DefaultPath(app.Cfg.DataDir))
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if creds.Endpoint == "" || creds.Expired(time.Now()) {
		return nil, ErrNotRunning
	}
	return NewAPIClient(creds.Endpoint, creds.Token), nil
}

func printSnapshot(w io.Writer, s *runner.Snapshot) {
	fmt.Fprintf(w, "state: %s\n", s.State)
	if s.Target != nil {
		fmt.Fprintf(w, "target: %s %s\n", s.Target.Kind, s.Target.ID)
	}
	if p := s.Progress; p != nil {
		fmt.Fprintf(w, "progress: %d/%d passed=%d failed=%d current=%q\n",
			p.Completed, p.Total, p.Passed, p.Failed, p.CurrentRequestName)
	}
	if l := s.Last; l != nil {
		fmt.Fprintf(w, "last: %s %d passed, %d failed, %d total\n",
			l.Status, l.PassedRequests, l.FailedRequests, l.TotalRequests)
	}
}

func newRemoteStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Состояние прогона в приложении",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(app)
			if err != nil {
				return err
			}
			s, err := c.RunStatus(cmd.Context())
			if err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newRemoteRunCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run <workspace|folder> <id>",
		Short: "Запустить прогон в приложении (не дожидаясь окончания)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(app)
			if err != nil {
				return err
			}
			s, err := c.StartRun(cmd.Context(), runner.Target{Kind: runner.TargetKind(args[0]), ID: args[1]})
			if err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newRemoteStopCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Остановить прогон после текущего запроса",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(app)
			if err != nil {
				return err
			}
			s, err := c.StopRun(cmd.Context())
			if err != nil {
				return err
			}
			printSnapshot(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func newRemoteWorkspacesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "workspaces",
		Short: "Воркспейсы запущенного приложения",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(app)
			if err != nil {
				return err
			}
			items, err := c.ListWorkspaces(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, ws := range items {
				fmt.Fprintf(tw, "%s\t%s\n", ws.ID, ws.Name)
			}
			return tw.Flush()
		},
	}
}

func newRemoteSendCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "send <request-id>",
		Short: "Выполнить запрос в приложении",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := remoteClient(app)
			if err != nil {
				return err
			}
			res, err := c.SendRequest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if res == nil {
				return errors.New("empty send result")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %d in %dms\n", args[0], res.StatusCode, res.ElapsedTime)
			return nil
		},
	}
}
