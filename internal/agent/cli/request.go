package cli

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
)

// NewRequestCmd создаёт группу команд для сохранённых запросов.
//
// Примеры использования:
//
//	requiety request create --parent fld_... --method POST --url '{{host}}/login' \
//	    --header 'Content-Type: application/json' --body '{"user":"{{user}}"}' login
//	requiety request list --workspace wrk_...
//	requiety request send req_...
func NewRequestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "request",
		Aliases: []string{"req"},
		Short:   "Запросы",
	}
	cmd.AddCommand(
		newRequestCreateCmd(app),
		newRequestListCmd(app),
		newRequestSendCmd(app),
		newRequestDuplicateCmd(app),
		newRequestDeleteCmd(app),
	)
	return cmd
}

// parseHeaders разбирает значения вида "Name: value".
func parseHeaders(raw []string) ([]models.Header, error) {
	out := make([]models.Header, 0, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("header %q must look like 'Name: value': %w", h, serr.ErrInvalidInput)
		}
		out = append(out, models.Header{Name: name, Value: strings.TrimSpace(value), Enabled: true})
	}
	return out, nil
}

func newRequestCreateCmd(app *App) *cobra.Command {
	var (
		parent, method, url string
		body, bodyType      string
		bearer              string
		headers             []string
		sortOrder           int
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Создать запрос",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hs, err := parseHeaders(headers)
			if err != nil {
				return err
			}
			if err := app.Open(cmd); err != nil {
				return err
			}

			in := models.Request{
				Name:      args[0],
				ParentID:  parent,
				Method:    method,
				URL:       url,
				SortOrder: sortOrder,
				Headers:   hs,
			}
			if body != "" {
				in.Body = &models.RequestBody{Type: bodyType, Content: body}
			}
			if bearer != "" {
				in.Auth = &models.RequestAuth{Type: "bearer", Token: bearer}
			}

			r, err := app.Repos.Requests.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created request %s\n", r.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&parent, "parent", "", "parent workspace or folder id")
	cmd.Flags().StringVar(&method, "method", "GET", "HTTP method")
	cmd.Flags().StringVar(&url, "url", "", "URL, {{var}} placeholders allowed")
	cmd.Flags().StringArrayVar(&headers, "header", nil, "header 'Name: value' (repeatable)")
	cmd.Flags().StringVar(&body, "body", "", "request body")
	cmd.Flags().StringVar(&bodyType, "body-type", "json", "body type: json|text|form")
	cmd.Flags().StringVar(&bearer, "bearer", "", "bearer token, {{var}} placeholders allowed")
	cmd.Flags().IntVar(&sortOrder, "sort", 0, "sort order among siblings")
	cmd.MarkFlagRequired("parent")

	return cmd
}

func newRequestListCmd(app *App) *cobra.Command {
	var parent, workspace string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Список запросов папки (--parent) или воркспейса (--workspace)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (parent == "") == (workspace == "") {
				return errors.New("exactly one of --parent or --workspace is required")
			}
			if err := app.Open(cmd); err != nil {
				return err
			}

			var (
				items []models.Request
				err   error
			)
			if parent != "" {
				items, err = app.Repos.Requests.ListByParent(cmd.Context(), parent)
			} else {
				items, err = app.Repos.Requests.ListByWorkspace(cmd.Context(), workspace)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMETHOD\tNAME\tURL")
			for _, r := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Method, r.Name, r.URL)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent folder or workspace id (direct children)")
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace id (all requests)")
	return cmd
}

func newRequestSendCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "send <id>",
		Short: "Выполнить запрос с переменными активного окружения",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			r, err := app.Repos.Requests.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if r == nil {
				return serr.NotFound(string(ident.KindRequest), args[0])
			}

			res, err := NewExecutor(app).Execute(cmd.Context(), *r)
			if err != nil {
				return fmt.Errorf("send %s: %w", r.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %d in %dms\n", r.Method, r.Name, res.StatusCode, res.ElapsedTime)
			return nil
		},
	}
}

func newRequestDuplicateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <id>",
		Short: "Скопировать запрос рядом с оригиналом",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			dup, err := app.Repos.Requests.Duplicate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created request %s\n", dup.ID)
			return nil
		},
	}
}

func newRequestDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Удалить запрос вместе с историей ответов",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			if err := app.Repos.Requests.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted request %s\n", args[0])
			return nil
		},
	}
}
