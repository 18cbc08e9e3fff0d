package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	"github.com/tiomoreno/requiety-sub000/internal/shared/models"
	"github.com/tiomoreno/requiety-sub000/internal/shared/utils"
)

// secretMask заменяет значение секретной переменной в выводе list.
const secretMask = "******"

// NewEnvCmd создаёт группу команд для окружений.
//
// Примеры использования:
//
//	requiety env create --workspace wrk_... staging
//	requiety env list --workspace wrk_...
//	requiety env activate env_...
//	requiety env deactivate --workspace wrk_...
func NewEnvCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Окружения",
	}
	cmd.AddCommand(
		newEnvCreateCmd(app),
		newEnvListCmd(app),
		newEnvActivateCmd(app),
		newEnvDeactivateCmd(app),
		newEnvDeleteCmd(app),
	)
	return cmd
}

func newEnvCreateCmd(app *App) *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Создать окружение (неактивное)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			env, err := app.Repos.Environments.Create(cmd.Context(), workspace, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created environment %s\n", env.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace id")
	cmd.MarkFlagRequired("workspace")
	return cmd
}

func newEnvListCmd(app *App) *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Список окружений воркспейса",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			items, err := app.Repos.Environments.ListByWorkspace(cmd.Context(), workspace)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tACTIVE")
			for _, e := range items {
				active := ""
				if e.IsActive {
					active = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.Name, active)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace id")
	cmd.MarkFlagRequired("workspace")
	return cmd
}

func newEnvActivateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "activate <id>",
		Short: "Сделать окружение активным (остальные в воркспейсе гасятся)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			env, err := app.Repos.Environments.Activate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activated environment %s (%s)\n", env.ID, env.Name)
			return nil
		},
	}
}

func newEnvDeactivateCmd(app *App) *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Снять активное окружение воркспейса",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			if err := app.Repos.Environments.Deactivate(cmd.Context(), workspace); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "no active environment")
			return nil
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace id")
	cmd.MarkFlagRequired("workspace")
	return cmd
}

func newEnvDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Удалить окружение вместе с переменными",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			if err := app.Repos.Environments.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted environment %s\n", args[0])
			return nil
		},
	}
}

// NewVarCmd создаёт группу команд для переменных окружения.
//
// set обновляет переменную с тем же key или создаёт новую. Значения
// секретных переменных хранятся зашифрованными; list показывает их
// только с --reveal.
//
// Примеры использования:
//
//	requiety var set --env env_... host https://api.example.com
//	requiety var set --env env_... --secret token s3cr3t
//	requiety var list --env env_... --reveal
func NewVarCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "var",
		Short: "Переменные окружения",
	}
	cmd.AddCommand(
		newVarSetCmd(app),
		newVarListCmd(app),
		newVarDeleteCmd(app),
	)
	return cmd
}

func findVariable(items []models.Variable, key string) *models.Variable {
	for i := range items {
		if items[i].Key == key {
			return &items[i]
		}
	}
	return nil
}

func newVarSetCmd(app *App) *cobra.Command {
	var (
		envID  string
		secret bool
	)
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Задать переменную",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			ctx := cmd.Context()
			key, value := args[0], args[1]

			items, err := app.Repos.Variables.ListByEnvironment(ctx, envID)
			if err != nil {
				return err
			}

			if cur := findVariable(items, key); cur != nil {
				patch := repository.VariablePatch{Value: utils.StrPtr(value)}
				if cmd.Flags().Changed("secret") {
					patch.IsSecret = utils.Ptr(secret)
				}
				v, err := app.Repos.Variables.Update(ctx, cur.ID, patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated variable %s\n", v.ID)
				return nil
			}

			v, err := app.Repos.Variables.Create(ctx, models.Variable{
				EnvironmentID: envID,
				Key:           key,
				Value:         value,
				IsSecret:      secret,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created variable %s\n", v.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&envID, "env", "", "environment id")
	cmd.Flags().BoolVar(&secret, "secret", false, "store value encrypted")
	cmd.MarkFlagRequired("env")
	return cmd
}

func newVarListCmd(app *App) *cobra.Command {
	var (
		envID  string
		reveal bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Список переменных окружения",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			items, err := app.Repos.Variables.ListByEnvironment(cmd.Context(), envID)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKEY\tVALUE\tSECRET")
			for _, v := range items {
				value, flag := v.Value, ""
				if v.IsSecret {
					flag = "yes"
					if !reveal {
						value = secretMask
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Key, value, flag)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&envID, "env", "", "environment id")
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secret values")
	cmd.MarkFlagRequired("env")
	return cmd
}

func newVarDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Удалить переменную",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			if err := app.Repos.Variables.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted variable %s\n", args[0])
			return nil
		},
	}
}
