package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tiomoreno/requiety-sub000/internal/shared/utils"
)

// NewFolderCmd создаёт группу команд для папок.
//
// Примеры использования:
//
//	requiety folder create --parent wrk_... Users
//	requiety folder move fld_... --parent fld_... --sort 2
//	requiety folder delete fld_...
func NewFolderCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folder",
		Short: "Папки",
	}

	var (
		parent    string
		sortOrder int
	)
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Создать папку под воркспейсом или папкой",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			f, err := app.Repos.Folders.Create(cmd.Context(), parent, args[0], sortOrder)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created folder %s\n", f.ID)
			return nil
		},
	}
	create.Flags().StringVar(&parent, "parent", "", "parent workspace or folder id")
	create.Flags().IntVar(&sortOrder, "sort", 0, "sort order among siblings")
	create.MarkFlagRequired("parent")

	var (
		moveTo   string
		moveSort int
	)
	move := &cobra.Command{
		Use:   "move <id>",
		Short: "Перенести папку под другого родителя",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			// без --sort папка сохраняет свой порядок
			var order *int
			if cmd.Flags().Changed("sort") {
				order = utils.Ptr(moveSort)
			}
			if _, err := app.Repos.Folders.Move(cmd.Context(), args[0], moveTo, order); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved folder %s\n", args[0])
			return nil
		},
	}
	move.Flags().StringVar(&moveTo, "parent", "", "new parent id")
	move.Flags().IntVar(&moveSort, "sort", 0, "sort order under the new parent")
	move.MarkFlagRequired("parent")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Удалить папку со всем поддеревом",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			if err := app.Repos.Folders.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted folder %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, move, remove)
	return cmd
}
