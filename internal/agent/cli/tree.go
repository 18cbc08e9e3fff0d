package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	serr "github.com/tiomoreno/requiety-sub000/internal/shared/errors"
	"github.com/tiomoreno/requiety-sub000/internal/shared/ident"
)

// NewTreeCmd печатает дерево папок и запросов воркспейса.
//
//	requiety tree wrk_...
func NewTreeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <workspaceId>",
		Short: "Показать дерево воркспейса",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Open(cmd); err != nil {
				return err
			}
			root, err := app.Repos.Tree.Build(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if root == nil {
				return serr.NotFound(string(ident.KindWorkspace), args[0])
			}
			printNode(cmd.OutOrStdout(), root, 0)
			return nil
		},
	}
}

func printNode(w io.Writer, n *repository.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n.Kind {
	case ident.KindRequest:
		fmt.Fprintf(w, "%s%s %s  (%s)\n", indent, n.Method, n.Name, n.ID)
	case ident.KindFolder:
		fmt.Fprintf(w, "%s%s/  (%s)\n", indent, n.Name, n.ID)
	default:
		fmt.Fprintf(w, "%s%s  (%s)\n", indent, n.Name, n.ID)
	}
	for _, c := range n.Children {
		printNode(w, c, depth+1)
	}
}
