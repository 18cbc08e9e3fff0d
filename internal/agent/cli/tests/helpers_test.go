package tests

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tiomoreno/requiety-sub000/internal/agent/cli"
	"github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	"github.com/tiomoreno/requiety-sub000/internal/server/config"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"
)

// newApp собирает App поверх хранилища в памяти; Open после этого ничего не делает.
func newApp(t *testing.T) *cli.App {
	t.Helper()

	codec, err := crypto.NewAESCodec("cli-test-secret", []byte("0123456789abcdef"),
		crypto.KDFParams{Time: 1, Memory: 1024, Threads: 1, KeyLen: crypto.KeySize})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Runner.StepDelay = 0

	log := logger.NewNop()
	return &cli.App{
		Cfg:   cfg,
		Log:   log,
		Repos: repository.New(docstore.NewMemoryStore(), codec, log),
	}
}

// execute запускает cmd с args и возвращает весь вывод (stdout+stderr).
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// createdID достаёт id из строки вида "created <kind> <id>".
func createdID(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(strings.TrimSpace(out))
	require.GreaterOrEqual(t, len(fields), 3, "unexpected output %q", out)
	require.Equal(t, "created", fields[0], "unexpected output %q", out)
	return fields[2]
}

func mustWorkspace(t *testing.T, app *cli.App, name string) string {
	t.Helper()
	ws, err := app.Repos.Workspaces.Create(context.Background(), name)
	require.NoError(t, err)
	return ws.ID
}
