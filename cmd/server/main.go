// @title           Requiety local API
// @version         1.0
// @description     Local API of the Requiety HTTP client.
// @description     Workspaces, folders, requests, environments and the collection runner.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      127.0.0.1:7811
// @BasePath  /
// @schemes http

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
//
// Package main содержит точку входа локального API Requiety.
//
// Пакет отвечает за инициализацию и жизненный цикл HTTP-сервера, а именно:
//   - загрузку переменных окружения из файла .env (если он присутствует);
//   - загрузку конфигурации из файла ./configs/requiety.yaml (или дефолтов);
//   - открытие документного хранилища и кодека секретов;
//   - создание репозиториев, исполнителя запросов, раннера и HTTP-обработчиков;
//   - выпуск токена доступа и запись его в <data_dir>/credentials.json;
//   - обработку системных сигналов завершения (SIGINT, SIGTERM, SIGQUIT);
//   - корректное (graceful) завершение работы сервера с таймаутом.
//
// Сервер слушает только loopback-адрес из конфига, TLS не используется.
// Пакет не содержит бизнес-логики и не предназначен для unit-тестирования.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	agentconfig "github.com/tiomoreno/requiety-sub000/internal/agent/config"
	agentcrypto "github.com/tiomoreno/requiety-sub000/internal/agent/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/agent/docstore"
	"github.com/tiomoreno/requiety-sub000/internal/agent/executor"
	"github.com/tiomoreno/requiety-sub000/internal/agent/repository"
	"github.com/tiomoreno/requiety-sub000/internal/agent/runner"
	"github.com/tiomoreno/requiety-sub000/internal/server/api"
	"github.com/tiomoreno/requiety-sub000/internal/server/config"
	"github.com/tiomoreno/requiety-sub000/internal/server/crypto"
	"github.com/tiomoreno/requiety-sub000/internal/server/middleware"
	h "github.com/tiomoreno/requiety-sub000/internal/server/net/http"
	"github.com/tiomoreno/requiety-sub000/internal/shared/logger"

	_ "github.com/tiomoreno/requiety-sub000/swagger/docs"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "no .env file loaded: %v\n", err)
	}

	cfg, err := config.LoadOrDefault("./configs/requiety.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)
	sugar := log.Logger.Sugar()
	defer log.Sync()

	// создаём контекст и errgroup
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	// открываем хранилище
	store, err := docstore.Open(ctx, cfg.Store, log)
	if err != nil {
		sugar.Fatal(err)
	}
	defer store.Close()

	codec, source, err := agentcrypto.OpenCodec(cfg.Crypto, agentcrypto.KeyOptions{CreateKeyFile: true})
	if err != nil {
		sugar.Fatal(err)
	}
	log.Info("secret codec ready", zap.String("source", source))

	// репозитории, исполнитель и раннер
	repos := repository.New(store, codec, log)
	exec := executor.New(executor.Deps{
		Requests:  repos.Requests,
		Variables: repos.Variables,
		Settings:  repos.Settings,
		History:   repos.Responses,
		Tokens:    repos.OAuthTokens,
	}, filepath.Join(cfg.DataDir, "responses"), executor.WithLogger(log))
	ctrl := runner.New(repos.Tree, exec,
		runner.WithStepDelay(cfg.Runner.StepDelay),
		runner.WithLogger(log),
	)
	hub := api.NewProgressHub(log)
	defer hub.Close()

	// ключ подписи: из конфига или новый на каждый запуск
	signingKey := cfg.Auth.JWT.SigningKey
	if signingKey == "" {
		if signingKey, err = crypto.NewSigningKey(); err != nil {
			sugar.Fatal(err)
		}
	}
	token, expiresAt, err := crypto.NewAccessToken("cli", crypto.ConfigFromAuth(cfg.Auth, signingKey))
	if err != nil {
		sugar.Fatal(err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	credsPath := agentconfig.DefaultPath(cfg.DataDir)
	if err := agentconfig.Save(credsPath, &agentconfig.Credentials{
		Endpoint:  "http://" + addr,
		Token:     token,
		ExpiresAt: expiresAt,
	}); err != nil {
		sugar.Fatal(err)
	}
	defer agentconfig.Remove(credsPath)
	fmt.Printf("access token (also saved to %s):\n%s\n", credsPath, token)

	verifier := middleware.NewJWTVerifier(signingKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	handler := api.NewHandler(ctx, repos, ctrl, exec, hub, log, verifier)
	router := h.NewRouter(handler)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	// запускаем сервер
	g.Go(func() error {
		sugar.Infof("server started on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// graceful shutdown с таймаутом из конфига
	g.Go(func() error {
		<-ctx.Done()

		sugar.Info("shutdown signal received")
		ctrl.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		sugar.Errorf("server stopped with error: %v", err)
		return
	}
	sugar.Info("server gracefully stopped")
}
