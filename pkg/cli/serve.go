package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/inkwell-lab/inkwell/pkg/cli/config"
	httpctrl "github.com/inkwell-lab/inkwell/pkg/controller/http"
	"github.com/inkwell-lab/inkwell/pkg/service/classifier"
	"github.com/inkwell-lab/inkwell/pkg/usecase"
	"github.com/inkwell-lab/inkwell/pkg/utils/logging"
	"github.com/inkwell-lab/inkwell/pkg/utils/safe"
)

func cmdServe() *cli.Command {
	var addr string
	var geminiCfg config.Gemini
	var repoCfg config.Repository
	var retrievalCfg config.Retrieval
	var personaCfg config.Persona

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("INKWELL_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, retrievalCfg.Flags()...)
	flags = append(flags, personaCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, cleanup, err := buildUseCases(ctx, &geminiCfg, &repoCfg, &retrievalCfg, &personaCfg)
			if err != nil {
				return err
			}
			defer cleanup()

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				// Drain conversations and background side effects before the
				// repository closes underneath them.
				uc.CloseConversations()
				uc.Tasks().Wait()

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}

// buildUseCases wires repository, LLM client, classifier, retrieval index
// and persona into the use-case layer. The returned cleanup closes the
// repository.
func buildUseCases(ctx context.Context, geminiCfg *config.Gemini, repoCfg *config.Repository, retrievalCfg *config.Retrieval, personaCfg *config.Persona) (*usecase.UseCases, func(), error) {
	repo, err := repoCfg.Configure(ctx)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to initialize repository")
	}
	cleanup := func() {
		safe.Close(ctx, repo)
	}

	llmClient, err := geminiCfg.Configure(ctx)
	if err != nil {
		cleanup()
		return nil, nil, goerr.Wrap(err, "failed to configure LLM client")
	}

	index, err := retrievalCfg.Configure(llmClient)
	if err != nil {
		cleanup()
		return nil, nil, goerr.Wrap(err, "failed to configure retrieval index")
	}

	persona, err := personaCfg.Configure()
	if err != nil {
		cleanup()
		return nil, nil, goerr.Wrap(err, "failed to load persona")
	}

	opts := []usecase.Option{
		usecase.WithClassifier(classifier.New()),
		usecase.WithTimezone(personaCfg.Timezone()),
	}
	if llmClient != nil {
		opts = append(opts, usecase.WithLLMClient(llmClient))
	}
	if index != nil {
		opts = append(opts, usecase.WithIndex(index))
	}
	if persona != "" {
		opts = append(opts, usecase.WithPersona(persona))
	}

	return usecase.New(repo, opts...), cleanup, nil
}
