// Command accountd serves the bank account domain over HTTP: commands are
// posted to /commands/{command_type}/{aggregate_id} and the projected account
// views are read from /accounts/{query_id}.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/terraskye/cqrs"
	"github.com/terraskye/cqrs/account"
	sqlitestore "github.com/terraskye/cqrs/eventstore/sqlite"
	"github.com/terraskye/cqrs/logging"
	cqrsotel "github.com/terraskye/cqrs/otel"
	sqliterepo "github.com/terraskye/cqrs/queryrepo/sqlite"
)

// Config is loaded from the environment.
type Config struct {
	Addr         string `env:"ACCOUNTD_ADDR" envDefault:":3030"`
	EventsDB     string `env:"ACCOUNTD_EVENTS_DB" envDefault:"accountd-events.db"`
	QueriesDB    string `env:"ACCOUNTD_QUERIES_DB" envDefault:"accountd-queries.db"`
	BufferSize   int    `env:"ACCOUNTD_BUFFER_SIZE" envDefault:"64"`
	ShardCount   int    `env:"ACCOUNTD_SHARD_COUNT" envDefault:"8"`
	ShutdownWait int    `env:"ACCOUNTD_SHUTDOWN_WAIT_SECONDS" envDefault:"10"`
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		logrus.WithError(err).Fatal("accountd exited")
	}
}

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "accountd",
		Short:         "Event-sourced bank account service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg Config
			if err := env.Parse(&cfg); err != nil {
				return fmt.Errorf("parse env: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg Config) error {
	logger := logrus.WithField("service", "accountd")

	eventsDB, err := sqlitestore.Open(cfg.EventsDB)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer eventsDB.Close()

	queriesDB, err := sqliterepo.Open(cfg.QueriesDB)
	if err != nil {
		return fmt.Errorf("open projection store: %w", err)
	}
	defer queriesDB.Close()

	repository := cqrs.NewQueryRepository[account.BankAccountQuery](account.QueryName, queriesDB).
		WithErrorHandler(func(err error) {
			logger.WithError(err).Error("account projection failed")
		})

	engine := cqrs.New[account.BankAccount](
		cqrsotel.NewTelemetryStore(eventsDB),
		[]cqrs.QueryProcessor{
			cqrs.NewLoggingQueryProcessor(nil),
			repository,
		},
		cqrs.WithMetadataExtractor(func(ctx context.Context) map[string]string {
			return map[string]string{"time": time.Now().UTC().Format(time.RFC3339)}
		}),
	)

	// Concurrency conflicts from simultaneous writers to the same account are
	// safe to retry: the command re-executes against the fresh state.
	executor := logging.WithCommandLogging[account.BankAccount](logger,
		cqrs.WithRetry[account.BankAccount](engine, func() backoff.BackOff {
			policy := backoff.NewExponentialBackOff()
			policy.MaxElapsedTime = 2 * time.Second
			return policy
		}),
	)

	bus := cqrs.NewCommandBus(executor, cfg.BufferSize, cfg.ShardCount)
	defer bus.Stop()

	queryBus := cqrs.NewQueryBus()
	cqrs.RegisterQueryHandler(queryBus,
		logging.WithQueryLogging(logger, account.NewAccountQueryHandler(repository)),
	)
	gateway := cqrs.NewQueryGateway[account.AccountQuery, *account.BankAccountQuery](queryBus)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /commands/{command_type}/{aggregate_id}", handleCommand(bus))
	mux.HandleFunc("GET /accounts/{query_id}", handleAccountQuery(gateway))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Addr).Info("listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownWait)*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type errorResponse struct {
	Message string `json:"message"`
}

// handleCommand looks up the command type in the registry, decodes the body
// into it and dispatches it through the command bus.
func handleCommand(bus *cqrs.CommandBus[account.BankAccount]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commandType := r.PathValue("command_type")
		aggregateID := r.PathValue("aggregate_id")

		payload, err := cqrs.NewCommandByName(commandType)
		if err != nil {
			http.Error(w, fmt.Sprintf("unknown command type %q", commandType), http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, payload); err != nil {
				writeError(w, http.StatusBadRequest, (&cqrs.DeserializationError{Err: err}).Error())
				return
			}
		}

		command, ok := payload.(cqrs.Command[account.BankAccount])
		if !ok {
			http.Error(w, fmt.Sprintf("command type %q does not target accounts", commandType), http.StatusNotFound)
			return
		}

		if err := bus.Dispatch(r.Context(), aggregateID, command); err != nil {
			var rejected *cqrs.CommandRejectedError
			if errors.As(err, &rejected) {
				writeError(w, http.StatusBadRequest, rejected.Reason)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// handleAccountQuery serves the projected account view.
func handleAccountQuery(gateway cqrs.GenericQueryGateway[account.AccountQuery, *account.BankAccountQuery]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := gateway.HandleQuery(r.Context(), account.AccountQuery{AccountID: r.PathValue("query_id")})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if view == nil {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(view); err != nil {
			logrus.WithError(err).Error("encode account view")
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Message: message})
}
