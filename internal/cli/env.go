package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/fedq/internal/algebra"
	"github.com/roach88/fedq/internal/config"
	"github.com/roach88/fedq/internal/engine"
	"github.com/roach88/fedq/internal/planfile"
	"github.com/roach88/fedq/internal/rewrite"
	"github.com/roach88/fedq/internal/service"
	"github.com/roach88/fedq/internal/service/keyword"
	"github.com/roach88/fedq/internal/service/restsvc"
	"github.com/roach88/fedq/internal/service/sqlsvc"
	"github.com/roach88/fedq/internal/store"
)

// environment is the runtime a query command works in: the triple store,
// the service database and the catalog of compiled services.
type environment struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	services *sql.DB
	catalog  *service.Catalog
}

// engineTypes lists the adapters every environment registers.
var engineTypes = []string{sqlsvc.EngineType, restsvc.EngineType, keyword.EngineType}

// openEnvironment opens the configured store and registers every service
// under cfg.ServicesDir.
//
// SQL-backed services read their tables from the same database file as the
// triple store, through a handle of their own so that open service cursors
// never wait on the store's single connection.
func openEnvironment(cfg *config.Config, logger *slog.Logger) (*environment, error) {
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	db, err := sql.Open("sqlite3", cfg.Database)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open service database", err)
	}

	env := &environment{cfg: cfg, logger: logger, store: st, services: db}
	if err := env.register(); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func (e *environment) register() error {
	reg := service.NewRegistry()
	factories := map[string]service.Factory{
		sqlsvc.EngineType:  sqlsvc.Factory(e.services),
		restsvc.EngineType: restsvc.Factory(&http.Client{}),
		keyword.EngineType: keyword.Factory(e.store),
	}
	for _, engineType := range engineTypes {
		if err := reg.Register(engineType, factories[engineType]); err != nil {
			return err
		}
	}
	reg.Freeze()

	loaded, errs := LoadServices(e.cfg.ServicesDir, LoadModeFailFast)
	if err := firstError(errs); err != nil {
		return WrapExitError(ExitCommandError, "failed to load services", err)
	}

	e.catalog = service.NewCatalog(reg, service.WithCacheSize(e.cfg.CacheSize))
	for _, spec := range loaded.Services {
		res, err := spec.Register(e.catalog, e.cfg.DefaultTimeout)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register services", err)
		}
		for _, d := range res.Diagnostics {
			e.logger.Warn("parameter omitted", "service", spec.Root, "parameter", d.Parameter, "reason", d.Message)
		}
	}
	e.logger.Debug("services registered", "dir", e.cfg.ServicesDir, "count", e.catalog.Len())
	return nil
}

// Close releases the databases.
func (e *environment) Close() error {
	err := e.services.Close()
	if serr := e.store.Close(); err == nil {
		err = serr
	}
	return err
}

// plan decodes and rewrites a plan file.
func (e *environment) plan(path string) (*planfile.Plan, error) {
	plan, err := planfile.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	if err := rewrite.New(e.catalog, e.logger).Rewrite(plan.Root); err != nil {
		return nil, err
	}
	e.logger.Debug("plan rewritten", "path", path, "tree", algebra.FormatWith(plan.Root, plan.Prefixes))
	return plan, nil
}

// evaluate starts a query over the rewritten plan.
func (e *environment) evaluate(plan *planfile.Plan) (*engine.Query, error) {
	ev := engine.New(engine.StoreSource(e.store), e.catalog,
		engine.WithLogger(e.logger),
		engine.WithParallelism(e.cfg.Parallelism),
		engine.WithMaxInvocations(int(e.cfg.MaxInvocations)),
	)
	q, err := ev.Evaluate(plan.Root)
	if err != nil {
		return nil, fmt.Errorf("prepare query: %w", err)
	}
	return q, nil
}

// errorCode maps a query failure to the code reported to the user.
func errorCode(err error) string {
	var re *engine.RuntimeError
	switch {
	case errors.As(err, &re):
		return string(re.Code)
	case planfile.IsDecodeError(err):
		return ErrCodePlan
	case rewrite.IsRewriteError(err):
		return ErrCodeRewrite
	default:
		return ErrCodeGeneric
	}
}
