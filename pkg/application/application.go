package application

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"reflect"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/trakwell/pipetrak/pkg/composables"
	"github.com/trakwell/pipetrak/pkg/eventbus"
)

// Module wires a feature area (services, schema) into the application.
type Module interface {
	Name() string
	Register(app Application) error
}

type Application interface {
	DB() *pgxpool.Pool
	Logger() *logrus.Logger
	EventPublisher() eventbus.EventBus
	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}
	Migrations() MigrationManager
}

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	EventBus eventbus.EventBus
	Logger   *logrus.Logger
}

func New(opts *ApplicationOptions) Application {
	return &application{
		pool:           opts.Pool,
		eventPublisher: opts.EventBus,
		logger:         opts.Logger,
		services:       make(map[reflect.Type]interface{}),
		migrations:     NewMigrationManager(opts.Pool),
	}
}

// application with a dynamically extendable service registry
type application struct {
	pool           *pgxpool.Pool
	eventPublisher eventbus.EventBus
	logger         *logrus.Logger
	services       map[reflect.Type]interface{}
	migrations     MigrationManager
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) Logger() *logrus.Logger {
	return app.logger
}

func (app *application) EventPublisher() eventbus.EventBus {
	return app.eventPublisher
}

func (app *application) Migrations() MigrationManager {
	return app.migrations
}

// RegisterServices registers a new service in the application by its type
func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		serviceType := reflect.TypeOf(service).Elem()
		app.services[serviceType] = service
	}
}

// Service retrieves a service by its type
func (app *application) Service(service interface{}) interface{} {
	serviceType := reflect.TypeOf(service)
	svc, exists := app.services[serviceType]
	if !exists {
		panic(fmt.Sprintf("service %s not found", serviceType.Name()))
	}
	return svc
}

func (app *application) Services() map[reflect.Type]interface{} {
	return app.services
}

// ---- Migration manager ----

type MigrationManager interface {
	RegisterSchema(fs *embed.FS)
	Apply(ctx context.Context) error
}

func NewMigrationManager(pool *pgxpool.Pool) MigrationManager {
	return &migrationManager{pool: pool}
}

type migrationManager struct {
	pool    *pgxpool.Pool
	schemas []*embed.FS
}

func (m *migrationManager) RegisterSchema(schemaFS *embed.FS) {
	m.schemas = append(m.schemas, schemaFS)
}

// Apply executes all registered schema files in one transaction, in
// lexicographic path order. Schemas are expected to be idempotent
// (CREATE TABLE IF NOT EXISTS style).
func (m *migrationManager) Apply(ctx context.Context) error {
	ctx = composables.WithPool(ctx, m.pool)
	return composables.InTx(ctx, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		for _, schemaFS := range m.schemas {
			files, err := listSQLFiles(schemaFS)
			if err != nil {
				return err
			}
			for _, file := range files {
				content, err := schemaFS.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read schema %s: %w", file, err)
				}
				if _, err := tx.Exec(txCtx, string(content)); err != nil {
					return fmt.Errorf("apply schema %s: %w", file, err)
				}
			}
		}
		return nil
	})
}

func listSQLFiles(fsys fs.FS) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error reading schema dir: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
