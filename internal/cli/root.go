// Package cli реализует команды eanctl
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/athebyme/gomarket-platform/ean-service/config"
	"github.com/athebyme/gomarket-platform/ean-service/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/spf13/cobra"
)

// ErrMigrationsUnavailable возвращается, если окружение не умеет применять миграции
var ErrMigrationsUnavailable = errors.New("migrations are not available")

// Env - зависимости, с которыми работают команды
type Env struct {
	Service   *services.IdentifierService
	Caps      services.CapabilityChecker
	Principal *interfaces.Principal
	Migrate   func(ctx context.Context) (int64, error)
	Rollback  func(ctx context.Context, steps int) error
	Close     func()
}

// OpenFunc подключает зависимости по конфигурации
type OpenFunc func(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) (*Env, error)

type app struct {
	open       OpenFunc
	configFile string
	jsonOutput bool

	log interfaces.LoggerPort
	env *Env
}

// NewRootCmd собирает дерево команд eanctl
func NewRootCmd(open OpenFunc) *cobra.Command {
	a := &app{open: open}

	root := &cobra.Command{
		Use:   "eanctl",
		Short: "Операции с GTIN/MPN идентификаторами каталога",
		Long: `eanctl выполняет служебные операции сервиса идентификаторов:
миграции схемы, статистику, выгрузку CSV и удаление данных плагина.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Имя файла конфигурации без расширения")
	root.PersistentFlags().BoolVarP(&a.jsonOutput, "json", "j", false, "Вывод в формате JSON")

	root.AddCommand(
		a.newMigrateCmd(),
		a.newRollbackCmd(),
		a.newStatsCmd(),
		a.newExportCmd(),
		a.newUninstallCmd(),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	env, err := a.open(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	a.log, a.env = log, env
	return nil
}

// run оборачивает команду: зависимости закрываются и при ошибке
func (a *app) run(fn func(cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		defer a.teardown()
		return fn(cmd)
	}
}

func (a *app) teardown() {
	if a.env != nil && a.env.Close != nil {
		a.env.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// commandContext возвращает контекст команды от имени принципала CLI
func (a *app) commandContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.env.Principal != nil {
		ctx = auth.WithPrincipal(ctx, a.env.Principal)
	}
	return ctx
}

func (a *app) print(w io.Writer, v interface{}, text string) error {
	if a.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
