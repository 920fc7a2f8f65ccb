package cli

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/spf13/cobra"
)

func (a *app) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции схемы каталога",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command) error {
			if a.env.Migrate == nil {
				return ErrMigrationsUnavailable
			}
			version, err := a.env.Migrate(a.commandContext(cmd))
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]int64{"schema_version": version},
				fmt.Sprintf("Migrations applied. Schema version: %d", version))
		}),
	}
}

func (a *app) newRollbackCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Откатить последние миграции схемы",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command) error {
			if a.env.Rollback == nil {
				return ErrMigrationsUnavailable
			}
			if steps < 1 {
				return fmt.Errorf("invalid steps: %d", steps)
			}
			if err := a.env.Rollback(a.commandContext(cmd), steps); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), map[string]int{"rolled_back": steps},
				fmt.Sprintf("Rolled back %d migration(s).", steps))
		}),
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "Количество откатываемых миграций")
	return cmd
}

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Показать версию плагина и статистику идентификаторов",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command) error {
			ctx := a.commandContext(cmd)

			version, err := a.env.Service.Version(ctx)
			if err != nil {
				return err
			}
			stats, err := a.env.Service.Statistics(ctx)
			if err != nil {
				return err
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Plugin Version:          %s\n", version)
			fmt.Fprintf(&b, "Products with GTIN/EAN:  %d\n", stats.ProductsWithGTIN)
			fmt.Fprintf(&b, "Products with MPN:       %d\n", stats.ProductsWithMPN)
			fmt.Fprintf(&b, "Total metadata entries:  %d", stats.TotalMetaRows)

			return a.print(cmd.OutOrStdout(), struct {
				Version string `json:"version"`
				models.Statistics
			}{version, stats}, b.String())
		}),
	}
}

func (a *app) newExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Выгрузить идентификаторы в CSV",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command) error {
			ctx := a.commandContext(cmd)
			if !a.env.Caps.Can(ctx, models.CapManageCatalog) {
				return errors.New("you do not have sufficient permissions")
			}

			var (
				w    io.Writer = cmd.OutOrStdout()
				file *os.File
			)
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				file, w = f, f
			}

			n, err := writeExport(ctx, w, a.env.Service, time.Now())
			if file != nil {
				if cerr := file.Close(); err == nil {
					err = cerr
				}
				if n == 0 {
					_ = os.Remove(out)
				}
			}
			if errors.Is(err, utils.ErrNoExportData) {
				return errors.New("no EAN/GTIN data found to export")
			}
			if err != nil {
				return err
			}

			if file != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d rows to %s\n", n, out)
			}
			return nil
		}),
	}

	cmd.Flags().StringVarP(&out, "out", "o", "-", "Файл для выгрузки, - для stdout")
	return cmd
}

func writeExport(ctx context.Context, w io.Writer, service *services.IdentifierService, now time.Time) (int, error) {
	exportDate := now.Format(models.ExportDateLayout)

	var cw *csv.Writer
	n, err := service.Export(ctx, func(rec models.IdentifierRecord) error {
		if cw == nil {
			cw = csv.NewWriter(w)
			if err := cw.Write(models.ExportColumns); err != nil {
				return err
			}
		}
		return cw.Write(rec.ExportRow(exportDate))
	})
	if cw != nil {
		cw.Flush()
		if err == nil {
			err = cw.Error()
		}
	}
	return n, err
}

func (a *app) newUninstallCmd() *cobra.Command {
	var confirmDeletion, confirmNoBackup bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Удалить все данные плагина",
		Long: `Удаляет GTIN и MPN всех товаров, опции и временные данные плагина,
сбрасывает кэш. Операция необратима.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command) error {
			if !confirmDeletion || !confirmNoBackup {
				return errors.New("please confirm both --confirm-data-deletion and --confirm-no-backup")
			}

			ctx := a.commandContext(cmd)
			if !a.env.Caps.Can(ctx, models.CapActivatePlugins) {
				return errors.New("you do not have sufficient permissions")
			}

			report, err := a.env.Service.Uninstall(ctx, false)
			if err != nil {
				return err
			}

			text := fmt.Sprintf("Deleted: %d GTIN entries, %d MPN entries, %d options, %d transients, %d cache keys.",
				report.GTINDeleted, report.MPNDeleted, report.OptionsDeleted, report.TransientsDeleted, report.CacheKeysFlushed)
			for _, e := range report.Errors {
				text += "\nWarning: " + e
			}
			return a.print(cmd.OutOrStdout(), report, text)
		}),
	}

	cmd.Flags().BoolVar(&confirmDeletion, "confirm-data-deletion", false, "Подтверждаю удаление всех данных EAN/GTIN")
	cmd.Flags().BoolVar(&confirmNoBackup, "confirm-no-backup", false, "Подтверждаю, что резервной копии нет или она не нужна")
	return cmd
}
