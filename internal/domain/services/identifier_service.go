package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	postgres "github.com/athebyme/gomarket-platform/ean-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/tx"
	pkgutils "github.com/athebyme/gomarket-platform/ean-service/pkg/utils"
)

const (
	// CachePattern покрывает все ключи кэша сервиса
	CachePattern = "ean:*"

	uninstallReportTTL = time.Hour
)

// PluginState - состояние плагина в процессе: доступность платформы и активность
type PluginState struct {
	hostAvailable atomic.Bool
	active        atomic.Bool
}

// NewPluginState создает активное состояние с доступной платформой
func NewPluginState() *PluginState {
	s := &PluginState{}
	s.hostAvailable.Store(true)
	s.active.Store(true)
	return s
}

// HostAvailable сообщает, найден ли каталог платформы
func (s *PluginState) HostAvailable() bool {
	return s.hostAvailable.Load()
}

// SetHostAvailable фиксирует результат проверки каталога
func (s *PluginState) SetHostAvailable(v bool) {
	s.hostAvailable.Store(v)
}

// Active сообщает, не был ли плагин деактивирован
func (s *PluginState) Active() bool {
	return s.active.Load()
}

// Deactivate выключает плагин до перезапуска
func (s *PluginState) Deactivate() {
	s.active.Store(false)
}

// Err возвращает причину, по которой функциональные маршруты недоступны
func (s *PluginState) Err() error {
	switch {
	case !s.HostAvailable():
		return utils.ErrHostUnavailable
	case !s.Active():
		return utils.ErrPluginDeactivated
	default:
		return nil
	}
}

// IdentifierService - операции уровня плагина: активация, статистика,
// удаление данных, выгрузка и доступ к идентификаторам по ID товара
type IdentifierService struct {
	storage   postgres.CatalogStoragePort
	txManager tx.TxManager
	cache     interfaces.CachePort
	accessors *AccessorFactory
	hooks     *hooks.Registry
	state     *PluginState
	logger    interfaces.LoggerPort
	settings  models.PluginSettings
}

// NewIdentifierService создает новый экземпляр IdentifierService
func NewIdentifierService(
	storage postgres.CatalogStoragePort,
	txManager tx.TxManager,
	cache interfaces.CachePort,
	accessors *AccessorFactory,
	registry *hooks.Registry,
	state *PluginState,
	logger interfaces.LoggerPort,
	settings models.PluginSettings,
) *IdentifierService {
	if settings.Version == "" {
		settings.Version = models.DefaultPluginVersion
	}
	return &IdentifierService{
		storage:   storage,
		txManager: txManager,
		cache:     cache,
		accessors: accessors,
		hooks:     registry,
		state:     state,
		logger:    logger,
		settings:  settings,
	}
}

// Accessors возвращает фабрику Accessor
func (s *IdentifierService) Accessors() *AccessorFactory {
	return s.accessors
}

// State возвращает состояние плагина
func (s *IdentifierService) State() *PluginState {
	return s.state
}

// Activate проверяет наличие каталога платформы и записывает версию плагина,
// если ее еще нет. Без каталога сервис работает в отключенном режиме.
func (s *IdentifierService) Activate(ctx context.Context) error {
	available, err := s.storage.CatalogAvailable(ctx)
	if err != nil {
		return fmt.Errorf("failed to check host catalog: %w", err)
	}

	s.state.SetHostAvailable(available)
	if !available {
		s.logger.Warn("Каталог платформы не найден, плагин отключен")
		return utils.ErrHostUnavailable
	}

	created, err := s.storage.AddOption(ctx, models.OptionPluginVersion, s.settings.Version)
	if err != nil {
		return fmt.Errorf("failed to store plugin version: %w", err)
	}
	if created {
		s.logger.Info("Плагин активирован", interfaces.LogField{Key: "version", Value: s.settings.Version})
	}

	return nil
}

// Version возвращает сохраненную версию плагина или версию по умолчанию
func (s *IdentifierService) Version(ctx context.Context) (string, error) {
	version, ok, err := s.storage.GetOption(ctx, models.OptionPluginVersion)
	if err != nil {
		return "", fmt.Errorf("failed to get plugin version: %w", err)
	}
	if !ok || version == "" {
		return models.DefaultPluginVersion, nil
	}
	return version, nil
}

// Statistics возвращает сводку по сохраненным идентификаторам
func (s *IdentifierService) Statistics(ctx context.Context) (models.Statistics, error) {
	stats, err := s.storage.Statistics(ctx)
	if err != nil {
		return models.Statistics{}, fmt.Errorf("failed to get statistics: %w", err)
	}
	return stats, nil
}

// Uninstall удаляет все данные плагина. Ручное удаление дополнительно
// деактивирует плагин. Ошибки очистки кэша и ANALYZE не прерывают удаление
// и попадают в отчет.
func (s *IdentifierService) Uninstall(ctx context.Context, manual bool) (*models.UninstallReport, error) {
	report := &models.UninstallReport{
		Timestamp: time.Now().UTC(),
		Manual:    manual,
	}

	before, err := s.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	report.Before = before

	err = s.txManager.Do(ctx, func(txCtx context.Context) error {
		var err error
		if report.OptionsDeleted, err = s.storage.DeleteOptions(txCtx,
			models.OptionPluginVersion, models.OptionPluginSettings); err != nil {
			return err
		}
		if report.GTINDeleted, err = s.storage.DeleteMetaByKey(txCtx, models.MetaKeyGTIN); err != nil {
			return err
		}
		if report.MPNDeleted, err = s.storage.DeleteMetaByKey(txCtx, models.MetaKeyMPN); err != nil {
			return err
		}
		if report.TransientsDeleted, err = s.storage.DeleteTransients(txCtx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete plugin data: %w", err)
	}

	if s.cache != nil {
		flushed, err := s.cache.DeleteByPattern(ctx, CachePattern)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("cache flush: %v", err))
		}
		report.CacheKeysFlushed = flushed
	}

	if err := s.storage.Analyze(ctx); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("analyze: %v", err))
	}

	if manual {
		s.state.Deactivate()
	}

	s.storeReport(ctx, report)
	s.hooks.Purged.Do(ctx, *report)

	s.logger.InfoWithContext(ctx, "Данные плагина удалены",
		interfaces.LogField{Key: "manual", Value: manual},
		interfaces.LogField{Key: "gtin_deleted", Value: report.GTINDeleted},
		interfaces.LogField{Key: "mpn_deleted", Value: report.MPNDeleted},
		interfaces.LogField{Key: "options_deleted", Value: report.OptionsDeleted},
		interfaces.LogField{Key: "transients_deleted", Value: report.TransientsDeleted},
	)

	return report, nil
}

// storeReport сохраняет отчет об удалении в кэш в режиме отладки
func (s *IdentifierService) storeReport(ctx context.Context, report *models.UninstallReport) {
	if !s.settings.Debug || s.cache == nil {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, models.UninstallReportKey, data, uninstallReportTTL); err != nil {
		s.logger.WarnWithContext(ctx, "Не удалось сохранить отчет об удалении",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}

// UninstallReport возвращает последний сохраненный отчет об удалении
func (s *IdentifierService) UninstallReport(ctx context.Context) (*models.UninstallReport, error) {
	if s.cache == nil {
		return nil, interfaces.ErrCacheMiss
	}

	data, err := s.cache.Get(ctx, models.UninstallReportKey)
	if err != nil {
		return nil, err
	}

	var report models.UninstallReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode uninstall report: %w", err)
	}
	return &report, nil
}

// Export передает в fn каждую запись с непустым GTIN или MPN по возрастанию ID.
// Если данных нет, возвращает ErrNoExportData.
func (s *IdentifierService) Export(ctx context.Context, fn func(models.IdentifierRecord) error) (int, error) {
	n, err := s.storage.StreamIdentifiers(ctx, fn)
	if err != nil {
		return n, fmt.Errorf("failed to export identifiers: %w", err)
	}
	if n == 0 {
		return 0, utils.ErrNoExportData
	}

	s.logger.InfoWithContext(ctx, "Идентификаторы выгружены", interfaces.LogField{Key: "rows", Value: n})
	return n, nil
}

// ListIdentifiers возвращает страницу товаров с непустыми идентификаторами
func (s *IdentifierService) ListIdentifiers(ctx context.Context, filter models.IdentifierFilter, pagination *pkgutils.Pagination) (*pkgutils.PagedResult, error) {
	records, total, err := s.storage.ListIdentifiers(ctx, filter, pagination.GetLimit(), pagination.GetOffset())
	if err != nil {
		return nil, fmt.Errorf("failed to list identifiers: %w", err)
	}

	pagination.SetTotal(total)
	return pkgutils.NewPagedResult(records, pagination), nil
}

// accessor загружает Accessor и возвращает ErrProductNotFound для неизвестного ID
func (s *IdentifierService) accessor(ctx context.Context, productID int64) (*Accessor, error) {
	if productID <= 0 {
		return nil, utils.ErrInvalidProductId
	}

	a, err := s.accessors.ForID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !a.Exists() {
		return nil, utils.ErrProductNotFound
	}
	return a, nil
}

// GetIdentifiers возвращает GTIN и MPN товара в указанном контексте
func (s *IdentifierService) GetIdentifiers(ctx context.Context, productID int64, c models.Context) (models.Identifiers, error) {
	a, err := s.accessor(ctx, productID)
	if err != nil {
		return models.Identifiers{}, err
	}
	return a.Identifiers(ctx, c)
}

// UpdateGTIN сохраняет GTIN и возвращает значение, которое теперь видит клиент
func (s *IdentifierService) UpdateGTIN(ctx context.Context, productID int64, value string) (string, error) {
	a, err := s.accessor(ctx, productID)
	if err != nil {
		return "", err
	}

	a.SetGTIN(ctx, value)
	if err := a.Save(ctx); err != nil {
		return "", err
	}
	return a.GTIN(ctx, models.ContextView)
}

// UpdateMPN сохраняет MPN и возвращает значение, которое теперь видит клиент
func (s *IdentifierService) UpdateMPN(ctx context.Context, productID int64, value string) (string, error) {
	a, err := s.accessor(ctx, productID)
	if err != nil {
		return "", err
	}

	a.SetMPN(ctx, value)
	if err := a.Save(ctx); err != nil {
		return "", err
	}
	return a.MPN(ctx, models.ContextView)
}

// GetLegacyData возвращает данные в формате старого коннектора
func (s *IdentifierService) GetLegacyData(ctx context.Context, productID int64) (*models.LegacyIdentifiers, error) {
	a, err := s.accessor(ctx, productID)
	if err != nil {
		return nil, err
	}

	ids, err := a.Identifiers(ctx, models.ContextView)
	if err != nil {
		return nil, err
	}

	return &models.LegacyIdentifiers{GTIN: ids.GTIN, MPN: ids.MPN, EAN: ids.GTIN}, nil
}

// SetLegacyData применяет данные старого коннектора: непустой gtin
// приоритетнее ean, mpn применяется только непустым
func (s *IdentifierService) SetLegacyData(ctx context.Context, productID int64, data models.Payload) error {
	a, err := s.accessor(ctx, productID)
	if err != nil {
		return err
	}

	if gtin, _ := data.String(models.FieldGTIN); gtin != "" {
		a.SetGTIN(ctx, gtin)
	} else if ean, _ := data.String(models.FieldEAN); ean != "" {
		a.SetGTIN(ctx, ean)
	}

	if mpn, _ := data.String(models.FieldMPN); mpn != "" {
		a.SetMPN(ctx, mpn)
	}

	return a.Save(ctx)
}

// DeleteProductIdentifiers удаляет идентификаторы удаленного товара и сбрасывает кэш
func (s *IdentifierService) DeleteProductIdentifiers(ctx context.Context, productID int64) (int64, error) {
	if productID <= 0 {
		return 0, utils.ErrInvalidProductId
	}

	n, err := s.storage.DeleteProductMeta(ctx, productID, models.MetaKeyGTIN, models.MetaKeyMPN)
	if err != nil {
		return 0, fmt.Errorf("failed to delete identifiers for product %d: %w", productID, err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, IdentifiersCacheKey(productID)); err != nil && !errors.Is(err, interfaces.ErrCacheMiss) {
			s.logger.WarnWithContext(ctx, "Не удалось сбросить кэш идентификаторов",
				interfaces.LogField{Key: "product_id", Value: productID},
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	return n, nil
}
