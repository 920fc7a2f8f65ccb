package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	postgres "github.com/athebyme/gomarket-platform/ean-service/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/hooks"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/validation"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	basemodels "github.com/athebyme/gomarket-platform/ean-service/pkg/models"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/tx"
)

const identifiersCachePrefix = "ean:product:"

// IdentifiersCacheKey возвращает ключ кэша идентификаторов товара
func IdentifiersCacheKey(productID int64) string {
	return identifiersCachePrefix + strconv.FormatInt(productID, 10)
}

// AccessorFactory создает Accessor для товара или ID товара
type AccessorFactory struct {
	products   postgres.ProductReader
	meta       postgres.MetaStorage
	txManager  tx.TxManager
	cache      interfaces.CachePort
	hooks      *hooks.Registry
	normalizer *validation.Normalizer
	logger     interfaces.LoggerPort
	settings   models.PluginSettings
}

// NewAccessorFactory создает фабрику. cache может быть nil.
func NewAccessorFactory(
	products postgres.ProductReader,
	meta postgres.MetaStorage,
	txManager tx.TxManager,
	cache interfaces.CachePort,
	registry *hooks.Registry,
	normalizer *validation.Normalizer,
	logger interfaces.LoggerPort,
	settings models.PluginSettings,
) *AccessorFactory {
	return &AccessorFactory{
		products:   products,
		meta:       meta,
		txManager:  txManager,
		cache:      cache,
		hooks:      registry,
		normalizer: normalizer,
		logger:     logger,
		settings:   settings,
	}
}

// For оборачивает уже загруженный товар. product может быть nil.
func (f *AccessorFactory) For(product *basemodels.Product) *Accessor {
	return &Accessor{factory: f, product: product}
}

// ForID загружает товар по ID. Для неизвестного ID возвращается Accessor
// без товара, все операции которого ничего не делают.
func (f *AccessorFactory) ForID(ctx context.Context, productID int64) (*Accessor, error) {
	if productID <= 0 {
		return f.For(nil), nil
	}

	product, err := f.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}

	return f.For(product), nil
}

// Accessor - типизированный доступ к GTIN и MPN одного товара или вариации.
// Остальные свойства товара доступны через Product().
type Accessor struct {
	factory *AccessorFactory
	product *basemodels.Product

	loaded  bool
	stored  models.Identifiers
	pending map[string]string
}

// Product возвращает обернутый товар платформы (может быть nil)
func (a *Accessor) Product() *basemodels.Product {
	return a.product
}

// Exists сообщает, найден ли товар
func (a *Accessor) Exists() bool {
	return a.product != nil
}

// ID возвращает ID товара или 0
func (a *Accessor) ID() int64 {
	if a.product == nil {
		return 0
	}
	return a.product.ID
}

// IsVariation сообщает, является ли товар вариацией
func (a *Accessor) IsVariation() bool {
	return a.product.IsVariation()
}

// IsVariable сообщает, является ли товар вариативным
func (a *Accessor) IsVariable() bool {
	return a.product.IsVariable()
}

// GTIN возвращает GTIN. В контексте view пустое значение заменяется
// собственным global_unique_id платформы.
func (a *Accessor) GTIN(ctx context.Context, c models.Context) (string, error) {
	if a.product == nil {
		return "", nil
	}

	gtin, err := a.value(ctx, models.MetaKeyGTIN)
	if err != nil {
		return "", err
	}

	if c == models.ContextView && gtin == "" && a.product.GlobalUniqueID != "" {
		gtin = a.product.GlobalUniqueID
	}

	return a.factory.hooks.GTIN.Apply(ctx, gtin, hooks.ValueArgs{Product: a.product, Context: c})
}

// MPN возвращает MPN
func (a *Accessor) MPN(ctx context.Context, c models.Context) (string, error) {
	if a.product == nil {
		return "", nil
	}

	mpn, err := a.value(ctx, models.MetaKeyMPN)
	if err != nil {
		return "", err
	}

	return a.factory.hooks.MPN.Apply(ctx, mpn, hooks.ValueArgs{Product: a.product, Context: c})
}

// Identifiers возвращает оба значения в указанном контексте
func (a *Accessor) Identifiers(ctx context.Context, c models.Context) (models.Identifiers, error) {
	gtin, err := a.GTIN(ctx, c)
	if err != nil {
		return models.Identifiers{}, err
	}

	mpn, err := a.MPN(ctx, c)
	if err != nil {
		return models.Identifiers{}, err
	}

	return models.Identifiers{GTIN: gtin, MPN: mpn}, nil
}

// HasGTIN сообщает, есть ли у товара GTIN в контексте view
func (a *Accessor) HasGTIN(ctx context.Context) (bool, error) {
	gtin, err := a.GTIN(ctx, models.ContextView)
	return gtin != "", err
}

// SetGTIN очищает и проверяет значение и откладывает его до Save.
// Невалидное значение сохраняется как пустая строка.
func (a *Accessor) SetGTIN(ctx context.Context, value string) {
	if a.product == nil {
		return
	}
	a.setPending(models.MetaKeyGTIN, a.factory.normalizer.GTIN(ctx, a.product.ID, value))
}

// SetMPN очищает значение, удаляет недопустимые символы и обрезает до 50 символов
func (a *Accessor) SetMPN(ctx context.Context, value string) {
	if a.product == nil {
		return
	}
	a.setPending(models.MetaKeyMPN, a.factory.normalizer.MPN(ctx, a.product.ID, value))
}

// Changed сообщает, есть ли несохраненные изменения
func (a *Accessor) Changed() bool {
	return len(a.pending) > 0
}

// Save сохраняет отложенные изменения в одной транзакции, сбрасывает кэш
// и вызывает действие identifiers_saved
func (a *Accessor) Save(ctx context.Context) error {
	if a.product == nil || len(a.pending) == 0 {
		return nil
	}

	changed := make([]string, 0, len(a.pending))
	err := a.factory.txManager.Do(ctx, func(txCtx context.Context) error {
		for _, key := range []string{models.MetaKeyGTIN, models.MetaKeyMPN} {
			value, ok := a.pending[key]
			if !ok {
				continue
			}
			if err := a.factory.meta.UpdateMeta(txCtx, a.product.ID, key, value); err != nil {
				return err
			}
			changed = append(changed, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save identifiers for product %d: %w", a.product.ID, err)
	}

	if gtin, ok := a.pending[models.MetaKeyGTIN]; ok {
		a.stored.GTIN = gtin
	}
	if mpn, ok := a.pending[models.MetaKeyMPN]; ok {
		a.stored.MPN = mpn
	}
	a.pending = nil

	a.invalidate(ctx)

	changedBy, _ := ctx.Value("user_id").(string)
	a.factory.hooks.Saved.Do(ctx, models.IdentifiersEvent{
		ProductID: a.product.ID,
		ParentID:  a.product.ParentID,
		GTIN:      a.stored.GTIN,
		MPN:       a.stored.MPN,
		Changed:   changed,
		ChangedBy: changedBy,
		ChangedAt: time.Now().UTC(),
	})

	return nil
}

// Parent возвращает Accessor родительского товара для вариации, иначе nil
func (a *Accessor) Parent(ctx context.Context) (*Accessor, error) {
	if !a.IsVariation() || a.product.ParentID == 0 {
		return nil, nil
	}

	parent, err := a.factory.ForID(ctx, a.product.ParentID)
	if err != nil {
		return nil, err
	}
	if !parent.Exists() {
		return nil, nil
	}
	return parent, nil
}

// Variations возвращает Accessor для каждой вариации вариативного товара
func (a *Accessor) Variations(ctx context.Context) ([]*Accessor, error) {
	if !a.IsVariable() {
		return nil, nil
	}

	variations := make([]*Accessor, 0, len(a.product.Children))
	for _, id := range a.product.Children {
		v, err := a.factory.ForID(ctx, id)
		if err != nil {
			return nil, err
		}
		variations = append(variations, v)
	}
	return variations, nil
}

func (a *Accessor) setPending(key, value string) {
	if a.pending == nil {
		a.pending = make(map[string]string, 2)
	}
	a.pending[key] = value
}

// value возвращает несохраненное значение, если оно есть, иначе сохраненное
func (a *Accessor) value(ctx context.Context, key string) (string, error) {
	if v, ok := a.pending[key]; ok {
		return v, nil
	}

	if err := a.load(ctx); err != nil {
		return "", err
	}

	if key == models.MetaKeyGTIN {
		return a.stored.GTIN, nil
	}
	return a.stored.MPN, nil
}

// load читает идентификаторы из кэша, при промахе - из хранилища
func (a *Accessor) load(ctx context.Context) error {
	if a.loaded {
		return nil
	}

	cacheKey := IdentifiersCacheKey(a.product.ID)
	if a.factory.cache != nil {
		data, err := a.factory.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			if jsonErr := json.Unmarshal(data, &a.stored); jsonErr == nil {
				a.loaded = true
				return nil
			}
		case !errors.Is(err, interfaces.ErrCacheMiss):
			a.factory.logger.WarnWithContext(ctx, "Ошибка чтения идентификаторов из кэша",
				interfaces.LogField{Key: "product_id", Value: a.product.ID},
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}

	ids, err := a.factory.meta.GetIdentifiers(ctx, a.product.ID)
	if err != nil {
		return fmt.Errorf("failed to load identifiers for product %d: %w", a.product.ID, err)
	}
	a.stored = ids
	a.loaded = true

	if a.factory.cache != nil {
		if data, err := json.Marshal(ids); err == nil {
			if err := a.factory.cache.Set(ctx, cacheKey, data, a.factory.settings.CacheTTL); err != nil {
				a.factory.logger.WarnWithContext(ctx, "Не удалось сохранить идентификаторы в кэш",
					interfaces.LogField{Key: "product_id", Value: a.product.ID},
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}
	}

	return nil
}

func (a *Accessor) invalidate(ctx context.Context) {
	if a.factory.cache == nil {
		return
	}
	if err := a.factory.cache.Delete(ctx, IdentifiersCacheKey(a.product.ID)); err != nil {
		a.factory.logger.WarnWithContext(ctx, "Не удалось сбросить кэш идентификаторов",
			interfaces.LogField{Key: "product_id", Value: a.product.ID},
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
}
