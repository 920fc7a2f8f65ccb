package models

import (
	"fmt"
	"strconv"
	"time"

	basemodels "github.com/athebyme/gomarket-platform/ean-service/pkg/models"
)

// Ключи метаданных товара, под которыми хранятся идентификаторы
const (
	MetaKeyGTIN = "_ts_gtin"
	MetaKeyMPN  = "_ts_mpn"
)

// Опции и служебные ключи плагина
const (
	OptionPluginVersion  = "jtl_ean_plugin_version"
	OptionPluginSettings = "jtl_ean_plugin_settings"

	TransientPrefix        = "_transient_jtl_ean_"
	TransientTimeoutPrefix = "_transient_timeout_jtl_ean_"

	UninstallReportKey = "jtl_ean_uninstall_report"
)

// Права пользователей, которые проверяет сервис
const (
	CapEditProducts    = "edit_products"
	CapManageCatalog   = "manage_catalog"
	CapActivatePlugins = "activate_plugins"
)

// DefaultPluginVersion - версия, если опция версии отсутствует
const DefaultPluginVersion = "1.0.0"

// Поля идентификаторов в REST представлении
const (
	FieldGTIN = "gtin"
	FieldMPN  = "mpn"
	FieldEAN  = "ean"
)

// Context - контекст чтения значения
type Context string

const (
	// ContextView - отображение. Для пустого GTIN допускается подстановка
	// собственного global_unique_id платформы.
	ContextView Context = "view"
	// ContextEdit - редактирование, возвращается сохраненное значение как есть
	ContextEdit Context = "edit"
)

// ParseContext разбирает значение параметра context, по умолчанию view
func ParseContext(s string) Context {
	if Context(s) == ContextEdit {
		return ContextEdit
	}
	return ContextView
}

// Identifiers - пара идентификаторов товара
type Identifiers struct {
	GTIN string `json:"gtin"`
	MPN  string `json:"mpn"`
}

// LegacyIdentifiers - формат данных старого коннектора, ean дублирует gtin
type LegacyIdentifiers struct {
	GTIN string `json:"gtin"`
	MPN  string `json:"mpn"`
	EAN  string `json:"ean"`
}

// Statistics - сводка по сохраненным идентификаторам
type Statistics struct {
	ProductsWithGTIN int64 `json:"products_with_gtin"`
	ProductsWithMPN  int64 `json:"products_with_mpn"`
	TotalMetaRows    int64 `json:"total_meta_rows"`
}

// IdentifierRecord - строка выгрузки и списка товаров с идентификаторами
type IdentifierRecord struct {
	ProductID int64  `json:"product_id"`
	ParentID  int64  `json:"parent_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	GTIN      string `json:"gtin"`
	MPN       string `json:"mpn"`
}

// Выгрузка CSV
var ExportColumns = []string{"Product ID", "Product Name", "Product Type", "GTIN/EAN", "MPN", "Export Date"}

const (
	ExportDateLayout = "2006-01-02 15:04:05"

	exportTypeProduct   = "product"
	exportTypeVariation = "product_variation"
)

// ExportRow возвращает строку CSV выгрузки в порядке ExportColumns
func (r IdentifierRecord) ExportRow(exportDate string) []string {
	postType := exportTypeProduct
	if r.Type == string(basemodels.ProductTypeVariation) {
		postType = exportTypeVariation
	}
	return []string{
		strconv.FormatInt(r.ProductID, 10),
		r.Name,
		postType,
		r.GTIN,
		r.MPN,
		exportDate,
	}
}

// UninstallReport - результат очистки данных плагина
type UninstallReport struct {
	Timestamp         time.Time  `json:"timestamp"`
	Manual            bool       `json:"manual"`
	GTINDeleted       int64      `json:"gtin_deleted"`
	MPNDeleted        int64      `json:"mpn_deleted"`
	OptionsDeleted    int64      `json:"options_deleted"`
	TransientsDeleted int64      `json:"transients_deleted"`
	CacheKeysFlushed  int64      `json:"cache_keys_flushed"`
	Before            Statistics `json:"before"`
	Errors            []string   `json:"errors,omitempty"`
}

// Summary возвращает сообщение для страницы плагинов
func (r *UninstallReport) Summary() string {
	return fmt.Sprintf(
		"JTL EAN Plugin successfully uninstalled! Deleted: %d GTIN entries, %d MPN entries. Database cleaned and plugin deactivated.",
		r.GTINDeleted, r.MPNDeleted,
	)
}

// IdentifiersEvent описывает сохранение идентификаторов товара
type IdentifiersEvent struct {
	ProductID int64     `json:"product_id"`
	ParentID  int64     `json:"parent_id,omitempty"`
	GTIN      string    `json:"gtin"`
	MPN       string    `json:"mpn"`
	Changed   []string  `json:"changed"`
	ChangedBy string    `json:"changed_by,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// PluginSettings - настройки, передаваемые в сервисы и адаптеры явно
type PluginSettings struct {
	Version  string
	Debug    bool
	CacheTTL time.Duration
}
