package handlers

import (
	"bytes"
	"embed"
	"encoding/csv"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/ean-service/internal/domain/services"
	"github.com/athebyme/gomarket-platform/ean-service/internal/security"
	"github.com/athebyme/gomarket-platform/ean-service/internal/utils"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/auth"
	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/go-chi/render"
)

// HostMissingNotice показывается, пока каталог платформы недоступен
const HostMissingNotice = "JTL EAN Plugin requires WooCommerce to be installed and active."

// Тексты страниц с фатальной ошибкой
const (
	fatalSecurityCheck   = "Security check failed."
	fatalPermissions     = "You do not have sufficient permissions."
	fatalConfirmations   = "Please confirm both checkboxes to proceed."
	fatalNoExportData    = "No EAN/GTIN data found to export."
	fatalUninstallFailed = "Uninstall failed. Please check the service logs."
	fatalExportFailed    = "Export failed. Please check the service logs."
	deactivatedNotice    = "JTL EAN Plugin has been deactivated."
)

// Поля форм админки
const (
	fieldGTIN            = "_ts_gtin"
	fieldMPN             = "_ts_mpn"
	fieldConfirmDeletion = "confirm_data_deletion"
	fieldConfirmNoBackup = "confirm_no_backup"
)

const (
	exportFlushEvery     = 500
	exportFilenameLayout = "2006-01-02-15-04-05"

	pluginsPage = "/admin/plugins"
)

var variationIndexRe = regexp.MustCompile(`^variable_post_id\[(\d+)\]$`)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

// AdminHandler отдает HTML фрагменты и страницы админки и принимает их формы
type AdminHandler struct {
	service   *services.IdentifierService
	caps      services.CapabilityChecker
	nonces    *security.NonceManager
	templates *template.Template
	logger    interfaces.LoggerPort
	now       func() time.Time
}

// NewAdminHandler создает обработчик админки и разбирает встроенные шаблоны
func NewAdminHandler(
	service *services.IdentifierService,
	caps services.CapabilityChecker,
	nonces *security.NonceManager,
	logger interfaces.LoggerPort,
) (*AdminHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &AdminHandler{
		service:   service,
		caps:      caps,
		nonces:    nonces,
		templates: tmpl,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Assets отдает CSS и скрипт быстрого редактирования
func (h *AdminHandler) Assets() http.Handler {
	sub, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

type fieldsView struct {
	ID         int64
	Loop       int
	GTIN       string
	MPN        string
	NonceField string
	Nonce      string
}

type pageView struct {
	Title   string
	Message string
}

type settingsView struct {
	Title               string
	Version             string
	Stats               models.Statistics
	UninstallNonceField string
	UninstallNonce      string
	ExportNonceField    string
	ExportNonce         string
	LastReport          *models.UninstallReport
}

type pluginsView struct {
	Title         string
	Message       string
	Type          string
	Version       string
	Active        bool
	HostAvailable bool
	HostNotice    string
}

// ProductFields выводит поля GTIN/MPN карточки товара со значениями edit
func (h *AdminHandler) ProductFields(w http.ResponseWriter, r *http.Request) {
	a, ok := h.accessor(w, r)
	if !ok {
		return
	}

	ids, err := a.Identifiers(r.Context(), models.ContextEdit)
	if err != nil {
		h.internalError(w, r, err, "Ошибка чтения идентификаторов")
		return
	}

	nonce, err := h.nonces.Create(userID(r), security.ActionSaveProduct)
	if err != nil {
		h.internalError(w, r, err, "Ошибка создания CSRF токена")
		return
	}

	h.html(w, r, http.StatusOK, "product_fields.html", fieldsView{
		ID:         a.ID(),
		GTIN:       ids.GTIN,
		MPN:        ids.MPN,
		NonceField: security.FieldProductNonce,
		Nonce:      nonce,
	})
}

// VariationFields выводит поля вариации с индексом loop
func (h *AdminHandler) VariationFields(w http.ResponseWriter, r *http.Request) {
	a, ok := h.accessor(w, r)
	if !ok {
		return
	}

	loop, err := strconv.Atoi(r.URL.Query().Get("loop"))
	if err != nil || loop < 0 {
		loop = 0
	}

	ids, err := a.Identifiers(r.Context(), models.ContextEdit)
	if err != nil {
		h.internalError(w, r, err, "Ошибка чтения идентификаторов")
		return
	}

	h.html(w, r, http.StatusOK, "variation_fields.html", fieldsView{
		ID:   a.ID(),
		Loop: loop,
		GTIN: ids.GTIN,
		MPN:  ids.MPN,
	})
}

// BulkEditFields выводит пустые поля массового редактирования
func (h *AdminHandler) BulkEditFields(w http.ResponseWriter, r *http.Request) {
	h.html(w, r, http.StatusOK, "bulk_edit.html", nil)
}

// QuickEditFields выводит пустые поля быстрого редактирования
func (h *AdminHandler) QuickEditFields(w http.ResponseWriter, r *http.Request) {
	h.html(w, r, http.StatusOK, "quick_edit.html", nil)
}

// InlineData выводит скрытый блок со значениями для быстрого редактирования
func (h *AdminHandler) InlineData(w http.ResponseWriter, r *http.Request) {
	a, ok := h.accessor(w, r)
	if !ok {
		return
	}

	ids, err := a.Identifiers(r.Context(), models.ContextEdit)
	if err != nil {
		h.internalError(w, r, err, "Ошибка чтения идентификаторов")
		return
	}

	h.html(w, r, http.StatusOK, "inline_data.html", fieldsView{ID: a.ID(), GTIN: ids.GTIN, MPN: ids.MPN})
}

// SaveProduct сохраняет поля карточки товара. Присланное поле перезаписывает
// значение, даже пустое. Без прав или CSRF токена ничего не меняется.
func (h *AdminHandler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	a, ok := h.accessor(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}

	if !h.caps.Can(r.Context(), models.CapEditProducts) {
		h.skip(w, r, "Нет прав на изменение товара", a.ID())
		return
	}
	if err := h.nonces.Verify(r.PostForm.Get(security.FieldProductNonce), userID(r), security.ActionSaveProduct); err != nil {
		h.skip(w, r, "Невалидный CSRF токен карточки товара", a.ID())
		return
	}

	if v, ok := formValue(r.PostForm, fieldGTIN); ok {
		a.SetGTIN(r.Context(), v)
	}
	if v, ok := formValue(r.PostForm, fieldMPN); ok {
		a.SetMPN(r.Context(), v)
	}

	h.save(w, r, a)
}

// SaveVariations сохраняет поля всех вариаций формы. Индекс вариации берется
// из variable_post_id[i], значения из variable_gtin[i] и variable_mpn[i].
func (h *AdminHandler) SaveVariations(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	ctx := r.Context()
	for _, i := range variationIndexes(r.PostForm) {
		idx := strconv.Itoa(i)
		variationID, err := strconv.ParseInt(r.PostForm.Get("variable_post_id["+idx+"]"), 10, 64)
		if err != nil {
			continue
		}

		if !h.caps.Can(ctx, models.CapEditProducts) {
			h.logger.DebugWithContext(ctx, "Нет прав на изменение вариации",
				interfaces.LogField{Key: "product_id", Value: variationID})
			continue
		}

		a, err := h.service.Accessors().ForID(ctx, variationID)
		if err != nil {
			h.internalError(w, r, err, "Ошибка загрузки вариации")
			return
		}
		if !a.Exists() {
			continue
		}

		if v, ok := formValue(r.PostForm, "variable_gtin["+idx+"]"); ok {
			a.SetGTIN(ctx, v)
		}
		if v, ok := formValue(r.PostForm, "variable_mpn["+idx+"]"); ok {
			a.SetMPN(ctx, v)
		}

		if err := a.Save(ctx); err != nil {
			h.internalError(w, r, err, "Ошибка сохранения вариации")
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// SaveBulkEdit применяет массовое редактирование к товарам post[].
// Пустые значения не перезаписывают сохраненные.
func (h *AdminHandler) SaveBulkEdit(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	gtin := r.Form.Get(fieldGTIN)
	mpn := r.Form.Get(fieldMPN)
	if gtin == "" && mpn == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ctx := r.Context()
	for _, raw := range r.Form["post[]"] {
		productID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}

		if !h.caps.Can(ctx, models.CapEditProducts) {
			h.logger.DebugWithContext(ctx, "Нет прав на массовое изменение товара",
				interfaces.LogField{Key: "product_id", Value: productID})
			continue
		}

		a, err := h.service.Accessors().ForID(ctx, productID)
		if err != nil {
			h.internalError(w, r, err, "Ошибка загрузки товара")
			return
		}
		if !a.Exists() {
			continue
		}

		if gtin != "" {
			a.SetGTIN(ctx, gtin)
		}
		if mpn != "" {
			a.SetMPN(ctx, mpn)
		}

		if err := a.Save(ctx); err != nil {
			h.internalError(w, r, err, "Ошибка сохранения товара")
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// SaveQuickEdit сохраняет быстрое редактирование товара
func (h *AdminHandler) SaveQuickEdit(w http.ResponseWriter, r *http.Request) {
	a, ok := h.accessor(w, r)
	if !ok {
		return
	}
	if !h.parseForm(w, r) {
		return
	}

	if !h.caps.Can(r.Context(), models.CapEditProducts) {
		h.skip(w, r, "Нет прав на быстрое изменение товара", a.ID())
		return
	}

	if v, ok := formValue(r.Form, fieldGTIN); ok {
		a.SetGTIN(r.Context(), v)
	}
	if v, ok := formValue(r.Form, fieldMPN); ok {
		a.SetMPN(r.Context(), v)
	}

	h.save(w, r, a)
}

// Settings выводит страницу настроек со статистикой и формами удаления и выгрузки
func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	version, err := h.service.Version(ctx)
	if err != nil {
		h.internalError(w, r, err, "Ошибка получения версии плагина")
		return
	}

	stats, err := h.service.Statistics(ctx)
	if err != nil {
		h.internalError(w, r, err, "Ошибка получения статистики")
		return
	}

	uid := userID(r)
	uninstallNonce, err := h.nonces.Create(uid, security.ActionManualUninstall)
	if err != nil {
		h.internalError(w, r, err, "Ошибка создания CSRF токена")
		return
	}
	exportNonce, err := h.nonces.Create(uid, security.ActionExportData)
	if err != nil {
		h.internalError(w, r, err, "Ошибка создания CSRF токена")
		return
	}

	view := settingsView{
		Title:               "JTL EAN Settings",
		Version:             version,
		Stats:               stats,
		UninstallNonceField: security.FieldUninstallNonce,
		UninstallNonce:      uninstallNonce,
		ExportNonceField:    security.FieldExportNonce,
		ExportNonce:         exportNonce,
	}
	if report, err := h.service.UninstallReport(ctx); err == nil {
		view.LastReport = report
	}

	h.html(w, r, http.StatusOK, "settings.html", view)
}

// ManualUninstall удаляет все данные плагина и деактивирует его.
// Проверки идут по порядку: CSRF токен, права, оба подтверждения.
func (h *AdminHandler) ManualUninstall(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	if err := h.nonces.Verify(r.PostForm.Get(security.FieldUninstallNonce), userID(r), security.ActionManualUninstall); err != nil {
		h.Fatal(w, r, http.StatusForbidden, fatalSecurityCheck)
		return
	}
	if !h.caps.Can(r.Context(), models.CapManageCatalog) {
		h.Fatal(w, r, http.StatusForbidden, fatalPermissions)
		return
	}
	if !r.PostForm.Has(fieldConfirmDeletion) || !r.PostForm.Has(fieldConfirmNoBackup) {
		h.Fatal(w, r, http.StatusForbidden, fatalConfirmations)
		return
	}

	report, err := h.service.Uninstall(r.Context(), true)
	if err != nil {
		h.logger.ErrorWithContext(r.Context(), "Ошибка удаления данных плагина",
			interfaces.LogField{Key: "error", Value: err.Error()})
		h.Fatal(w, r, http.StatusInternalServerError, fatalUninstallFailed)
		return
	}

	query := url.Values{}
	query.Set("message", report.Summary())
	query.Set("type", "success")
	http.Redirect(w, r, pluginsPage+"?"+query.Encode(), http.StatusSeeOther)
}

// Export выгружает все непустые идентификаторы в CSV
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}

	if err := h.nonces.Verify(r.PostForm.Get(security.FieldExportNonce), userID(r), security.ActionExportData); err != nil {
		h.Fatal(w, r, http.StatusForbidden, fatalSecurityCheck)
		return
	}
	if !h.caps.Can(r.Context(), models.CapManageCatalog) {
		h.Fatal(w, r, http.StatusForbidden, fatalPermissions)
		return
	}

	now := h.now()
	exportDate := now.Format(models.ExportDateLayout)
	rc := http.NewResponseController(w)

	// заголовки пишутся с первой строкой, чтобы при пустой выгрузке отдать страницу ошибки
	var (
		cw   *csv.Writer
		rows int
	)
	n, err := h.service.Export(r.Context(), func(rec models.IdentifierRecord) error {
		if cw == nil {
			header := w.Header()
			header.Set("Content-Type", "text/csv; charset=utf-8")
			header.Set("Content-Disposition", "attachment; filename=jtl-ean-export-"+now.Format(exportFilenameLayout)+".csv")
			header.Set("Pragma", "no-cache")
			header.Set("Expires", "0")
			w.WriteHeader(http.StatusOK)

			cw = csv.NewWriter(w)
			if err := cw.Write(models.ExportColumns); err != nil {
				return err
			}
		}

		if err := cw.Write(rec.ExportRow(exportDate)); err != nil {
			return err
		}

		rows++
		if rows%exportFlushEvery == 0 {
			cw.Flush()
			_ = rc.Flush()
		}
		return cw.Error()
	})

	if cw != nil {
		cw.Flush()
		if err != nil {
			h.logger.ErrorWithContext(r.Context(), "Выгрузка прервана",
				interfaces.LogField{Key: "rows", Value: n},
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
		return
	}

	switch {
	case errors.Is(err, utils.ErrNoExportData):
		h.Fatal(w, r, http.StatusNotFound, fatalNoExportData)
	case err != nil:
		h.logger.ErrorWithContext(r.Context(), "Ошибка выгрузки идентификаторов",
			interfaces.LogField{Key: "error", Value: err.Error()})
		h.Fatal(w, r, http.StatusInternalServerError, fatalExportFailed)
	}
}

// Plugins выводит страницу плагинов с сообщением после удаления
func (h *AdminHandler) Plugins(w http.ResponseWriter, r *http.Request) {
	state := h.service.State()
	view := pluginsView{
		Title:         "Plugins",
		Message:       r.URL.Query().Get("message"),
		Type:          noticeType(r.URL.Query().Get("type")),
		Version:       models.DefaultPluginVersion,
		Active:        state.Active() && state.HostAvailable(),
		HostAvailable: state.HostAvailable(),
		HostNotice:    HostMissingNotice,
	}

	if state.HostAvailable() {
		if version, err := h.service.Version(r.Context()); err == nil {
			view.Version = version
		}
	}

	h.html(w, r, http.StatusOK, "plugins.html", view)
}

// Unavailable выводит постоянное уведомление, пока плагин отключен
func (h *AdminHandler) Unavailable(w http.ResponseWriter, r *http.Request, reason error) {
	message := HostMissingNotice
	if errors.Is(reason, utils.ErrPluginDeactivated) {
		message = deactivatedNotice
	}
	h.html(w, r, http.StatusServiceUnavailable, "notice.html", pageView{Title: "JTL EAN", Message: message})
}

// Denied завершает запрос страницей об отсутствии прав
func (h *AdminHandler) Denied(w http.ResponseWriter, r *http.Request) {
	h.Fatal(w, r, http.StatusForbidden, fatalPermissions)
}

// Fatal завершает запрос страницей с сообщением об ошибке
func (h *AdminHandler) Fatal(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.html(w, r, status, "fatal.html", pageView{Title: "Error", Message: message})
}

// accessor загружает товар из {id}. Для неизвестного товара отвечает 204.
func (h *AdminHandler) accessor(w http.ResponseWriter, r *http.Request) (*services.Accessor, bool) {
	productID, ok := urlID(r, "id")
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return nil, false
	}

	a, err := h.service.Accessors().ForID(r.Context(), productID)
	if err != nil {
		h.internalError(w, r, err, "Ошибка загрузки товара")
		return nil, false
	}
	if !a.Exists() {
		w.WriteHeader(http.StatusNoContent)
		return nil, false
	}
	return a, true
}

func (h *AdminHandler) save(w http.ResponseWriter, r *http.Request, a *services.Accessor) {
	if err := a.Save(r.Context()); err != nil {
		h.internalError(w, r, err, "Ошибка сохранения идентификаторов")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) skip(w http.ResponseWriter, r *http.Request, msg string, productID int64) {
	h.logger.DebugWithContext(r.Context(), msg, interfaces.LogField{Key: "product_id", Value: productID})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *AdminHandler) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	h.logger.ErrorWithContext(r.Context(), msg, interfaces.LogField{Key: "error", Value: err.Error()})
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *AdminHandler) html(w http.ResponseWriter, r *http.Request, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.internalError(w, r, err, "Ошибка отрисовки шаблона")
		return
	}

	render.Status(r, status)
	render.HTML(w, r, buf.String())
}

func userID(r *http.Request) string {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return p.UserID
	}
	return ""
}

// formValue возвращает первое значение поля и признак его присутствия
func formValue(form url.Values, key string) (string, bool) {
	values, ok := form[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// variationIndexes возвращает отсортированные индексы variable_post_id[i]
func variationIndexes(form url.Values) []int {
	var indexes []int
	for key := range form {
		m := variationIndexRe.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		if i, err := strconv.Atoi(m[1]); err == nil {
			indexes = append(indexes, i)
		}
	}
	sort.Ints(indexes)
	return indexes
}

func noticeType(t string) string {
	switch t {
	case "success", "warning", "error", "info":
		return t
	default:
		return "info"
	}
}
