package validation

import (
	"context"

	"github.com/athebyme/gomarket-platform/ean-service/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus"
)

// Исходы нормализации для метрик
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeStripped  = "stripped"
	OutcomeTruncated = "truncated"
	OutcomeEmpty     = "empty"
)

// Normalizer применяет правила к пользовательскому вводу, считает исходы
// и в режиме отладки пишет в лог отброшенные и обрезанные значения
type Normalizer struct {
	logger  interfaces.LoggerPort
	debug   bool
	counter *prometheus.CounterVec
}

// NewNormalizer создает нормализатор. counter может быть nil.
func NewNormalizer(logger interfaces.LoggerPort, debug bool, counter *prometheus.CounterVec) *Normalizer {
	return &Normalizer{logger: logger, debug: debug, counter: counter}
}

// NewNormalizationCounter создает счетчик identifier_normalizations_total
func NewNormalizationCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identifier_normalizations_total",
			Help: "Количество нормализаций GTIN и MPN по исходам",
		},
		[]string{"field", "outcome"},
	)
}

// GTIN очищает и проверяет значение GTIN для товара productID
func (n *Normalizer) GTIN(ctx context.Context, productID int64, raw string) string {
	sanitized := SanitizeText(raw)
	gtin := ValidateGTIN(sanitized)

	switch {
	case sanitized == "":
		n.observe("gtin", OutcomeEmpty)
	case gtin == "":
		n.observe("gtin", OutcomeRejected)
		n.debugf(ctx, "Невалидная длина GTIN", productID, "gtin", sanitized)
	case gtin != sanitized:
		n.observe("gtin", OutcomeStripped)
	default:
		n.observe("gtin", OutcomeAccepted)
	}

	return gtin
}

// MPN очищает значение MPN для товара productID
func (n *Normalizer) MPN(ctx context.Context, productID int64, raw string) string {
	sanitized := SanitizeText(raw)
	stripped := nonMPN.ReplaceAllString(sanitized, "")
	mpn := ValidateMPN(sanitized)

	switch {
	case sanitized == "":
		n.observe("mpn", OutcomeEmpty)
	case len(stripped) > MaxMPNLength:
		n.observe("mpn", OutcomeTruncated)
		n.debugf(ctx, "MPN обрезан", productID, "mpn", mpn)
	case stripped != sanitized:
		n.observe("mpn", OutcomeStripped)
	default:
		n.observe("mpn", OutcomeAccepted)
	}

	return mpn
}

func (n *Normalizer) observe(field, outcome string) {
	if n.counter != nil {
		n.counter.WithLabelValues(field, outcome).Inc()
	}
}

func (n *Normalizer) debugf(ctx context.Context, msg string, productID int64, field, value string) {
	if !n.debug || n.logger == nil {
		return
	}
	n.logger.InfoWithContext(ctx, msg,
		interfaces.LogField{Key: "product_id", Value: productID},
		interfaces.LogField{Key: field, Value: value})
}
