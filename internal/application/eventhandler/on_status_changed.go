// Package eventhandler содержит обработчики доменных событий.
// Обработчики — это "реактивная" часть системы: они реагируют на уже
// совершившиеся факты и запускают побочные эффекты, такие как
// инвалидация кешей. Наложить вето на переход статуса они не могут.
package eventhandler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/urok-hub/urok-marketplace/internal/application/query"
	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STATUS CHANGED HANDLER
// После каждого перехода статуса кешированные карточки и таймлайны
// владельца устаревают. Обработчик удаляет их, чтобы следующее чтение
// прошло мимо кеша в PostgreSQL.
// ═══════════════════════════════════════════════════════════════════════════

// OnStatusChangedHandler инвалидирует кеши чтения после перехода статуса.
type OnStatusChangedHandler struct {
	cache   query.Cache
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnStatusChangedHandler создаёт новый обработчик.
func NewOnStatusChangedHandler(cache query.Cache, logger *slog.Logger) *OnStatusChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnStatusChangedHandler{
		cache:   cache,
		logger:  logger.With("handler", "on_status_changed"),
		timeout: 5 * time.Second,
	}
}

// Handle реализует shared.EventHandler.
func (h *OnStatusChangedHandler) Handle(event shared.Event) error {
	entityKind, toStatus, ok := statusChangeFields(event)
	if !ok {
		h.logger.Warn("received non-status-change event",
			"event_type", event.EventType(),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	ownerID := event.AggregateID()
	keys := []string{
		query.TimelineCacheKey(lifecycle.EntityKind(entityKind), ownerID),
	}
	if entityKind == string(lifecycle.KindLesson) {
		keys = append(keys, query.LessonCacheKey(ownerID))
	}

	if err := h.cache.Delete(ctx, keys...); err != nil {
		// Кеш истечёт по TTL; повторная попытка делается диспетчером.
		h.logger.Warn("failed to invalidate cache",
			"entity_kind", entityKind,
			"owner_id", ownerID,
			"error", err,
		)
		return err
	}

	h.logger.Debug("cache invalidated",
		"entity_kind", entityKind,
		"owner_id", ownerID,
		"to_status", toStatus,
	)

	return nil
}

// statusChangeFields достаёт вид владельца и новый статус из события.
// Локальное событие приходит конкретной структурой. Событие, пришедшее
// с другого инстанса по Redis, воспроизводится обобщённым типом:
// конкретная структура не переживает транспорт, остаются тип и payload.
func statusChangeFields(event shared.Event) (entityKind, toStatus string, ok bool) {
	if e, isLocal := event.(shared.StatusChangedEvent); isLocal {
		return e.EntityKind, e.ToStatus, true
	}

	if !strings.HasSuffix(string(event.EventType()), ".status_changed") {
		return "", "", false
	}

	payload := event.Payload()
	entityKind, _ = payload["entity_kind"].(string)
	if entityKind == "" {
		return "", "", false
	}
	toStatus, _ = payload["to_status"].(string)

	return entityKind, toStatus, true
}
