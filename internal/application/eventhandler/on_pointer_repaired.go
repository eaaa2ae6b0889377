// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/urok-hub/urok-marketplace/internal/application/query"
	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON POINTER REPAIRED HANDLER
// Починка указателя меняет текущий статус владельца в обход обычного
// пути переходов, поэтому кеши нужно сбросить и здесь.
// ═══════════════════════════════════════════════════════════════════════════

// OnPointerRepairedHandler инвалидирует кеши после починки указателя
// джобом сверки.
type OnPointerRepairedHandler struct {
	cache   query.Cache
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnPointerRepairedHandler создаёт новый обработчик.
func NewOnPointerRepairedHandler(cache query.Cache, logger *slog.Logger) *OnPointerRepairedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnPointerRepairedHandler{
		cache:   cache,
		logger:  logger.With("handler", "on_pointer_repaired"),
		timeout: 5 * time.Second,
	}
}

// Handle реализует shared.EventHandler.
func (h *OnPointerRepairedHandler) Handle(event shared.Event) error {
	entityKind, repairedToID, jobName, ok := pointerRepairFields(event)
	if !ok {
		h.logger.Warn("received non-pointer-repair event",
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
		h.logger.Warn("failed to invalidate cache after repair",
			"entity_kind", entityKind,
			"owner_id", ownerID,
			"error", err,
		)
		return err
	}

	h.logger.Info("cache invalidated after pointer repair",
		"entity_kind", entityKind,
		"owner_id", ownerID,
		"repaired_to", repairedToID,
		"job", jobName,
	)

	return nil
}

// pointerRepairFields достаёт поля события починки указателя. Как и в
// statusChangeFields, событие с другого инстанса приходит без конкретного
// типа, и поля восстанавливаются из payload.
func pointerRepairFields(event shared.Event) (entityKind, repairedToID, jobName string, ok bool) {
	if e, isLocal := event.(shared.PointerRepairedEvent); isLocal {
		return e.EntityKind, e.RepairedToID, e.DetectedByJob, true
	}

	if event.EventType() != shared.EventPointerRepaired {
		return "", "", "", false
	}

	payload := event.Payload()
	entityKind, _ = payload["entity_kind"].(string)
	if entityKind == "" {
		return "", "", "", false
	}
	repairedToID, _ = payload["repaired_to_id"].(string)
	jobName, _ = payload["detected_by_job"].(string)

	return entityKind, repairedToID, jobName, true
}
