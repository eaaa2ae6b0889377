package query

import (
	"context"
	"time"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATUS TIMELINE QUERY
// Возвращает полную историю статусов владельца для аудита и таймлайна в
// интерфейсе. Работает для всех четырёх видов сущностей. Кэшируется;
// кэш инвалидируется сервисом переходов при каждой новой записи.
// ══════════════════════════════════════════════════════════════════════════════

// TTLTimelineCache - время жизни кэша таймлайна.
const TTLTimelineCache = 5 * time.Minute

// TimelineCacheKey формирует ключ кэша таймлайна владельца.
func TimelineCacheKey(kind lifecycle.EntityKind, ownerID string) string {
	return "timeline:" + kind.String() + ":" + ownerID
}

// GetStatusTimelineQuery содержит параметры запроса таймлайна.
type GetStatusTimelineQuery struct {
	// Kind - вид владеющей сущности.
	Kind lifecycle.EntityKind

	// OwnerID - идентификатор владельца.
	OwnerID string

	// BypassCache - принудительно читать из хранилища.
	BypassCache bool
}

// Validate проверяет корректность параметров запроса.
func (q *GetStatusTimelineQuery) Validate() error {
	if !q.Kind.IsValid() {
		return &lifecycle.ValidationError{Kind: q.Kind, Field: "kind", Reason: "unknown entity kind"}
	}
	if q.OwnerID == "" {
		return &lifecycle.ValidationError{Kind: q.Kind, Field: "owner_id", Reason: "owner id is required"}
	}
	return nil
}

// TimelineItemDTO - одна запись таймлайна.
type TimelineItemDTO struct {
	// RecordID - идентификатор записи статуса.
	RecordID string `json:"record_id"`

	// Status - статус.
	Status string `json:"status"`

	// Context - данные перехода (как сохранены, без интерпретации).
	Context map[string]any `json:"context,omitempty"`

	// CreatedAt - серверное время записи (UTC).
	CreatedAt time.Time `json:"created_at"`

	// CreatedAtLocal - то же время в часовом поясе Алматы для интерфейса.
	CreatedAtLocal string `json:"created_at_local"`
}

// StatusTimelineDTO - DTO таймлайна владельца.
type StatusTimelineDTO struct {
	// Kind - вид владеющей сущности.
	Kind string `json:"kind"`

	// OwnerID - идентификатор владельца.
	OwnerID string `json:"owner_id"`

	// CurrentStatus - текущий статус (пустой, если история пуста).
	CurrentStatus string `json:"current_status,omitempty"`

	// Items - записи в порядке возрастания времени.
	Items []TimelineItemDTO `json:"items"`

	// FromCache - ответ взят из кэша (диагностика).
	FromCache bool `json:"-"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetStatusTimelineHandler обрабатывает GetStatusTimelineQuery.
type GetStatusTimelineHandler struct {
	store lifecycle.Store
	cache Cache
}

// NewGetStatusTimelineHandler создаёт новый GetStatusTimelineHandler.
func NewGetStatusTimelineHandler(store lifecycle.Store, cache Cache) *GetStatusTimelineHandler {
	return &GetStatusTimelineHandler{
		store: store,
		cache: cache,
	}
}

// Handle выполняет запрос таймлайна.
func (h *GetStatusTimelineHandler) Handle(ctx context.Context, q GetStatusTimelineQuery) (*StatusTimelineDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := TimelineCacheKey(q.Kind, q.OwnerID)

	if h.cache != nil && !q.BypassCache {
		var cached StatusTimelineDTO
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			cached.FromCache = true
			return &cached, nil
		}
	}

	history, err := h.store.LoadHistory(ctx, q.Kind, q.OwnerID)
	if err != nil {
		return nil, err
	}

	dto := &StatusTimelineDTO{
		Kind:    q.Kind.String(),
		OwnerID: q.OwnerID,
		Items:   make([]TimelineItemDTO, 0, history.Len()),
	}

	for rec := range history.All() {
		dto.Items = append(dto.Items, TimelineItemDTO{
			RecordID:       rec.ID,
			Status:         rec.Status.String(),
			Context:        rec.Context,
			CreatedAt:      rec.CreatedAt,
			CreatedAtLocal: timeutil.FormatDateTimeStr(rec.CreatedAt),
		})
	}

	if cur := history.Current(); cur != nil {
		dto.CurrentStatus = cur.Status.String()
	}

	if h.cache != nil {
		_ = h.cache.Set(ctx, key, dto, TTLTimelineCache)
	}

	return dto, nil
}
