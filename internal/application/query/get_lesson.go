// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urok-hub/urok-marketplace/internal/domain/lesson"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LESSON QUERY
// Возвращает урок с полной историей статусов. Горячий путь чтения:
// карточка урока открывается и студентом, и репетитором, поэтому ответ
// кэшируется и инвалидируется при каждом переходе статуса.
// ══════════════════════════════════════════════════════════════════════════════

// Cache - порт кэша для запросов чтения. Реализуется Redis-кэшем из
// infrastructure/persistence/redis. Любая ошибка Get трактуется как
// промах: кэш никогда не является источником истины.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// TTLLessonCache - время жизни кэша карточки урока.
const TTLLessonCache = 5 * time.Minute

// LessonCacheKey формирует ключ кэша карточки урока.
func LessonCacheKey(lessonID string) string {
	return "lesson:" + lessonID
}

// GetLessonQuery содержит параметры запроса урока.
type GetLessonQuery struct {
	// LessonID - идентификатор урока.
	LessonID string

	// BypassCache - принудительно читать из хранилища.
	BypassCache bool
}

// Validate проверяет корректность параметров запроса.
func (q *GetLessonQuery) Validate() error {
	if q.LessonID == "" {
		return errors.New("get_lesson: lesson_id is required")
	}
	return nil
}

// LessonDTO - DTO карточки урока.
type LessonDTO struct {
	// ID - идентификатор урока.
	ID string `json:"id"`

	// QuoteID - котировка, из которой создан урок.
	QuoteID string `json:"quote_id"`

	// StudentID - студент.
	StudentID string `json:"student_id"`

	// TutorID - репетитор.
	TutorID string `json:"tutor_id"`

	// Subject - предмет.
	Subject string `json:"subject"`

	// ScheduledAt - согласованное время проведения (UTC).
	ScheduledAt time.Time `json:"scheduled_at"`

	// DurationMinutes - длительность в минутах.
	DurationMinutes int `json:"duration_minutes"`

	// Status - текущий статус, выведенный из истории.
	Status string `json:"status"`

	// StatusChangedAt - время последнего перехода.
	StatusChangedAt time.Time `json:"status_changed_at"`

	// HistoryLength - количество записей в истории.
	HistoryLength int `json:"history_length"`

	// CreatedAt - время создания урока.
	CreatedAt time.Time `json:"created_at"`

	// FromCache - ответ взят из кэша (диагностика).
	FromCache bool `json:"-"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetLessonHandler обрабатывает GetLessonQuery.
type GetLessonHandler struct {
	lessonRepo lesson.Repository
	cache      Cache
}

// NewGetLessonHandler создаёт новый GetLessonHandler.
func NewGetLessonHandler(lessonRepo lesson.Repository, cache Cache) *GetLessonHandler {
	return &GetLessonHandler{
		lessonRepo: lessonRepo,
		cache:      cache,
	}
}

// Handle выполняет запрос урока.
func (h *GetLessonHandler) Handle(ctx context.Context, q GetLessonQuery) (*LessonDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if h.cache != nil && !q.BypassCache {
		var cached LessonDTO
		if err := h.cache.Get(ctx, LessonCacheKey(q.LessonID), &cached); err == nil {
			cached.FromCache = true
			return &cached, nil
		}
	}

	l, err := h.lessonRepo.GetByID(ctx, q.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get_lesson: %w", err)
	}

	dto := lessonToDTO(l)

	if h.cache != nil {
		_ = h.cache.Set(ctx, LessonCacheKey(q.LessonID), dto, TTLLessonCache)
	}

	return dto, nil
}

// lessonToDTO собирает DTO из доменной сущности.
func lessonToDTO(l *lesson.Lesson) *LessonDTO {
	dto := &LessonDTO{
		ID:              l.ID,
		QuoteID:         l.QuoteID,
		StudentID:       l.StudentID.String(),
		TutorID:         l.TutorID.String(),
		Subject:         l.Subject.String(),
		ScheduledAt:     l.ScheduledAt,
		DurationMinutes: l.DurationMinutes,
		HistoryLength:   l.History.Len(),
		CreatedAt:       l.CreatedAt,
	}

	if cur := l.Current(); cur != nil {
		dto.Status = cur.Status.String()
		dto.StatusChangedAt = cur.CreatedAt
	}

	return dto
}
