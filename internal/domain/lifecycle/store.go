package lifecycle

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE PORTS
// Контракты хранилища записей статусов. Реализации находятся в
// infrastructure/persistence. Историю владельца мутирует только сервис
// переходов; все остальные компоненты только читают.
// ══════════════════════════════════════════════════════════════════════════════

// Store определяет операции хранилища, необходимые сервису переходов.
type Store interface {
	// CurrentRecord возвращает текущую запись статуса владельца или nil,
	// если у сущности ещё нет ни одной записи.
	// Возвращает shared.ErrNotFound, если владелец не существует.
	CurrentRecord(ctx context.Context, kind EntityKind, ownerID string) (*StatusRecord, error)

	// AppendStatus в одной транзакции вставляет запись и переводит
	// указатель current_status_id владельца на неё. Обновление указателя
	// условно: оно применяется только если указатель всё ещё равен
	// expectedCurrentID (пустая строка означает "записей ещё не было").
	// При несовпадении транзакция откатывается целиком и возвращается
	// *ConcurrentTransitionError - запись-неудачник не сохраняется.
	AppendStatus(ctx context.Context, rec *StatusRecord, expectedCurrentID string) error

	// LoadHistory возвращает полную историю статусов владельца,
	// упорядоченную по времени создания.
	LoadHistory(ctx context.Context, kind EntityKind, ownerID string) (*History, error)
}

// Divergence описывает расхождение указателя текущего статуса с историей:
// current_status_id владельца не указывает на последнюю по времени запись.
// Появляется только из внешних вмешательств в данные (ручные правки,
// восстановление из бэкапа) - путь записи транзакционен.
type Divergence struct {
	// Kind - вид владеющей сущности.
	Kind EntityKind

	// OwnerID - идентификатор владельца.
	OwnerID string

	// PointerRecordID - запись, на которую указывает владелец
	// (пустая строка, если указатель NULL).
	PointerRecordID string

	// LatestRecordID - последняя по времени запись истории.
	LatestRecordID string

	// LatestCreatedAt - время последней записи.
	LatestCreatedAt time.Time
}

// ReconciliationStore определяет операции для фоновой сверки указателей.
// История авторитетна: восстановление всегда переводит указатель на
// последнюю по времени запись.
type ReconciliationStore interface {
	// FindDiverged находит владельцев указанного вида, у которых указатель
	// расходится с историей. Возвращает не более limit расхождений.
	FindDiverged(ctx context.Context, kind EntityKind, limit int) ([]Divergence, error)

	// RepairPointer переводит указатель владельца на указанную запись.
	// Возвращает shared.ErrNotFound, если владелец не существует.
	RepairPointer(ctx context.Context, kind EntityKind, ownerID, recordID string) error
}
