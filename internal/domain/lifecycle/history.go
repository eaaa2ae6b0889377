package lifecycle

import (
	"iter"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS HISTORY
// Append-only последовательность записей статусов одной владеющей сущности,
// упорядоченная по времени создания (неубывающе). Текущий статус - последняя
// запись. История мутируется только через Append, который возвращает новую
// историю; существующие экземпляры никогда не изменяются.
// ══════════════════════════════════════════════════════════════════════════════

// History - упорядоченная история статусов одного владельца.
type History struct {
	records []StatusRecord
}

// EmptyHistory возвращает пустую историю.
func EmptyHistory() *History {
	return &History{}
}

// NewHistory создаёт историю из уже существующих записей (например, при
// чтении из хранилища). Записи должны быть упорядочены по CreatedAt
// неубывающе; нарушение порядка возвращает *OrderingError.
func NewHistory(records []StatusRecord) (*History, error) {
	h := EmptyHistory()
	for i := range records {
		next, err := h.Append(&records[i])
		if err != nil {
			return nil, err
		}
		h = next
	}
	return h, nil
}

// Append добавляет запись и возвращает новую историю, текущей записью
// которой является rec. Исходная история не изменяется.
// Возвращает *OrderingError, если временная метка записи меньше метки
// текущей записи (история монотонна по времени).
func (h *History) Append(rec *StatusRecord) (*History, error) {
	if rec == nil {
		return nil, &ValidationError{Field: "record", Reason: "record is nil"}
	}
	if cur := h.Current(); cur != nil && rec.CreatedAt.Before(cur.CreatedAt) {
		return nil, &OrderingError{
			Kind:    rec.Kind,
			OwnerID: rec.OwnerID,
			Prev:    cur.CreatedAt,
			Next:    rec.CreatedAt,
		}
	}

	records := make([]StatusRecord, len(h.records)+1)
	copy(records, h.records)
	records[len(h.records)] = *rec.Clone()

	return &History{records: records}, nil
}

// Current возвращает копию последней записи или nil для пустой истории.
func (h *History) Current() *StatusRecord {
	if h == nil || len(h.records) == 0 {
		return nil
	}
	return h.records[len(h.records)-1].Clone()
}

// CurrentStatus возвращает текущий статус и признак его наличия.
func (h *History) CurrentStatus() (Status, bool) {
	cur := h.Current()
	if cur == nil {
		return "", false
	}
	return cur.Status, true
}

// Len возвращает количество записей в истории.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.records)
}

// IsEmpty проверяет, пуста ли история.
func (h *History) IsEmpty() bool {
	return h.Len() == 0
}

// All возвращает ленивую перезапускаемую последовательность записей в
// хронологическом порядке. Записи отдаются копиями: итерация никогда не
// мутирует историю.
func (h *History) All() iter.Seq[StatusRecord] {
	return func(yield func(StatusRecord) bool) {
		if h == nil {
			return
		}
		for i := range h.records {
			if !yield(*h.records[i].Clone()) {
				return
			}
		}
	}
}

// Records возвращает защитную копию всех записей в хронологическом порядке.
func (h *History) Records() []StatusRecord {
	if h == nil || len(h.records) == 0 {
		return nil
	}
	out := make([]StatusRecord, len(h.records))
	for i := range h.records {
		out[i] = *h.records[i].Clone()
	}
	return out
}
