package lifecycle

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITION VALIDATOR
// Единственная точка, где проверяется легальность перехода. Ни один вызов
// записи статуса не обходит эту проверку: сервис переходов обязан вызвать
// ValidateTransition перед сохранением записи.
// ══════════════════════════════════════════════════════════════════════════════

// Validator проверяет переходы статусов по таблицам дескрипторов.
type Validator struct {
	descriptors map[EntityKind]*Descriptor
}

// NewValidator создаёт валидатор для указанных дескрипторов.
func NewValidator(descs ...*Descriptor) *Validator {
	m := make(map[EntityKind]*Descriptor, len(descs))
	for _, d := range descs {
		if d != nil {
			m[d.Kind] = d
		}
	}
	return &Validator{descriptors: m}
}

// DefaultValidator возвращает валидатор со всеми продакшн-видами.
func DefaultValidator() *Validator {
	return NewValidator(Descriptors()...)
}

// Descriptor возвращает дескриптор вида или nil, если вид не зарегистрирован.
func (v *Validator) Descriptor(kind EntityKind) *Descriptor {
	return v.descriptors[kind]
}

// CanTransition проверяет допустимость перехода. Нулевой from означает
// первый переход из состояния создания: легальность проверяется по
// множеству начальных статусов вида.
func (v *Validator) CanTransition(kind EntityKind, from *Status, to Status) bool {
	desc, ok := v.descriptors[kind]
	if !ok {
		return false
	}
	if !desc.HasStatus(to) {
		return false
	}
	if from == nil {
		return desc.IsInitial(to)
	}
	return desc.Allows(*from, to)
}

// ValidateTransition проверяет переход и возвращает ошибку с именованной
// парой (from, to), если переход не входит в таблицу вида.
// Возвращает *ValidationError для незарегистрированного вида или статуса
// вне перечисления и *InvalidTransitionError для нелегальной пары.
func (v *Validator) ValidateTransition(kind EntityKind, from *Status, to Status) error {
	desc, ok := v.descriptors[kind]
	if !ok {
		return &ValidationError{Kind: kind, Field: "kind", Reason: "unknown entity kind"}
	}
	if !desc.HasStatus(to) {
		return &ValidationError{
			Kind:   kind,
			Field:  "status",
			Reason: "status " + string(to) + " is not a member of " + string(kind) + " enumeration",
		}
	}
	if !v.CanTransition(kind, from, to) {
		return &InvalidTransitionError{Kind: kind, From: from, To: to}
	}
	return nil
}
