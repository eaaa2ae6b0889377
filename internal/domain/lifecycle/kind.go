package lifecycle

// ══════════════════════════════════════════════════════════════════════════════
// KIND DESCRIPTORS
// Вместо четырёх продублированных реализаций истории и валидатора каждый вид
// сущности описывается декларативно: перечисление статусов, допустимые
// первые статусы, таблица переходов и статус-заглушка для пути чтения.
// Полный граф переходов - это данные, его можно аудировать и тестировать
// как таблицу.
// ══════════════════════════════════════════════════════════════════════════════

// Descriptor описывает жизненный цикл одного вида владеющей сущности.
type Descriptor struct {
	// Kind - вид сущности.
	Kind EntityKind

	// Statuses - полное перечисление статусов вида.
	Statuses []Status

	// Initial - статусы, достижимые из состояния создания
	// (допустимый первый переход при пустой истории).
	Initial []Status

	// Transitions - таблица допустимых переходов: from -> множество to.
	// Переход в тот же статус запрещён, если петля не указана явно.
	Transitions map[Status]map[Status]struct{}

	// Fallback - статус, подставляемый путём чтения вместо неизвестного
	// "сырого" значения из хранилища (исторический дрейф данных).
	// Путь записи заглушку не использует никогда.
	Fallback Status
}

// HasStatus проверяет принадлежность статуса перечислению вида.
func (d *Descriptor) HasStatus(s Status) bool {
	for _, known := range d.Statuses {
		if known == s {
			return true
		}
	}
	return false
}

// IsInitial проверяет, допустим ли статус как первый в истории.
func (d *Descriptor) IsInitial(s Status) bool {
	for _, init := range d.Initial {
		if init == s {
			return true
		}
	}
	return false
}

// Allows проверяет допустимость перехода from -> to по таблице.
func (d *Descriptor) Allows(from, to Status) bool {
	targets, ok := d.Transitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// IsTerminal проверяет, что из статуса нет исходящих переходов.
func (d *Descriptor) IsTerminal(s Status) bool {
	return len(d.Transitions[s]) == 0
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON LIFECYCLE
// requested -> confirmed -> completed, с отменой из любого нетерминального
// состояния. Урок создаётся сразу в статусе requested.
// ══════════════════════════════════════════════════════════════════════════════

// Статусы урока.
const (
	// LessonRequested - студент отправил заявку на урок.
	LessonRequested Status = "requested"
	// LessonConfirmed - котировка репетитора принята, урок подтверждён.
	LessonConfirmed Status = "confirmed"
	// LessonCompleted - урок проведён.
	LessonCompleted Status = "completed"
	// LessonCancelled - урок отменён любой из сторон.
	LessonCancelled Status = "cancelled"
)

// LessonDescriptor возвращает дескриптор жизненного цикла урока.
func LessonDescriptor() *Descriptor {
	return &Descriptor{
		Kind:     KindLesson,
		Statuses: []Status{LessonRequested, LessonConfirmed, LessonCompleted, LessonCancelled},
		Initial:  []Status{LessonRequested},
		Transitions: map[Status]map[Status]struct{}{
			LessonRequested: {
				LessonConfirmed: {},
				LessonCancelled: {},
			},
			LessonConfirmed: {
				LessonCompleted: {},
				LessonCancelled: {},
			},
			LessonCompleted: {},
			LessonCancelled: {},
		},
		Fallback: LessonRequested,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PLAN LIFECYCLE
// План составляется как черновик, активируется, завершается и архивируется.
// ══════════════════════════════════════════════════════════════════════════════

// Статусы плана занятий.
const (
	// PlanDraft - черновик плана.
	PlanDraft Status = "draft"
	// PlanActive - план согласован и выполняется.
	PlanActive Status = "active"
	// PlanCompleted - все занятия плана проведены.
	PlanCompleted Status = "completed"
	// PlanArchived - план убран в архив.
	PlanArchived Status = "archived"
)

// PlanDescriptor возвращает дескриптор жизненного цикла плана занятий.
func PlanDescriptor() *Descriptor {
	return &Descriptor{
		Kind:     KindLessonPlan,
		Statuses: []Status{PlanDraft, PlanActive, PlanCompleted, PlanArchived},
		Initial:  []Status{PlanDraft},
		Transitions: map[Status]map[Status]struct{}{
			PlanDraft: {
				PlanActive:   {},
				PlanArchived: {},
			},
			PlanActive: {
				PlanCompleted: {},
				PlanArchived:  {},
			},
			PlanCompleted: {
				PlanArchived: {},
			},
			PlanArchived: {},
		},
		Fallback: PlanDraft,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONE LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Статусы вехи.
const (
	// MilestonePending - веха запланирована, работа не начата.
	MilestonePending Status = "pending"
	// MilestoneInProgress - работа над вехой идёт.
	MilestoneInProgress Status = "in_progress"
	// MilestoneAchieved - веха достигнута.
	MilestoneAchieved Status = "achieved"
	// MilestoneSkipped - веха пропущена по решению репетитора.
	MilestoneSkipped Status = "skipped"
)

// MilestoneDescriptor возвращает дескриптор жизненного цикла вехи.
func MilestoneDescriptor() *Descriptor {
	return &Descriptor{
		Kind:     KindMilestone,
		Statuses: []Status{MilestonePending, MilestoneInProgress, MilestoneAchieved, MilestoneSkipped},
		Initial:  []Status{MilestonePending},
		Transitions: map[Status]map[Status]struct{}{
			MilestonePending: {
				MilestoneInProgress: {},
				MilestoneSkipped:    {},
			},
			MilestoneInProgress: {
				MilestoneAchieved: {},
				MilestoneSkipped:  {},
			},
			MilestoneAchieved: {},
			MilestoneSkipped:  {},
		},
		Fallback: MilestonePending,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Статусы учебной цели.
const (
	// GoalProposed - цель предложена (студентом или репетитором).
	GoalProposed Status = "proposed"
	// GoalAgreed - обе стороны согласовали цель.
	GoalAgreed Status = "agreed"
	// GoalAchieved - цель достигнута.
	GoalAchieved Status = "achieved"
	// GoalDropped - от цели отказались.
	GoalDropped Status = "dropped"
)

// GoalDescriptor возвращает дескриптор жизненного цикла учебной цели.
func GoalDescriptor() *Descriptor {
	return &Descriptor{
		Kind:     KindGoal,
		Statuses: []Status{GoalProposed, GoalAgreed, GoalAchieved, GoalDropped},
		Initial:  []Status{GoalProposed},
		Transitions: map[Status]map[Status]struct{}{
			GoalProposed: {
				GoalAgreed:  {},
				GoalDropped: {},
			},
			GoalAgreed: {
				GoalAchieved: {},
				GoalDropped:  {},
			},
			GoalAchieved: {},
			GoalDropped:  {},
		},
		Fallback: GoalProposed,
	}
}

// Descriptors возвращает дескрипторы всех четырёх продакшн-видов.
func Descriptors() []*Descriptor {
	return []*Descriptor{
		LessonDescriptor(),
		PlanDescriptor(),
		MilestoneDescriptor(),
		GoalDescriptor(),
	}
}
