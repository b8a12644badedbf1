package engine

import "encoding/json"

// MatchState - полное состояние матча: игровой Core плюс состояние ядра.
// Core полностью определяется игрой и непрозрачен для ядра.
type MatchState[C any] struct {
	Core C           `json:"core"`
	Sys  SystemState `json:"sys"`
}

// SystemState - game-независимая часть состояния, принадлежит ядру.
type SystemState struct {
	Phase          string              `json:"phase"`
	Interaction    InteractionState    `json:"interaction"`
	ResponseWindow ResponseWindowState `json:"responseWindow"`
	EventLog       EventLog            `json:"eventLog"`
	Tutorial       *TutorialState      `json:"tutorial,omitempty"`
	GameOver       *GameOverState      `json:"gameover,omitempty"`
}

// Suspended сообщает, ждет ли матч внешнего ввода.
// Пока матч подвешен, авто-продвижение фаз запрещено.
func (s *SystemState) Suspended() bool {
	return s.Interaction.Current != nil || s.ResponseWindow.Active != nil || s.GameOver != nil
}

// InteractionDescriptor описывает одно подвешенное решение.
// SourceID - непрозрачный ключ места в игровом коде, создавшего интеракцию.
// По нему брокер находит резолвер, и по нему же работает статический аудит.
type InteractionDescriptor struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`
	PlayerID PlayerID        `json:"playerId"`
	Data     json.RawMessage `json:"data,omitempty"`
	SourceID string          `json:"sourceId"`
	// Context переносит выбор предыдущего шага в следующий
	// для многошаговых интеракций.
	Context json.RawMessage `json:"context,omitempty"`
}

// InteractionState: не более одной активной интеракции, остальные в FIFO.
type InteractionState struct {
	Current *InteractionDescriptor  `json:"current,omitempty"`
	Queue   []InteractionDescriptor `json:"queue,omitempty"`
}

// Enqueue добавляет дескриптор: активирует сразу, если ничего не висит,
// иначе ставит в хвост очереди. Дубликаты по ID молча отбрасываются -
// повторная доставка того же события не должна плодить интеракции.
func (s *InteractionState) Enqueue(d InteractionDescriptor) {
	if s.Current != nil && s.Current.ID == d.ID {
		return
	}
	for _, q := range s.Queue {
		if q.ID == d.ID {
			return
		}
	}
	if s.Current == nil {
		s.Current = &d
		return
	}
	s.Queue = append(s.Queue, d)
}

// Resolve снимает активную интеракцию и поднимает следующую из очереди.
func (s *InteractionState) Resolve() {
	s.Current = nil
	if len(s.Queue) > 0 {
		next := s.Queue[0]
		s.Queue = s.Queue[1:]
		s.Current = &next
	}
}

// WindowDescriptor описывает открытое окно ответов.
type WindowDescriptor struct {
	WindowType          string     `json:"windowType"`
	TriggeringEventType EventType  `json:"triggeringEventType"`
	EligiblePlayerIDs   []PlayerID `json:"eligiblePlayerIds"`
	PassedPlayerIDs     []PlayerID `json:"passedPlayerIds"`
}

// HasPassed проверяет, спасовал ли игрок в текущем раунде пасов.
func (w *WindowDescriptor) HasPassed(p PlayerID) bool {
	for _, id := range w.PassedPlayerIDs {
		if id == p {
			return true
		}
	}
	return false
}

// IsEligible проверяет право игрока отвечать в этом окне.
func (w *WindowDescriptor) IsEligible(p PlayerID) bool {
	for _, id := range w.EligiblePlayerIDs {
		if id == p {
			return true
		}
	}
	return false
}

// AllPassed: окно готово закрыться, когда спасовали все участники.
func (w *WindowDescriptor) AllPassed() bool {
	return len(w.PassedPlayerIDs) >= len(w.EligiblePlayerIDs)
}

// ResponseWindowState: одно активное окно, остальные ждут в очереди.
type ResponseWindowState struct {
	Active *WindowDescriptor  `json:"active,omitempty"`
	Queue  []WindowDescriptor `json:"queue,omitempty"`
}

// TutorialState - позиция в заскриптованном сценарии обучения.
type TutorialState struct {
	Active         bool     `json:"active"`
	StepIndex      int      `json:"stepIndex"`
	CompletedSteps []string `json:"completedSteps,omitempty"`
}

// GameOverState выставляется один раз при достижении терминального состояния.
type GameOverState struct {
	WinnerIDs []PlayerID `json:"winnerIds,omitempty"`
	Reason    string     `json:"reason"`
}

// EventRecord - событие с монотонным номером в журнале матча.
type EventRecord struct {
	ID    int   `json:"id"`
	Event Event `json:"event"`
}

// EventLog - append-only журнал событий матча. Ядро никогда не переписывает
// и не откатывает записи; потребители (UI, реплеи) держат собственный курсор
// и забирают хвост через EntriesSince.
type EventLog struct {
	Entries []EventRecord `json:"entries"`
}

// Append дописывает событие и возвращает запись с присвоенным номером.
func (l *EventLog) Append(ev Event) EventRecord {
	rec := EventRecord{ID: len(l.Entries) + 1, Event: ev}
	l.Entries = append(l.Entries, rec)
	return rec
}

// EntriesSince возвращает записи с номером больше cursor.
// Возвращаемый слайс разделяет память с журналом - не мутировать.
func (l *EventLog) EntriesSince(cursor int) []EventRecord {
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(l.Entries) {
		return nil
	}
	return l.Entries[cursor:]
}

// LastID возвращает номер последней записи (0 для пустого журнала).
func (l *EventLog) LastID() int {
	if len(l.Entries) == 0 {
		return 0
	}
	return l.Entries[len(l.Entries)-1].ID
}
