package match

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"boardgame-server/internal/engine"
	"boardgame-server/internal/infrastructure/storage"
	"boardgame-server/internal/network"
	"boardgame-server/pkg/api"
	"boardgame-server/pkg/logger"
	"boardgame-server/pkg/random"
)

// SystemsFactory собирает комплект систем для данного состава игроков.
type SystemsFactory[C any] func(players []engine.PlayerID) []engine.System[C]

// Service хостит матчи одной игры: создание, поиск, прием команд,
// рассылка обновлений и персистенция реплеев.
type Service[C any] struct {
	GameID string
	Hub    *network.Broadcaster

	domain     engine.Domain[C]
	systemsFor SystemsFactory[C]
	replays    *storage.ReplayService

	mu      sync.RWMutex
	matches map[string]*Instance[C]

	// now - источник таймстемпов команд. Подменяется в тестах.
	now func() int64
}

func NewService[C any](gameID string, domain engine.Domain[C], systemsFor SystemsFactory[C], replays *storage.ReplayService) *Service[C] {
	return &Service[C]{
		GameID:     gameID,
		Hub:        network.NewBroadcaster(),
		domain:     domain,
		systemsFor: systemsFor,
		replays:    replays,
		matches:    make(map[string]*Instance[C]),
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// Create создает матч. seed=0 - сгенерировать криптослучайный.
func (s *Service[C]) Create(players []engine.PlayerID, seed int64) (*Instance[C], error) {
	if seed == 0 {
		generated, err := random.NewSeed()
		if err != nil {
			return nil, fmt.Errorf("generate seed: %w", err)
		}
		seed = generated
	}

	pipeline := engine.NewPipeline(s.domain, s.systemsFor(players), players, random.NewSeeded(seed))

	id := uuid.NewString()
	pipeline.WithLogger(logger.ForMatch(id))

	state, err := pipeline.NewMatch()
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}

	inst := &Instance[C]{
		ID:        id,
		GameID:    s.GameID,
		Seed:      seed,
		CreatedAt: s.now(),
		Players:   append([]engine.PlayerID(nil), players...),
		pipeline:  pipeline,
		state:     state,
		log:       logger.ForMatch(id),
	}

	s.mu.Lock()
	s.matches[id] = inst
	s.mu.Unlock()

	inst.log.WithField("seed", seed).Infof("🎲 Match created with %d players", len(players))
	return inst, nil
}

// Get возвращает матч по идентификатору.
func (s *Service[C]) Get(id string) (*Instance[C], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.matches[id]
	return inst, ok
}

// IDs возвращает идентификаторы живых матчей (отсортированы).
func (s *Service[C]) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.matches))
	for id := range s.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HandleCommand - точка входа команд из внешнего мира (WebSocket, debug).
// Таймстемп проставляется здесь: дальше он - часть команды и вместе с ней
// попадает в реплей, поэтому воспроизведение детерминировано.
func (s *Service[C]) HandleCommand(matchID string, cmd api.ClientCommand) api.ServerMessage {
	if err := cmd.Validate(); err != nil {
		return errorMessage(matchID, err.Error())
	}
	inst, ok := s.Get(matchID)
	if !ok {
		return errorMessage(matchID, "match_not_found")
	}

	prevCursor := inst.Cursor()
	res := inst.Submit(engine.Command{
		Type:      engine.CommandType(cmd.Command),
		PlayerID:  engine.PlayerID(cmd.PlayerID),
		Payload:   cmd.Payload,
		Timestamp: s.now(),
	})

	if !res.Success {
		// Отказ уходит только отправителю; остальные ничего не видели.
		return errorMessage(matchID, res.Error)
	}

	update := inst.Update(prevCursor)
	s.Hub.Broadcast(matchID, update)
	return update
}

// SaveReplay сохраняет реплей матча на диск.
func (s *Service[C]) SaveReplay(matchID string) (string, error) {
	if s.replays == nil {
		return "", errors.New("replay storage disabled")
	}
	inst, ok := s.Get(matchID)
	if !ok {
		return "", errors.New("match_not_found")
	}
	return s.replays.Save(inst.Session())
}

// SaveAll сохраняет реплеи всех живых матчей (graceful shutdown).
func (s *Service[C]) SaveAll() {
	for _, id := range s.IDs() {
		if path, err := s.SaveReplay(id); err != nil {
			logger.ForMatch(id).WithError(err).Warn("Failed to save replay")
		} else {
			logger.ForMatch(id).Infof("💾 Replay saved to %s", path)
		}
	}
}

// LoadReplay восстанавливает матч из файла реплея: тот же сид, тот же
// состав, команды с оригинальными таймстемпами. Детерминизм конвейера
// гарантирует идентичное состояние.
func (s *Service[C]) LoadReplay(path string) (*Instance[C], error) {
	if s.replays == nil {
		return nil, errors.New("replay storage disabled")
	}
	session, err := s.replays.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load replay: %w", err)
	}
	if session.GameID != s.GameID {
		return nil, fmt.Errorf("replay is for game %q, this server hosts %q", session.GameID, s.GameID)
	}

	inst, err := s.Create(session.Players, session.Seed)
	if err != nil {
		return nil, err
	}

	for n, cmd := range session.Commands {
		res := inst.Submit(cmd)
		if !res.Success {
			// Отказы - легитимная часть записи: игрок слал невалидные
			// команды и при живой игре. Логируем и едем дальше.
			inst.log.WithFields(map[string]any{
				"step":   n,
				"reason": res.Error,
			}).Debug("Replayed command rejected")
		}
	}

	inst.log.Infof("💿 Replay loaded: %d commands", len(session.Commands))
	return inst, nil
}

func errorMessage(matchID, reason string) api.ServerMessage {
	return api.ServerMessage{
		Type:    api.MessageError,
		MatchID: matchID,
		Error:   reason,
	}
}
