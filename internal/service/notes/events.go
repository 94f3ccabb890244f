package notes

// ChangeKind вид изменения кэша
type ChangeKind int

const (
	// ChangeLoading начата полная загрузка
	ChangeLoading ChangeKind = iota + 1
	// ChangeRefreshed полная загрузка завершена (успешно или нет)
	ChangeRefreshed
	// ChangeCreated добавлена заметка
	ChangeCreated
	// ChangeUpdated обновлена заметка
	ChangeUpdated
	// ChangeDeleted удалена заметка
	ChangeDeleted
	// ChangeFavorite изменено избранное
	ChangeFavorite
	// ChangeFilter изменены строка поиска или фильтр избранного
	ChangeFilter
	// ChangeReset кэш очищен
	ChangeReset
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeLoading:
		return "loading"
	case ChangeRefreshed:
		return "refreshed"
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	case ChangeFavorite:
		return "favorite"
	case ChangeFilter:
		return "filter"
	case ChangeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ChangeEvent событие изменения кэша. NoteID пуст для изменений,
// затрагивающих весь кэш.
type ChangeEvent struct {
	Kind   ChangeKind
	NoteID string
}

// Subscribe добавляет подписчика на изменения кэша.
// Если подписчик не успевает читать, события пропускаются.
func (s *Store) Subscribe() chan ChangeEvent {
	return s.changes.Subscribe()
}

// Unsubscribe удаляет подписчика и закрывает его канал
func (s *Store) Unsubscribe(ch chan ChangeEvent) {
	s.changes.Unsubscribe(ch)
}

func (s *Store) publish(kind ChangeKind, id string) {
	s.changes.Publish(ChangeEvent{Kind: kind, NoteID: id})
}
