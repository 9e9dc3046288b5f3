package entity

type GameEventType int

const (
	EventBetResult GameEventType = iota + 1
)

// GameEvent is pushed to the user's topic.
type GameEvent struct {
	EventType       GameEventType
	EventParameters string
}
