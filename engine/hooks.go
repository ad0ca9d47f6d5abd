package engine

// HookType identifies a lifecycle point the Engine reports on.
type HookType string

const (
	// HookSessionStarted fires after a session is created.
	HookSessionStarted HookType = "session_started"
	// HookTurnAppended fires after any turn is persisted to the log.
	HookTurnAppended HookType = "turn_appended"
	// HookModeChanged fires after a mode transition.
	HookModeChanged HookType = "mode_changed"
	// HookSessionEnded fires after a session terminates with its feedback
	// report saved.
	HookSessionEnded HookType = "session_ended"
)

// HookEvent carries the context of one lifecycle notification. Fields beyond
// SessionID are populated per hook type: Turn for HookTurnAppended, Mode for
// HookModeChanged and HookSessionStarted, Score for HookSessionEnded.
type HookEvent struct {
	Type      HookType
	SessionID string
	Turn      *TurnInfo
	Mode      string
	Score     float64
}

// TurnInfo is the hook-visible view of a persisted turn.
type TurnInfo struct {
	Seq     int
	Speaker string
	Text    string
}

// Hook observes engine lifecycle events. Hooks run synchronously on the
// session's call path and must not block; they cannot veto the operation.
type Hook func(ev HookEvent)

// fire dispatches ev to every registered hook in registration order.
func (e *Engine) fire(ev HookEvent) {
	for _, h := range e.hooks {
		h(ev)
	}
}
