package event

type GraphSaved struct {
	Assets int
}

type GraphRestored struct {
	Assets int
}

// EngineStats is a periodic snapshot of the engine's in-memory state.
type EngineStats struct {
	Sessions     int
	RunningBets  int
	Coefficients int
	QueueDepth   int
}
