package trace

// TraceLevel controls the verbosity of training event tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures decay, restart, validation and checkpoint events.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// TrainingTrace collects event records during a training run.
// A nil *TrainingTrace is valid and records nothing.
type TrainingTrace struct {
	Config      TraceConfig
	Decays      []DecayRecord
	Restarts    []RestartRecord
	Validations []ValidationRecord
	Checkpoints []CheckpointRecord
}

// NewTrainingTrace creates a TrainingTrace ready for recording.
// Returns nil for TraceLevelNone so callers can pass it through unconditionally.
func NewTrainingTrace(config TraceConfig) *TrainingTrace {
	if config.Level == TraceLevelNone || config.Level == "" {
		return nil
	}
	return &TrainingTrace{
		Config:      config,
		Decays:      make([]DecayRecord, 0),
		Restarts:    make([]RestartRecord, 0),
		Validations: make([]ValidationRecord, 0),
		Checkpoints: make([]CheckpointRecord, 0),
	}
}

// RecordDecay appends a decay record.
func (tt *TrainingTrace) RecordDecay(record DecayRecord) {
	if tt == nil {
		return
	}
	tt.Decays = append(tt.Decays, record)
}

// RecordRestart appends a stream restart record.
func (tt *TrainingTrace) RecordRestart(record RestartRecord) {
	if tt == nil {
		return
	}
	tt.Restarts = append(tt.Restarts, record)
}

// RecordValidation appends a validation record.
func (tt *TrainingTrace) RecordValidation(record ValidationRecord) {
	if tt == nil {
		return
	}
	tt.Validations = append(tt.Validations, record)
}

// RecordCheckpoint appends a checkpoint record.
func (tt *TrainingTrace) RecordCheckpoint(record CheckpointRecord) {
	if tt == nil {
		return
	}
	tt.Checkpoints = append(tt.Checkpoints, record)
}
