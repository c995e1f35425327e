package types

// ------------------------
// Charger telemetry (published by the control loop)
// ------------------------

// ChargerTelemetry is the retained per-cycle snapshot on "mppt/telemetry".
type ChargerTelemetry struct {
	Cycle            uint64  `json:"cycle"`
	PanelVoltage     float64 `json:"panel_v"`
	PanelCurrent     float64 `json:"panel_a"`
	BatteryVoltage   float64 `json:"battery_v"`
	PanelPower       float64 `json:"panel_w"`
	Duty             uint16  `json:"duty"`         // MPPT proposal
	AppliedDuty      uint16  `json:"applied_duty"` // written to hardware
	Direction        int8    `json:"direction"`
	Status           string  `json:"status"` // "normal" | "warning" | "shutdown"
	OvercurrentCount uint32  `json:"overcurrent_count"`
	OvervoltageCount uint32  `json:"overvoltage_count"`
	SensorFaults     uint32  `json:"sensor_faults"` // consecutive failed acquisitions
	TS               int64   `json:"ts_ms"`
}

// SafetyEvent is published (not retained) on "mppt/safety/event" whenever the
// safety status changes.
type SafetyEvent struct {
	From             string  `json:"from"`
	To               string  `json:"to"`
	PanelCurrent     float64 `json:"panel_a"`
	BatteryVoltage   float64 `json:"battery_v"`
	OvercurrentCount uint32  `json:"overcurrent_count"`
	OvervoltageCount uint32  `json:"overvoltage_count"`
	TS               int64   `json:"ts_ms"`
}

// Charger run levels.
const (
	LevelStarting = "starting"
	LevelRunning  = "running"
	LevelIdle     = "idle" // startup aborted; PWM and display only
	LevelStopped  = "stopped"
)

// ChargerState is the retained service state on "mppt/state".
type ChargerState struct {
	Level  string `json:"level"`
	Status string `json:"status,omitempty"` // short machine-readable reason
	TS     int64  `json:"ts_ms"`
}

// Link is the link/state reported for an auxiliary device or sink.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

// ChargerCommand is accepted on "mppt/cmd" between cycles.
type ChargerCommand struct {
	Op string `json:"op"`
}

// Charger command ops.
const (
	CmdResetLatch = "reset_latch" // clear a latched shutdown
)
