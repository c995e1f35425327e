package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID. Val: raw JSON overlaid on Default(); omitted keys keep
// their default values.
// -----------------------------------------------------------------------------

const cfgPico = `{
  "display": { "enabled": true, "addr": 60 },
  "telemetry": { "enabled": true, "uart": 0, "tx": 16, "rx": 17, "baud": 115200 }
}`

// Bench supply with a 12 V lead-acid pack and a quieter current sensor.
const cfgBench = `{
  "panel_current": {
    "pin": 28,
    "plan": { "count": 40, "drop_low": 4, "drop_high": 4 },
    "ratio": 5,
    "offset": 0.05
  },
  "safety": { "current_limit": 8, "voltage_limit": 14.7, "latch_shutdown": true },
  "display": { "enabled": false }
}`

var embeddedConfigs = map[string][]byte{
	"pico":  []byte(cfgPico),
	"bench": []byte(cfgBench),
}
