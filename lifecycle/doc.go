// Package lifecycle tracks a worker-resident module's phase transitions
// and republishes them as an event stream, letting the controlling side
// bracket frame timing with UPDATE_STARTED/UPDATE_ENDED pairs.
package lifecycle
