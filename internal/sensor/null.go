package sensor

import "time"

// NullSensor is a ThresholdSensor with no hardware behind it. It reports
// IsLoaded() == false and never calls back. Used where a secondary sensor
// slot is required but none is configured.
type NullSensor struct{}

func (NullSensor) SetTag(string)          {}
func (NullSensor) SetDelay(time.Duration) {}
func (NullSensor) Pause()                 {}
func (NullSensor) Resume()                {}
func (NullSensor) IsLoaded() bool         { return false }
func (NullSensor) Register(Listener)      {}
func (NullSensor) Unregister(Listener)    {}
