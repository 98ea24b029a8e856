package core

import "github.com/signalsfoundry/vessel-systems/model"

// AirConsumer is a fire, breach or damaged repair point eating a room's
// air. Fires lower quality; breaches and damage lower quantity.
type AirConsumer struct {
	ID         int
	Type       model.AirConsumerType
	Severity   model.Severity
	Persistent bool
	Active     bool
}

// consumesQuality reports whether the consumer burns oxygen rather than
// leaking air.
func (ac *AirConsumer) consumesQuality() bool {
	return ac.Type == model.AirConsumerFire
}
