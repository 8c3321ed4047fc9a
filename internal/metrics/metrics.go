package metrics

import "expvar"

var (
	DecisionCount  = expvar.NewInt("decision_count")
	RejectionCount = expvar.NewInt("rejection_count")
	OrderCount     = expvar.NewInt("order_count")
	HaltCount      = expvar.NewInt("halt_count")
	HaltedGauge    = expvar.NewInt("halted")
)
