package metrics

import "time"

// Counter and latency names used across the service.
const (
	FeeConfigReads     = "fee_config_read"
	PaymentVerify      = "payment_verify"
	GateOutcome        = "gate_outcome"
	IdentityResolution = "identity_resolution"
)

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
