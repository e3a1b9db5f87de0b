package models

// Health is the body of the liveness and readiness endpoints.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus reports the pipeline counters and the state of each sink.
type SystemStatus struct {
	Status   HealthStatus           `json:"status"`
	Time     Timestamp              `json:"time"`
	Pipeline map[string]interface{} `json:"pipeline"`
	Schema   SchemaInfo             `json:"schema"`
	Sinks    []SinkStatus           `json:"sinks"`
}

// SchemaInfo lists the payload keys currently mapped to values and tags.
type SchemaInfo struct {
	ValueKeys []string `json:"valueKeys"`
	TagKeys   []string `json:"tagKeys"`
}

// SinkStatus is the circuit breaker view of one downstream sink.
type SinkStatus struct {
	Name          string       `json:"name"`
	Status        HealthStatus `json:"status"`
	State         string       `json:"state"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
