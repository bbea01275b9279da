package models

import "time"

// ServiceStatus tracks the last known health of a registered backend.
type ServiceStatus int

const (
	ServiceUnset ServiceStatus = iota
	ServiceHealthy
	ServiceUnhealthy
)

func (s ServiceStatus) String() string {
	switch s {
	case ServiceHealthy:
		return "healthy"
	case ServiceUnhealthy:
		return "unhealthy"
	default:
		return "unset"
	}
}

// RefererStatus is the lifecycle state of an (API key, referer) pair.
// Only active pairs authorize traffic.
type RefererStatus int

const (
	RefererInactive RefererStatus = iota
	RefererActive
	RefererDeleted
	RefererBlocked
)

// Service is one registered backend, routable by name.
type Service struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	BaseURL     string        `json:"base_url"`
	APIKey      string        `json:"-"`
	Status      ServiceStatus `json:"status"`
	LastChecked *time.Time    `json:"last_checked"`
	CallCount   int64         `json:"call_count"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Referer is one (API key, caller identity) pair allowed through the
// gateway, with its monthly call limit.
type Referer struct {
	ID           int           `json:"id"`
	Key          string        `json:"-"`
	Referer      string        `json:"referer"`
	Status       RefererStatus `json:"status"`
	MonthlyLimit int64         `json:"monthly_limit"`
	CallCount    int64         `json:"call_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// CallLog is one forwarded call, recorded after the response is sent.
type CallLog struct {
	ID            int64     `json:"id"`
	ServiceID     int       `json:"service_id"`
	Method        string    `json:"method"`
	Path          string    `json:"path"`
	StatusCode    int       `json:"status_code"`
	RequestTime   time.Time `json:"request_time"`
	ResponseTime  time.Time `json:"response_time"`
	ExecutionTime float64   `json:"execution_time"`
}
