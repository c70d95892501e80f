package metrics

import (
	"strconv"
	"time"
)

// RecordDBOperation records database operation metrics consistently.
// repo: repository name (e.g., "session", "access_request")
// operation: operation name (e.g., "get", "put", "delete", "sweep")
func RecordDBOperation(repo, operation string, duration time.Duration, err error) {
	DBDuration.WithLabelValues(repo, operation).Observe(float64(duration.Milliseconds()))

	status := "success"
	if err != nil {
		status = "error"
	}
	DBOperations.WithLabelValues(repo, operation, status).Inc()
}

// RecordHTTPRequest records request metrics for a completed request
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(float64(duration.Milliseconds()))
}

// RecordUpstream records a Pocket-ID management API call. endpoint is a
// stable operation name, never a raw request path.
func RecordUpstream(endpoint string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	UpstreamRequests.WithLabelValues(endpoint, status).Inc()
}
