package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetcms",
			Name:      "auth_failures_total",
			Help:      "Requests refused by the bearer-token guard, by HTTP status.",
		},
		[]string{"status"},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetcms",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		},
		[]string{"result"},
	)

	imageUploadBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheetcms",
			Name:      "image_upload_bytes_total",
			Help:      "Bytes offloaded to the image bucket, by format.",
		},
		[]string{"format"},
	)
)

// AuthFailure counts a refused request. status is the HTTP status sent.
func AuthFailure(status int) {
	authFailuresTotal.WithLabelValues(statusLabel(status)).Inc()
}

// Login counts a login attempt. result is "ok", "rejected", "disabled" or "error".
func Login(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// ImageUploaded counts the bytes of one stored image.
func ImageUploaded(format string, size int) {
	imageUploadBytes.WithLabelValues(format).Add(float64(size))
}

func statusLabel(status int) string {
	switch status {
	case 401:
		return "401"
	case 403:
		return "403"
	case 503:
		return "503"
	default:
		return "other"
	}
}
