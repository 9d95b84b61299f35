package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mobilealerts"

var (
	UploadsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_received_total",
			Help:      "Gateway uploads received, by identify code",
		},
		[]string{"code"},
	)

	UploadsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Gateway uploads rejected before decoding",
		},
		[]string{"reason"},
	)

	FramesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Sensor frames received from gateways",
		},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Sensor frames dropped, by error kind",
		},
		[]string{"reason"},
	)

	FramesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Sensor frames decoded, by sensor kind",
		},
		[]string{"kind"},
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Local processing time of one upload",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	UpdatesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_published_total",
			Help:      "Updates handed to the dispatcher, by update type",
		},
		[]string{"type"},
	)

	UpdatesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_dropped_total",
			Help:      "Updates published after the dispatcher was closed",
		},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Failed or panicking subscriber deliveries",
		},
		[]string{"subscriber"},
	)

	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Active update subscriptions",
		},
	)

	RelayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_requests_total",
			Help:      "Relayed uploads, by outcome",
		},
		[]string{"outcome"},
	)

	RelayAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_attempts_total",
			Help:      "HTTP attempts made by the relay, retries included",
		},
	)

	RelayQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_queue_depth",
			Help:      "Uploads waiting for a relay worker",
		},
	)

	RelayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_duration_seconds",
			Help:      "Time from dequeue to final relay outcome",
			Buckets:   prometheus.DefBuckets,
		},
	)

	GatewaysOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateways_online",
			Help:      "Gateways that answered the last monitor poll",
		},
	)

	SensorsStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensors_stale_total",
			Help:      "Sensor transitions to stale",
		},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Errors writing updates to external sinks",
		},
		[]string{"sink"},
	)
)
