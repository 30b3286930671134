package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// AnswersRecorded 按结果统计答案记录: saved / invalid / error
	AnswersRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_answers_recorded_total",
			Help: "Answers submitted by test takers, by outcome",
		},
		[]string{"outcome"},
	)

	ResultsFinalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_results_finalized_total",
			Help: "Finalization attempts, by outcome",
		},
		[]string{"outcome"},
	)

	ResultScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exam_result_score",
			Help:    "Distribution of persisted result scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	AdvisoryWriteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_advisory_write_failures_total",
			Help: "Swallowed failures of vote-count and progress writes",
		},
		[]string{"kind"},
	)

	StaleProgressSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_progress_swept_total",
			Help: "Progress rows marked exited by the sweeper",
		},
	)

	OnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_online_users",
			Help: "Users with at least one live presence connection on this instance",
		},
	)

	ImportedRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "question_import_rows_total",
			Help: "Spreadsheet rows processed by bulk import, by outcome",
		},
		[]string{"outcome"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AnswersRecorded)
	prometheus.MustRegister(ResultsFinalized)
	prometheus.MustRegister(ResultScore)
	prometheus.MustRegister(AdvisoryWriteFailures)
	prometheus.MustRegister(StaleProgressSwept)
	prometheus.MustRegister(OnlineUsers)
	prometheus.MustRegister(ImportedRows)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
