package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 요청 총 수
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTP 요청 처리 시간 (히스토그램)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// 현재 처리 중인 HTTP 요청 수
	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// 페이지 조회 수
	pageViewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_page_views_total",
			Help: "Total number of routed page views",
		},
		[]string{"page"},
	)

	// 가이드 검색 요청 수
	guideSearchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_guide_search_total",
			Help: "Total number of guide list requests",
		},
		[]string{"has_query", "has_tag"},
	)

	// 가이드 생성/수정/삭제 수
	guideMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_guide_mutations_total",
			Help: "Total number of guide create, update, delete and import operations",
		},
		[]string{"action"},
	)

	// 요청(기능/버그) 이벤트 수
	requestEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_request_events_total",
			Help: "Total number of request lifecycle events",
		},
		[]string{"kind", "event"},
	)

	// 속도 제한으로 거부된 요청 수
	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "falcon_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"action"},
	)

	// 고아 블롭 정리 수
	orphanBlobsDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "falcon_orphan_blobs_deleted_total",
			Help: "Total number of unreferenced blobs removed by the sweeper",
		},
	)
)

// MetricsMiddleware는 HTTP 요청에 대한 Prometheus 메트릭을 수집합니다.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 요청 시작 시간
		start := time.Now()

		// 처리 중인 요청 수 증가
		httpRequestsInFlight.Inc()

		// 엔드포인트 패턴 추출 (동적 파라미터 정규화)
		endpoint := normalizeEndpoint(c.FullPath())
		if endpoint == "" {
			endpoint = "unknown"
		}

		// 요청 처리
		c.Next()

		// 처리 중인 요청 수 감소
		httpRequestsInFlight.Dec()

		// 메트릭 기록
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(duration)
	}
}

// normalizeEndpoint는 동적 URL 파라미터를 정규화합니다.
// gin의 FullPath는 이미 라우트 패턴이므로 (예: /api/guides/:id) 그대로 사용합니다.
func normalizeEndpoint(path string) string {
	if path == "" {
		return ""
	}
	return path
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// RecordPageView는 페이지 조회를 기록합니다.
func RecordPageView(page string) {
	pageViewsTotal.WithLabelValues(page).Inc()
}

// RecordGuideSearch는 가이드 목록/검색 요청을 기록합니다.
func RecordGuideSearch(hasQuery, hasTag bool) {
	guideSearchTotal.WithLabelValues(boolLabel(hasQuery), boolLabel(hasTag)).Inc()
}

// RecordGuideMutation은 가이드 변경 작업을 기록합니다. (create, update, tags, delete, import)
func RecordGuideMutation(action string) {
	guideMutationsTotal.WithLabelValues(action).Inc()
}

// RecordRequestEvent는 요청 수명주기 이벤트를 기록합니다. (submitted, updated, commented, deleted)
func RecordRequestEvent(kind, event string) {
	requestEventsTotal.WithLabelValues(kind, event).Inc()
}

// RecordRateLimited는 속도 제한 거부를 기록합니다.
func RecordRateLimited(action string) {
	rateLimitedTotal.WithLabelValues(action).Inc()
}

// RecordOrphansDeleted는 정리된 고아 블롭 수를 기록합니다.
func RecordOrphansDeleted(n int) {
	orphanBlobsDeletedTotal.Add(float64(n))
}
