package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	MessagesProcessed    prometheus.Counter
	ErrorsTotal          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
	AttendanceMarks      *prometheus.CounterVec
	PeriodsRecorded      prometheus.Counter
	RemindersSent        prometheus.Counter
	RemindersSkipped     prometheus.Counter
}

// NewMetrics создает новые метрики
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attendance_bot_messages_processed_total",
			Help: "Total number of messages processed",
		}),

		ErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attendance_bot_errors_total",
			Help: "Total number of processing errors",
		}),

		UpdateProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),

		AttendanceMarks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_bot_marks_total",
			Help: "Total number of attendance marks recorded",
		}, []string{"status"}),

		PeriodsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attendance_bot_periods_recorded_total",
			Help: "Total number of absence periods recorded",
		}),

		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attendance_bot_reminders_sent_total",
			Help: "Total number of evening reminders sent",
		}),

		RemindersSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "attendance_bot_reminders_skipped_total",
			Help: "Total number of reminders skipped due to absence periods",
		}),
	}
}
