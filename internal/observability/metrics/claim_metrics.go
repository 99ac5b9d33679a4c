package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	claimdomain "github.com/smallbiznis/claimflow/internal/claim/domain"
	dbpkg "github.com/smallbiznis/claimflow/pkg/db"
)

// Config supplies the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

const (
	PathOnline  = "online"
	PathOffline = "offline"

	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
	OutcomeError     = "error"
	OutcomeSkipped   = "skipped"
)

const (
	ReasonStale                = "stale"
	ReasonSerializationFailure = "serialization_failure"
	ReasonLockTimeout          = "db_lock_timeout"
	ReasonUniqueViolation      = "unique_violation"
	ReasonRemote               = "remote"
	ReasonValidation           = "validation"
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonUnknown              = "unknown"
)

// ClaimMetrics captures claim engine health signals.
type ClaimMetrics struct {
	submissions   *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	attachments   *prometheus.CounterVec
	pollerReloads *prometheus.CounterVec
	gapPayments   *prometheus.CounterVec
	staleRetries  *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

var (
	claimMetricsOnce sync.Once
	claimMetrics     *ClaimMetrics
)

// Claims returns the singleton claim metrics registry.
func Claims() *ClaimMetrics {
	return ClaimsWithConfig(Config{})
}

// ClaimsWithConfig returns the singleton registry, using cfg for labels on first call.
func ClaimsWithConfig(cfg Config) *ClaimMetrics {
	claimMetricsOnce.Do(func() {
		claimMetrics = newClaimMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return claimMetrics
}

// ResetClaimMetricsForTest resets the singleton for tests.
func ResetClaimMetricsForTest() {
	claimMetricsOnce = sync.Once{}
	claimMetrics = nil
}

func newClaimMetrics(registerer prometheus.Registerer, cfg Config) *ClaimMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "claimflow"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimflow_claim_submissions_total",
		Help:        "Claim submissions by path and outcome.",
		ConstLabels: constLabels,
	}, []string{"path", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimflow_claim_transitions_total",
		Help:        "Claim status transitions applied.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})
	attachments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimflow_attachment_generations_total",
		Help:        "Attachment generation attempts by type and outcome.",
		ConstLabels: constLabels,
	}, []string{"type", "outcome"})
	pollerReloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimflow_gap_poller_reloads_total",
		Help:        "Gap benefit poller reloads by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	gapPayments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimflow_gap_payments_total",
		Help:        "Gap claim payments by reconciled outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	staleRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimflow_claim_save_retries_total",
		Help:        "Claim saves retried after a concurrent update.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "claimflow_insurer_notifications_total",
		Help:        "Insurer notifications consumed by kind and outcome.",
		ConstLabels: constLabels,
	}, []string{"kind", "outcome"})

	registerer.MustRegister(
		submissions,
		transitions,
		attachments,
		pollerReloads,
		gapPayments,
		staleRetries,
		notifications,
	)

	return &ClaimMetrics{
		submissions:   submissions,
		transitions:   transitions,
		attachments:   attachments,
		pollerReloads: pollerReloads,
		gapPayments:   gapPayments,
		staleRetries:  staleRetries,
		notifications: notifications,
	}
}

func (m *ClaimMetrics) IncSubmission(path, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(path, outcome).Inc()
}

func (m *ClaimMetrics) IncTransition(from, to claimdomain.Status) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *ClaimMetrics) IncAttachment(attachmentType claimdomain.AttachmentType, outcome string) {
	if m == nil {
		return
	}
	m.attachments.WithLabelValues(string(attachmentType), outcome).Inc()
}

func (m *ClaimMetrics) IncPollerReload(outcome string) {
	if m == nil {
		return
	}
	m.pollerReloads.WithLabelValues(outcome).Inc()
}

func (m *ClaimMetrics) IncGapPayment(outcome string) {
	if m == nil {
		return
	}
	m.gapPayments.WithLabelValues(outcome).Inc()
}

// IncSaveRetry records a retried save, classifying the conflict that caused it.
func (m *ClaimMetrics) IncSaveRetry(operation string, err error) {
	if m == nil {
		return
	}
	m.staleRetries.WithLabelValues(operation, ClassifyReason(err)).Inc()
}

func (m *ClaimMetrics) IncNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

// ClassifyReason maps errors to low-cardinality reasons.
func ClassifyReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonDeadlineExceeded
	case errors.Is(err, claimdomain.ErrStaleClaim):
		return ReasonStale
	case hasPGCode(err, "40001"):
		return ReasonSerializationFailure
	case hasPGCode(err, "55P03"):
		return ReasonLockTimeout
	case dbpkg.IsDuplicateKeyErr(err), hasPGCode(err, "23505"):
		return ReasonUniqueViolation
	case errors.Is(err, claimdomain.ErrRemoteService):
		return ReasonRemote
	case isValidationError(err):
		return ReasonValidation
	default:
		return ReasonUnknown
	}
}

// IsConflict reports whether err means the claim changed underneath the writer and a reload may succeed.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, claimdomain.ErrStaleClaim) ||
		hasPGCode(err, "40001") ||
		hasPGCode(err, "55P03")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isValidationError(err error) bool {
	return errors.Is(err, claimdomain.ErrInvalidAmount) ||
		errors.Is(err, claimdomain.ErrMissingPolicy) ||
		errors.Is(err, claimdomain.ErrDuplicateCharge) ||
		errors.Is(err, claimdomain.ErrAttachmentError) ||
		errors.Is(err, claimdomain.ErrInvalidStatus) ||
		errors.Is(err, claimdomain.ErrIllegalTransition)
}
