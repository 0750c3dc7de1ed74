// Package workflow drives an order from assignment through configuration,
// review and payment.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"nathanbeddoewebdev/vpsorder/internal/order/api"
	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/gateway"
	"nathanbeddoewebdev/vpsorder/internal/order/poller"
)

// Stage is a step of the order wizard.
type Stage int

const (
	StageAssignment Stage = iota
	StageConfiguration
	StageReview
	StagePayment
)

func (s Stage) String() string {
	switch s {
	case StageAssignment:
		return "assignment"
	case StageConfiguration:
		return "configuration"
	case StageReview:
		return "review"
	case StagePayment:
		return "payment"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// OrderAPI is the backend used by the workflow. *api.Client implements it.
type OrderAPI interface {
	Preview(ctx context.Context, bundles []domain.ConfigurationBundle, fastTrack bool, assignment domain.OrderAssignment) (*domain.PricingPreview, error)
	Submit(ctx context.Context, req api.SubmitRequest) (*domain.SubmissionResult, error)
	TransactionStatus(ctx context.Context, id string) (domain.StatusReport, error)
}

// TransactionRecorder persists transactions so they can be resumed later.
type TransactionRecorder interface {
	RecordTransaction(ctx context.Context, tx domain.Transaction, idempotencyKey string) error
	RecordStatus(ctx context.Context, transactionID string, status domain.TransactionStatus, gateway string) error
}

// Config wires a Workflow to its collaborators.
type Config struct {
	// BaseURL and Auth build the API client when API is nil.
	BaseURL string
	Auth    api.AuthProvider
	API     OrderAPI

	Selector gateway.Selector
	Checkout gateway.Adapter
	Recorder TransactionRecorder

	// OnHandoff is called once an order no longer needs the wizard: when
	// submission started provisioning directly, or when payment completed.
	OnHandoff func(Handoff)

	// OnNotice receives every user-facing notification.
	OnNotice func(Notice)

	// OnEvent receives poller events for the current transaction after the
	// workflow has applied them.
	OnEvent func(poller.Event)

	PollerOptions []poller.Option
	Logger        *slog.Logger
}

// Handoff describes an order that is ready for the provisioning views.
type Handoff struct {
	Reason      HandoffReason
	Submission  *domain.SubmissionResult
	Transaction *domain.Transaction
}

// HandoffReason says why a Handoff happened.
type HandoffReason string

const (
	HandoffProvisioningStarted HandoffReason = "provisioning_started"
	HandoffPaymentComplete     HandoffReason = "payment_complete"
)

// Workflow is the order state machine. It is safe for concurrent use; the
// transaction poller delivers its events from its own goroutine.
type Workflow struct {
	api      OrderAPI
	selector gateway.Selector
	checkout gateway.Adapter
	recorder TransactionRecorder
	cfg      Config
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	stage      Stage
	assignment domain.OrderAssignment
	bundles    []domain.ConfigurationBundle
	fastTrack  bool
	tags       []string
	fieldErrs  domain.FieldErrors
	locked     bool

	preview     *domain.PricingPreview
	previewHash uint64

	submission *domain.SubmissionResult
	tx         *domain.Transaction
	selection  *gateway.Selection
	pollSnap   poller.Snapshot
	poller     *poller.Poller
	pollerGen  int
	completed  bool
	handedOff  bool

	notice *Notice
	closed bool
}

// New creates a Workflow at the Assignment stage.
func New(cfg Config) (*Workflow, error) {
	orderAPI := cfg.API
	if orderAPI == nil {
		if cfg.BaseURL == "" {
			return nil, errors.New("workflow: an API client or base URL is required")
		}
		orderAPI = api.NewClient(cfg.BaseURL, cfg.Auth, api.WithLogger(loggerOrDefault(cfg.Logger)))
	}
	selector := cfg.Selector
	if selector.Preferred() == "" {
		selector = gateway.NewSelector("")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Workflow{
		api:        orderAPI,
		selector:   selector,
		checkout:   cfg.Checkout,
		recorder:   cfg.Recorder,
		cfg:        cfg,
		logger:     loggerOrDefault(cfg.Logger),
		ctx:        ctx,
		cancel:     cancel,
		stage:      StageAssignment,
		assignment: domain.OrderAssignment{Kind: domain.AssignNone},
		fieldErrs:  domain.FieldErrors{},
	}, nil
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// Stage returns the current stage.
func (w *Workflow) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stage
}

// Next advances one stage if the guard of the current stage holds.
//
// Configuration requires every bundle to validate; the returned error then
// wraps both domain.ErrStageBlocked and a *domain.ValidationError. Review
// requires a transaction from a submission.
func (w *Workflow) Next() (Stage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.stage {
	case StageAssignment:
		w.stage = StageConfiguration
	case StageConfiguration:
		if len(w.bundles) == 0 {
			return w.stage, fmt.Errorf("%w: add at least one bundle", domain.ErrStageBlocked)
		}
		if errs := w.validateLocked(); !errs.Empty() {
			return w.stage, errors.Join(
				fmt.Errorf("%w: fix the highlighted fields", domain.ErrStageBlocked),
				&domain.ValidationError{Fields: errs},
			)
		}
		w.stage = StageReview
	case StageReview:
		if w.tx == nil {
			return w.stage, fmt.Errorf("%w: %w: submit the order first", domain.ErrStageBlocked, domain.ErrNoTransaction)
		}
		w.stage = StagePayment
	case StagePayment:
		return w.stage, fmt.Errorf("%w: payment is the last stage", domain.ErrStageBlocked)
	}
	w.logger.Debug("workflow stage advanced", "stage", w.stage)
	return w.stage, nil
}

// Back moves one stage backward. It is always allowed and keeps pricing
// and transaction data.
func (w *Workflow) Back() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stage > StageAssignment {
		w.stage--
	}
	return w.stage
}

// Close stops the poller and releases the workflow. It is safe to call
// more than once.
func (w *Workflow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	p := w.poller
	w.poller = nil
	w.pollerGen++
	w.mu.Unlock()

	if p != nil {
		p.Stop()
	}
	w.cancel()
}

// Reset discards the current order, including the submission lock and
// any transaction, and returns to the Assignment stage.
func (w *Workflow) Reset() {
	w.mu.Lock()
	p := w.poller
	w.poller = nil
	w.pollerGen++
	w.stage = StageAssignment
	w.assignment = domain.OrderAssignment{Kind: domain.AssignNone}
	w.bundles = nil
	w.fastTrack = false
	w.tags = nil
	w.fieldErrs = domain.FieldErrors{}
	w.locked = false
	w.preview = nil
	w.previewHash = 0
	w.submission = nil
	w.tx = nil
	w.selection = nil
	w.pollSnap = poller.Snapshot{}
	w.completed = false
	w.handedOff = false
	w.notice = nil
	w.mu.Unlock()

	if p != nil {
		p.Stop()
	}
}

// --- notices ---

// NoticeLevel grades a Notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a dismissible user-facing message.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

// Notice returns the current notice, if any.
func (w *Workflow) Notice() (Notice, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.notice == nil {
		return Notice{}, false
	}
	return *w.notice, true
}

// DismissNotice clears the current notice.
func (w *Workflow) DismissNotice() {
	w.mu.Lock()
	w.notice = nil
	w.mu.Unlock()
}

// setNoticeLocked stores n and returns a func that delivers it to
// OnNotice. The func must be called after w.mu is released.
func (w *Workflow) setNoticeLocked(n Notice) func() {
	w.notice = &n
	fn := w.cfg.OnNotice
	return func() {
		if fn != nil {
			fn(n)
		}
	}
}
