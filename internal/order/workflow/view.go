package workflow

import (
	"time"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/poller"
)

// View is a consistent copy of the workflow state for rendering.
type View struct {
	Stage        Stage
	Assignment   domain.OrderAssignment
	Bundles      []domain.ConfigurationBundle
	FastTrack    bool
	FieldErrors  domain.FieldErrors
	Locked       bool
	Preview      *domain.PricingPreview
	PreviewFresh bool

	Submission  *domain.SubmissionResult
	Transaction *domain.Transaction
	Options     []domain.PaymentGatewayOption
	Selected    int
	Remaining   time.Duration
	PollState   poller.State

	PaymentComplete bool
	Notice          *Notice
}

// View returns the current state.
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		Stage:           w.stage,
		Assignment:      w.assignment,
		Bundles:         domain.CloneBundles(w.bundles),
		FastTrack:       w.fastTrack,
		FieldErrors:     domain.FieldErrors{},
		Locked:          w.locked,
		Submission:      w.submission,
		Selected:        -1,
		Remaining:       -1,
		PaymentComplete: w.completed,
	}
	v.FieldErrors.Merge(w.fieldErrs)
	if w.preview != nil {
		p := *w.preview
		v.Preview = &p
		v.PreviewFresh = w.previewHash != 0 && w.previewHash == w.fingerprintLocked()
	}
	if w.tx != nil {
		tx := w.tx.Clone()
		v.Transaction = &tx
		v.Options = tx.GatewayOptions
		v.Selected = w.selection.Index()
		v.Remaining = w.pollSnap.Remaining
		v.PollState = w.pollSnap.State
	}
	if w.notice != nil {
		n := *w.notice
		v.Notice = &n
	}
	return v
}
