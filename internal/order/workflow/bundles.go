package workflow

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/services"
)

// copySuffix is appended to the name of a duplicated bundle.
const copySuffix = " (copy)"

// Bundles returns a deep copy of the bundles.
func (w *Workflow) Bundles() []domain.ConfigurationBundle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return domain.CloneBundles(w.bundles)
}

// AddBundle appends b and returns its index.
func (w *Workflow) AddBundle(b domain.ConfigurationBundle) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return 0, domain.ErrBundleLocked
	}
	w.bundles = append(w.bundles, b.Clone())
	return len(w.bundles) - 1, nil
}

// UpdateBundle replaces the bundle at index.
func (w *Workflow) UpdateBundle(index int, b domain.ConfigurationBundle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(index); err != nil {
		return err
	}
	w.bundles[index] = b.Clone()
	w.clearBundleErrorsLocked()
	return nil
}

// DuplicateBundle appends a deep copy of the bundle at index, named with a
// " (copy)" suffix, and returns the new index.
func (w *Workflow) DuplicateBundle(index int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(index); err != nil {
		return 0, err
	}
	dup := w.bundles[index].Clone()
	dup.Name += copySuffix
	w.bundles = append(w.bundles, dup)
	return len(w.bundles) - 1, nil
}

// RemoveBundle deletes the bundle at index.
func (w *Workflow) RemoveBundle(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(index); err != nil {
		return err
	}
	w.bundles = append(w.bundles[:index], w.bundles[index+1:]...)
	w.clearBundleErrorsLocked()
	return nil
}

// SetBundles replaces every bundle at once, as when loading a file.
func (w *Workflow) SetBundles(bundles []domain.ConfigurationBundle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return domain.ErrBundleLocked
	}
	w.bundles = domain.CloneBundles(bundles)
	w.clearBundleErrorsLocked()
	return nil
}

// SetAssignment sets the order routing.
func (w *Workflow) SetAssignment(a domain.OrderAssignment) error {
	switch a.Kind {
	case "", domain.AssignNone:
		a = domain.OrderAssignment{Kind: domain.AssignNone}
	case domain.AssignTenant, domain.AssignUser:
		if a.Target() == "" {
			return fmt.Errorf("assignment to a %s needs an id", a.Kind)
		}
	default:
		return fmt.Errorf("unknown assignment kind %q", a.Kind)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return domain.ErrBundleLocked
	}
	w.assignment = a
	return nil
}

// Assignment returns the order routing.
func (w *Workflow) Assignment() domain.OrderAssignment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.assignment
}

// SetFastTrack toggles fast track. The flag only changes how the
// submission response is interpreted; it starts nothing by itself.
func (w *Workflow) SetFastTrack(on bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locked {
		return domain.ErrBundleLocked
	}
	w.fastTrack = on
	return nil
}

// FastTrack reports the fast-track flag.
func (w *Workflow) FastTrack() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fastTrack
}

// SetTags sets the order-level tags sent with the submission.
func (w *Workflow) SetTags(tags []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tags = append([]string(nil), tags...)
}

// Locked reports whether an order was submitted for the current bundles.
func (w *Workflow) Locked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.locked
}

// Validate checks the bundles, stores the result and returns it.
func (w *Workflow) Validate() domain.FieldErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validateLocked()
}

// FieldErrors returns the latest local and remote validation errors.
func (w *Workflow) FieldErrors() domain.FieldErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := domain.FieldErrors{}
	out.Merge(w.fieldErrs)
	return out
}

func (w *Workflow) validateLocked() domain.FieldErrors {
	errs := services.Validate(w.bundles)
	w.fieldErrs = errs
	out := domain.FieldErrors{}
	out.Merge(errs)
	return out
}

func (w *Workflow) editableLocked(index int) error {
	if w.locked {
		return domain.ErrBundleLocked
	}
	if index < 0 || index >= len(w.bundles) {
		return fmt.Errorf("bundle %d: %w", index, domain.ErrNotFound)
	}
	return nil
}

// clearBundleErrorsLocked drops errors that may no longer apply after the
// bundle list changed. They are recomputed on the next validation.
func (w *Workflow) clearBundleErrorsLocked() {
	w.fieldErrs = domain.FieldErrors{}
}

// pricingInputs is everything a quote depends on.
type pricingInputs struct {
	Bundles    []domain.ConfigurationBundle
	FastTrack  bool
	Assignment domain.OrderAssignment
}

func (w *Workflow) fingerprintLocked() uint64 {
	h, err := hashstructure.Hash(pricingInputs{
		Bundles:    w.bundles,
		FastTrack:  w.fastTrack,
		Assignment: w.assignment,
	}, hashstructure.FormatV2, nil)
	if err != nil {
		// Unhashable input never matches a stored preview.
		w.logger.Debug("failed to fingerprint bundles", "error", err)
		return 0
	}
	return h
}
