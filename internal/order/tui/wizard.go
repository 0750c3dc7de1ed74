package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
	"nathanbeddoewebdev/vpsorder/internal/order/services"
	"nathanbeddoewebdev/vpsorder/internal/order/workflow"
)

// ErrAborted is returned when a user cancels the interactive flow.
var ErrAborted = errors.New("order aborted by user")

const (
	actionAdd    = "add"
	actionEdit   = "edit"
	actionCopy   = "copy"
	actionRemove = "remove"
	actionDone   = "done"

	reviewSubmit = "submit"
	reviewEdit   = "edit"
	reviewCancel = "cancel"
)

// OrderWizard walks an order through the assignment, configuration and
// review stages and submits it. It returns the submission result; payment,
// when required, is left to the payment watcher.
func OrderWizard(ctx context.Context, wf *workflow.Workflow) (*domain.SubmissionResult, error) {
	accessible := os.Getenv("ACCESSIBLE") != ""

	for {
		var err error
		switch wf.Stage() {
		case workflow.StageAssignment:
			err = assignmentStep(wf, accessible)
		case workflow.StageConfiguration:
			err = configurationStep(wf, accessible)
		case workflow.StageReview:
			var result *domain.SubmissionResult
			result, err = reviewStep(ctx, wf, accessible)
			if err == nil && result != nil {
				return result, nil
			}
		default:
			return wf.View().Submission, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// runForm creates and runs a huh.Form, translating ErrUserAborted to ErrAborted.
func runForm(accessible bool, groups ...*huh.Group) error {
	err := huh.NewForm(groups...).WithAccessible(accessible).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}

// runSpinner runs action behind a spinner on stderr.
func runSpinner(ctx context.Context, accessible bool, title string, action func(ctx context.Context) error) error {
	err := spinner.New().
		Title(title).
		Accessible(accessible).
		Output(os.Stderr).
		Context(ctx).
		ActionWithErr(action).
		Run()
	if err != nil && (errors.Is(err, huh.ErrUserAborted) || errors.Is(err, context.Canceled)) {
		return ErrAborted
	}
	return err
}

// --- Assignment ---

func assignmentStep(wf *workflow.Workflow, accessible bool) error {
	a := wf.Assignment()
	kind := string(a.Kind)
	if kind == "" {
		kind = string(domain.AssignNone)
	}
	target := a.Target()

	kindField := huh.NewSelect[string]().
		Title("Assign this order to").
		Options(
			huh.NewOption("Nobody (my account)", string(domain.AssignNone)),
			huh.NewOption("A tenant", string(domain.AssignTenant)),
			huh.NewOption("A user", string(domain.AssignUser)),
		).
		Value(&kind)

	targetField := huh.NewInput().
		TitleFunc(func() string {
			if kind == string(domain.AssignUser) {
				return "User ID"
			}
			return "Tenant ID"
		}, &kind).
		Value(&target).
		Validate(func(value string) error {
			if strings.TrimSpace(value) == "" {
				return errors.New("an ID is required")
			}
			return nil
		})

	if err := runForm(accessible,
		huh.NewGroup(kindField),
		huh.NewGroup(targetField).WithHideFunc(func() bool {
			return kind == string(domain.AssignNone)
		}),
	); err != nil {
		return err
	}

	if err := wf.SetAssignment(buildAssignment(kind, target)); err != nil {
		return err
	}
	_, err := wf.Next()
	return err
}

func buildAssignment(kind, target string) domain.OrderAssignment {
	target = strings.TrimSpace(target)
	switch domain.AssignmentKind(kind) {
	case domain.AssignTenant:
		return domain.OrderAssignment{Kind: domain.AssignTenant, TenantID: target}
	case domain.AssignUser:
		return domain.OrderAssignment{Kind: domain.AssignUser, UserID: target}
	default:
		return domain.OrderAssignment{Kind: domain.AssignNone}
	}
}

// --- Configuration ---

func configurationStep(wf *workflow.Workflow, accessible bool) error {
	bundles := wf.Bundles()
	if len(bundles) == 0 {
		return editBundle(wf, accessible, -1, domain.ConfigurationBundle{Count: 1, Months: 1})
	}

	action := actionDone
	if err := runForm(accessible, huh.NewGroup(
		huh.NewNote().
			Title("Bundles").
			Description(bundleListing(bundles, wf.FieldErrors())),
		huh.NewSelect[string]().
			Title("What next?").
			Options(bundleActions(bundles)...).
			Value(&action),
	)); err != nil {
		return err
	}

	verb, index := parseAction(action)
	switch verb {
	case actionAdd:
		return editBundle(wf, accessible, -1, domain.ConfigurationBundle{Count: 1, Months: 1})
	case actionEdit:
		return editBundle(wf, accessible, index, bundles[index])
	case actionCopy:
		_, err := wf.DuplicateBundle(index)
		return err
	case actionRemove:
		return wf.RemoveBundle(index)
	}

	if _, err := wf.Next(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			// The listing shows the failures on the next pass.
			return nil
		}
		return err
	}
	return nil
}

// editBundle runs the bundle form until the bundle validates or the user
// gives up. index -1 adds a new bundle.
func editBundle(wf *workflow.Workflow, accessible bool, index int, b domain.ConfigurationBundle) error {
	draft := draftFromBundle(b)
	slot := index
	if slot < 0 {
		slot = len(wf.Bundles())
	}

	for {
		if err := runForm(accessible, bundleGroups(&draft)...); err != nil {
			return err
		}

		bundle, err := draft.bundle()
		if err != nil {
			return err
		}

		errs := services.ValidateBundle(slot, bundle).ForBundle(slot)
		if errs.Empty() {
			if index < 0 {
				_, err = wf.AddBundle(bundle)
				return err
			}
			return wf.UpdateBundle(index, bundle)
		}

		retry := true
		if err := runForm(accessible, huh.NewGroup(
			huh.NewNote().
				Title("This bundle has problems").
				Description(errs.String()),
			huh.NewConfirm().
				Title("Edit it again?").
				Affirmative("Edit").
				Negative("Discard").
				Value(&retry),
		)); err != nil {
			return err
		}
		if !retry {
			return nil
		}
	}
}

func bundleGroups(d *bundleDraft) []*huh.Group {
	return []*huh.Group{
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&d.Name).Validate(huh.ValidateNotEmpty()),
			huh.NewInput().Title("Description").Value(&d.Description),
			huh.NewInput().Title("Replicas").Value(&d.Count).Validate(validateInt),
			huh.NewInput().Title("Months").Value(&d.Months).Validate(validateInt),
		).Title("Bundle"),
		huh.NewGroup(
			huh.NewInput().Title("Region").Description("Leave empty when ordering into a project.").Value(&d.Region),
			huh.NewInput().Title("Project ID").Value(&d.ProjectID),
			huh.NewInput().Title("Compute plan ID").Value(&d.ComputeInstanceID),
			huh.NewInput().Title("OS image ID").Value(&d.OSImageID),
		).Title("Placement"),
		huh.NewGroup(
			huh.NewInput().
				Title("Volumes").
				Description("type-id:size-gb, comma separated. The first is the boot volume.").
				Value(&d.Volumes).
				Validate(func(s string) error {
					_, err := parseVolumes(s)
					return err
				}),
		).Title("Storage"),
		huh.NewGroup(
			huh.NewInput().Title("Network ID").Value(&d.NetworkID),
			huh.NewInput().Title("Subnet ID").Value(&d.SubnetID),
			huh.NewInput().Title("Security group IDs").Description("Comma separated.").Value(&d.SecurityGroupIDs),
			huh.NewInput().Title("Key pair name").Value(&d.KeypairName),
			huh.NewInput().Title("Floating IPs").Value(&d.FloatingIPCount).Validate(validateInt),
		).Title("Network"),
		huh.NewGroup(
			huh.NewInput().Title("Bandwidth add-on ID").Value(&d.BandwidthID),
			huh.NewInput().Title("Bandwidth count").Value(&d.BandwidthCount).Validate(validateInt),
			huh.NewInput().Title("Cross-connect add-on ID").Value(&d.CrossConnectID),
			huh.NewInput().Title("Cross-connect count").Value(&d.CrossConnectCount).Validate(validateInt),
			huh.NewInput().Title("Tags").Description("Comma separated.").Value(&d.Tags),
		).Title("Add-ons"),
	}
}

func bundleActions(bundles []domain.ConfigurationBundle) []huh.Option[string] {
	options := []huh.Option[string]{
		huh.NewOption("Continue to review", actionDone),
		huh.NewOption("Add a bundle", actionAdd),
	}
	for i, b := range bundles {
		name := b.Name
		if name == "" {
			name = fmt.Sprintf("bundle %d", i+1)
		}
		options = append(options,
			huh.NewOption("Edit "+name, actionEdit+":"+strconv.Itoa(i)),
			huh.NewOption("Duplicate "+name, actionCopy+":"+strconv.Itoa(i)),
			huh.NewOption("Remove "+name, actionRemove+":"+strconv.Itoa(i)),
		)
	}
	return options
}

func parseAction(action string) (string, int) {
	verb, idx, ok := strings.Cut(action, ":")
	if !ok {
		return verb, -1
	}
	i, err := strconv.Atoi(idx)
	if err != nil {
		return actionDone, -1
	}
	return verb, i
}

// bundleListing renders each bundle with the errors recorded for it.
func bundleListing(bundles []domain.ConfigurationBundle, errs domain.FieldErrors) string {
	var b strings.Builder
	for i, bundle := range bundles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, BundleSummary(bundle))
		bundleErrs := errs.ForBundle(i)
		for _, p := range bundleErrs.Paths() {
			for _, msg := range bundleErrs[p] {
				fmt.Fprintf(&b, "   ! %s: %s\n", p, msg)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// --- Review ---

func reviewStep(ctx context.Context, wf *workflow.Workflow, accessible bool) (*domain.SubmissionResult, error) {
	fastTrack := wf.FastTrack()
	if !wf.Locked() {
		if err := runForm(accessible, huh.NewGroup(
			huh.NewConfirm().
				Title("Fast track provisioning?").
				Description("Fast-tracked orders start provisioning before payment settles.").
				Value(&fastTrack),
		)); err != nil {
			return nil, err
		}
		if err := wf.SetFastTrack(fastTrack); err != nil {
			return nil, err
		}
	}

	var preview *domain.PricingPreview
	previewErr := runSpinner(ctx, accessible, "Fetching price quote...", func(ctx context.Context) error {
		var err error
		preview, err = wf.Preview(ctx)
		return err
	})
	if errors.Is(previewErr, ErrAborted) {
		return nil, ErrAborted
	}

	choice := reviewSubmit
	if err := runForm(accessible, huh.NewGroup(
		huh.NewNote().
			Title("Summary").
			Description(reviewSummary(wf.Bundles(), wf.Assignment(), fastTrack, preview, previewErr)),
		huh.NewSelect[string]().
			Title("Submit this order?").
			Options(
				huh.NewOption("Submit", reviewSubmit),
				huh.NewOption("Back to bundles", reviewEdit),
				huh.NewOption("Cancel", reviewCancel),
			).
			Value(&choice),
	)); err != nil {
		return nil, err
	}

	switch choice {
	case reviewEdit:
		if wf.Locked() {
			return nil, fmt.Errorf("%w: start a new order to change submitted bundles", domain.ErrBundleLocked)
		}
		wf.Back()
		return nil, nil
	case reviewCancel:
		return nil, ErrAborted
	}

	var result *domain.SubmissionResult
	err := runSpinner(ctx, accessible, "Submitting order...", func(ctx context.Context) error {
		var err error
		result, err = wf.Submit(ctx)
		return err
	})
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			// Remote field errors are merged into the workflow; show them
			// against the bundles.
			wf.Back()
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

func reviewSummary(bundles []domain.ConfigurationBundle, a domain.OrderAssignment, fastTrack bool, preview *domain.PricingPreview, previewErr error) string {
	var b strings.Builder

	switch a.Kind {
	case domain.AssignTenant, domain.AssignUser:
		fmt.Fprintf(&b, "Assigned to: %s %s\n", a.Kind, a.Target())
	default:
		b.WriteString("Assigned to: my account\n")
	}
	fmt.Fprintf(&b, "Fast track: %t\n\n", fastTrack)

	for i, bundle := range bundles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, BundleSummary(bundle))
	}

	switch {
	case previewErr != nil:
		fmt.Fprintf(&b, "\nPrice quote unavailable: %v\n", previewErr)
	case preview != nil:
		b.WriteString("\n")
		for _, line := range PreviewLines(bundles, preview) {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// --- Drafts ---

// bundleDraft holds a bundle as the text the form edits.
type bundleDraft struct {
	Name              string
	Description       string
	Count             string
	Months            string
	Region            string
	ProjectID         string
	ComputeInstanceID string
	OSImageID         string
	Volumes           string
	NetworkID         string
	SubnetID          string
	SecurityGroupIDs  string
	KeypairName       string
	FloatingIPCount   string
	BandwidthID       string
	BandwidthCount    string
	CrossConnectID    string
	CrossConnectCount string
	Tags              string
}

func draftFromBundle(b domain.ConfigurationBundle) bundleDraft {
	return bundleDraft{
		Name:              b.Name,
		Description:       b.Description,
		Count:             strconv.Itoa(b.Count),
		Months:            strconv.Itoa(b.Months),
		Region:            b.Region,
		ProjectID:         b.ProjectID,
		ComputeInstanceID: b.ComputeInstanceID,
		OSImageID:         b.OSImageID,
		Volumes:           formatVolumes(b.Volumes),
		NetworkID:         b.NetworkID,
		SubnetID:          b.SubnetID,
		SecurityGroupIDs:  strings.Join(b.SecurityGroupIDs, ", "),
		KeypairName:       b.KeypairName,
		FloatingIPCount:   strconv.Itoa(b.FloatingIPCount),
		BandwidthID:       b.BandwidthID,
		BandwidthCount:    strconv.Itoa(b.BandwidthCount),
		CrossConnectID:    b.CrossConnectID,
		CrossConnectCount: strconv.Itoa(b.CrossConnectCount),
		Tags:              strings.Join(b.Tags, ", "),
	}
}

// bundle converts the draft. Only malformed numbers fail here; everything
// else is left to services.ValidateBundle.
func (d bundleDraft) bundle() (domain.ConfigurationBundle, error) {
	var b domain.ConfigurationBundle
	numbers := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"replicas", d.Count, &b.Count},
		{"months", d.Months, &b.Months},
		{"floating IPs", d.FloatingIPCount, &b.FloatingIPCount},
		{"bandwidth count", d.BandwidthCount, &b.BandwidthCount},
		{"cross-connect count", d.CrossConnectCount, &b.CrossConnectCount},
	}
	for _, f := range numbers {
		n, err := atoiOrZero(f.raw)
		if err != nil {
			return domain.ConfigurationBundle{}, fmt.Errorf("invalid %s: %w", f.name, err)
		}
		*f.dst = n
	}

	volumes, err := parseVolumes(d.Volumes)
	if err != nil {
		return domain.ConfigurationBundle{}, err
	}

	b.Name = strings.TrimSpace(d.Name)
	b.Description = strings.TrimSpace(d.Description)
	b.Region = strings.TrimSpace(d.Region)
	b.ProjectID = strings.TrimSpace(d.ProjectID)
	b.ComputeInstanceID = strings.TrimSpace(d.ComputeInstanceID)
	b.OSImageID = strings.TrimSpace(d.OSImageID)
	b.Volumes = volumes
	b.NetworkID = strings.TrimSpace(d.NetworkID)
	b.SubnetID = strings.TrimSpace(d.SubnetID)
	b.SecurityGroupIDs = splitList(d.SecurityGroupIDs)
	b.KeypairName = strings.TrimSpace(d.KeypairName)
	b.BandwidthID = strings.TrimSpace(d.BandwidthID)
	b.CrossConnectID = strings.TrimSpace(d.CrossConnectID)
	b.Tags = splitList(d.Tags)
	return b, nil
}

func validateInt(s string) error {
	_, err := atoiOrZero(s)
	return err
}

func atoiOrZero(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return n, nil
}

// parseVolumes reads "type:size, type:size".
func parseVolumes(s string) ([]domain.VolumeSpec, error) {
	var out []domain.VolumeSpec
	for _, item := range splitList(s) {
		typeID, size, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("volume %q must look like type-id:size-gb", item)
		}
		gb, err := strconv.Atoi(strings.TrimSpace(size))
		if err != nil {
			return nil, fmt.Errorf("volume %q has a size that is not a whole number", item)
		}
		out = append(out, domain.VolumeSpec{VolumeTypeID: strings.TrimSpace(typeID), SizeGB: gb})
	}
	return out, nil
}

func formatVolumes(volumes []domain.VolumeSpec) string {
	parts := make([]string, len(volumes))
	for i, v := range volumes {
		parts[i] = fmt.Sprintf("%s:%d", v.VolumeTypeID, v.SizeGB)
	}
	return strings.Join(parts, ", ")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
