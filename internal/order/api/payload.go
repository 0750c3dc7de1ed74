package api

import (
	"strconv"
	"strings"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// VolumeRequest is the wire form of a domain.VolumeSpec.
type VolumeRequest struct {
	VolumeTypeID  int64 `json:"volume_type_id"`
	StorageSizeGB int   `json:"storage_size_gb"`
}

// BundleRequest is the wire form of one configuration bundle. Numeric IDs
// are sent as numbers and unset optional fields are omitted.
type BundleRequest struct {
	Region            string          `json:"region,omitempty"`
	ProjectID         int64           `json:"project_id,omitempty"`
	ComputeInstanceID int64           `json:"compute_instance_id"`
	OSImageID         int64           `json:"os_image_id"`
	Months            int             `json:"months"`
	NumberOfInstances int             `json:"number_of_instances"`
	VolumeTypes       []VolumeRequest `json:"volume_types"`
	BandwidthID       int64           `json:"bandwidth_id,omitempty"`
	BandwidthCount    int             `json:"bandwidth_count,omitempty"`
	FloatingIPCount   int             `json:"floating_ip_count,omitempty"`
	CrossConnectID    int64           `json:"cross_connect_id,omitempty"`
	CrossConnectCount int             `json:"cross_connect_count,omitempty"`
	NetworkID         int64           `json:"network_id,omitempty"`
	SubnetID          int64           `json:"subnet_id,omitempty"`
	SecurityGroupIDs  []int64         `json:"security_group_ids,omitempty"`
	KeypairName       string          `json:"keypair_name,omitempty"`
}

// PricingPayload is the body of a pricing preview request.
type PricingPayload struct {
	PricingRequests []BundleRequest `json:"pricing_requests"`
	FastTrack       bool            `json:"fast_track"`
	TenantID        int64           `json:"tenant_id,omitempty"`
	UserID          int64           `json:"user_id,omitempty"`
}

// SubmissionPayload is the body of an order submission. It extends the
// pricing body with order tags.
type SubmissionPayload struct {
	PricingPayload
	Tags []string `json:"tags,omitempty"`
}

// idCoercer converts string IDs to numbers and records a field error for
// every value that is not an integer.
type idCoercer struct {
	errs domain.FieldErrors
}

func (c *idCoercer) id(path, raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.errs.Add(path, "Must be a numeric ID.")
		return 0
	}
	return n
}

func (c *idCoercer) err() error {
	if c.errs.Empty() {
		return nil
	}
	return &domain.ValidationError{Fields: c.errs, Message: "invalid identifiers"}
}

// BuildBundleRequest converts the bundle at index into its wire form.
// A non-numeric ID yields a *domain.ValidationError keyed like Validate.
func BuildBundleRequest(index int, b domain.ConfigurationBundle) (BundleRequest, error) {
	c := &idCoercer{errs: domain.FieldErrors{}}
	req := buildBundle(c, index, b)
	return req, c.err()
}

func buildBundle(c *idCoercer, index int, b domain.ConfigurationBundle) BundleRequest {
	path := func(field string) string { return domain.BundlePath(index, field) }

	req := BundleRequest{
		Region:            strings.TrimSpace(b.Region),
		ProjectID:         c.id(path("project_id"), b.ProjectID),
		ComputeInstanceID: c.id(path("compute_instance_id"), b.ComputeInstanceID),
		OSImageID:         c.id(path("os_image_id"), b.OSImageID),
		Months:            b.Months,
		NumberOfInstances: b.Count,
		FloatingIPCount:   b.FloatingIPCount,
		NetworkID:         c.id(path("network_id"), b.NetworkID),
		SubnetID:          c.id(path("subnet_id"), b.SubnetID),
		KeypairName:       strings.TrimSpace(b.KeypairName),
	}

	req.VolumeTypes = make([]VolumeRequest, 0, len(b.Volumes))
	for j, v := range b.Volumes {
		req.VolumeTypes = append(req.VolumeTypes, VolumeRequest{
			VolumeTypeID:  c.id(path("volume_types."+strconv.Itoa(j)+".volume_type_id"), v.VolumeTypeID),
			StorageSizeGB: v.SizeGB,
		})
	}

	for j, sg := range b.SecurityGroupIDs {
		if id := c.id(path("security_group_ids."+strconv.Itoa(j)), sg); id != 0 {
			req.SecurityGroupIDs = append(req.SecurityGroupIDs, id)
		}
	}

	// Add-on counts are only sent alongside their add-on.
	if id := c.id(path("bandwidth_id"), b.BandwidthID); id != 0 {
		req.BandwidthID = id
		req.BandwidthCount = b.BandwidthCount
	}
	if id := c.id(path("cross_connect_id"), b.CrossConnectID); id != 0 {
		req.CrossConnectID = id
		req.CrossConnectCount = b.CrossConnectCount
	}

	return req
}

// BuildPricingPayload converts a batch of bundles and its routing metadata
// into a pricing request body.
func BuildPricingPayload(bundles []domain.ConfigurationBundle, fastTrack bool, assignment domain.OrderAssignment) (PricingPayload, error) {
	c := &idCoercer{errs: domain.FieldErrors{}}
	p := buildPricing(c, bundles, fastTrack, assignment)
	return p, c.err()
}

func buildPricing(c *idCoercer, bundles []domain.ConfigurationBundle, fastTrack bool, assignment domain.OrderAssignment) PricingPayload {
	p := PricingPayload{
		PricingRequests: make([]BundleRequest, 0, len(bundles)),
		FastTrack:       fastTrack,
	}
	for i, b := range bundles {
		p.PricingRequests = append(p.PricingRequests, buildBundle(c, i, b))
	}
	switch assignment.Kind {
	case domain.AssignTenant:
		p.TenantID = c.id("assignment.tenant_id", assignment.TenantID)
	case domain.AssignUser:
		p.UserID = c.id("assignment.user_id", assignment.UserID)
	}
	return p
}

// BuildSubmissionPayload builds the order submission body. Order tags are
// the explicit tags followed by every bundle's tags, deduplicated in order.
func BuildSubmissionPayload(bundles []domain.ConfigurationBundle, fastTrack bool, assignment domain.OrderAssignment, tags []string) (SubmissionPayload, error) {
	c := &idCoercer{errs: domain.FieldErrors{}}
	p := SubmissionPayload{PricingPayload: buildPricing(c, bundles, fastTrack, assignment)}

	seen := make(map[string]bool)
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		p.Tags = append(p.Tags, tag)
	}
	for _, t := range tags {
		add(t)
	}
	for _, b := range bundles {
		for _, t := range b.Tags {
			add(t)
		}
	}

	return p, c.err()
}
