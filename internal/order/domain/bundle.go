package domain

// VolumeSpec describes one block volume attached to every replica of a
// bundle. The first entry of a bundle's Volumes is the boot volume.
type VolumeSpec struct {
	VolumeTypeID string `json:"volume_type_id" yaml:"volume_type_id"`
	SizeGB       int    `json:"storage_size_gb" yaml:"storage_size_gb"`
}

// ConfigurationBundle is one buildable unit of infrastructure. A bundle
// produces Count identical replicas.
//
// IDs are kept as the operator typed them; they are coerced to numbers only
// when a request payload is built.
type ConfigurationBundle struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
	Count       int    `json:"count" yaml:"count"`

	// Location. At least one of Region or ProjectID must be set.
	Region    string `json:"region,omitempty" yaml:"region"`
	ProjectID string `json:"project_id,omitempty" yaml:"project_id"`

	ComputeInstanceID string       `json:"compute_instance_id" yaml:"compute_instance_id"`
	OSImageID         string       `json:"os_image_id" yaml:"os_image_id"`
	Months            int          `json:"months" yaml:"months"`
	Volumes           []VolumeSpec `json:"volume_types" yaml:"volume_types"`

	NetworkID        string   `json:"network_id,omitempty" yaml:"network_id"`
	SubnetID         string   `json:"subnet_id,omitempty" yaml:"subnet_id"`
	SecurityGroupIDs []string `json:"security_group_ids,omitempty" yaml:"security_group_ids"`
	KeypairName      string   `json:"keypair_name,omitempty" yaml:"keypair_name"`
	FloatingIPCount  int      `json:"floating_ip_count,omitempty" yaml:"floating_ip_count"`

	// Add-ons. A count is only meaningful when the matching ID is set.
	BandwidthID       string `json:"bandwidth_id,omitempty" yaml:"bandwidth_id"`
	BandwidthCount    int    `json:"bandwidth_count,omitempty" yaml:"bandwidth_count"`
	CrossConnectID    string `json:"cross_connect_id,omitempty" yaml:"cross_connect_id"`
	CrossConnectCount int    `json:"cross_connect_count,omitempty" yaml:"cross_connect_count"`

	Tags []string `json:"tags,omitempty" yaml:"tags"`
}

// Clone returns a deep copy of the bundle.
func (b ConfigurationBundle) Clone() ConfigurationBundle {
	c := b
	c.Volumes = append([]VolumeSpec(nil), b.Volumes...)
	c.SecurityGroupIDs = append([]string(nil), b.SecurityGroupIDs...)
	c.Tags = append([]string(nil), b.Tags...)
	return c
}

// CloneBundles deep-copies a slice of bundles.
func CloneBundles(bundles []ConfigurationBundle) []ConfigurationBundle {
	if bundles == nil {
		return nil
	}
	out := make([]ConfigurationBundle, len(bundles))
	for i, b := range bundles {
		out[i] = b.Clone()
	}
	return out
}

// AssignmentKind selects who an order is routed to.
type AssignmentKind string

const (
	AssignNone   AssignmentKind = "none"
	AssignTenant AssignmentKind = "tenant"
	AssignUser   AssignmentKind = "user"
)

// OrderAssignment is optional routing metadata attached to pricing and
// submission requests. It is independent of the bundles.
type OrderAssignment struct {
	Kind     AssignmentKind `json:"kind" yaml:"kind"`
	TenantID string         `json:"tenant_id,omitempty" yaml:"tenant_id"`
	UserID   string         `json:"user_id,omitempty" yaml:"user_id"`
}

// Target returns the tenant or user ID selected by Kind, or "" when the
// order is unassigned.
func (a OrderAssignment) Target() string {
	switch a.Kind {
	case AssignTenant:
		return a.TenantID
	case AssignUser:
		return a.UserID
	default:
		return ""
	}
}
