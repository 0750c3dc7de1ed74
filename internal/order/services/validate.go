// Package services holds the pure order logic that runs before anything is
// sent to the backend.
package services

import (
	"strconv"
	"strings"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

// Messages reported by Validate. They are matched by tests and rendered
// verbatim next to the offending field.
const (
	MsgRequired       = "This field is required."
	MsgAtLeastOne     = "Must be at least 1."
	MsgNotNegative    = "Must not be negative."
	MsgNumeric        = "Must be a numeric ID."
	MsgLocation       = "Select a region or a project."
	MsgVolumeRequired = "Add at least one volume."
	MsgVolumeSize     = "Size must be at least 1 GiB."
	MsgAddonCount     = "Count must be at least 1 when the add-on is selected."
)

// Validate checks every bundle and returns the failures keyed by
// "instances.<index>.<field>". The result is empty, never nil, when all
// bundles are valid. It has no side effects.
func Validate(bundles []domain.ConfigurationBundle) domain.FieldErrors {
	errs := domain.FieldErrors{}
	for i, b := range bundles {
		validateBundle(errs, i, b)
	}
	return errs
}

// ValidateBundle checks a single bundle as if it sat at index.
func ValidateBundle(index int, b domain.ConfigurationBundle) domain.FieldErrors {
	errs := domain.FieldErrors{}
	validateBundle(errs, index, b)
	return errs
}

func validateBundle(errs domain.FieldErrors, i int, b domain.ConfigurationBundle) {
	path := func(field string) string { return domain.BundlePath(i, field) }

	if strings.TrimSpace(b.Name) == "" {
		errs.Add(path("name"), MsgRequired)
	}
	if b.Count < 1 {
		errs.Add(path("count"), MsgAtLeastOne)
	}
	if b.Months < 1 {
		errs.Add(path("months"), MsgAtLeastOne)
	}

	if isBlank(b.Region) && isBlank(b.ProjectID) {
		errs.Add(path("region"), MsgLocation)
	}
	checkOptionalID(errs, path("project_id"), b.ProjectID)

	checkRequiredID(errs, path("compute_instance_id"), b.ComputeInstanceID)
	checkRequiredID(errs, path("os_image_id"), b.OSImageID)

	if len(b.Volumes) == 0 {
		errs.Add(path("volume_types"), MsgVolumeRequired)
	}
	for j, v := range b.Volumes {
		vpath := path("volume_types." + strconv.Itoa(j) + ".")
		checkRequiredID(errs, vpath+"volume_type_id", v.VolumeTypeID)
		if v.SizeGB < 1 {
			errs.Add(vpath+"storage_size_gb", MsgVolumeSize)
		}
	}

	checkOptionalID(errs, path("network_id"), b.NetworkID)
	checkOptionalID(errs, path("subnet_id"), b.SubnetID)
	for j, sg := range b.SecurityGroupIDs {
		checkRequiredID(errs, path("security_group_ids."+strconv.Itoa(j)), sg)
	}
	if b.FloatingIPCount < 0 {
		errs.Add(path("floating_ip_count"), MsgNotNegative)
	}

	checkAddon(errs, path("bandwidth_id"), path("bandwidth_count"), b.BandwidthID, b.BandwidthCount)
	checkAddon(errs, path("cross_connect_id"), path("cross_connect_count"), b.CrossConnectID, b.CrossConnectCount)
}

func checkAddon(errs domain.FieldErrors, idPath, countPath, id string, count int) {
	if isBlank(id) {
		return
	}
	checkOptionalID(errs, idPath, id)
	if count < 1 {
		errs.Add(countPath, MsgAddonCount)
	}
}

func checkRequiredID(errs domain.FieldErrors, path, id string) {
	if isBlank(id) {
		errs.Add(path, MsgRequired)
		return
	}
	checkOptionalID(errs, path, id)
}

func checkOptionalID(errs domain.FieldErrors, path, id string) {
	if isBlank(id) {
		return
	}
	if _, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64); err != nil {
		errs.Add(path, MsgNumeric)
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
