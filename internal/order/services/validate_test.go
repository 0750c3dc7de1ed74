package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"nathanbeddoewebdev/vpsorder/internal/order/domain"
)

func validBundle() domain.ConfigurationBundle {
	return domain.ConfigurationBundle{
		Name:              "web",
		Count:             2,
		Months:            3,
		Region:            "lagos-1",
		ComputeInstanceID: "5",
		OSImageID:         "9",
		Volumes:           []domain.VolumeSpec{{VolumeTypeID: "10", SizeGB: 50}},
	}
}

func TestValidate_ValidBundle(t *testing.T) {
	got := Validate([]domain.ConfigurationBundle{validBundle()})
	if got == nil {
		t.Fatal("expected non-nil map")
	}
	if !got.Empty() {
		t.Errorf("expected no errors, got %v", got)
	}
}

func TestValidate_VolumeSizeZero(t *testing.T) {
	b := validBundle()
	b.Volumes[0].SizeGB = 0

	got := Validate([]domain.ConfigurationBundle{b})
	want := domain.FieldErrors{
		"instances.0.volume_types.0.storage_size_gb": {"Size must be at least 1 GiB."},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Validate mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.ConfigurationBundle)
		path   string
		msg    string
	}{
		{"name", func(b *domain.ConfigurationBundle) { b.Name = "  " }, "instances.0.name", MsgRequired},
		{"count", func(b *domain.ConfigurationBundle) { b.Count = 0 }, "instances.0.count", MsgAtLeastOne},
		{"months", func(b *domain.ConfigurationBundle) { b.Months = 0 }, "instances.0.months", MsgAtLeastOne},
		{"location", func(b *domain.ConfigurationBundle) { b.Region = "" }, "instances.0.region", MsgLocation},
		{"compute", func(b *domain.ConfigurationBundle) { b.ComputeInstanceID = "" }, "instances.0.compute_instance_id", MsgRequired},
		{"image", func(b *domain.ConfigurationBundle) { b.OSImageID = "" }, "instances.0.os_image_id", MsgRequired},
		{"image numeric", func(b *domain.ConfigurationBundle) { b.OSImageID = "ubuntu" }, "instances.0.os_image_id", MsgNumeric},
		{"no volumes", func(b *domain.ConfigurationBundle) { b.Volumes = nil }, "instances.0.volume_types", MsgVolumeRequired},
		{"volume type", func(b *domain.ConfigurationBundle) { b.Volumes[0].VolumeTypeID = "" }, "instances.0.volume_types.0.volume_type_id", MsgRequired},
		{"floating ips", func(b *domain.ConfigurationBundle) { b.FloatingIPCount = -1 }, "instances.0.floating_ip_count", MsgNotNegative},
		{"bandwidth count", func(b *domain.ConfigurationBundle) { b.BandwidthID = "3" }, "instances.0.bandwidth_count", MsgAddonCount},
		{"cross connect count", func(b *domain.ConfigurationBundle) { b.CrossConnectID = "4" }, "instances.0.cross_connect_count", MsgAddonCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBundle()
			tt.mutate(&b)
			got := Validate([]domain.ConfigurationBundle{b})
			if diff := cmp.Diff(domain.FieldErrors{tt.path: {tt.msg}}, got); diff != "" {
				t.Errorf("Validate mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidate_ProjectSatisfiesLocation(t *testing.T) {
	b := validBundle()
	b.Region = ""
	b.ProjectID = "12"
	if got := Validate([]domain.ConfigurationBundle{b}); !got.Empty() {
		t.Errorf("expected project to satisfy location, got %v", got)
	}
}

func TestValidate_IndexesEachBundle(t *testing.T) {
	bad := validBundle()
	bad.Count = 0
	got := Validate([]domain.ConfigurationBundle{validBundle(), bad})
	if _, ok := got["instances.1.count"]; !ok {
		t.Errorf("expected error keyed to the second bundle, got %v", got)
	}
	if len(got.ForBundle(0)) != 0 {
		t.Errorf("expected first bundle to be clean, got %v", got.ForBundle(0))
	}
}

func TestValidate_Idempotent(t *testing.T) {
	b := validBundle()
	b.Name = ""
	b.Volumes[0].SizeGB = 0
	bundles := []domain.ConfigurationBundle{b}

	first := Validate(bundles)
	second := Validate(bundles)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Validate is not idempotent (-first +second):\n%s", diff)
	}
}
