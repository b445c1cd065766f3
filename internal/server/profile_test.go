package server

import (
	"testing"
	"time"
)

func TestApplyProfileUpdatePartialsAccumulate(t *testing.T) {
	profile := &HealthProfile{UserID: "u1", VitalSigns: []VitalSignEntry{}}

	age := 30
	applyProfileUpdate(profile, ProfileUpdate{BasicInfo: &BasicInfo{Age: &age}})

	gender := "female"
	applyProfileUpdate(profile, ProfileUpdate{BasicInfo: &BasicInfo{Gender: &gender}})

	if profile.BasicInfo.Age == nil || *profile.BasicInfo.Age != 30 {
		t.Fatalf("age from the first update must survive the second: %+v", profile.BasicInfo)
	}
	if profile.BasicInfo.Gender == nil || *profile.BasicInfo.Gender != "female" {
		t.Fatalf("gender from the second update missing: %+v", profile.BasicInfo)
	}
}

func TestApplyProfileUpdateListReplacesWholesale(t *testing.T) {
	profile := &HealthProfile{
		MedicalHistory: MedicalHistory{Conditions: []string{"asthma", "eczema"}},
	}

	replacement := []string{"asthma"}
	applyProfileUpdate(profile, ProfileUpdate{
		MedicalHistory: &MedicalHistoryUpdate{Conditions: &replacement},
	})

	if len(profile.MedicalHistory.Conditions) != 1 || profile.MedicalHistory.Conditions[0] != "asthma" {
		t.Fatalf("provided list must replace wholesale: %v", profile.MedicalHistory.Conditions)
	}
}

func TestApplyProfileUpdateAbsentListKeepsCurrent(t *testing.T) {
	profile := &HealthProfile{
		MedicalHistory: MedicalHistory{
			Conditions: []string{"hypertension"},
			Allergies:  []string{"pollen"},
		},
	}

	empty := []string{}
	applyProfileUpdate(profile, ProfileUpdate{
		MedicalHistory: &MedicalHistoryUpdate{Allergies: &empty},
	})

	if len(profile.MedicalHistory.Conditions) != 1 {
		t.Fatalf("absent key must not touch the stored list: %v", profile.MedicalHistory.Conditions)
	}
	if len(profile.MedicalHistory.Allergies) != 0 {
		t.Fatalf("explicit empty list must clear: %v", profile.MedicalHistory.Allergies)
	}
}

func TestApplyProfileUpdateVitalSignsAppend(t *testing.T) {
	profile := &HealthProfile{VitalSigns: []VitalSignEntry{}}

	hr1 := 70.0
	dated := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	applyProfileUpdate(profile, ProfileUpdate{
		VitalSigns: []VitalSignEntry{{Date: dated, HeartRate: &hr1}},
	})

	hr2 := 75.0
	applyProfileUpdate(profile, ProfileUpdate{
		VitalSigns: []VitalSignEntry{{HeartRate: &hr2}},
	})

	if len(profile.VitalSigns) != 2 {
		t.Fatalf("vital signs must append, got %d entries", len(profile.VitalSigns))
	}
	if !profile.VitalSigns[0].Date.Equal(dated) {
		t.Fatalf("provided date must be kept: %v", profile.VitalSigns[0].Date)
	}
	if profile.VitalSigns[1].Date.IsZero() {
		t.Fatalf("missing date must default to the time of recording")
	}
}

func TestMergeLifestylePointerSemantics(t *testing.T) {
	never := "never"
	current := Lifestyle{SmokingStatus: &never}

	diet := "vegetarian"
	merged := mergeLifestyle(current, Lifestyle{Diet: &diet})

	if merged.SmokingStatus == nil || *merged.SmokingStatus != "never" {
		t.Fatalf("untouched field must survive the merge: %+v", merged)
	}
	if merged.Diet == nil || *merged.Diet != "vegetarian" {
		t.Fatalf("patched field missing: %+v", merged)
	}
}
