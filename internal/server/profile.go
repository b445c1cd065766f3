package server

import "time"

type BasicInfo struct {
	Age       *int     `json:"age,omitempty"`
	Gender    *string  `json:"gender,omitempty"`
	Height    *float64 `json:"height,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
	BloodType *string  `json:"bloodType,omitempty"`
}

type Medication struct {
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage,omitempty"`
	Frequency string     `json:"frequency,omitempty"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

type MedicalHistory struct {
	Conditions    []string     `json:"conditions,omitempty"`
	Allergies     []string     `json:"allergies,omitempty"`
	Surgeries     []string     `json:"surgeries,omitempty"`
	FamilyHistory []string     `json:"familyHistory,omitempty"`
	Medications   []Medication `json:"medications,omitempty"`
}

type Lifestyle struct {
	SmokingStatus      *string  `json:"smokingStatus,omitempty"`
	AlcoholConsumption *string  `json:"alcoholConsumption,omitempty"`
	ExerciseFrequency  *string  `json:"exerciseFrequency,omitempty"`
	Diet               *string  `json:"diet,omitempty"`
	SleepHours         *float64 `json:"sleepHours,omitempty"`
}

type BloodPressure struct {
	Systolic  *int `json:"systolic,omitempty"`
	Diastolic *int `json:"diastolic,omitempty"`
}

// VitalSignEntry is one timestamped snapshot; entries are append-only and
// immutable once recorded.
type VitalSignEntry struct {
	Date             time.Time      `json:"date"`
	BloodPressure    *BloodPressure `json:"bloodPressure,omitempty"`
	HeartRate        *float64       `json:"heartRate,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	RespiratoryRate  *float64       `json:"respiratoryRate,omitempty"`
	OxygenSaturation *float64       `json:"oxygenSaturation,omitempty"`
}

type HealthProfile struct {
	UserID         string           `json:"userId"`
	BasicInfo      BasicInfo        `json:"basicInfo"`
	MedicalHistory MedicalHistory   `json:"medicalHistory"`
	Lifestyle      Lifestyle        `json:"lifestyle"`
	VitalSigns     []VitalSignEntry `json:"vitalSigns"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// MedicalHistoryUpdate distinguishes "key absent" (nil pointer, keep current
// value) from "key provided" (replace that list wholesale).
type MedicalHistoryUpdate struct {
	Conditions    *[]string     `json:"conditions"`
	Allergies     *[]string     `json:"allergies"`
	Surgeries     *[]string     `json:"surgeries"`
	FamilyHistory *[]string     `json:"familyHistory"`
	Medications   *[]Medication `json:"medications"`
}

// ProfileUpdate is a partial profile: each nested section is shallow-merged
// by key into the stored profile, never replaced wholesale. vitalSigns is the
// exception, it appends to the history.
type ProfileUpdate struct {
	BasicInfo      *BasicInfo            `json:"basicInfo"`
	MedicalHistory *MedicalHistoryUpdate `json:"medicalHistory"`
	Lifestyle      *Lifestyle            `json:"lifestyle"`
	VitalSigns     []VitalSignEntry      `json:"vitalSigns"`
}

func applyProfileUpdate(profile *HealthProfile, patch ProfileUpdate) {
	if patch.BasicInfo != nil {
		profile.BasicInfo = mergeBasicInfo(profile.BasicInfo, *patch.BasicInfo)
	}
	if patch.MedicalHistory != nil {
		profile.MedicalHistory = mergeMedicalHistory(profile.MedicalHistory, *patch.MedicalHistory)
	}
	if patch.Lifestyle != nil {
		profile.Lifestyle = mergeLifestyle(profile.Lifestyle, *patch.Lifestyle)
	}
	for _, entry := range patch.VitalSigns {
		if entry.Date.IsZero() {
			entry.Date = time.Now().UTC()
		}
		profile.VitalSigns = append(profile.VitalSigns, entry)
	}
}

func mergeBasicInfo(current, patch BasicInfo) BasicInfo {
	if patch.Age != nil {
		current.Age = patch.Age
	}
	if patch.Gender != nil {
		current.Gender = patch.Gender
	}
	if patch.Height != nil {
		current.Height = patch.Height
	}
	if patch.Weight != nil {
		current.Weight = patch.Weight
	}
	if patch.BloodType != nil {
		current.BloodType = patch.BloodType
	}
	return current
}

func mergeMedicalHistory(current MedicalHistory, patch MedicalHistoryUpdate) MedicalHistory {
	if patch.Conditions != nil {
		current.Conditions = *patch.Conditions
	}
	if patch.Allergies != nil {
		current.Allergies = *patch.Allergies
	}
	if patch.Surgeries != nil {
		current.Surgeries = *patch.Surgeries
	}
	if patch.FamilyHistory != nil {
		current.FamilyHistory = *patch.FamilyHistory
	}
	if patch.Medications != nil {
		current.Medications = *patch.Medications
	}
	return current
}

func mergeLifestyle(current, patch Lifestyle) Lifestyle {
	if patch.SmokingStatus != nil {
		current.SmokingStatus = patch.SmokingStatus
	}
	if patch.AlcoholConsumption != nil {
		current.AlcoholConsumption = patch.AlcoholConsumption
	}
	if patch.ExerciseFrequency != nil {
		current.ExerciseFrequency = patch.ExerciseFrequency
	}
	if patch.Diet != nil {
		current.Diet = patch.Diet
	}
	if patch.SleepHours != nil {
		current.SleepHours = patch.SleepHours
	}
	return current
}
