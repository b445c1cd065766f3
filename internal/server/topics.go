package server

// HealthTopic is static reference data served by the topics endpoints.
type HealthTopic struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Subtopics   []string `json:"subtopics"`
}

var healthTopics = []HealthTopic{
	{
		ID:          "nutrition",
		Title:       "Nutrition",
		Description: "Information about healthy eating and dietary recommendations",
		Subtopics:   []string{"balanced-diet", "nutrition-facts", "dietary-supplements", "hydration"},
	},
	{
		ID:          "exercise",
		Title:       "Physical Activity",
		Description: "Guidelines for exercise and staying physically active",
		Subtopics:   []string{"cardio", "strength-training", "flexibility", "exercise-plans"},
	},
	{
		ID:          "mental-health",
		Title:       "Mental Health",
		Description: "Resources for mental wellbeing and psychological health",
		Subtopics:   []string{"stress-management", "anxiety", "depression", "mindfulness"},
	},
	{
		ID:          "sleep",
		Title:       "Sleep Health",
		Description: "Information about healthy sleep habits and sleep disorders",
		Subtopics:   []string{"sleep-hygiene", "sleep-disorders", "improving-sleep"},
	},
	{
		ID:          "preventive-care",
		Title:       "Preventive Care",
		Description: "Guidelines for screenings, vaccinations, and preventive health measures",
		Subtopics:   []string{"screenings", "vaccinations", "check-ups", "family-history"},
	},
}

func findHealthTopic(id string) (HealthTopic, bool) {
	for _, topic := range healthTopics {
		if topic.ID == id {
			return topic, true
		}
	}
	return HealthTopic{}, false
}
