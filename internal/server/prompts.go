package server

import (
	"fmt"
	"strconv"
	"strings"
)

const defaultApology = "I apologize, but I couldn't generate a response at this time."

var defaultPersonaPrompt = strings.Join([]string{
	"You are HealthSparkAI, a friendly and knowledgeable health assistant.",
	"Your purpose is to provide evidence-based health information and general wellness advice.",
	"Always clarify that you're not a doctor and encourage users to consult healthcare professionals for medical concerns.",
	"Focus on providing factual information about health topics, lifestyle recommendations, and general wellness tips.",
	"Avoid making definitive diagnoses or recommending specific treatments.",
	"Be empathetic, clear, and thoughtful in your responses, using simple language anyone can understand.",
}, "\n")

// healthContextPrompt renders a profile into the system briefing used for
// generation. It is deterministic and always emits every labeled field so the
// backend sees a uniformly shaped briefing regardless of how sparse the
// profile is.
func healthContextPrompt(basic BasicInfo, history MedicalHistory, lifestyle Lifestyle) string {
	var b strings.Builder

	b.WriteString("You are HealthSparkAI, a friendly and knowledgeable health assistant. Your purpose is to provide\n")
	b.WriteString("evidence-based health information and general wellness advice tailored to the user's specific health\n")
	b.WriteString("context when available.\n\n")
	b.WriteString("Always clarify that you're not a doctor and encourage users to consult healthcare professionals for medical concerns.\n")
	b.WriteString("Focus on providing factual information about health topics, lifestyle recommendations, and general wellness tips.\n")
	b.WriteString("Avoid making definitive diagnoses or recommending specific treatments.\n")
	b.WriteString("Be empathetic, clear, and thoughtful in your responses, using simple language anyone can understand.\n\n")
	b.WriteString("The following information is known about the user. Consider this context when providing advice, but don't\n")
	b.WriteString("directly refer to all of these details in your responses unless relevant to the current question:\n\n")

	b.WriteString("BASIC INFO:\n")
	b.WriteString("Age: " + intOrNotProvided(basic.Age) + "\n")
	b.WriteString("Gender: " + textOrNotProvided(basic.Gender) + "\n")
	b.WriteString("Height: " + measurementOrNotProvided(basic.Height, "cm") + "\n")
	b.WriteString("Weight: " + measurementOrNotProvided(basic.Weight, "kg") + "\n")
	b.WriteString("Blood Type: " + textOrNotProvided(basic.BloodType) + "\n\n")

	b.WriteString("MEDICAL HISTORY:\n")
	b.WriteString("Medical Conditions: " + listOrNoneReported(history.Conditions) + "\n")
	b.WriteString("Allergies: " + listOrNoneReported(history.Allergies) + "\n")
	b.WriteString("Surgeries: " + listOrNoneReported(history.Surgeries) + "\n")
	b.WriteString("Family History: " + listOrNoneReported(history.FamilyHistory) + "\n")
	b.WriteString("Current Medications: " + medicationsOrNoneReported(history.Medications) + "\n\n")

	b.WriteString("LIFESTYLE:\n")
	b.WriteString("Smoking Status: " + textOrNotProvided(lifestyle.SmokingStatus) + "\n")
	b.WriteString("Alcohol Consumption: " + textOrNotProvided(lifestyle.AlcoholConsumption) + "\n")
	b.WriteString("Exercise Frequency: " + textOrNotProvided(lifestyle.ExerciseFrequency) + "\n")
	b.WriteString("Diet: " + textOrNotProvided(lifestyle.Diet) + "\n")
	b.WriteString("Sleep Hours: " + floatOrNotProvided(lifestyle.SleepHours) + "\n\n")

	b.WriteString("Tailor your responses to be appropriate given this information, but maintain a conversational tone.\n")
	b.WriteString("If the user appears to be experiencing a medical emergency, always advise them to seek immediate medical attention.")

	return b.String()
}

// directFallbackPrompt embeds the persona rules inline with only the latest
// user question; conversation history is deliberately dropped.
func directFallbackPrompt(question string) string {
	return strings.Join([]string{
		"You are HealthSparkAI, a friendly and knowledgeable health assistant. Please respond to the following health question:",
		"",
		"USER QUESTION: " + question,
		"",
		"Remember:",
		"- Provide evidence-based health information and general wellness advice",
		"- Clarify that you're not a doctor and encourage users to consult healthcare professionals for medical concerns",
		"- Focus on factual information about health topics, lifestyle recommendations, and general wellness tips",
		"- Avoid making definitive diagnoses or recommending specific treatments",
		"- Be empathetic, clear, and thoughtful in your response, using simple language",
	}, "\n")
}

func analysisPrompt(query string) string {
	return strings.Join([]string{
		"You are a health analysis assistant. Extract key health information and intent from the user's query.",
		"Return your analysis as structured JSON with the following format:",
		"{",
		`  "intent": "diagnosis|information|advice|emergency|other",`,
		`  "healthConcern": "main health topic or condition mentioned",`,
		`  "symptoms": ["list of symptoms mentioned"],`,
		`  "relevantFactors": ["list of relevant contextual factors"],`,
		`  "urgencyLevel": "low|medium|high|emergency",`,
		`  "recommendedTopics": ["list of topics that might be helpful to discuss"]`,
		"}",
		"",
		"User query: " + query,
		"",
		"Return only valid JSON with no additional text.",
	}, "\n")
}

// systemPrefixedTurn folds the system instruction into the first user turn,
// since the generation backend has no native system-turn concept.
func systemPrefixedTurn(system, content string) string {
	return fmt.Sprintf("Context for AI assistant: %s\n\nUser message: %s", system, content)
}

func textOrNotProvided(value *string) string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return "Not provided"
	}
	return strings.TrimSpace(*value)
}

func intOrNotProvided(value *int) string {
	if value == nil {
		return "Not provided"
	}
	return strconv.Itoa(*value)
}

func floatOrNotProvided(value *float64) string {
	if value == nil {
		return "Not provided"
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func measurementOrNotProvided(value *float64, unit string) string {
	if value == nil {
		return "Not provided"
	}
	return strconv.FormatFloat(*value, 'f', -1, 64) + " " + unit
}

func listOrNoneReported(items []string) string {
	filtered := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}
	if len(filtered) == 0 {
		return "None reported"
	}
	return strings.Join(filtered, ", ")
}

func medicationsOrNoneReported(medications []Medication) string {
	entries := make([]string, 0, len(medications))
	for _, med := range medications {
		name := strings.TrimSpace(med.Name)
		if name == "" {
			continue
		}
		entries = append(entries, fmt.Sprintf("%s (%s, %s)", name, strings.TrimSpace(med.Dosage), strings.TrimSpace(med.Frequency)))
	}
	if len(entries) == 0 {
		return "None reported"
	}
	return strings.Join(entries, ", ")
}
