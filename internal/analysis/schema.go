package analysis

import "google.golang.org/genai"

// Response schema property names.
const (
	fieldPromptType           = "prompt_type"
	fieldConversationResponse = "conversation_response"
	fieldMedicineData         = "medicine_data"
)

var optionalMedicineFields = []struct {
	name        string
	description string
}{
	{"sideEffects", "Possible side effects"},
	{"contraindications", "Contraindications for the medicine"},
	{"pharmacokinetics", "Pharmacokinetics of the medicine"},
	{"warnings", "Warnings associated with the medicine"},
	{"dosage", "Recommended dosage"},
	{"interactions", "Drug interactions"},
	{"indications", "Indications for the medicine"},
	{"mechanismOfAction", "Mechanism of action of the medicine"},
	{"administrationRoute", "Route of administration"},
	{"storage", "Storage instructions"},
	{"overdose", "Overdose information"},
	{"precautions", "Precautions to take"},
	{"adverseReactions", "Adverse reactions"},
}

// ResponseSchema declares the JSON object the service must return.
func ResponseSchema() *genai.Schema {
	medicine := map[string]*genai.Schema{
		"name": {
			Type:        genai.TypeString,
			Description: "Name of the medicine",
			Nullable:    genai.Ptr(false),
		},
		"description": {
			Type:        genai.TypeString,
			Description: "Description of the medicine",
			Nullable:    genai.Ptr(false),
		},
	}
	for _, f := range optionalMedicineFields {
		medicine[f.name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: f.description,
			Nullable:    genai.Ptr(true),
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			fieldPromptType: {
				Type:        genai.TypeString,
				Description: `Type of the prompt: either "medicine" or "conversation"`,
				Nullable:    genai.Ptr(false),
			},
			fieldConversationResponse: {
				Type:        genai.TypeString,
				Description: "Response to the conversation prompt",
				Nullable:    genai.Ptr(true),
			},
			fieldMedicineData: {
				Type:        genai.TypeObject,
				Description: "Detailed information about the medicine",
				Nullable:    genai.Ptr(true),
				Properties:  medicine,
				Required:    []string{"name", "description"},
			},
		},
		Required: []string{fieldPromptType, fieldConversationResponse},
	}
}
