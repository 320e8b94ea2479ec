// Package medicine holds the data shapes returned by the analysis service and the
// fixed display rule used by every front-end.
package medicine

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Classification tags how a service reply should be interpreted.
type Classification string

const (
	ClassMedicine     Classification = "medicine"
	ClassConversation Classification = "conversation"
)

// Record is the structured answer for a medicine query. Empty strings mean absent.
type Record struct {
	Name                string `json:"name,omitempty"`
	Description         string `json:"description,omitempty"`
	SideEffects         string `json:"sideEffects,omitempty"`
	Contraindications   string `json:"contraindications,omitempty"`
	Pharmacokinetics    string `json:"pharmacokinetics,omitempty"`
	Warnings            string `json:"warnings,omitempty"`
	Dosage              string `json:"dosage,omitempty"`
	Interactions        string `json:"interactions,omitempty"`
	Indications         string `json:"indications,omitempty"`
	MechanismOfAction   string `json:"mechanismOfAction,omitempty"`
	AdministrationRoute string `json:"administrationRoute,omitempty"`
	Storage             string `json:"storage,omitempty"`
	Overdose            string `json:"overdose,omitempty"`
	Precautions         string `json:"precautions,omitempty"`
	AdverseReactions    string `json:"adverseReactions,omitempty"`

	// Raw is the object exactly as the service returned it.
	Raw json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the raw value alongside the decoded fields and never
// fails on value types. Strings are taken as they are, nulls are absent, arrays
// are joined and any other value keeps its JSON text. A value that is not an
// object decodes to an empty record whose Raw carries it.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{Raw: append(json.RawMessage(nil), data...)}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	targets := r.targets()
	for key, value := range obj {
		if dst, ok := targets[key]; ok {
			*dst = TextOf(value)
		}
	}
	return nil
}

func (r *Record) targets() map[string]*string {
	return map[string]*string{
		"name":                &r.Name,
		"description":         &r.Description,
		"sideEffects":         &r.SideEffects,
		"contraindications":   &r.Contraindications,
		"pharmacokinetics":    &r.Pharmacokinetics,
		"warnings":            &r.Warnings,
		"dosage":              &r.Dosage,
		"interactions":        &r.Interactions,
		"indications":         &r.Indications,
		"mechanismOfAction":   &r.MechanismOfAction,
		"administrationRoute": &r.AdministrationRoute,
		"storage":             &r.Storage,
		"overdose":            &r.Overdose,
		"precautions":         &r.Precautions,
		"adverseReactions":    &r.AdverseReactions,
	}
}

// TextOf renders one JSON value as display text: strings as they are, null as
// empty, array elements joined by ", " and anything else as compact JSON.
func TextOf(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if text := TextOf(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

// Empty reports whether no field carries a value.
func (r *Record) Empty() bool {
	if r == nil {
		return true
	}
	for _, f := range r.fields() {
		if strings.TrimSpace(f.value) != "" {
			return false
		}
	}
	return true
}

type field struct {
	label string
	value string
}

func (r *Record) fields() []field {
	return []field{
		{"Name", r.Name},
		{"Description", r.Description},
		{"Side Effects", r.SideEffects},
		{"Contraindications", r.Contraindications},
		{"Pharmacokinetics", r.Pharmacokinetics},
		{"Warnings", r.Warnings},
		{"Dosage", r.Dosage},
		{"Interactions", r.Interactions},
		{"Indications", r.Indications},
		{"Mechanism of Action", r.MechanismOfAction},
		{"Administration Route", r.AdministrationRoute},
		{"Storage", r.Storage},
		{"Overdose", r.Overdose},
		{"Precautions", r.Precautions},
		{"Adverse Reactions", r.AdverseReactions},
	}
}

// Section is one labeled block of a rendered record.
type Section struct {
	Label string `json:"label"`
	Body  string `json:"body"`
}

// FallbackLabel heads the raw section shown when name and description are both absent.
const FallbackLabel = "Medicine Data"

// Sections applies the display rule: Name, Description, Indications, Mechanism of
// Action, Administration Route, Storage, Overdose, Precautions, Adverse Reactions.
// Absent fields are omitted.
func (r *Record) Sections() []Section {
	if r == nil {
		return []Section{{Label: FallbackLabel, Body: "null"}}
	}

	out := make([]Section, 0, 9)
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			out = append(out, Section{Label: label, Body: value})
		}
	}

	if strings.TrimSpace(r.Name) == "" && strings.TrimSpace(r.Description) == "" {
		out = append(out, Section{Label: FallbackLabel, Body: r.rawText()})
	} else {
		add("Name", r.Name)
		add("Description", r.Description)
	}
	add("Indications", r.Indications)
	add("Mechanism of Action", r.MechanismOfAction)
	add("Administration Route", r.AdministrationRoute)
	add("Storage", r.Storage)
	add("Overdose", r.Overdose)
	add("Precautions", r.Precautions)
	add("Adverse Reactions", r.AdverseReactions)
	return out
}

func (r *Record) rawText() string {
	if len(r.Raw) > 0 {
		var s string
		if err := json.Unmarshal(r.Raw, &s); err == nil {
			return s
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, r.Raw, "", "  "); err == nil {
			return buf.String()
		}
		return string(r.Raw)
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
