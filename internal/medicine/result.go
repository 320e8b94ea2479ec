package medicine

// Result is one classified answer from the analysis service. Exactly one of
// Medicine and Reply is meaningful, selected by Kind.
type Result struct {
	Kind     Classification `json:"kind"`
	Medicine *Record        `json:"medicine,omitempty"`
	Reply    string         `json:"reply,omitempty"`
}

// IsMedicine reports whether the result carries a medicine record.
func (r Result) IsMedicine() bool {
	return r.Kind == ClassMedicine && r.Medicine != nil
}
