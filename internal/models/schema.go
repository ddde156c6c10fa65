package models

// FieldType enumerates the supported form field kinds.
type FieldType string

const (
	FieldScore5          FieldType = "score5"
	FieldScore10         FieldType = "score10"
	FieldYesNo           FieldType = "yesNo"
	FieldText            FieldType = "text"
	FieldTextarea        FieldType = "textarea"
	FieldRadio           FieldType = "radio"
	FieldCheckbox        FieldType = "checkbox"
	FieldGroup           FieldType = "group"
	FieldDynamicListItem FieldType = "dynamicListItem"
)

// FieldOwnership determines which role family may fill a field and in which
// lifecycle state.
type FieldOwnership string

const (
	// OwnerEvaluator fields are filled by teacher/admin while authoring.
	OwnerEvaluator FieldOwnership = "evaluator"
	// OwnerSelfReport fields are filled by the student after grading handoff.
	OwnerSelfReport FieldOwnership = "self_report"
)

// FormField declares a single form input.
type FormField struct {
	ID        string         `json:"id"`
	Label     string         `json:"label"`
	Type      FieldType      `json:"type"`
	Ownership FieldOwnership `json:"ownership"`
	Required  bool           `json:"required"`
	Options   []string       `json:"options,omitempty"`
	SubFields []FormField    `json:"sub_fields,omitempty"`
}

// FormSection groups fields under a titled block.
type FormSection struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Fields []FormField `json:"fields"`
}

// FormSchema is the declarative, versioned definition of one form type.
// Field ids are unique within a schema. The workflow engine treats schemas
// as read-only input.
type FormSchema struct {
	FormTypeID string        `json:"form_type_id"`
	Title      string        `json:"title"`
	Version    int           `json:"version"`
	Sections   []FormSection `json:"sections"`
}

// Field returns the field declaration for the given id, searching group
// sub-fields as well.
func (s *FormSchema) Field(id string) (*FormField, bool) {
	for si := range s.Sections {
		if f, ok := findField(s.Sections[si].Fields, id); ok {
			return f, true
		}
	}
	return nil, false
}

// Fields returns every field in declaration order, flattening groups.
func (s *FormSchema) Fields() []FormField {
	var out []FormField
	for _, section := range s.Sections {
		out = appendFields(out, section.Fields)
	}
	return out
}

func findField(fields []FormField, id string) (*FormField, bool) {
	for i := range fields {
		if fields[i].ID == id {
			return &fields[i], true
		}
		if len(fields[i].SubFields) > 0 {
			if f, ok := findField(fields[i].SubFields, id); ok {
				return f, true
			}
		}
	}
	return nil, false
}

func appendFields(dst []FormField, fields []FormField) []FormField {
	for _, f := range fields {
		dst = append(dst, f)
		if len(f.SubFields) > 0 {
			dst = appendFields(dst, f.SubFields)
		}
	}
	return dst
}
