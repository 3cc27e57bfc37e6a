package notify

// TemplateVariable is one variable declared by a template, used for
// author-time validation. Required variables must have a marker in the
// template text.
type TemplateVariable struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Template is the content definition for one (type, channel) pair.
// Email templates carry SubjectTemplate, HTMLTemplate and TextTemplate;
// SMS templates carry SMSTemplate. All of them use {{name}} markers.
type Template struct {
	ID              string             `json:"id"`
	Type            NotificationType   `json:"type"`
	Channel         Channel            `json:"channel"`
	SubjectTemplate string             `json:"subject_template,omitempty"`
	HTMLTemplate    string             `json:"html_template,omitempty"`
	TextTemplate    string             `json:"text_template,omitempty"`
	SMSTemplate     string             `json:"sms_template,omitempty"`
	Variables       []TemplateVariable `json:"variables,omitempty"`
}

// ValidationResult reports author-time template validation. Valid is true
// iff Errors is empty.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
