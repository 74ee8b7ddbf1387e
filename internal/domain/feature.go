// Package domain holds the clinical feature schema, the prediction types derived from it
// and the error taxonomy shared by every layer.
package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FieldKind describes how a feature is encoded for the classifier.
type FieldKind string

const (
	Numeric     FieldKind = "numeric"
	Binary      FieldKind = "binary"
	Categorical FieldKind = "categorical"
)

// MaxNoteLength bounds the optional free-text note, in characters.
const MaxNoteLength = 500

// Option is one allowed value of a binary or categorical field.
type Option struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// Field is one row of the constraint table.
type Field struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Description string    `json:"description"`
	Kind        FieldKind `json:"type"`
	Min         *int      `json:"min,omitempty"`
	Max         *int      `json:"max,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	Options     []Option  `json:"options,omitempty"`
}

// Allows reports whether v satisfies the field's range or value set.
func (f Field) Allows(v int) bool {
	if f.Kind == Numeric {
		return v >= *f.Min && v <= *f.Max
	}
	for _, o := range f.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// Values lists the allowed values of a binary or categorical field.
func (f Field) Values() []int {
	out := make([]int, 0, len(f.Options))
	for _, o := range f.Options {
		out = append(out, o.Value)
	}
	return out
}

func (f Field) constraint() string {
	if f.Kind == Numeric {
		return fmt.Sprintf("must be an integer between %d and %d", *f.Min, *f.Max)
	}
	vals := make([]string, 0, len(f.Options))
	for _, o := range f.Options {
		vals = append(vals, fmt.Sprint(o.Value))
	}
	return "must be one of " + strings.Join(vals, ", ")
}

func intp(v int) *int { return &v }

// Schema is the constraint table, in classifier input order.
var Schema = []Field{
	{Name: "age", Label: "Age", Description: "Patient age in years", Kind: Numeric, Min: intp(1), Max: intp(120), Unit: "years"},
	{Name: "sex", Label: "Sex", Description: "Biological sex", Kind: Binary, Options: []Option{
		{0, "Female"}, {1, "Male"},
	}},
	{Name: "cp", Label: "Chest Pain Type", Description: "Type of chest pain experienced", Kind: Categorical, Options: []Option{
		{0, "Typical Angina"}, {1, "Atypical Angina"}, {2, "Non-Anginal Pain"}, {3, "Asymptomatic"},
	}},
	{Name: "trtbps", Label: "Resting Blood Pressure", Description: "Resting blood pressure in mm Hg on admission", Kind: Numeric, Min: intp(50), Max: intp(250), Unit: "mm Hg"},
	{Name: "chol", Label: "Cholesterol", Description: "Serum cholesterol level", Kind: Numeric, Min: intp(80), Max: intp(700), Unit: "mg/dl"},
	{Name: "fbs", Label: "Fasting Blood Sugar", Description: "Fasting blood sugar > 120 mg/dl", Kind: Binary, Options: []Option{
		{0, "No (<=120 mg/dl)"}, {1, "Yes (>120 mg/dl)"},
	}},
	{Name: "restecg", Label: "Resting ECG", Description: "Resting electrocardiographic results", Kind: Categorical, Options: []Option{
		{0, "Normal"}, {1, "ST-T Wave Abnormality"}, {2, "Left Ventricular Hypertrophy"},
	}},
	{Name: "thalachh", Label: "Max Heart Rate", Description: "Maximum heart rate achieved during exercise", Kind: Numeric, Min: intp(50), Max: intp(250), Unit: "bpm"},
	{Name: "exng", Label: "Exercise-Induced Angina", Description: "Exercise-induced chest pain", Kind: Binary, Options: []Option{
		{0, "No"}, {1, "Yes"},
	}},
	{Name: "ca", Label: "Major Vessels", Description: "Number of major vessels colored by fluoroscopy", Kind: Categorical, Options: []Option{
		{0, "0 vessels"}, {1, "1 vessel"}, {2, "2 vessels"}, {3, "3 vessels"},
	}},
}

// FieldNames returns the schema field names in order.
func FieldNames() []string {
	out := make([]string, len(Schema))
	for i, f := range Schema {
		out[i] = f.Name
	}
	return out
}

// FieldsOfKind returns the names of every field of the given kind, in schema order.
func FieldsOfKind(kind FieldKind) []string {
	var out []string
	for _, f := range Schema {
		if f.Kind == kind {
			out = append(out, f.Name)
		}
	}
	return out
}

// LookupField finds a schema row by name.
func LookupField(name string) (Field, bool) {
	for _, f := range Schema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FeatureVector is one patient's validated clinical input.
type FeatureVector struct {
	Age      int `json:"age"`
	Sex      int `json:"sex"`
	CP       int `json:"cp"`
	Trtbps   int `json:"trtbps"`
	Chol     int `json:"chol"`
	FBS      int `json:"fbs"`
	RestECG  int `json:"restecg"`
	Thalachh int `json:"thalachh"`
	Exng     int `json:"exng"`
	CA       int `json:"ca"`
}

// Get returns the value of the named field.
func (v FeatureVector) Get(name string) (int, bool) {
	switch name {
	case "age":
		return v.Age, true
	case "sex":
		return v.Sex, true
	case "cp":
		return v.CP, true
	case "trtbps":
		return v.Trtbps, true
	case "chol":
		return v.Chol, true
	case "fbs":
		return v.FBS, true
	case "restecg":
		return v.RestECG, true
	case "thalachh":
		return v.Thalachh, true
	case "exng":
		return v.Exng, true
	case "ca":
		return v.CA, true
	}
	return 0, false
}

func (v *FeatureVector) set(name string, val int) {
	switch name {
	case "age":
		v.Age = val
	case "sex":
		v.Sex = val
	case "cp":
		v.CP = val
	case "trtbps":
		v.Trtbps = val
	case "chol":
		v.Chol = val
	case "fbs":
		v.FBS = val
	case "restecg":
		v.RestECG = val
	case "thalachh":
		v.Thalachh = val
	case "exng":
		v.Exng = val
	case "ca":
		v.CA = val
	}
}

// Map returns the vector keyed by field name.
func (v FeatureVector) Map() map[string]int {
	out := make(map[string]int, len(Schema))
	for _, f := range Schema {
		out[f.Name], _ = v.Get(f.Name)
	}
	return out
}

// Validate checks every field against the constraint table.
func (v FeatureVector) Validate() error {
	verr := NewValidationError()
	for _, f := range Schema {
		val, _ := v.Get(f.Name)
		if !f.Allows(val) {
			verr.Add(f.Name, f.constraint())
		}
	}
	return verr.Err()
}

// FeatureVectorFromMap builds and validates a vector from name/value pairs.
func FeatureVectorFromMap(vals map[string]int) (FeatureVector, error) {
	fv, err := FeatureVectorFromValues(vals)
	if err != nil {
		return FeatureVector{}, err
	}
	return fv, fv.Validate()
}

// FeatureVectorFromValues builds a vector from name/value pairs. Every field must be
// present; values are not range checked.
func FeatureVectorFromValues(vals map[string]int) (FeatureVector, error) {
	var fv FeatureVector
	verr := NewValidationError()
	for _, f := range Schema {
		v, ok := vals[f.Name]
		if !ok {
			verr.Add(f.Name, "field required")
			continue
		}
		fv.set(f.Name, v)
	}
	if err := verr.Err(); err != nil {
		return FeatureVector{}, err
	}
	return fv, nil
}

// RawInput is the unvalidated request form: nil means the field was absent.
type RawInput struct {
	Age      *int    `json:"age"`
	Sex      *int    `json:"sex"`
	CP       *int    `json:"cp"`
	Trtbps   *int    `json:"trtbps"`
	Chol     *int    `json:"chol"`
	FBS      *int    `json:"fbs"`
	RestECG  *int    `json:"restecg"`
	Thalachh *int    `json:"thalachh"`
	Exng     *int    `json:"exng"`
	CA       *int    `json:"ca"`
	Note     *string `json:"note"`
}

func (r RawInput) field(name string) *int {
	switch name {
	case "age":
		return r.Age
	case "sex":
		return r.Sex
	case "cp":
		return r.CP
	case "trtbps":
		return r.Trtbps
	case "chol":
		return r.Chol
	case "fbs":
		return r.FBS
	case "restecg":
		return r.RestECG
	case "thalachh":
		return r.Thalachh
	case "exng":
		return r.Exng
	case "ca":
		return r.CA
	}
	return nil
}

// Parse validates r and returns the feature vector and optional note.
// Every failing field is reported, not only the first.
func (r RawInput) Parse() (FeatureVector, *string, error) {
	var fv FeatureVector
	verr := NewValidationError()

	for _, f := range Schema {
		p := r.field(f.Name)
		if p == nil {
			verr.Add(f.Name, "field required")
			continue
		}
		if !f.Allows(*p) {
			verr.Add(f.Name, f.constraint())
			continue
		}
		fv.set(f.Name, *p)
	}

	var note *string
	if r.Note != nil {
		n := NormalizeNote(*r.Note)
		if utf8.RuneCountInString(n) > MaxNoteLength {
			verr.Add("note", fmt.Sprintf("must be at most %d characters", MaxNoteLength))
		} else {
			note = &n
		}
	}

	if err := verr.Err(); err != nil {
		return FeatureVector{}, nil, err
	}
	return fv, note, nil
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNote converts CRLF and lone CR line breaks to LF, the form a CSV reader
// returns them in.
func NormalizeNote(s string) string {
	return lineBreaks.Replace(s)
}
