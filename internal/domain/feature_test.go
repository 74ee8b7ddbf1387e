package domain

import (
	"errors"
	"strings"
	"testing"
)

func ip(v int) *int { return &v }

func exampleInput() RawInput {
	return RawInput{
		Age: ip(55), Sex: ip(1), CP: ip(2), Trtbps: ip(130), Chol: ip(250),
		FBS: ip(0), RestECG: ip(1), Thalachh: ip(150), Exng: ip(0), CA: ip(1),
	}
}

func TestParse_Example(t *testing.T) {
	fv, note, err := exampleInput().Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if note != nil {
		t.Fatalf("expected no note, got %q", *note)
	}
	want := FeatureVector{Age: 55, Sex: 1, CP: 2, Trtbps: 130, Chol: 250, FBS: 0, RestECG: 1, Thalachh: 150, Exng: 0, CA: 1}
	if fv != want {
		t.Fatalf("got %+v, want %+v", fv, want)
	}
}

func TestParse_CategoryOutOfRange(t *testing.T) {
	in := exampleInput()
	in.CP = ip(9)

	_, _, err := in.Parse()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if _, ok := verr.Fields["cp"]; !ok {
		t.Fatalf("expected field error on cp, got %v", verr.Fields)
	}
	if len(verr.Fields) != 1 {
		t.Fatalf("expected only cp to fail, got %v", verr.Fields)
	}
	if KindOf(err) != KindValidation {
		t.Fatalf("expected kind %q, got %q", KindValidation, KindOf(err))
	}
}

func TestParse_MissingFields(t *testing.T) {
	in := exampleInput()
	in.Age = nil
	in.CA = nil

	_, _, err := in.Parse()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	for _, name := range []string{"age", "ca"} {
		if verr.Fields[name] != "field required" {
			t.Errorf("expected %s to be required, got %q", name, verr.Fields[name])
		}
	}
}

func TestParse_NumericBounds(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*RawInput)
		valid bool
	}{
		{"age min", func(r *RawInput) { r.Age = ip(1) }, true},
		{"age below min", func(r *RawInput) { r.Age = ip(0) }, false},
		{"age max", func(r *RawInput) { r.Age = ip(120) }, true},
		{"age above max", func(r *RawInput) { r.Age = ip(121) }, false},
		{"chol max", func(r *RawInput) { r.Chol = ip(700) }, true},
		{"chol above max", func(r *RawInput) { r.Chol = ip(701) }, false},
		{"trtbps below min", func(r *RawInput) { r.Trtbps = ip(49) }, false},
		{"thalachh min", func(r *RawInput) { r.Thalachh = ip(50) }, true},
		{"sex two", func(r *RawInput) { r.Sex = ip(2) }, false},
		{"restecg two", func(r *RawInput) { r.RestECG = ip(2) }, true},
		{"restecg three", func(r *RawInput) { r.RestECG = ip(3) }, false},
		{"ca negative", func(r *RawInput) { r.CA = ip(-1) }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := exampleInput()
			tc.mut(&in)
			_, _, err := in.Parse()
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParse_Note(t *testing.T) {
	in := exampleInput()
	note := strings.Repeat("é", MaxNoteLength)
	in.Note = &note

	_, got, err := in.Parse()
	if err != nil {
		t.Fatalf("500 characters should be accepted: %v", err)
	}
	if got == nil || *got != note {
		t.Fatal("expected note to be returned")
	}

	long := note + "x"
	in.Note = &long
	_, _, err = in.Parse()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["note"] == "" {
		t.Fatalf("expected note error, got %v", err)
	}
}

func TestFeatureVector_ValidateAndMap(t *testing.T) {
	fv := FeatureVector{Age: 55, Sex: 1, CP: 2, Trtbps: 130, Chol: 250, RestECG: 1, Thalachh: 150, CA: 1}
	if err := fv.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m := fv.Map()
	if len(m) != len(Schema) {
		t.Fatalf("expected %d entries, got %d", len(Schema), len(m))
	}
	if m["thalachh"] != 150 || m["cp"] != 2 {
		t.Fatalf("unexpected map: %v", m)
	}

	fv.Trtbps = 10
	if err := fv.Validate(); err == nil {
		t.Fatal("expected trtbps to fail")
	}
}

func TestSchema_Kinds(t *testing.T) {
	if got := strings.Join(FieldsOfKind(Numeric), ","); got != "age,trtbps,chol,thalachh" {
		t.Errorf("numeric fields = %s", got)
	}
	if got := strings.Join(FieldsOfKind(Categorical), ","); got != "cp,restecg,ca" {
		t.Errorf("categorical fields = %s", got)
	}
	if got := strings.Join(FieldsOfKind(Binary), ","); got != "sex,fbs,exng" {
		t.Errorf("binary fields = %s", got)
	}
}

func TestParse_NoteLineBreaks(t *testing.T) {
	in := exampleInput()
	note := "line one\r\nline two\rline three"
	in.Note = &note

	_, got, err := in.Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected note to be returned")
	}
	if *got != "line one\nline two\nline three" {
		t.Fatalf("expected LF line breaks, got %q", *got)
	}
}

func TestFeatureVectorFromValues_NoRangeCheck(t *testing.T) {
	vals := exampleInput()
	m := map[string]int{}
	for _, f := range Schema {
		m[f.Name] = *vals.field(f.Name)
	}
	m["ca"] = 4

	fv, err := FeatureVectorFromValues(m)
	if err != nil || fv.CA != 4 {
		t.Fatalf("expected ca=4 to be kept, got %+v, %v", fv, err)
	}
	if _, err := FeatureVectorFromMap(m); err == nil {
		t.Fatal("expected FeatureVectorFromMap to reject ca=4")
	}

	delete(m, "age")
	if _, err := FeatureVectorFromValues(m); err == nil {
		t.Fatal("expected missing age to be rejected")
	}
}
