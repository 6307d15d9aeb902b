package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// StringList decodes from a JSON array of strings or a comma separated string.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*l = nil
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*l = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected an array of strings or a comma separated string")
	}
	*l = strings.Split(s, ",")
	return nil
}

type ProjectInput struct {
	Title       string     `json:"title" validate:"min=3,max=140"`
	Pitch       string     `json:"pitch" validate:"min=10,max=2000"`
	ProjectType string     `json:"project_type" validate:"max=64"`
	Skills      StringList `json:"skills" validate:"max=32,dive,min=1,max=64"`
}

type ProjectUpdate struct {
	Title       *string    `json:"title" validate:"omitempty,min=3,max=140"`
	Pitch       *string    `json:"pitch" validate:"omitempty,min=10,max=2000"`
	ProjectType *string    `json:"project_type" validate:"omitempty,max=64"`
	Skills      StringList `json:"skills" validate:"omitempty,max=32,dive,min=1,max=64"`
	Status      *string    `json:"status" validate:"omitempty,oneof=active archived"`
}

type ProfileInput struct {
	DisplayName           string     `json:"display_name" validate:"min=1,max=64"`
	Handle                string     `json:"handle" validate:"min=1,max=64"`
	Bio                   string     `json:"bio" validate:"max=2000"`
	Skills                StringList `json:"skills" validate:"max=50,dive,min=1,max=64"`
	ProjectTypes          StringList `json:"project_types" validate:"max=50,dive,min=1,max=64"`
	AvailabilityHoursWeek *int       `json:"availability_hours_week" validate:"omitempty,min=0,max=168"`
}

type InterestInput struct {
	Message string `json:"message" validate:"max=1000"`
}

type InterestStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=pending accepted dismissed"`
}

// ValidationError lists invalid fields by JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (in *ProjectInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Pitch = strings.TrimSpace(in.Pitch)
	in.ProjectType = strings.TrimSpace(in.ProjectType)
	in.Skills = cleanList(in.Skills)
}

func (in *ProjectUpdate) Normalize() {
	trimPtr(in.Title)
	trimPtr(in.Pitch)
	trimPtr(in.ProjectType)
	if in.Skills != nil {
		in.Skills = cleanList(in.Skills)
		if in.Skills == nil {
			in.Skills = StringList{}
		}
	}
}

func (in *InterestInput) Normalize() {
	in.Message = strings.TrimSpace(in.Message)
}

func (in *InterestStatusUpdate) Normalize() {
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
}

func (in *ProfileInput) Normalize() {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Handle = strings.TrimPrefix(strings.TrimSpace(in.Handle), "@")
	in.Skills = cleanList(in.Skills)
	in.ProjectTypes = cleanList(in.ProjectTypes)
}

// ValidateProject normalizes and validates in.
func ValidateProject(in *ProjectInput) error {
	in.Normalize()
	return check(in)
}

func ValidateProjectUpdate(in *ProjectUpdate) error {
	in.Normalize()
	return check(in)
}

func ValidateProfile(in *ProfileInput) error {
	in.Normalize()
	return check(in)
}

func ValidateInterest(in *InterestInput) error {
	in.Normalize()
	return check(in)
}

func ValidateInterestStatus(in *InterestStatusUpdate) error {
	in.Normalize()
	return check(in)
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		// Element errors ("skills[3]") are reported on the list.
		if i := strings.IndexByte(name, '['); i > 0 {
			name = name[:i]
		}
		if _, seen := fields[name]; !seen {
			fields[name] = describe(fe)
		}
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	var unit string
	switch fe.Kind() {
	case reflect.String:
		unit = " characters"
	case reflect.Slice:
		unit = " items"
	}
	switch fe.Tag() {
	case "min":
		return "must be at least " + fe.Param() + unit
	case "max":
		return "must be at most " + fe.Param() + unit
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "invalid"
}

// cleanList trims entries, drops empty ones and removes case-insensitive
// duplicates, keeping first spelling.
func cleanList(in []string) StringList {
	var out StringList
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
