package blog

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FormErrors maps a form field (its json name) to a human readable problem.
type FormErrors map[string]string

func (fe FormErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for field, msg := range fe {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

type CommentForm struct {
	Name  string `json:"name" validate:"required,max=80"`
	Email string `json:"email" validate:"required,email,max=254"`
	Body  string `json:"body" validate:"required"`
}

func commentFormFromValues(v url.Values) CommentForm {
	return CommentForm{
		Name:  v.Get("name"),
		Email: v.Get("email"),
		Body:  v.Get("body"),
	}.trimmed()
}

func (f CommentForm) trimmed() CommentForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Body = strings.TrimSpace(f.Body)
	return f
}

type ShareForm struct {
	Name     string `json:"name" validate:"required,max=25"`
	Email    string `json:"email" validate:"required,email"`
	To       string `json:"to" validate:"required,email"`
	Comments string `json:"comments" validate:"max=3000"`
}

func shareFormFromValues(v url.Values) ShareForm {
	return ShareForm{
		Name:     v.Get("name"),
		Email:    v.Get("email"),
		To:       v.Get("to"),
		Comments: v.Get("comments"),
	}.trimmed()
}

func (f ShareForm) trimmed() ShareForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.To = strings.TrimSpace(f.To)
	f.Comments = strings.TrimSpace(f.Comments)
	return f
}

type SearchForm struct {
	Query string `json:"query" validate:"required,max=200"`
}

// PostForm is the admin payload for a new post.
// Slug defaults to the slugified title, Publish to now.
type PostForm struct {
	Title   string     `json:"title" validate:"required,max=250"`
	Slug    string     `json:"slug" validate:"max=250"`
	Body    string     `json:"body" validate:"required"`
	Publish *time.Time `json:"publish,omitempty"`
	Status  Status     `json:"status" validate:"omitempty,oneof=draft published"`
	Tags    []string   `json:"tags" validate:"dive,required,max=100"`
}

// trimmed keeps the body's markdown as is, unless it is blank.
func (f PostForm) trimmed() PostForm {
	f.Title = strings.TrimSpace(f.Title)
	f.Slug = strings.TrimSpace(f.Slug)
	f.Status = Status(strings.TrimSpace(string(f.Status)))
	if strings.TrimSpace(f.Body) == "" {
		f.Body = ""
	}

	var tags []string
	for _, tag := range f.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	f.Tags = tags
	return f
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateForm returns nil for a valid form.
func validateForm(form any) FormErrors {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return FormErrors{"__all__": err.Error()}
	}

	formErrs := FormErrors{}
	for _, fe := range validationErrs {
		field := fe.Field()
		// dive errors are reported as tags[0], keep the field name
		if i := strings.IndexByte(field, '['); i > 0 {
			field = field[:i]
		}
		if _, ok := formErrs[field]; ok {
			continue
		}
		formErrs[field] = fieldErrorMessage(fe)
	}
	return formErrs
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "oneof":
		return "Select a valid choice."
	default:
		return fmt.Sprintf("Invalid value (%s).", fe.Tag())
	}
}
