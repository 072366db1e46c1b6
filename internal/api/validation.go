package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxURLLength matches the longest URL common browsers accept.
const maxURLLength = 2083

type summaryCreateRequest struct {
	URL *string `json:"url" validate:"required,max=2083,httpurl"`
}

type summaryUpdateRequest struct {
	URL     *string `json:"url" validate:"required,max=2083,httpurl"`
	Summary *string `json:"summary" validate:"required"`
}

// fieldError is one entry of a 422 response body.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type validationError struct {
	Detail []fieldError `json:"detail"`
}

func (e *validationError) Error() string {
	parts := make([]string, 0, len(e.Detail))
	for _, d := range e.Detail {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(d.Loc, "."), d.Msg))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		return urlProblem(fl.Field().String()) == nil
	}); err != nil {
		panic(fmt.Sprintf("register httpurl validation: %v", err))
	}
	return validate
}

// urlProblem returns nil for an absolute http or https URL with a host.
func urlProblem(raw string) *fieldError {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return &fieldError{Msg: "Input should be a valid URL, relative URL without a base", Type: "url_parsing"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &fieldError{Msg: "URL scheme should be 'http' or 'https'", Type: "url_scheme"}
	}
	if u.Host == "" {
		return &fieldError{Msg: "Input should be a valid URL, empty host", Type: "url_parsing"}
	}
	return nil
}

// decodeBody reads JSON from body into dst and validates it.
func decodeBody(body io.Reader, validate *validator.Validate, dst any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return decodeProblem(err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return translate(verrs)
		}
		return fmt.Errorf("validate request: %w", err)
	}
	return nil
}

func decodeProblem(err error) *validationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &validationError{Detail: []fieldError{{
			Loc:  []string{"body", typeErr.Field},
			Msg:  "Input should be a valid " + typeErr.Type.Kind().String(),
			Type: typeErr.Type.Kind().String() + "_type",
		}}}
	}
	if errors.Is(err, io.EOF) {
		return &validationError{Detail: []fieldError{{Loc: []string{"body"}, Msg: "Field required", Type: "missing"}}}
	}
	return &validationError{Detail: []fieldError{{
		Loc:  []string{"body"},
		Msg:  "JSON decode error",
		Type: "json_invalid",
	}}}
}

func translate(errs validator.ValidationErrors) *validationError {
	out := &validationError{Detail: make([]fieldError, 0, len(errs))}
	for _, fe := range errs {
		entry := fieldError{Loc: []string{"body", fe.Field()}}
		switch fe.Tag() {
		case "required":
			entry.Msg, entry.Type = "Field required", "missing"
		case "max":
			entry.Msg = fmt.Sprintf("URL should have at most %d characters", maxURLLength)
			entry.Type = "url_too_long"
		case "httpurl":
			problem := urlProblem(stringValue(fe.Value()))
			if problem == nil {
				problem = &fieldError{Msg: "Input should be a valid URL", Type: "url_parsing"}
			}
			entry.Msg, entry.Type = problem.Msg, problem.Type
		default:
			entry.Msg, entry.Type = fmt.Sprintf("%s is invalid", fe.Field()), fe.Tag()
		}
		out.Detail = append(out.Detail, entry)
	}
	return out
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case *string:
		if s != nil {
			return *s
		}
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// parseID validates a positive integer path id.
func parseID(raw string) (int64, *validationError) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &validationError{Detail: []fieldError{{
			Loc:  []string{"path", "id"},
			Msg:  "Input should be a valid integer, unable to parse string as an integer",
			Type: "int_parsing",
		}}}
	}
	if id <= 0 {
		return 0, &validationError{Detail: []fieldError{{
			Loc:  []string{"path", "id"},
			Msg:  "Input should be greater than 0",
			Type: "greater_than",
		}}}
	}
	return id, nil
}
