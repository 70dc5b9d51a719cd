package validation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// RequestValidator checks incoming requests against an OpenAPI 3 document.
type RequestValidator struct {
	doc           *openapi3.T
	router        routers.Router
	bodyMediaType string
}

// ValidatorOption configures a RequestValidator.
type ValidatorOption func(*RequestValidator)

// WithBodyMediaType validates every body as if it had been sent with the
// given media type, whatever Content-Type the client declared. Use it for
// operations whose body is opaque text.
func WithBodyMediaType(mediaType string) ValidatorOption {
	return func(v *RequestValidator) {
		v.bodyMediaType = mediaType
	}
}

// NewRequestValidator validates doc and builds a router over its paths.
func NewRequestValidator(ctx context.Context, doc *openapi3.T, opts ...ValidatorOption) (*RequestValidator, error) {
	if doc == nil {
		return nil, errors.New("openapi document is required")
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	v := &RequestValidator{doc: doc, router: router}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Document returns the document the validator was built from.
func (v *RequestValidator) Document() *openapi3.T {
	return v.doc
}

// Validate checks r's parameters and the already-read body against the
// matching operation. r is left untouched. The returned query carries the
// values the client sent plus the defaults declared for missing parameters.
func (v *RequestValidator) Validate(r *http.Request, body []byte) (url.Values, *Result) {
	result := &Result{Valid: true}

	req := r.Clone(r.Context())
	u := *r.URL
	req.URL = &u
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = nil
	req.ContentLength = int64(len(body))
	if v.bodyMediaType != "" {
		req.Header.Set("Content-Type", v.bodyMediaType)
	}

	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		result.AddError(&FieldError{
			Loc:  []string{LocationPath},
			Msg:  fmt.Sprintf("no matching operation: %s", err.Error()),
			Type: ErrTypeValue,
		})
		return r.URL.Query(), result
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    req,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			MultiError:         true,
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}

	if err := openapi3filter.ValidateRequest(req.Context(), input); err != nil {
		parseValidationErrors(err, nil, result)
	}

	return req.URL.Query(), result
}

// parseValidationErrors converts kin-openapi errors to FieldErrors.
func parseValidationErrors(err error, loc []string, result *Result) {
	if err == nil {
		return
	}

	switch e := err.(type) {
	case openapi3.MultiError:
		for _, inner := range e {
			parseValidationErrors(inner, loc, result)
		}

	case *openapi3filter.RequestError:
		switch {
		case e.Parameter != nil:
			loc = []string{e.Parameter.In, e.Parameter.Name}
		case e.RequestBody != nil:
			loc = []string{LocationBody}
		}
		if e.Err == nil {
			result.AddError(&FieldError{Loc: loc, Msg: e.Reason, Type: ErrTypeValue})
			return
		}
		if errors.Is(e.Err, openapi3filter.ErrInvalidRequired) || errors.Is(e.Err, openapi3filter.ErrInvalidEmptyValue) {
			result.AddError(NewMissingError(loc...))
			return
		}
		parseValidationErrors(e.Err, loc, result)

	case *openapi3.SchemaError:
		result.AddError(schemaFieldError(e, loc))

	case *openapi3filter.ParseError:
		result.AddError(&FieldError{Loc: loc, Msg: e.Error(), Type: ErrTypeValue, Input: e.Value})

	case *openapi3filter.SecurityRequirementsError:
		result.AddError(&FieldError{Loc: []string{LocationHeader}, Msg: e.Error(), Type: ErrTypeValue})

	default:
		result.AddError(&FieldError{Loc: loc, Msg: err.Error(), Type: ErrTypeValue})
	}
}

func schemaFieldError(e *openapi3.SchemaError, loc []string) *FieldError {
	fe := &FieldError{
		Loc:   appendPointer(loc, e.JSONPointer()),
		Msg:   e.Reason,
		Type:  ErrTypeValue,
		Input: e.Value,
	}

	switch e.SchemaField {
	case "enum":
		fe.Type = ErrTypeEnum
		if e.Schema != nil {
			fe.Msg = enumMessage(e.Schema.Enum)
		}
	case "minLength":
		fe.Type = ErrTypeStringTooShort
		if e.Schema != nil {
			fe.Msg = fmt.Sprintf("String should have at least %d character", e.Schema.MinLength)
			if e.Schema.MinLength != 1 {
				fe.Msg += "s"
			}
		}
	case "type":
		fe.Type = ErrTypeStringType
	case "pattern":
		fe.Type = ErrTypePattern
	}
	return fe
}

func appendPointer(loc, pointer []string) []string {
	out := make([]string, 0, len(loc)+len(pointer))
	out = append(out, loc...)
	for _, p := range pointer {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// enumMessage renders "Input should be 'a', 'b' or 'c'".
func enumMessage(values []any) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, fmt.Sprintf("'%v'", v))
	}
	switch len(quoted) {
	case 0:
		return "Input should be one of the allowed values"
	case 1:
		return "Input should be " + quoted[0]
	default:
		return "Input should be " + strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
	}
}
