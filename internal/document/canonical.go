package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrUnknownElementType = errors.New("unknown element type")

// ValidationError lists every problem found while importing a canonical
// document. Nothing is returned alongside it.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid document: " + strings.Join(e.Problems, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateShape, ShapeElement{})
	return v
}

func validateShape(sl validator.StructLevel) {
	s := sl.Current().Interface().(ShapeElement)
	switch s.Kind {
	case ShapeRect, ShapeTriangle:
		if s.Width <= 0 {
			sl.ReportError(s.Width, "width", "Width", "gt", "0")
		}
		if s.Height <= 0 {
			sl.ReportError(s.Height, "height", "Height", "gt", "0")
		}
	case ShapeCircle:
		if s.Radius <= 0 {
			sl.ReportError(s.Radius, "radius", "Radius", "gt", "0")
		}
	case ShapeStar, ShapePolygon:
		if s.Radius <= 0 {
			sl.ReportError(s.Radius, "radius", "Radius", "gt", "0")
		}
		if s.Points < 3 {
			sl.ReportError(s.Points, "points", "Points", "gte", "3")
		}
	}
	if s.Fill == "" && s.Stroke == "" {
		sl.ReportError(s.Fill, "fill", "Fill", "required_without", "stroke")
	}
}

// Marshal produces the canonical JSON encoding of doc. Field order is fixed,
// so two content-equal documents always marshal to identical bytes.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}

// Unmarshal decodes and validates a canonical document.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		if errors.Is(err, ErrUnknownElementType) {
			return nil, &ValidationError{Problems: []string{err.Error()}}
		}
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks doc against the struct rules and the unique-id invariant.
func Validate(doc *Document) error {
	var problems []string
	if err := validate.Struct(doc); err != nil {
		problems = append(problems, describe("", err)...)
	}

	seen := make(map[string]bool, len(doc.Elements))
	for i, el := range doc.Elements {
		prefix := fmt.Sprintf("elements[%d]", i)
		if el == nil {
			problems = append(problems, prefix+": missing element")
			continue
		}
		if err := validate.Struct(el); err != nil {
			problems = append(problems, describe(prefix, err)...)
		}
		id := el.Base().ID
		if id != "" && seen[id] {
			problems = append(problems, fmt.Sprintf("%s.id: duplicate id %q", prefix, id))
		}
		seen[id] = true
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func describe(prefix string, err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if prefix != "" {
			field = prefix + "." + field
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out = append(out, fmt.Sprintf("%s: failed %s", field, rule))
	}
	return out
}

// Equal reports whether a and b have the same canonical encoding.
func Equal(a, b *Document) bool {
	ab, err := Marshal(a)
	if err != nil {
		return false
	}
	bb, err := Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// Each variant encodes as {"type": ..., <common fields>, <variant fields>}.

type (
	textAlias  TextElement
	shapeAlias ShapeElement
	imageAlias ImageElement
)

type textJSON struct {
	Type ElementType `json:"type"`
	*textAlias
}

type shapeJSON struct {
	Type ElementType `json:"type"`
	*shapeAlias
}

type imageJSON struct {
	Type ElementType `json:"type"`
	*imageAlias
}

func (t *TextElement) MarshalJSON() ([]byte, error) {
	return json.Marshal(textJSON{Type: ElementTypeText, textAlias: (*textAlias)(t)})
}

func (s *ShapeElement) MarshalJSON() ([]byte, error) {
	return json.Marshal(shapeJSON{Type: ElementTypeShape, shapeAlias: (*shapeAlias)(s)})
}

func (i *ImageElement) MarshalJSON() ([]byte, error) {
	return json.Marshal(imageJSON{Type: ElementTypeImage, imageAlias: (*imageAlias)(i)})
}

func (es Elements) MarshalJSON() ([]byte, error) {
	if es == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Element(es))
}

func (es *Elements) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Elements, 0, len(raw))
	for i, msg := range raw {
		el, err := decodeElement(msg)
		if err != nil {
			return fmt.Errorf("elements[%d]: %w", i, err)
		}
		out = append(out, el)
	}
	*es = out
	return nil
}

func decodeElement(msg json.RawMessage) (Element, error) {
	var head struct {
		Type ElementType `json:"type"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case ElementTypeText:
		el := &TextElement{}
		if err := json.Unmarshal(msg, &textJSON{textAlias: (*textAlias)(el)}); err != nil {
			return nil, err
		}
		return el, nil
	case ElementTypeShape:
		el := &ShapeElement{}
		if err := json.Unmarshal(msg, &shapeJSON{shapeAlias: (*shapeAlias)(el)}); err != nil {
			return nil, err
		}
		return el, nil
	case ElementTypeImage:
		el := &ImageElement{}
		if err := json.Unmarshal(msg, &imageJSON{imageAlias: (*imageAlias)(el)}); err != nil {
			return nil, err
		}
		return el, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownElementType, head.Type)
}
