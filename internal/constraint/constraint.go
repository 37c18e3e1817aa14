// Package constraint implements the per-field validation engine used by every
// wallet aggregate.
//
// Each aggregate type declares a Catalog of Specs once, at package init, and
// evaluates candidate values against it before accepting new state. Rules run
// in a fixed order per type tag and every applicable failure is collected, so
// a caller sees the full list of problems in one round trip instead of the
// first one only.
package constraint

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dErrors "monedero/pkg/domain-errors"
)

// FieldType tags a Spec with the rule set that applies to it.
type FieldType string

const (
	TypeString     FieldType = "string"
	TypeIdentifier FieldType = "identifier"
	TypeObject     FieldType = "object"
	TypeCurrency   FieldType = "currency"
	TypeInteger    FieldType = "integer"
	TypeDecimal    FieldType = "decimal"
	TypeTimestamp  FieldType = "timestamp"
	TypeDate       FieldType = "date"
	TypeTime       FieldType = "time"
)

// Kind names one concrete way a candidate value can violate a Spec. Kinds
// double as catalog codes so each violation renders with its own template.
type Kind string

const (
	RequiredMissing         Kind = "required_missing"
	LengthOutOfRange        Kind = "length_out_of_range"
	PatternMismatch         Kind = "pattern_mismatch"
	CurrencyInvalid         Kind = "currency_invalid"
	NegativeNotAllowed      Kind = "negative_not_allowed"
	ZeroNotAllowed          Kind = "zero_not_allowed"
	PositiveNotAllowed      Kind = "positive_not_allowed"
	DecimalPrecisionInvalid Kind = "decimal_precision_invalid"
	UnknownField            Kind = "unknown_field"
)

// Violation is one rule failure for one field.
type Violation struct {
	Field  string
	Kind   Kind
	Params map[string]any
}

// Detail converts the violation into an aggregated-error entry.
func (v Violation) Detail() dErrors.Detail {
	params := map[string]any{"field": v.Field}
	for k, val := range v.Params {
		params[k] = val
	}
	return dErrors.Detail{Code: dErrors.Code(v.Kind), Params: params}
}

// Spec is the immutable constraint declaration for a single field. Build
// Specs through the factory functions below; zero values are not meaningful.
type Spec struct {
	Field    string
	Type     FieldType
	Required bool

	// String rules.
	MinLen  int
	MaxLen  int
	Pattern *regexp.Regexp

	// Numeric rules.
	AllowNegative bool
	AllowZero     bool
	AllowPositive bool
	Decimals      int32
}

// StringField declares a length-bounded string with an optional pattern.
// An empty pattern means no pattern rule. The pattern is anchored and
// compiled once; an invalid pattern is a programming error and panics.
func StringField(name string, required bool, minLen, maxLen int, pattern string) Spec {
	s := Spec{Field: name, Type: TypeString, Required: required, MinLen: minLen, MaxLen: maxLen}
	if pattern != "" {
		s.Pattern = regexp.MustCompile("^(?:" + pattern + ")$")
	}
	return s
}

// CurrencyField declares an ISO-4217 alphabetic currency code.
func CurrencyField(name string, required bool) Spec {
	return Spec{Field: name, Type: TypeCurrency, Required: required, MinLen: 3, MaxLen: 3}
}

// IdentifierField declares an opaque identifier checked for presence only.
func IdentifierField(name string, required bool) Spec {
	return Spec{Field: name, Type: TypeIdentifier, Required: required}
}

// ObjectField declares a nested value checked for presence only.
func ObjectField(name string, required bool) Spec {
	return Spec{Field: name, Type: TypeObject, Required: required}
}

// IntegerField declares a whole number with sign rules.
func IntegerField(name string, required, allowNegative, allowZero, allowPositive bool) Spec {
	return Spec{
		Field: name, Type: TypeInteger, Required: required,
		AllowNegative: allowNegative, AllowZero: allowZero, AllowPositive: allowPositive,
	}
}

// DecimalField declares a fixed-precision number with sign rules. decimals is
// the number of places the value may carry; more precise values are rejected.
func DecimalField(name string, required, allowNegative, allowZero, allowPositive bool, decimals int32) Spec {
	return Spec{
		Field: name, Type: TypeDecimal, Required: required,
		AllowNegative: allowNegative, AllowZero: allowZero, AllowPositive: allowPositive,
		Decimals: decimals,
	}
}

// TimestampField declares a point in time checked for presence only.
func TimestampField(name string, required bool) Spec {
	return Spec{Field: name, Type: TypeTimestamp, Required: required}
}

// DateField declares a calendar date checked for presence only.
func DateField(name string, required bool) Spec {
	return Spec{Field: name, Type: TypeDate, Required: required}
}

// TimeField declares a time of day checked for presence only.
func TimeField(name string, required bool) Spec {
	return Spec{Field: name, Type: TypeTime, Required: required}
}

// Catalog is the ordered constraint table of one aggregate type. Built once
// at type registration, never mutated afterwards.
type Catalog struct {
	specs []Spec
	index map[string]Spec
}

// NewCatalog builds a catalog from ordered specs. Duplicate field names are a
// programming error and panic at init time.
func NewCatalog(specs ...Spec) Catalog {
	index := make(map[string]Spec, len(specs))
	for _, s := range specs {
		if _, dup := index[s.Field]; dup {
			panic("constraint: duplicate field " + s.Field)
		}
		index[s.Field] = s
	}
	return Catalog{specs: specs, index: index}
}

// Specs returns the declared specs in declaration order.
func (c Catalog) Specs() []Spec { return c.specs }

// Validate evaluates the candidate value against the field's Spec. All
// applicable rule failures are returned, not just the first. A field with no
// Spec yields an explicit UnknownField violation, never a silent pass.
func (c Catalog) Validate(field string, value any) []Violation {
	spec, ok := c.index[field]
	if !ok {
		return []Violation{{Field: field, Kind: UnknownField}}
	}
	return spec.check(value)
}

// ValidateAll evaluates several fields at once, preserving catalog order for
// declared fields, and aggregates every violation.
func (c Catalog) ValidateAll(values map[string]any) []Violation {
	var out []Violation
	for _, spec := range c.specs {
		v, ok := values[spec.Field]
		if !ok {
			continue
		}
		out = append(out, spec.check(v)...)
	}
	for field, v := range values {
		if _, ok := c.index[field]; !ok {
			out = append(out, c.Validate(field, v)...)
		}
	}
	return out
}

// AsError folds violations into a single aggregated validation error, or nil
// when the list is empty.
func AsError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	err := dErrors.New(dErrors.CodeValidation, "one or more fields failed validation")
	for _, v := range violations {
		err = err.WithDetails(v.Detail())
	}
	return err
}

func (s Spec) check(value any) []Violation {
	switch s.Type {
	case TypeString, TypeCurrency:
		return s.checkString(value)
	case TypeInteger, TypeDecimal:
		return s.checkNumeric(value)
	default:
		return s.checkPresence(value)
	}
}

func (s Spec) violation(kind Kind, params map[string]any) Violation {
	return Violation{Field: s.Field, Kind: kind, Params: params}
}

func (s Spec) checkPresence(value any) []Violation {
	if isMissing(value) {
		if s.Required {
			return []Violation{s.violation(RequiredMissing, nil)}
		}
		return nil
	}
	return nil
}

func (s Spec) checkString(value any) []Violation {
	str, present := toString(value)
	if !present {
		if s.Required {
			return []Violation{s.violation(RequiredMissing, nil)}
		}
		return nil
	}

	var out []Violation
	if length := len([]rune(str)); length < s.MinLen || (s.MaxLen > 0 && length > s.MaxLen) {
		out = append(out, s.violation(LengthOutOfRange, map[string]any{
			"length": length, "min": s.MinLen, "max": s.MaxLen,
		}))
	}
	if s.Pattern != nil && !s.Pattern.MatchString(str) {
		out = append(out, s.violation(PatternMismatch, map[string]any{
			"pattern": s.Pattern.String(),
		}))
	}
	if s.Type == TypeCurrency && !IsCurrencyCode(str) {
		out = append(out, s.violation(CurrencyInvalid, map[string]any{"code": str}))
	}
	return out
}

func (s Spec) checkNumeric(value any) []Violation {
	num, present, ok := toDecimal(value)
	if !present {
		if s.Required {
			return []Violation{s.violation(RequiredMissing, nil)}
		}
		return nil
	}
	if !ok {
		// Non-numeric candidates are rejected at the trust boundary before
		// they reach the catalog; nothing further to evaluate here.
		return nil
	}

	var out []Violation
	switch num.Sign() {
	case -1:
		if !s.AllowNegative {
			out = append(out, s.violation(NegativeNotAllowed, map[string]any{"value": num.String()}))
		}
	case 0:
		if !s.AllowZero {
			out = append(out, s.violation(ZeroNotAllowed, map[string]any{"value": num.String()}))
		}
	case 1:
		if !s.AllowPositive {
			out = append(out, s.violation(PositiveNotAllowed, map[string]any{"value": num.String()}))
		}
	}
	if s.Type == TypeDecimal && !num.Equal(num.Truncate(s.Decimals)) {
		out = append(out, s.violation(DecimalPrecisionInvalid, map[string]any{
			"value": num.String(), "decimals": s.Decimals,
		}))
	}
	return out
}

func isMissing(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *string:
		return v == nil || strings.TrimSpace(*v) == ""
	case time.Time:
		return v.IsZero()
	case *time.Time:
		return v == nil || v.IsZero()
	default:
		return false
	}
}

func toString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		if strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return "", false
		}
		return *v, true
	default:
		return "", false
	}
}

// toDecimal reports (value, present, numeric). present is false when the
// candidate is absent; numeric is false when it is present but not a number.
func toDecimal(value any) (decimal.Decimal, bool, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false, false
	case decimal.Decimal:
		return v, true, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false, false
		}
		return *v, true, true
	case int:
		return decimal.NewFromInt(int64(v)), true, true
	case int32:
		return decimal.NewFromInt(int64(v)), true, true
	case int64:
		return decimal.NewFromInt(v), true, true
	case float64:
		return decimal.NewFromFloat(v), true, true
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.Zero, false, false
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, true, false
		}
		return d, true, true
	default:
		return decimal.Zero, true, false
	}
}
