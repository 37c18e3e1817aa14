package constraint_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"monedero/internal/constraint"
	dErrors "monedero/pkg/domain-errors"
)

type CatalogSuite struct {
	suite.Suite
	catalog constraint.Catalog
}

func (s *CatalogSuite) SetupTest() {
	s.catalog = constraint.NewCatalog(
		constraint.StringField("alias", true, 3, 10, ""),
		constraint.StringField("phone_number", true, 10, 10, `[0-9]+`),
		constraint.CurrencyField("currency", true),
		constraint.IntegerField("attempts", true, false, true, true),
		constraint.DecimalField("daily_limit", true, false, false, true, 2),
		constraint.TimestampField("opened_at", true),
		constraint.ObjectField("metadata", false),
	)
}

func TestCatalogSuite(t *testing.T) {
	suite.Run(t, new(CatalogSuite))
}

func (s *CatalogSuite) kinds(violations []constraint.Violation) []constraint.Kind {
	out := make([]constraint.Kind, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Kind)
	}
	return out
}

func (s *CatalogSuite) TestUnknownField() {
	violations := s.catalog.Validate("no_such_field", "x")
	s.Require().Len(violations, 1)
	s.Equal(constraint.UnknownField, violations[0].Kind)
	s.Equal("no_such_field", violations[0].Field)
}

func (s *CatalogSuite) TestRequired() {
	s.Run("nil value on required field", func() {
		violations := s.catalog.Validate("alias", nil)
		s.Equal([]constraint.Kind{constraint.RequiredMissing}, s.kinds(violations))
	})

	s.Run("blank string on required field", func() {
		violations := s.catalog.Validate("alias", "   ")
		s.Equal([]constraint.Kind{constraint.RequiredMissing}, s.kinds(violations))
	})

	s.Run("zero timestamp on required field", func() {
		violations := s.catalog.Validate("opened_at", time.Time{})
		s.Equal([]constraint.Kind{constraint.RequiredMissing}, s.kinds(violations))
	})

	s.Run("nil value on optional field passes", func() {
		s.Empty(s.catalog.Validate("metadata", nil))
	})

	s.Run("nil string pointer on required field", func() {
		var p *string
		violations := s.catalog.Validate("alias", p)
		s.Equal([]constraint.Kind{constraint.RequiredMissing}, s.kinds(violations))
	})
}

func (s *CatalogSuite) TestStringLength() {
	s.Run("below minimum rejected", func() {
		violations := s.catalog.Validate("alias", "ab")
		s.Equal([]constraint.Kind{constraint.LengthOutOfRange}, s.kinds(violations))
	})

	s.Run("above maximum rejected", func() {
		violations := s.catalog.Validate("alias", "abcdefghijk")
		s.Equal([]constraint.Kind{constraint.LengthOutOfRange}, s.kinds(violations))
	})

	s.Run("exactly minimum accepted", func() {
		s.Empty(s.catalog.Validate("alias", "abc"))
	})

	s.Run("exactly maximum accepted", func() {
		s.Empty(s.catalog.Validate("alias", "abcdefghij"))
	})
}

func (s *CatalogSuite) TestPattern() {
	s.Run("pattern mismatch reported", func() {
		violations := s.catalog.Validate("phone_number", "98123456x8")
		s.Equal([]constraint.Kind{constraint.PatternMismatch}, s.kinds(violations))
	})

	s.Run("matching value accepted", func() {
		s.Empty(s.catalog.Validate("phone_number", "9812345678"))
	})

	s.Run("length and pattern failures are both collected", func() {
		violations := s.catalog.Validate("phone_number", "98x")
		s.Equal([]constraint.Kind{
			constraint.LengthOutOfRange,
			constraint.PatternMismatch,
		}, s.kinds(violations))
	})
}

func (s *CatalogSuite) TestCurrency() {
	s.Run("known code accepted", func() {
		s.Empty(s.catalog.Validate("currency", "MXN"))
	})

	s.Run("unknown code rejected", func() {
		violations := s.catalog.Validate("currency", "XXZ")
		s.Equal([]constraint.Kind{constraint.CurrencyInvalid}, s.kinds(violations))
	})

	s.Run("lowercase rejected", func() {
		violations := s.catalog.Validate("currency", "mxn")
		s.Equal([]constraint.Kind{constraint.CurrencyInvalid}, s.kinds(violations))
	})
}

func (s *CatalogSuite) TestIntegerSigns() {
	s.Run("negative rejected when not allowed", func() {
		violations := s.catalog.Validate("attempts", -1)
		s.Equal([]constraint.Kind{constraint.NegativeNotAllowed}, s.kinds(violations))
	})

	s.Run("zero accepted when allowed", func() {
		s.Empty(s.catalog.Validate("attempts", 0))
	})

	s.Run("positive accepted when allowed", func() {
		s.Empty(s.catalog.Validate("attempts", 3))
	})
}

func (s *CatalogSuite) TestDecimalPrecision() {
	s.Run("value equal to its truncation accepted", func() {
		s.Empty(s.catalog.Validate("daily_limit", decimal.RequireFromString("1500.25")))
	})

	s.Run("value differing from its truncation rejected", func() {
		violations := s.catalog.Validate("daily_limit", decimal.RequireFromString("1500.253"))
		s.Equal([]constraint.Kind{constraint.DecimalPrecisionInvalid}, s.kinds(violations))
	})

	s.Run("zero rejected when not allowed", func() {
		violations := s.catalog.Validate("daily_limit", decimal.Zero)
		s.Equal([]constraint.Kind{constraint.ZeroNotAllowed}, s.kinds(violations))
	})

	s.Run("sign and precision failures are both collected", func() {
		violations := s.catalog.Validate("daily_limit", decimal.RequireFromString("-0.001"))
		s.Equal([]constraint.Kind{
			constraint.NegativeNotAllowed,
			constraint.DecimalPrecisionInvalid,
		}, s.kinds(violations))
	})

	s.Run("string candidates are coerced", func() {
		violations := s.catalog.Validate("daily_limit", "10.999")
		s.Equal([]constraint.Kind{constraint.DecimalPrecisionInvalid}, s.kinds(violations))
	})
}

func (s *CatalogSuite) TestValidateAll() {
	violations := s.catalog.ValidateAll(map[string]any{
		"alias":       "ab",
		"currency":    "ZZZ",
		"daily_limit": decimal.RequireFromString("-1"),
		"mystery":     1,
	})
	kinds := map[constraint.Kind]bool{}
	for _, v := range violations {
		kinds[v.Kind] = true
	}
	s.True(kinds[constraint.LengthOutOfRange])
	s.True(kinds[constraint.CurrencyInvalid])
	s.True(kinds[constraint.NegativeNotAllowed])
	s.True(kinds[constraint.UnknownField])
}

func (s *CatalogSuite) TestAsError() {
	s.Run("empty list yields nil", func() {
		s.NoError(constraint.AsError(nil))
	})

	s.Run("violations fold into one validation error", func() {
		err := constraint.AsError(s.catalog.Validate("phone_number", "98x"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		var domainErr *dErrors.Error
		s.Require().ErrorAs(err, &domainErr)
		s.Len(domainErr.Details, 2)
		s.Equal("phone_number", domainErr.Details[0].Params["field"])
	})
}
