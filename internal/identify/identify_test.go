package identify

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/suite"

	"presence/internal/registry"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/sentinel"
)

// =============================================================================
// Identification Test Suite
// =============================================================================

type IdentifySuite struct {
	suite.Suite
	people   *registry.InMemoryRegistry
	resolver *Resolver
}

func TestIdentifySuite(t *testing.T) {
	suite.Run(t, new(IdentifySuite))
}

func (s *IdentifySuite) SetupTest() {
	s.people = registry.NewInMemoryRegistry()
	s.people.PutPerson(registry.Person{
		ID:             "P1",
		Name:           "Ada",
		EnrollmentCode: "1001",
		NationalID:     withCheckDigit("90210"),
		ScannedCode:    "badge-7f3a",
		Active:         true,
	})
	s.people.PutPerson(registry.Person{
		ID:             "P2",
		Name:           "Left",
		EnrollmentCode: "1002",
		Active:         false,
	})
	s.resolver = NewResolver(s.people, nil)
}

// withCheckDigit appends the valid mod-10 check digit to a digit string.
func withCheckDigit(digits string) string {
	return digits + strconv.Itoa(luhnCheckDigit(digits))
}

// =============================================================================
// Validation Tests
// =============================================================================

func (s *IdentifySuite) TestValidate() {
	s.Run("unknown method is invalid input", func() {
		err := Identification{Method: "telepathy", Value: "x"}.Validate()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("empty value is invalid input", func() {
		err := Identification{Method: MethodEnrollment, Value: "   "}.Validate()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("non-numeric enrollment fails validation", func() {
		err := Identification{Method: MethodEnrollment, Value: "10a1"}.Validate()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("national id with a wrong check digit fails validation", func() {
		valid := withCheckDigit("90210")
		flipped := valid[:len(valid)-1] + string('0'+(valid[len(valid)-1]-'0'+1)%10)
		err := Identification{Method: MethodNationalID, Value: flipped}.Validate()
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("well-formed credentials pass", func() {
		for _, ident := range []Identification{
			{Method: MethodEnrollment, Value: "1001"},
			{Method: MethodNationalID, Value: withCheckDigit("90210")},
			{Method: MethodScannedCode, Value: "badge-7f3a"},
			{Method: MethodBiometric, Value: "template-data"},
		} {
			s.NoError(ident.Validate(), "%s", ident.Method)
		}
	})
}

func TestValidNationalID(t *testing.T) {
	t.Run("accepts a valid check digit at every length", func(t *testing.T) {
		digits := "12345"
		for len(digits) < 19 {
			code := withCheckDigit(digits)
			if !ValidNationalID(code) {
				t.Errorf("ValidNationalID(%q) = false, want true", code)
			}
			digits += fmt.Sprintf("%d", len(digits)%10)
		}
	})

	t.Run("rejects malformed codes", func(t *testing.T) {
		for _, code := range []string{"", "1234", "12345678901234567890123", "12ab56", withCheckDigit("90210") + "x"} {
			if ValidNationalID(code) {
				t.Errorf("ValidNationalID(%q) = true, want false", code)
			}
		}
	})
}

// =============================================================================
// Resolution Tests
// =============================================================================

func (s *IdentifySuite) TestResolve() {
	ctx := context.Background()

	s.Run("resolves each lookup method", func() {
		for _, ident := range []Identification{
			{Method: MethodEnrollment, Value: "1001"},
			{Method: MethodNationalID, Value: withCheckDigit("90210")},
			{Method: MethodScannedCode, Value: "badge-7f3a"},
		} {
			personID, err := s.resolver.Resolve(ctx, ident)
			s.Require().NoError(err, "%s", ident.Method)
			s.Equal(id.PersonID("P1"), personID)
		}
	})

	s.Run("trims surrounding whitespace", func() {
		personID, err := s.resolver.Resolve(ctx, Identification{Method: MethodEnrollment, Value: " 1001 "})
		s.Require().NoError(err)
		s.Equal(id.PersonID("P1"), personID)
	})

	s.Run("unknown credential is not found, not invalid", func() {
		_, err := s.resolver.Resolve(ctx, Identification{Method: MethodEnrollment, Value: "9999"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("inactive person resolves as not found", func() {
		_, err := s.resolver.Resolve(ctx, Identification{Method: MethodEnrollment, Value: "1002"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("biometric without a matcher fails validation", func() {
		_, err := s.resolver.Resolve(ctx, Identification{Method: MethodBiometric, Value: "template"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

type staticMatcher struct {
	person id.PersonID
}

func (m staticMatcher) Match(_ context.Context, token string) (id.PersonID, error) {
	if token == "known-template" {
		return m.person, nil
	}
	return "", sentinel.ErrNotFound
}

func (s *IdentifySuite) TestResolveBiometric() {
	ctx := context.Background()
	resolver := NewResolver(s.people, staticMatcher{person: "P1"})

	s.Run("delegates to the matcher", func() {
		personID, err := resolver.Resolve(ctx, Identification{Method: MethodBiometric, Value: "known-template"})
		s.Require().NoError(err)
		s.Equal(id.PersonID("P1"), personID)
	})

	s.Run("no match is not found", func() {
		_, err := resolver.Resolve(ctx, Identification{Method: MethodBiometric, Value: "unknown-template"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
