package identify

import (
	"context"
	"errors"
	"strings"

	"presence/internal/registry"
	id "presence/pkg/domain"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/sentinel"
)

// Resolver maps credentials to person identifiers. Pure lookup, no state.
type Resolver struct {
	people  registry.PersonRegistry
	matcher registry.BiometricMatcher
}

// NewResolver constructs a resolver. The matcher may be nil when biometric
// identification is not deployed; biometric resolutions then fail as
// validation errors rather than lookups.
func NewResolver(people registry.PersonRegistry, matcher registry.BiometricMatcher) *Resolver {
	return &Resolver{people: people, matcher: matcher}
}

// Resolve returns the person behind the credential.
//
// Malformed input yields a validation/invalid-input error before any lookup;
// a well-formed credential matching no active person yields CodeNotFound.
// Callers branch on the two distinctly: the first is the caller's bug, the
// second is an unregistered or deactivated person.
func (r *Resolver) Resolve(ctx context.Context, ident Identification) (id.PersonID, error) {
	if err := ident.Validate(); err != nil {
		return "", err
	}
	value := strings.TrimSpace(ident.Value)

	switch ident.Method {
	case MethodEnrollment:
		return r.found(r.people.FindByEnrollment(ctx, value))
	case MethodNationalID:
		return r.found(r.people.FindByNationalID(ctx, value))
	case MethodScannedCode:
		return r.found(r.people.FindByScannedCode(ctx, value))
	case MethodBiometric:
		if r.matcher == nil {
			return "", dErrors.New(dErrors.CodeValidation, "biometric identification not available")
		}
		personID, err := r.matcher.Match(ctx, value)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return "", dErrors.New(dErrors.CodeNotFound, "no person matches the presented credential")
			}
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "biometric matcher failed")
		}
		return personID, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown identification method")
	}
}

func (r *Resolver) found(p registry.Person, err error) (id.PersonID, error) {
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "no person matches the presented credential")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "person lookup failed")
	}
	return p.ID, nil
}
