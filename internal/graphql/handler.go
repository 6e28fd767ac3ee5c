package graphql

import (
	"context"
	"errors"
	"net/http"

	"github.com/rpattn/clubhouse/internal/domain"
	"github.com/rpattn/clubhouse/internal/editsession"
	"github.com/rpattn/clubhouse/internal/fees"
	"github.com/rpattn/clubhouse/internal/middleware"
	"github.com/rpattn/clubhouse/internal/renewal"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Error codes carried in the "code" extension.
const (
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeUnprocessable = "UNPROCESSABLE"
	CodeBadUserInput  = "BAD_USER_INPUT"
	CodeInternal      = "INTERNAL"
)

// NewHandler serves GraphQL over GET and POST. Introspection stays disabled.
func NewHandler(resolver *Resolver) http.Handler {
	srv := handler.New(NewExecutableSchema(resolver))
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.SetErrorPresenter(resolver.presentError)
	srv.SetRecoverFunc(resolver.recoverPanic)
	srv.Use(&middleware.ResolverLoggerExtension{Logger: resolver.logger})
	return srv
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrTypeInUse),
		errors.Is(err, domain.ErrStaleWrite),
		errors.Is(err, editsession.ErrSectionBusy),
		errors.Is(err, editsession.ErrNotEditing):
		return CodeConflict
	case errors.Is(err, domain.ErrIneligibleMembershipType),
		errors.Is(err, domain.ErrDuplicateScope),
		errors.Is(err, fees.ErrMixedCurrency),
		errors.Is(err, renewal.ErrNotRenewable),
		errors.Is(err, renewal.ErrNoSeason):
		return CodeUnprocessable
	case errors.Is(err, domain.ErrInvalidInput):
		return CodeBadUserInput
	default:
		return CodeInternal
	}
}

// presentError adds a code extension to resolver errors and masks internal
// failures after logging them. Parse and validation errors pass unchanged.
func (r *Resolver) presentError(ctx context.Context, err error) *gqlerror.Error {
	presented := graphql.DefaultErrorPresenter(ctx, err)
	cause := presented.Err
	if cause == nil {
		return presented
	}

	ext := map[string]any{"code": errorCode(cause)}
	var ineligible *domain.IneligibleError
	if errors.As(cause, &ineligible) {
		ext["rule"] = string(ineligible.Rule)
		ext["membershipTypeId"] = ineligible.TypeID.String()
	}
	var failed *reasonError
	if errors.As(cause, &failed) {
		ext["reason"] = failed.reason
	}
	if ext["code"] == CodeInternal {
		r.logger.ErrorContext(ctx, "graphql resolver failed", "path", presented.Path.String(), "error", cause)
		presented.Message = "internal error"
	}

	if presented.Extensions == nil {
		presented.Extensions = map[string]any{}
	}
	for k, v := range ext {
		presented.Extensions[k] = v
	}
	return presented
}

func (r *Resolver) recoverPanic(ctx context.Context, p any) error {
	r.logger.ErrorContext(ctx, "graphql resolver panicked", "panic", p)
	return gqlerror.Errorf("internal error")
}

// reasonError tags a failed save so clients still see its reason.
type reasonError struct {
	reason string
	err    error
}

func saveFailed(err error) error {
	return &reasonError{reason: editsession.ReasonError, err: err}
}

func (e *reasonError) Error() string {
	return e.err.Error()
}

func (e *reasonError) Unwrap() error {
	return e.err
}
