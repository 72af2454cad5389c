package fakejira

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/open-policy-agent/opa/rego"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("fake-jira/authz")

var errPermissionDenied = errors.New("permission denied")

// policy decides which requests the fake service accepts, the way a
// permission scheme does on the real service. The rego module must define
// data.jira.authz.allow.
type policy struct {
	preparedQuery rego.PreparedEvalQuery
}

func newPolicy(ctx context.Context, module io.Reader) (*policy, error) {
	b, err := io.ReadAll(module)
	if err != nil {
		return nil, fmt.Errorf("unable to read authz policy: %s", err.Error())
	}

	p := &policy{}

	p.preparedQuery, err = rego.New(
		rego.Query("x = data.jira.authz.allow"),
		rego.Module("jira.rego", string(b)),
	).PrepareForEval(ctx)

	if err != nil {
		return nil, err
	}

	return p, nil
}

func (p *policy) checkAccess(ctx context.Context, r *http.Request) error {
	var err error

	_, span := tracer.Start(ctx, "check-access")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	user, _, _ := r.BasicAuth()

	input := map[string]any{
		"method": r.Method,
		"path":   strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, RestRoot), "/"), "/"),
		"user":   user,
	}

	results, err := p.preparedQuery.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		err = fmt.Errorf("opa eval failed: %w", err)
		return err
	}

	if len(results) == 0 {
		err = fmt.Errorf("authz failed: opa query could not be satisfied")
		return err
	}

	allowed, ok := results[0].Bindings["x"].(bool)
	if !ok {
		err = errors.New("opa error: unexpected result type")
		return err
	}

	if !allowed {
		err = errPermissionDenied
		return err
	}

	return nil
}
