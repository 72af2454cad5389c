package resources

import (
	"context"
	"hash/fnv"
	"reflect"

	"github.com/diwise/jira-client/pkg/jira/errors"
	"github.com/diwise/jira-client/pkg/jira/field"
	"github.com/diwise/jira-client/pkg/jira/types"
)

// Resource holds the identity and lifecycle state shared by every entity.
// It is meant to be embedded by value in the concrete entity types.
type Resource struct {
	transport types.Transport

	self     string
	id       string
	hydrated bool
	deleted  bool
}

// New creates the shared part of an entity from a payload. A nil payload
// creates a placeholder with no attributes populated.
func New(transport types.Transport, payload map[string]any) Resource {
	r := Resource{
		transport: transport,
	}

	if payload != nil {
		r.self = field.String(payload["self"])
		r.id = field.String(payload["id"])
		r.hydrated = true
	}

	return r
}

func (r Resource) Self() string {
	return r.self
}

func (r Resource) ID() string {
	return r.id
}

func (r *Resource) SetID(id string) {
	r.id = id
}

func (r Resource) Transport() types.Transport {
	return r.transport
}

// Hydrated reports whether the entity was created from a payload.
func (r Resource) Hydrated() bool {
	return r.hydrated
}

func (r Resource) Deleted() bool {
	return r.deleted
}

func (r *Resource) MarkDeleted() {
	r.deleted = true
}

// CheckUsable returns an error if the entity can not be used for state
// changing calls, either because it has been deleted or because it lacks
// a transport.
func (r Resource) CheckUsable() error {
	if r.deleted {
		return errors.NewConstructionError("entity has been deleted", nil)
	}

	if r.transport == nil {
		return errors.NewConstructionError("entity has no transport", nil)
	}

	return nil
}

// Equal reports whether a and b are of the same kind and share the same
// identity key. Self links and ids play no part in the comparison.
func Equal(a, b types.Entity) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}

	return a.IdentityKey() == b.IdentityKey()
}

// Hash is derived from the identity key only, so that Equal entities always
// hash to the same value.
func Hash(e types.Entity) uint64 {
	h := fnv.New64a()
	if !isNil(e) {
		h.Write([]byte(e.IdentityKey()))
	}
	return h.Sum64()
}

func isNil(e types.Entity) bool {
	if e == nil {
		return true
	}

	v := reflect.ValueOf(e)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Toggle writes want to the remote service unless it already matches the
// local value in current. The local value is only updated when the write
// succeeds.
func Toggle(ctx context.Context, current *bool, want bool, write func(ctx context.Context, state bool) error) error {
	if *current == want {
		return nil
	}

	if err := write(ctx, want); err != nil {
		return err
	}

	*current = want
	return nil
}
