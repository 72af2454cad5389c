package jira

import (
	"context"

	"github.com/diwise/jira-client/pkg/jira/errors"
	"github.com/diwise/jira-client/pkg/jira/field"
	"github.com/diwise/jira-client/pkg/jira/types"
	"github.com/diwise/jira-client/pkg/jira/types/resources"
)

const (
	AssigneeTypeProjectDefault string = "PROJECT_DEFAULT"
	AssigneeTypeComponentLead  string = "COMPONENT_LEAD"
	AssigneeTypeProjectLead    string = "PROJECT_LEAD"
	AssigneeTypeUnassigned     string = "UNASSIGNED"
)

type Component struct {
	resources.Resource

	Name                string
	Description         string
	Lead                *User
	AssigneeType        string
	Assignee            *User
	RealAssigneeType    string
	RealAssignee        *User
	IsAssigneeTypeValid bool
	Project             string
	ProjectID           int
}

func NewComponent(transport types.Transport, payload map[string]any) (*Component, error) {
	c := &Component{
		Resource: resources.New(transport, payload),
	}

	if payload == nil {
		return c, nil
	}

	var err error

	c.Name = field.String(payload["name"])
	c.Description = field.String(payload["description"])
	c.AssigneeType = field.String(payload["assigneeType"])
	c.RealAssigneeType = field.String(payload["realAssigneeType"])
	c.IsAssigneeTypeValid = field.Bool(payload["isAssigneeTypeValid"])
	c.Project = field.String(payload["project"])

	if c.ProjectID, err = field.Int(payload["projectId"]); err != nil {
		return nil, err
	}

	users := map[string]**User{
		"lead":         &c.Lead,
		"assignee":     &c.Assignee,
		"realAssignee": &c.RealAssignee,
	}

	for key, target := range users {
		u, ok, err := field.Resource(payload[key], func(obj map[string]any) (*User, error) {
			return NewUser(transport, obj)
		})
		if err != nil {
			return nil, err
		}
		if ok {
			*target = u
		}
	}

	return c, nil
}

func (c *Component) IdentityKey() string {
	return c.ID()
}

func (c *Component) String() string {
	return c.Name
}

func GetComponent(ctx context.Context, transport types.Transport, id string) (*Component, error) {
	result, err := transport.Get(ctx, "component/"+segment(id), nil)
	if err != nil {
		return nil, errors.Wrap(ComponentResource, id, "retrieve", err)
	}

	payload, err := object(result)
	if err != nil {
		return nil, errors.Wrap(ComponentResource, id, "retrieve", err)
	}

	c, err := NewComponent(transport, payload)
	return c, errors.Wrap(ComponentResource, id, "retrieve", err)
}

// ComponentBuilder collects the attributes to send when a component is
// created or updated. Only attributes that have been set are sent.
type ComponentBuilder struct {
	fields  map[string]any
	execute func(ctx context.Context, fields map[string]any) (*Component, error)
}

func (b *ComponentBuilder) Name(name string) *ComponentBuilder {
	b.fields["name"] = name
	return b
}

func (b *ComponentBuilder) Description(description string) *ComponentBuilder {
	b.fields["description"] = description
	return b
}

func (b *ComponentBuilder) LeadUserName(username string) *ComponentBuilder {
	b.fields["leadUserName"] = username
	return b
}

func (b *ComponentBuilder) AssigneeType(assigneeType string) *ComponentBuilder {
	b.fields["assigneeType"] = assigneeType
	return b
}

func (b *ComponentBuilder) IsAssigneeTypeValid(valid bool) *ComponentBuilder {
	b.fields["isAssigneeTypeValid"] = valid
	return b
}

func (b *ComponentBuilder) Execute(ctx context.Context) (*Component, error) {
	return b.execute(ctx, b.fields)
}

// CreateComponent starts building a new component in project. The component
// is created when Execute is called.
func CreateComponent(transport types.Transport, project string) *ComponentBuilder {
	return &ComponentBuilder{
		fields: map[string]any{"project": project},
		execute: func(ctx context.Context, fields map[string]any) (*Component, error) {
			name := field.String(fields["name"])

			if transport == nil {
				return nil, errors.Wrap(ComponentResource, name, "create", errors.NewConstructionError("no transport", nil))
			}

			if name == "" {
				return nil, errors.Wrap(ComponentResource, "", "create", errors.NewConstructionError("a component must have a name", nil))
			}

			result, err := transport.Post(ctx, "component", nil, fields)
			if err != nil {
				return nil, errors.Wrap(ComponentResource, name, "create", err)
			}

			payload, err := object(result)
			if err != nil {
				return nil, errors.Wrap(ComponentResource, name, "create", err)
			}

			c, err := NewComponent(transport, payload)
			return c, errors.Wrap(ComponentResource, name, "create", err)
		},
	}
}

// Update starts building a change to the component. When executed, the
// component is replaced in place by what the service returns.
func (c *Component) Update() *ComponentBuilder {
	return &ComponentBuilder{
		fields: map[string]any{},
		execute: func(ctx context.Context, fields map[string]any) (*Component, error) {
			if err := c.CheckUsable(); err != nil {
				return nil, errors.Wrap(ComponentResource, c.ID(), "update", err)
			}

			if len(fields) == 0 {
				return c, nil
			}

			result, err := c.Transport().Put(ctx, "component/"+segment(c.ID()), nil, fields)
			if err != nil {
				return nil, errors.Wrap(ComponentResource, c.ID(), "update", err)
			}

			payload, err := object(result)
			if err != nil {
				return nil, errors.Wrap(ComponentResource, c.ID(), "update", err)
			}

			updated, err := NewComponent(c.Transport(), payload)
			if err != nil {
				return nil, errors.Wrap(ComponentResource, c.ID(), "update", err)
			}

			id := c.ID()
			*c = *updated
			if c.ID() == "" {
				c.SetID(id)
			}

			return c, nil
		},
	}
}

func (c *Component) Delete(ctx context.Context) error {
	if err := c.CheckUsable(); err != nil {
		return errors.Wrap(ComponentResource, c.ID(), "delete", err)
	}

	_, err := c.Transport().Delete(ctx, "component/"+segment(c.ID()), nil)
	if err != nil {
		return errors.Wrap(ComponentResource, c.ID(), "delete", err)
	}

	c.MarkDeleted()
	return nil
}
