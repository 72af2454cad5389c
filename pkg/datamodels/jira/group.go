package jira

import (
	"github.com/diwise/jira-client/pkg/jira/field"
	"github.com/diwise/jira-client/pkg/jira/types"
	"github.com/diwise/jira-client/pkg/jira/types/resources"
)

type Group struct {
	resources.Resource

	Name string
}

func NewGroup(transport types.Transport, payload map[string]any) (*Group, error) {
	g := &Group{
		Resource: resources.New(transport, payload),
	}

	if payload != nil {
		g.Name = field.String(payload["name"])
	}

	return g, nil
}

func (g *Group) IdentityKey() string {
	return g.Name
}

func (g *Group) String() string {
	return g.Name
}

func groupFactory(transport types.Transport) func(map[string]any) (*Group, error) {
	return func(payload map[string]any) (*Group, error) {
		return NewGroup(transport, payload)
	}
}
