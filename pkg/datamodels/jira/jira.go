// Package jira contains the resources of the remote service that this module
// knows how to read and change: users, groups, attachments, components and
// issue watchers.
package jira

import (
	"net/url"

	"github.com/diwise/jira-client/pkg/jira/errors"
	"github.com/diwise/jira-client/pkg/jira/field"
)

const (
	UserResource       string = "user"
	GroupResource      string = "group"
	AttachmentResource string = "attachment"
	ComponentResource  string = "component"
	WatchesResource    string = "watches"
)

func object(v any) (map[string]any, error) {
	obj, err := field.Object(v)
	if err != nil {
		return nil, errors.NewMalformedPayloadError("object", nil, err)
	}
	return obj, nil
}

func segment(s string) string {
	return url.PathEscape(s)
}
