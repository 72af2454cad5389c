package jira

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/diwise/jira-client/pkg/jira/errors"
	"github.com/diwise/jira-client/pkg/jira/field"
	"github.com/diwise/jira-client/pkg/jira/types"
	"github.com/diwise/jira-client/pkg/jira/types/resources"
)

// Watches lists the users watching an issue. Watches of the same issue are
// equal regardless of the API version that produced them.
type Watches struct {
	resources.Resource

	Issue      string
	WatchCount int
	IsWatching bool
	Watchers   []*User
}

func NewWatches(transport types.Transport, payload map[string]any) (*Watches, error) {
	w := &Watches{
		Resource: resources.New(transport, payload),
		Watchers: []*User{},
	}

	if payload == nil {
		return w, nil
	}

	var err error

	w.Issue = issueOfWatchers(w.Self())

	if w.WatchCount, err = field.Int(payload["watchCount"]); err != nil {
		return nil, err
	}

	w.IsWatching = field.Bool(payload["isWatching"])

	w.Watchers, err = field.Resources(payload["watchers"], func(obj map[string]any) (*User, error) {
		return NewUser(transport, obj)
	})
	if err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Watches) IdentityKey() string {
	return w.Issue
}

func (w *Watches) String() string {
	return strconv.Itoa(w.WatchCount)
}

func GetWatches(ctx context.Context, transport types.Transport, issue string) (*Watches, error) {
	result, err := transport.Get(ctx, "issue/"+segment(issue)+"/watchers", nil)
	if err != nil {
		return nil, errors.Wrap(WatchesResource, issue, "retrieve", err)
	}

	payload, err := object(result)
	if err != nil {
		return nil, errors.Wrap(WatchesResource, issue, "retrieve", err)
	}

	w, err := NewWatches(transport, payload)
	if err != nil {
		return nil, errors.Wrap(WatchesResource, issue, "retrieve", err)
	}

	if w.Issue == "" {
		w.Issue = issue
	}

	return w, nil
}

// issueOfWatchers returns the issue key or id from a link such as
// .../rest/api/2/issue/FILTA-43/watchers.
func issueOfWatchers(self string) string {
	u, err := url.Parse(self)
	if err != nil {
		return ""
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for idx := len(segments) - 1; idx > 0; idx-- {
		if segments[idx] == "watchers" && segments[idx-1] != "" {
			issue, err := url.PathUnescape(segments[idx-1])
			if err != nil {
				return segments[idx-1]
			}
			return issue
		}
	}

	return ""
}
