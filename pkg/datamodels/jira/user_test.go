package jira

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/diwise/jira-client/internal/test/fakejira"
	"github.com/diwise/jira-client/pkg/jira/client"
	jiraerrors "github.com/diwise/jira-client/pkg/jira/errors"
	"github.com/diwise/jira-client/pkg/jira/field"
	"github.com/diwise/jira-client/pkg/jira/types/resources"
	"github.com/go-chi/chi/v5"
	"github.com/matryer/is"
)

func TestNewUserFromPayload(t *testing.T) {
	is := is.New(t)

	u, err := NewUser(nil, decodeObject(t, fredJSON))
	is.NoErr(err)

	is.Equal(u.Self(), "http://www.example.com/jira/rest/api/2/user?username=fred")
	is.Equal(u.ID(), "10")
	is.Equal(u.Name, "fred")
	is.Equal(u.Key, "fred")
	is.Equal(u.DisplayName, "Fred F. User")
	is.Equal(u.Email, "fred@example.com")
	is.True(!u.Active)
	is.Equal(u.AvatarURLs["48x48"], "http://www.example.com/jira/secure/useravatar?size=large&ownerId=fred")
	is.Equal(u.TimeZone, "Australia/Sydney")
	is.Equal(u.String(), "fred")
}

func TestNewUserPrefersEmailOverEmailAddress(t *testing.T) {
	is := is.New(t)

	u, err := NewUser(nil, decodeObject(t, `{"name":"fred","email":"a@example.com","emailAddress":"b@example.com"}`))
	is.NoErr(err)
	is.Equal(u.Email, "a@example.com")
}

func TestSetActiveIssuesOnePutAndUpdatesLocalState(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Put("/user", fakejira.JSON(http.StatusOK, fredJSON))
	})

	u, err := NewUser(newClient(t, fake), decodeObject(t, `{"self":"http://www.example.com/jira/rest/api/2/user?username=fred","name":"fred","active":false,"avatarUrls":{}}`))
	is.NoErr(err)
	is.Equal(u.Name, "fred")
	is.True(!u.Active)

	err = u.SetActive(context.Background())
	is.NoErr(err)

	is.True(u.Active)
	is.Equal(fake.Count(http.MethodPut, "user"), 1)

	req, _ := fake.Last()
	is.Equal(req.Query.Get("username"), "fred")
	is.Equal(req.JSONBody(), map[string]any{"username": "fred", "key": "fred", "active": true})

	err = u.SetActive(context.Background())
	is.NoErr(err)
	is.Equal(fake.RequestCount(), 1) // already active, nothing to send
}

func TestFailedSetInactiveLeavesUserActive(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Put("/user", fakejira.JSON(http.StatusOK, fredJSON))
	})
	is.NoErr(fake.EnforcePolicy(context.Background(), strings.NewReader(adminsOnlyPolicy)))

	payload := decodeObject(t, fredJSON)
	payload["active"] = true

	u, _ := NewUser(newClientAs(t, fake, "john"), payload)

	err := u.SetInactive(context.Background())

	is.Equal(jiraerrors.KindOf(err), jiraerrors.KindAPI)
	is.Equal(jiraerrors.StatusCode(err), http.StatusForbidden)
	is.Equal(len(jiraerrors.Messages(err)), 1)
	is.True(u.Active)
}

func TestGetUserThatDoesNotExist(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Get("/user", fakejira.Error(http.StatusNotFound, []string{"User does not exist"}, nil))
	})

	_, err := GetUser(context.Background(), newClient(t, fake), "nobody")

	is.Equal(jiraerrors.KindOf(err), jiraerrors.KindAPI)
	is.Equal(jiraerrors.Messages(err), []string{"User does not exist"})
	is.True(jiraerrors.IsNotFound(err))

	var opErr *jiraerrors.OperationError
	is.True(errors.As(err, &opErr))
	is.Equal(opErr.Identity, "nobody")
}

func TestGetUserExpandsGroups(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Get("/user", fakejira.JSON(http.StatusOK, fredWithGroupsJSON))
	})

	u, err := GetUser(context.Background(), newClient(t, fake), "fred")
	is.NoErr(err)

	req, _ := fake.Last()
	is.Equal(req.Query.Get("expand"), "groups")

	groups, err := u.Groups(context.Background())
	is.NoErr(err)
	is.Equal(len(groups), 2)
	is.Equal(groups[0].Name, "jira-users")
	is.Equal(groups[1].Name, "jira-developers")
	is.Equal(fake.RequestCount(), 1)
}

func TestGroupsAreFetchedOnFirstAccess(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Get("/user", fakejira.JSON(http.StatusOK, fredWithGroupsJSON))
	})

	u, err := NewUser(newClient(t, fake), decodeObject(t, fredJSON))
	is.NoErr(err)
	is.Equal(fake.RequestCount(), 0)

	groups, err := u.Groups(context.Background())
	is.NoErr(err)
	is.Equal(len(groups), 2)
	is.Equal(fake.Count(http.MethodGet, "user"), 1)

	// other attributes keep their values from the original payload
	is.Equal(u.DisplayName, "Fred F. User")

	_, err = u.Groups(context.Background())
	is.NoErr(err)
	is.Equal(fake.RequestCount(), 1)
}

func TestGroupsMissingFromExpandedPayloadAreAbsent(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Get("/user", fakejira.JSON(http.StatusOK, fredJSON))
	})

	u, err := GetUser(context.Background(), newClient(t, fake), "fred")
	is.NoErr(err)

	groups, err := u.Groups(context.Background())
	is.NoErr(err)
	is.Equal(len(groups), 0)
	is.Equal(u.groups.State(), resources.Absent)
	is.Equal(fake.RequestCount(), 1)
}

func TestSearchUsersKeepsResponseOrder(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Get("/user/search", fakejira.JSON(http.StatusOK, `[`+fredJSON+`,`+johnJSON+`]`))
	})

	users, err := SearchUsers(context.Background(), newClient(t, fake), "f")
	is.NoErr(err)

	is.Equal(len(users), 2)
	is.Equal(users[0].Name, "fred")
	is.Equal(users[1].Name, "john")

	req, _ := fake.Last()
	is.Equal(req.Query.Get("username"), "f")
	is.Equal(req.Query.Get("includeInactive"), "true")
}

func TestSearchUsersRejectsAnObject(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Get("/user/search", fakejira.JSON(http.StatusOK, fredJSON))
	})

	_, err := SearchUsers(context.Background(), newClient(t, fake), "fred")

	is.Equal(jiraerrors.KindOf(err), jiraerrors.KindMalformedPayload)
}

func TestCreateUser(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Post("/user", fakejira.JSON(http.StatusCreated, fredJSON))
	})

	u, err := CreateUser(context.Background(), newClient(t, fake), "fred", "fred@example.com", "Fred F. User")
	is.NoErr(err)
	is.Equal(u.Name, "fred")

	req, _ := fake.Last()
	is.Equal(req.JSONBody(), map[string]any{
		"name":         "fred",
		"key":          "fred",
		"emailAddress": "fred@example.com",
		"displayName":  "Fred F. User",
	})
}

func TestCreateUserReportsFieldErrors(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Post("/user", fakejira.Error(http.StatusBadRequest, nil, map[string]string{"username": "A user with that username already exists."}))
	})

	_, err := CreateUser(context.Background(), newClient(t, fake), "fred", "fred@example.com", "Fred F. User")

	var apiErr *jiraerrors.APIError
	is.True(errors.As(err, &apiErr))
	is.Equal(apiErr.FieldErrors["username"], "A user with that username already exists.")
}

func TestDeletedUserRefusesChanges(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Delete("/user", fakejira.NoContent())
	})

	u, _ := NewUser(newClient(t, fake), decodeObject(t, fredJSON))

	err := u.Delete(context.Background())
	is.NoErr(err)
	is.True(u.Deleted())

	err = u.SetActive(context.Background())
	is.Equal(jiraerrors.KindOf(err), jiraerrors.KindConstruction)

	err = u.ChangePassword(context.Background(), "s3cret")
	is.Equal(jiraerrors.KindOf(err), jiraerrors.KindConstruction)

	is.Equal(fake.RequestCount(), 1)
}

func TestChangePassword(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Put("/user/password", fakejira.NoContent())
	})

	u, _ := NewUser(newClient(t, fake), decodeObject(t, fredJSON))

	err := u.ChangePassword(context.Background(), "s3cret")
	is.NoErr(err)

	req, _ := fake.Last()
	is.Equal(req.Query.Get("username"), "fred")
	is.Equal(req.JSONBody(), map[string]any{"password": "s3cret"})
}

func TestAnonymize(t *testing.T) {
	is := is.New(t)

	fake := fakejira.New(t, func(r chi.Router) {
		r.Post("/user/anonymization", fakejira.JSON(http.StatusAccepted, `{"progressUrl":"/rest/api/2/user/anonymization/progress?taskId=10100","isRerun":false}`))
	})

	u, _ := NewUser(newClient(t, fake), decodeObject(t, fredJSON))

	job, err := u.Anonymize(context.Background(), "admin")
	is.NoErr(err)
	is.Equal(job.ProgressURL, "/rest/api/2/user/anonymization/progress?taskId=10100")

	req, _ := fake.Last()
	is.Equal(req.JSONBody(), map[string]any{"userKey": "fred", "newOwnerKey": "admin"})
}

func TestUserWithoutTransportRefusesChanges(t *testing.T) {
	is := is.New(t)

	u, _ := NewUser(nil, decodeObject(t, fredJSON))

	err := u.SetActive(context.Background())
	is.Equal(jiraerrors.KindOf(err), jiraerrors.KindConstruction)
	is.True(!u.Active)
}

func TestUsersAreEqualByName(t *testing.T) {
	is := is.New(t)

	a, _ := NewUser(nil, decodeObject(t, fredJSON))
	b, _ := NewUser(nil, decodeObject(t, `{"self":"http://www.example.com/jira/rest/api/latest/user?key=fred","name":"fred"}`))
	c, _ := NewUser(nil, decodeObject(t, johnJSON))

	is.True(resources.Equal(a, b))
	is.Equal(resources.Hash(a), resources.Hash(b))
	is.True(!resources.Equal(a, c))
}

func newClient(t *testing.T, fake *fakejira.Server) client.Client {
	return newClientAs(t, fake, "admin")
}

func newClientAs(t *testing.T, fake *fakejira.Server, username string) client.Client {
	c, err := client.New(fake.URL(), client.Credentials(client.BasicCredentials(username, username)))
	if err != nil {
		t.Fatalf("failed to create client: %s", err.Error())
	}
	return c
}

func decodeObject(t *testing.T, s string) map[string]any {
	v, err := field.DecodeBytes([]byte(s))
	if err != nil {
		t.Fatalf("failed to decode test json: %s", err.Error())
	}

	obj, err := field.Object(v)
	if err != nil {
		t.Fatalf("test json is not an object: %s", err.Error())
	}

	return obj
}

const adminsOnlyPolicy string = `
package jira.authz

default allow = false

allow {
	input.method == "GET"
}

allow {
	input.user == "admin"
}
`

const fredJSON string = `{
	"self": "http://www.example.com/jira/rest/api/2/user?username=fred",
	"id": "10",
	"key": "fred",
	"name": "fred",
	"emailAddress": "fred@example.com",
	"avatarUrls": {
		"48x48": "http://www.example.com/jira/secure/useravatar?size=large&ownerId=fred",
		"24x24": "http://www.example.com/jira/secure/useravatar?size=small&ownerId=fred",
		"16x16": "http://www.example.com/jira/secure/useravatar?size=xsmall&ownerId=fred",
		"32x32": "http://www.example.com/jira/secure/useravatar?size=medium&ownerId=fred"
	},
	"displayName": "Fred F. User",
	"active": false,
	"timeZone": "Australia/Sydney"
}`

const johnJSON string = `{
	"self": "http://www.example.com/jira/rest/api/2/user?username=john",
	"key": "john",
	"name": "john",
	"emailAddress": "john@example.com",
	"displayName": "John Doe",
	"active": true
}`

const fredWithGroupsJSON string = `{
	"self": "http://www.example.com/jira/rest/api/2/user?username=fred",
	"key": "fred",
	"name": "fred",
	"displayName": "Fred F. User (updated)",
	"active": false,
	"groups": {
		"size": 2,
		"items": [
			{"name": "jira-users", "self": "http://www.example.com/jira/rest/api/2/group?groupname=jira-users"},
			{"name": "jira-developers", "self": "http://www.example.com/jira/rest/api/2/group?groupname=jira-developers"}
		]
	}
}`
