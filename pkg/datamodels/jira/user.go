package jira

import (
	"context"

	"github.com/diwise/jira-client/pkg/jira/client"
	"github.com/diwise/jira-client/pkg/jira/errors"
	"github.com/diwise/jira-client/pkg/jira/field"
	"github.com/diwise/jira-client/pkg/jira/types"
	"github.com/diwise/jira-client/pkg/jira/types/resources"
)

type User struct {
	resources.Resource

	Key         string
	Name        string
	DisplayName string
	Email       string
	Active      bool
	AvatarURLs  map[string]string
	TimeZone    string
	Locale      string

	groups resources.Lazy[[]*Group]
}

// NewUser creates a user from a payload. Group memberships are only known if
// the payload carries them, otherwise they are fetched on first use.
func NewUser(transport types.Transport, payload map[string]any) (*User, error) {
	u := &User{
		Resource:   resources.New(transport, payload),
		AvatarURLs: map[string]string{},
	}

	if payload == nil {
		return u, nil
	}

	var err error

	u.Key = field.String(payload["key"])
	u.Name = field.String(payload["name"])
	u.DisplayName = field.String(payload["displayName"])
	u.Email = field.String(field.Get(payload, "email", "emailAddress"))
	u.Active = field.Bool(payload["active"])
	u.TimeZone = field.String(payload["timeZone"])
	u.Locale = field.String(payload["locale"])

	u.AvatarURLs, err = field.Map(payload["avatarUrls"])
	if err != nil {
		return nil, err
	}

	if field.Has(payload, "groups") {
		groups, err := field.Resources(field.Items(payload["groups"]), groupFactory(transport))
		if err != nil {
			return nil, err
		}
		u.groups.Set(groups)
	}

	return u, nil
}

func (u *User) IdentityKey() string {
	return u.Name
}

func (u *User) String() string {
	return u.Name
}

// GetUser retrieves a user together with its group memberships.
func GetUser(ctx context.Context, transport types.Transport, username string) (*User, error) {
	u, err := getUser(ctx, transport, username)
	return u, errors.Wrap(UserResource, username, "retrieve", err)
}

func getUser(ctx context.Context, transport types.Transport, username string) (*User, error) {
	result, err := transport.Get(ctx, "user", client.Params(client.Username(username), client.Expand("groups")))
	if err != nil {
		return nil, err
	}

	payload, err := object(result)
	if err != nil {
		return nil, err
	}

	u, err := NewUser(transport, payload)
	if err != nil {
		return nil, err
	}

	// groups were asked for, so a payload without them means there are none to tell
	if u.groups.State() == resources.NotRequested {
		u.groups.SetAbsent()
	}

	return u, nil
}

func CreateUser(ctx context.Context, transport types.Transport, username, email, displayName string) (*User, error) {
	if username == "" {
		return nil, errors.NewConstructionError("a user must have a username", nil)
	}

	body := map[string]any{
		"name":         username,
		"key":          username,
		"emailAddress": email,
		"displayName":  displayName,
	}

	result, err := transport.Post(ctx, "user", nil, body)
	if err != nil {
		return nil, errors.Wrap(UserResource, username, "create", err)
	}

	payload, err := object(result)
	if err != nil {
		return nil, errors.Wrap(UserResource, username, "create", err)
	}

	u, err := NewUser(transport, payload)
	return u, errors.Wrap(UserResource, username, "create", err)
}

// SearchUsers returns the users matching query, inactive users included, in
// the order the service returned them.
func SearchUsers(ctx context.Context, transport types.Transport, query string) ([]*User, error) {
	result, err := transport.Get(ctx, "user/search", client.Params(client.Username(query), client.IncludeInactive(true)))
	if err != nil {
		return nil, errors.Wrap(UserResource, query, "search", err)
	}

	if _, ok := result.([]any); !ok {
		err = errors.NewMalformedPayloadError("array", nil, nil)
		return nil, errors.Wrap(UserResource, query, "search", err)
	}

	users, err := field.Resources(result, func(payload map[string]any) (*User, error) {
		return NewUser(transport, payload)
	})

	return users, errors.Wrap(UserResource, query, "search", err)
}

// Groups returns the groups the user is a member of. They are retrieved
// from the service the first time they are asked for, unless the user was
// created from a payload that already carried them.
func (u *User) Groups(ctx context.Context) ([]*Group, error) {
	groups, err := u.groups.Resolve(ctx, func(ctx context.Context) (resources.Lazy[[]*Group], error) {
		if err := u.CheckUsable(); err != nil {
			return resources.Lazy[[]*Group]{}, err
		}

		fresh, err := getUser(ctx, u.Transport(), u.Name)
		if err != nil {
			return resources.Lazy[[]*Group]{}, err
		}

		return fresh.groups, nil
	})

	return groups, errors.Wrap(UserResource, u.Name, "retrieve groups of", err)
}

func (u *User) SetActive(ctx context.Context) error {
	return u.setActive(ctx, true)
}

func (u *User) SetInactive(ctx context.Context) error {
	return u.setActive(ctx, false)
}

func (u *User) setActive(ctx context.Context, active bool) error {
	action := "deactivate"
	if active {
		action = "activate"
	}

	if err := u.CheckUsable(); err != nil {
		return errors.Wrap(UserResource, u.Name, action, err)
	}

	err := resources.Toggle(ctx, &u.Active, active, func(ctx context.Context, state bool) error {
		body := map[string]any{
			"username": u.Name,
			"key":      u.userKey(),
			"active":   state,
		}

		_, err := u.Transport().Put(ctx, "user", client.Params(client.Username(u.Name)), body)
		return err
	})

	return errors.Wrap(UserResource, u.Name, action, err)
}

func (u *User) ChangePassword(ctx context.Context, password string) error {
	if err := u.CheckUsable(); err != nil {
		return errors.Wrap(UserResource, u.Name, "change password of", err)
	}

	if password == "" {
		return errors.Wrap(UserResource, u.Name, "change password of", errors.NewConstructionError("password must not be empty", nil))
	}

	_, err := u.Transport().Put(ctx, "user/password", client.Params(client.Username(u.Name)), map[string]any{"password": password})
	return errors.Wrap(UserResource, u.Name, "change password of", err)
}

// Delete removes the user from the service. The instance can not be used to
// change anything after a successful delete.
func (u *User) Delete(ctx context.Context) error {
	if err := u.CheckUsable(); err != nil {
		return errors.Wrap(UserResource, u.Name, "delete", err)
	}

	_, err := u.Transport().Delete(ctx, "user", client.Params(client.Username(u.Name)))
	if err != nil {
		return errors.Wrap(UserResource, u.Name, "delete", err)
	}

	u.MarkDeleted()
	return nil
}

type AnonymizationJob struct {
	ProgressURL string
	IsRerun     bool
}

// Anonymize schedules the anonymization of the user. Anything owned by the
// user is transferred to newOwnerKey, if given.
func (u *User) Anonymize(ctx context.Context, newOwnerKey string) (*AnonymizationJob, error) {
	if err := u.CheckUsable(); err != nil {
		return nil, errors.Wrap(UserResource, u.Name, "anonymize", err)
	}

	body := map[string]any{
		"userKey": u.userKey(),
	}
	if newOwnerKey != "" {
		body["newOwnerKey"] = newOwnerKey
	}

	result, err := u.Transport().Post(ctx, "user/anonymization", nil, body)
	if err != nil {
		return nil, errors.Wrap(UserResource, u.Name, "anonymize", err)
	}

	payload, err := object(result)
	if err != nil {
		return nil, errors.Wrap(UserResource, u.Name, "anonymize", err)
	}

	return &AnonymizationJob{
		ProgressURL: field.String(payload["progressUrl"]),
		IsRerun:     field.Bool(payload["isRerun"]),
	}, nil
}

func (u *User) userKey() string {
	if u.Key != "" {
		return u.Key
	}
	return u.Name
}
