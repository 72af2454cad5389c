package client

import (
	"strconv"
	"strings"
)

type RequestDecoratorFunc func(params map[string]string) map[string]string

// Params collects the query parameters of a request. A nil result is never
// returned so that decorators can be applied in any order.
func Params(decorators ...RequestDecoratorFunc) map[string]string {
	params := map[string]string{}
	for _, decorate := range decorators {
		params = decorate(params)
	}
	return params
}

func Param(name, value string) RequestDecoratorFunc {
	return func(params map[string]string) map[string]string {
		params[name] = value
		return params
	}
}

func Username(name string) RequestDecoratorFunc {
	return Param("username", name)
}

func Key(key string) RequestDecoratorFunc {
	return Param("key", key)
}

// Expand asks the service to include attributes that are left out of a
// payload by default, such as the groups of a user.
func Expand(attrs ...string) RequestDecoratorFunc {
	return func(params map[string]string) map[string]string {
		if len(attrs) == 0 {
			return params
		}

		expand := attrs
		if existing, ok := params["expand"]; ok && existing != "" {
			expand = append([]string{existing}, attrs...)
		}

		params["expand"] = strings.Join(expand, ",")
		return params
	}
}

func IncludeInactive(include bool) RequestDecoratorFunc {
	return Param("includeInactive", strconv.FormatBool(include))
}

func MaxResults(limit uint64) RequestDecoratorFunc {
	return Param("maxResults", strconv.FormatUint(limit, 10))
}
