package preview

import (
	"net/http"
	"strings"

	"github.com/onronder/p-958660-sub000/internal/apperr"
)

// Category groups failures by what the user can do about them.
type Category string

const (
	CategoryConnectivity Category = "connectivity"
	CategorySyntax       Category = "syntax"
	CategoryAuth         Category = "auth"
	CategoryOther        Category = "other"
)

// SupportThreshold is the retry count at which connectivity messages stop
// suggesting a refresh.
const SupportThreshold = 3

const (
	msgConnectivityRetry   = "Could not reach the data source. Check your connection and try refreshing the preview."
	msgConnectivitySupport = "The data source is still unreachable after several attempts. Please contact support."
	msgSyntax              = "The query has a GraphQL syntax problem. Review the query and try again."
	msgAuth                = "Authentication with the data source failed. Check the source credentials and access scopes."
)

// Classification is the user-facing reading of an error.
type Classification struct {
	Category Category
	Message  string
	// CountsAsRetry is true when the failure increments the session's
	// retry count.
	CountsAsRetry bool
}

var (
	connectivityHints = []string{"network", "timeout", "timed out", "fetch", "edge function"}
	syntaxHints       = []string{"graphql", "syntax"}
	authHints         = []string{"auth", "credential", "access"}
)

// Classify maps err to a category. Typed errors are classified by code;
// untyped errors by message text. retryCount is the session count after
// this failure has been counted.
func Classify(err error, retryCount int) Classification {
	category := categoryOf(err)
	switch category {
	case CategoryConnectivity:
		msg := msgConnectivityRetry
		if retryCount >= SupportThreshold {
			msg = msgConnectivitySupport
		}
		return Classification{Category: category, Message: msg, CountsAsRetry: true}
	case CategorySyntax:
		return Classification{Category: category, Message: msgSyntax}
	case CategoryAuth:
		return Classification{Category: category, Message: msgAuth}
	default:
		return Classification{Category: CategoryOther, Message: messageOf(err)}
	}
}

// CountsAsRetry reports whether err is a connectivity failure.
func CountsAsRetry(err error) bool {
	return categoryOf(err) == CategoryConnectivity
}

func categoryOf(err error) Category {
	if err == nil {
		return CategoryOther
	}
	if e, ok := apperr.As(err); ok {
		return categoryOfCode(e)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, connectivityHints):
		return CategoryConnectivity
	case containsAny(msg, syntaxHints):
		return CategorySyntax
	case containsAny(msg, authHints):
		return CategoryAuth
	default:
		return CategoryOther
	}
}

func categoryOfCode(e *apperr.Error) Category {
	switch e.Code {
	case apperr.CodeTimeout, apperr.CodeAPIRequestError:
		return CategoryConnectivity
	case apperr.CodeQueryResolution:
		return CategorySyntax
	case apperr.CodeInvalidCredentials, apperr.CodeIncompleteCredentials, apperr.CodeCredentialsNotFound:
		return CategoryAuth
	case apperr.CodeShopifyAPIError:
		switch {
		case e.Status >= http.StatusInternalServerError, e.Status == http.StatusTooManyRequests:
			return CategoryConnectivity
		case e.Status == http.StatusUnauthorized, e.Status == http.StatusForbidden:
			return CategoryAuth
		case e.Status == http.StatusBadRequest:
			return CategorySyntax
		}
	}
	return CategoryOther
}

func messageOf(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := apperr.As(err); ok {
		return e.Message
	}
	return err.Error()
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
