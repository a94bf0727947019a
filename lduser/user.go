// Package lduser defines the user record that flag evaluation is performed against.
//
// This is the single-kind user model described by the evaluation engine's data model:
// a required key plus a fixed set of built-in attributes and an open-ended custom map.
// It intentionally does not use the multi-kind ldcontext model from newer SDK versions,
// since the evaluation semantics implemented by this module predate that model.
package lduser

import "github.com/launchdarkly/go-sdk-common/v3/ldvalue"

// Built-in attribute names. These resolve from the top-level user record; any other
// attribute name is looked up in Custom.
const (
	KeyAttribute       = "key"
	IPAttribute        = "ip"
	CountryAttribute   = "country"
	EmailAttribute     = "email"
	FirstNameAttribute = "firstName"
	LastNameAttribute  = "lastName"
	AvatarAttribute    = "avatar"
	NameAttribute      = "name"
	AnonymousAttribute = "anonymous"
	SecondaryAttribute = "secondary"
)

// User is a single user record to be evaluated against a flag or segment.
type User struct {
	Key       string
	IP        ldvalue.OptionalString
	Country   ldvalue.OptionalString
	Email     ldvalue.OptionalString
	FirstName ldvalue.OptionalString
	LastName  ldvalue.OptionalString
	Avatar    ldvalue.OptionalString
	Name      ldvalue.OptionalString
	Anonymous bool
	Secondary ldvalue.OptionalString
	Custom    map[string]ldvalue.Value
}

// NewUser creates a user with only a key set.
func NewUser(key string) User {
	return User{Key: key}
}

// GetAttribute resolves a built-in or custom attribute by name, returning ldvalue.Null()
// if the attribute is not present. Built-in names are matched against the top-level
// fields; any other name is looked up in Custom.
func (u User) GetAttribute(name string) ldvalue.Value {
	switch name {
	case KeyAttribute:
		if u.Key == "" {
			return ldvalue.Null()
		}
		return ldvalue.String(u.Key)
	case IPAttribute:
		return optStringValue(u.IP)
	case CountryAttribute:
		return optStringValue(u.Country)
	case EmailAttribute:
		return optStringValue(u.Email)
	case FirstNameAttribute:
		return optStringValue(u.FirstName)
	case LastNameAttribute:
		return optStringValue(u.LastName)
	case AvatarAttribute:
		return optStringValue(u.Avatar)
	case NameAttribute:
		return optStringValue(u.Name)
	case AnonymousAttribute:
		return ldvalue.Bool(u.Anonymous)
	case SecondaryAttribute:
		return optStringValue(u.Secondary)
	default:
		if u.Custom == nil {
			return ldvalue.Null()
		}
		if v, ok := u.Custom[name]; ok {
			return v
		}
		return ldvalue.Null()
	}
}

func optStringValue(o ldvalue.OptionalString) ldvalue.Value {
	if o.IsDefined() {
		return ldvalue.String(o.StringValue())
	}
	return ldvalue.Null()
}

// WithCustom returns a copy of u with the given custom attribute set.
func (u User) WithCustom(name string, value ldvalue.Value) User {
	custom := make(map[string]ldvalue.Value, len(u.Custom)+1)
	for k, v := range u.Custom {
		custom[k] = v
	}
	custom[name] = value
	u.Custom = custom
	return u
}

// IsValid reports whether the user has a non-empty key, as required by the evaluation
// engine's preconditions.
func (u User) IsValid() bool {
	return u.Key != ""
}
