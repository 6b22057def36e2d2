package acl

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeResource struct {
	rules []Rule
}

func (r *fakeResource) ACL() []Rule { return r.rules }

func TestHasPermission(t *testing.T) {
	ownerID := uuid.New()
	otherID := uuid.New()

	resource := &fakeResource{rules: []Rule{
		{Principals: []Principal{Everyone}, Action: ActionView},
		{Principals: []Principal{RolePrincipal("admin")}, Action: ActionEdit},
		{Principals: []Principal{RolePrincipal("uploader"), UserPrincipal(ownerID)}, Action: ActionEdit},
	}}

	tests := []struct {
		name       string
		principals []Principal
		action     Action
		expected   bool
	}{
		{
			name:       "everyone can view",
			principals: AnonymousPrincipals(),
			action:     ActionView,
			expected:   true,
		},
		{
			name:       "anonymous cannot edit",
			principals: AnonymousPrincipals(),
			action:     ActionEdit,
			expected:   false,
		},
		{
			name:       "admin role can edit",
			principals: []Principal{Everyone, Authenticated, RolePrincipal("admin")},
			action:     ActionEdit,
			expected:   true,
		},
		{
			name:       "owner can edit regardless of role",
			principals: []Principal{Everyone, Authenticated, UserPrincipal(ownerID), RolePrincipal("user")},
			action:     ActionEdit,
			expected:   true,
		},
		{
			name:       "unrelated uploader can edit via role principal",
			principals: []Principal{Everyone, Authenticated, UserPrincipal(otherID), RolePrincipal("uploader")},
			action:     ActionEdit,
			expected:   true,
		},
		{
			name:       "plain user cannot edit",
			principals: []Principal{Everyone, Authenticated, UserPrincipal(otherID), RolePrincipal("user")},
			action:     ActionEdit,
			expected:   false,
		},
		{
			name:       "no create rule means denied",
			principals: []Principal{Everyone, Authenticated, RolePrincipal("admin")},
			action:     ActionCreate,
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HasPermission(tt.principals, tt.action, resource))
		})
	}
}

func TestAllowsEmptyRules(t *testing.T) {
	assert.False(t, Allows([]Principal{Everyone}, ActionView, nil))
}
