package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePermission(t *testing.T) {
	path := []int64{1, 3, 15}

	tests := []struct {
		name   string
		grants []Grant
		want   bool
	}{
		{name: "no grants", grants: nil, want: false},
		{name: "allow at system", grants: []Grant{{ContextID: 1, Permission: PermissionAllow}}, want: true},
		{name: "allow at leaf", grants: []Grant{{ContextID: 15, Permission: PermissionAllow}}, want: true},
		{
			name: "prevent overrides allow above",
			grants: []Grant{
				{ContextID: 1, Permission: PermissionAllow},
				{ContextID: 3, Permission: PermissionPrevent},
			},
			want: false,
		},
		{
			name: "allow overrides prevent above",
			grants: []Grant{
				{ContextID: 1, Permission: PermissionPrevent},
				{ContextID: 15, Permission: PermissionAllow},
			},
			want: true,
		},
		{
			name: "prohibit above wins",
			grants: []Grant{
				{ContextID: 1, Permission: PermissionProhibit},
				{ContextID: 15, Permission: PermissionAllow},
			},
			want: false,
		},
		{
			name: "prohibit outside path ignored",
			grants: []Grant{
				{ContextID: 99, Permission: PermissionProhibit},
				{ContextID: 3, Permission: PermissionAllow},
			},
			want: true,
		},
		{
			name:   "inherit only",
			grants: []Grant{{ContextID: 15, Permission: PermissionInherit}},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePermission(path, tt.grants))
		})
	}
}

func TestParseContextPath(t *testing.T) {
	ids, err := ParseContextPath("/1/3/15")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 15}, ids)

	ids, err = ParseContextPath("/1")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	_, err = ParseContextPath("/1/x")
	assert.Error(t, err)
}
