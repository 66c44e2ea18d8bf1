package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleManager, ActionManage, true},
		{RoleManager, ActionWrite, true},
		{RoleAuthor, ActionWrite, true},
		{RoleAuthor, ActionManage, false},
		{RoleExternal, ActionRead, true},
		{RoleExternal, ActionWrite, false},
		{Role("unknown"), ActionRead, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("manager") != RoleManager {
		t.Fatal("manager should survive normalization")
	}
	if Normalize("superuser") != RoleExternal {
		t.Fatal("unknown roles normalize to external")
	}
}
