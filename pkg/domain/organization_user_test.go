package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestOrganizationUserType_AtLeast(t *testing.T) {
	tests := []struct {
		name string
		typ  OrganizationUserType
		min  OrganizationUserType
		want bool
	}{
		{"owner is at least admin", OrganizationUserTypeOwner, OrganizationUserTypeAdmin, true},
		{"admin is at least admin", OrganizationUserTypeAdmin, OrganizationUserTypeAdmin, true},
		{"custom is not admin", OrganizationUserTypeCustom, OrganizationUserTypeAdmin, false},
		{"manager ranks with custom", OrganizationUserTypeManager, OrganizationUserTypeCustom, true},
		{"user is not custom", OrganizationUserTypeUser, OrganizationUserTypeCustom, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.AtLeast(tt.min); got != tt.want {
				t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.typ, tt.min, got, tt.want)
			}
		})
	}
}

func TestParseOrganizationUserType(t *testing.T) {
	typ, ok := ParseOrganizationUserType(" Admin ")
	if !ok || typ != OrganizationUserTypeAdmin {
		t.Errorf("ParseOrganizationUserType(Admin) = %v, %v", typ, ok)
	}
	if _, ok := ParseOrganizationUserType("root"); ok {
		t.Error("ParseOrganizationUserType(root) should fail")
	}
}

func TestOrganizationUser_SetPermissions(t *testing.T) {
	perms := Permissions{ManageUsers: true}

	custom := &OrganizationUser{Type: OrganizationUserTypeCustom}
	custom.SetPermissions(perms)
	if !custom.Permissions.ManageUsers {
		t.Error("custom member should keep permissions")
	}

	user := &OrganizationUser{Type: OrganizationUserTypeUser}
	user.SetPermissions(perms)
	if user.Permissions.ManageUsers {
		t.Error("non-custom member should not keep permissions")
	}
}

func TestOrganizationUser_HasUser(t *testing.T) {
	id := uuid.New()
	ou := &OrganizationUser{UserID: &id}

	if !ou.HasUser(id) {
		t.Error("HasUser should match linked user")
	}
	if ou.HasUser(uuid.New()) {
		t.Error("HasUser should not match another user")
	}
	if (&OrganizationUser{}).HasUser(id) {
		t.Error("HasUser should be false for invited member")
	}
}

func TestItemResult_Partitions(t *testing.T) {
	results := []ItemResult[string]{
		{Item: "a"},
		{Item: "b", Err: ErrBadRequest("nope")},
		{Item: "c", Err: &SoftFailure{Operation: "cancel premium", Err: errors.New("gateway down")}},
	}

	successes := Successes(results)
	if len(successes) != 2 || successes[0] != "a" || successes[1] != "c" {
		t.Errorf("Successes() = %v, want [a c]", successes)
	}

	failures := Failures(results)
	if len(failures) != 1 || failures[0].Item != "b" {
		t.Errorf("Failures() = %v, want [b]", failures)
	}
}

func TestCommandResult_Success(t *testing.T) {
	if !NewCommandResult().Success() {
		t.Error("empty result should succeed")
	}
	if NewCommandResult("boom").Success() {
		t.Error("result with messages should fail")
	}
}
