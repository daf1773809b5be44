package tests

import (
	"errors"
	"fmt"
	"testing"

	"mcs_platform/monitor/schema"
)

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 2; i++ {
		username := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@mail.com", i)
		password := fmt.Sprintf("user%d_password", i)

		client := env.newClient()
		login, err := client.signup(username, email, password)
		if err != nil {
			t.Fatal(err)
		}

		_, err = client.signup(username, email, password)
		if !errors.Is(err, ErrConflict) {
			t.Fatal("duplicate signup should conflict")
		}

		err = client.login(loginInfo{Username: "nosuchuser", Password: password})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatal("login should fail with wrong username")
		}

		err = client.login(loginInfo{Username: username, Password: "wrong_password"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatal("login should fail with wrong password")
		}

		err = client.login(login)
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestDuplicateEmailConflicts(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()
	_, err := client.signup("first_user", "shared@mail.com", "first_password")
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.signup("second_user", "shared@mail.com", "second_password")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email should conflict, got %v", err)
	}

	_, err = client.signup("first_user", "unused@mail.com", "first_password")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate username should conflict, got %v", err)
	}
}

func TestRequestsRequireAuth(t *testing.T) {
	env := setupTestEnv(t)

	client := env.newClient()

	err := client.Get("/sites/").Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("unauthenticated request should be rejected, got %v", err)
	}

	client.authToken = "not.a.valid.token"
	err = client.Get("/sites/").Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("tampered token should be rejected, got %v", err)
	}
}

func TestUserManagementRequiresPermission(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("regular")
	if err != nil {
		t.Fatal(err)
	}

	body := map[string]string{"first_name": "Changed"}

	err = user.Put("/users/"+user.userId).Json(body).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("regular user should not manage users, got %v", err)
	}

	var updated schema.User
	err = admin.Put("/users/"+user.userId).Json(body).Do(&updated)
	if err != nil {
		t.Fatal(err)
	}
	if updated.FirstName != "Changed" {
		t.Fatalf("update not applied: %v", updated.FirstName)
	}
}

func TestSoftDeleteUser(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("deactivate_me")
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Delete("/users/" + user.userId).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	// The row survives, only the status changes.
	var deleted schema.User
	err = admin.Get("/users/" + user.userId).Do(&deleted)
	if err != nil {
		t.Fatal(err)
	}
	if deleted.Status != schema.UserInactive {
		t.Fatalf("expected inactive status, got %v", deleted.Status)
	}

	// Existing tokens stop working once the account is inactive.
	err = user.Get("/sites/").Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("deactivated user should not authenticate, got %v", err)
	}

	err = user.login(loginInfo{Username: "deactivate_me", Password: "deactivate_me_password"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("deactivated user should not log in, got %v", err)
	}
}

func TestRoleAssignment(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("operator1")
	if err != nil {
		t.Fatal(err)
	}

	var role schema.Role
	err = admin.Post("/users/roles").Json(map[string]string{"name": "operator", "description": "operations staff"}).Do(&role)
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Post("/users/roles").Json(map[string]string{"name": "operator"}).Do(nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate role name should conflict, got %v", err)
	}

	err = admin.Post("/users/"+user.userId+"/roles").Json(map[string]interface{}{"role_id": role.Id}).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	var roles []schema.Role
	err = admin.Get("/users/" + user.userId + "/roles").Do(&roles)
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 1 || roles[0].Name != "operator" {
		t.Fatalf("unexpected roles: %v", roles)
	}

	err = admin.Delete("/users/" + user.userId + "/roles/" + role.Id.String()).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Get("/users/" + user.userId + "/roles").Do(&roles)
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 0 {
		t.Fatalf("role should be revoked: %v", roles)
	}
}
