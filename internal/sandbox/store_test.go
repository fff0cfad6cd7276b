package sandbox

import (
	"context"
	"path/filepath"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAddEmployeeCreatesCredentials(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	id, err := store.AddEmployee(ctx, NewEmployee{Name: "Ada Lovelace", Password: "secret", Scores: Scores{90, 80}})
	if err != nil {
		t.Fatalf("add employee: %v", err)
	}
	if got := Username("Ada Lovelace", id); got != "adalovelace1" {
		t.Fatalf("username = %q", got)
	}
	empID, admin, ok, err := store.Authenticate(ctx, "adalovelace1", "secret")
	if err != nil || !ok || admin || empID != id {
		t.Fatalf("authenticate = %d %v %v %v", empID, admin, ok, err)
	}
	if _, _, ok, _ := store.Authenticate(ctx, "adalovelace1", "wrong"); ok {
		t.Fatalf("wrong password must not authenticate")
	}

	list, err := store.ListEmployees(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Ada Lovelace" || list[0].RoleName.String != "Trainee" {
		t.Fatalf("list = %+v", list)
	}
	rec, found, err := store.Employee(ctx, id)
	if err != nil || !found {
		t.Fatalf("employee lookup = %v %v", found, err)
	}
	if rec.Scores[0] != 90 || rec.Scores[1] != 80 || rec.Scores[2] != 0 {
		t.Fatalf("scores = %v", rec.Scores)
	}
}

func TestSeededAdminAccount(t *testing.T) {
	_, admin, ok, err := openStore(t).Authenticate(context.Background(), "admin", "admin")
	if err != nil || !ok || !admin {
		t.Fatalf("seeded admin = %v %v %v", admin, ok, err)
	}
}

func TestDefaultPasswordForBulkRows(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	n, err := store.AddEmployees(ctx, []NewEmployee{{Name: "Bob"}, {Name: "Eve Smith"}})
	if err != nil || n != 2 {
		t.Fatalf("add employees = %d, %v", n, err)
	}
	if _, _, ok, _ := store.Authenticate(ctx, "evesmith2", "pass2"); !ok {
		t.Fatalf("bulk row should get the default pass<id> password")
	}
}

func TestDeleteEmployeeReportsMissingRows(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	id, err := store.AddEmployee(ctx, NewEmployee{Name: "Bob", Password: "pw"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	removed, err := store.DeleteEmployee(ctx, id)
	if err != nil || !removed {
		t.Fatalf("first delete = %v %v", removed, err)
	}
	removed, err = store.DeleteEmployee(ctx, id)
	if err != nil || removed {
		t.Fatalf("second delete = %v %v", removed, err)
	}
	if _, _, ok, _ := store.Authenticate(ctx, Username("Bob", id), "pw"); ok {
		t.Fatalf("credentials should be removed with the employee")
	}
}

func TestStorePersistsToDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "roster.db")
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.AddEmployee(ctx, NewEmployee{Name: "Grace"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	list, err := reopened.ListEmployees(ctx)
	if err != nil || len(list) != 1 || list[0].Name != "Grace" {
		t.Fatalf("reopened list = %+v, %v", list, err)
	}
}
