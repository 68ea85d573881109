package model

import (
	"testing"
)

func TestSeedRolesCreatesRoles(t *testing.T) {
	db := setupTestDB(t, "role", &Role{})

	if err := SeedRoles(db); err != nil {
		t.Fatalf("SeedRoles returned error: %v", err)
	}

	var count int64
	if err := db.Model(&Role{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count roles: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 seeded roles, got %d", count)
	}

	// Seeding twice does not duplicate roles
	if err := SeedRoles(db); err != nil {
		t.Fatalf("SeedRoles second run returned error: %v", err)
	}
	if err := db.Model(&Role{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count roles: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 roles after reseeding, got %d", count)
	}
}

func TestRoleIDByName(t *testing.T) {
	db := setupTestDB(t, "role_lookup", &Role{})

	if err := SeedRoles(db); err != nil {
		t.Fatalf("SeedRoles returned error: %v", err)
	}

	id, err := RoleIDByName(db, RoleDoctor)
	if err != nil {
		t.Fatalf("RoleIDByName returned error: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero role id")
	}

	if _, err := RoleIDByName(db, "Receptionist"); err == nil {
		t.Fatal("expected error for unknown role name")
	}
}
