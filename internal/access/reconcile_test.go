package access

import (
	"context"
	"errors"
	"testing"

	"github.com/askidaforma/askida-forma/internal/access/password"
	"github.com/askidaforma/askida-forma/internal/config"
	sdkaccess "github.com/askidaforma/askida-forma/sdk/access"
)

func cfgWithPassword(pw string) *config.Config {
	cfg := config.Default()
	cfg.Admin.Password = pw
	return cfg
}

func TestApplyAccessProviders(t *testing.T) {
	ctx := context.Background()
	manager := sdkaccess.NewManager()

	first := cfgWithPassword("one")
	changed, err := ApplyAccessProviders(manager, nil, first)
	if err != nil || !changed {
		t.Fatalf("initial apply = %v, %v", changed, err)
	}
	if _, err := manager.Verify(ctx, "one"); err != nil {
		t.Fatalf("Verify(one): %v", err)
	}
	before := manager.Providers()[0]

	same := cfgWithPassword("one")
	changed, err = ApplyAccessProviders(manager, first, same)
	if err != nil || changed {
		t.Fatalf("unchanged apply = %v, %v", changed, err)
	}
	if manager.Providers()[0] != before {
		t.Fatalf("provider rebuilt although config did not change")
	}

	rotated := cfgWithPassword("two")
	changed, err = ApplyAccessProviders(manager, same, rotated)
	if err != nil || !changed {
		t.Fatalf("rotated apply = %v, %v", changed, err)
	}
	if _, err := manager.Verify(ctx, "one"); !errors.Is(err, sdkaccess.ErrInvalidCredential) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := manager.Verify(ctx, "two"); err != nil {
		t.Fatalf("Verify(two): %v", err)
	}

	locked := cfgWithPassword("")
	if _, err := ApplyAccessProviders(manager, rotated, locked); err != nil {
		t.Fatalf("locked apply: %v", err)
	}
	if _, err := manager.Verify(ctx, "two"); !errors.Is(err, sdkaccess.ErrNoProviders) {
		t.Fatalf("error = %v, want ErrNoProviders", err)
	}
}

func TestReconcileProvidersReportsChanges(t *testing.T) {
	password.Register()
	_, added, updated, removed, err := ReconcileProviders(nil, cfgWithPassword("a"), nil)
	if err != nil {
		t.Fatalf("ReconcileProviders: %v", err)
	}
	if len(added) != 1 || added[0] != password.DefaultName || len(updated)+len(removed) != 0 {
		t.Fatalf("added=%v updated=%v removed=%v", added, updated, removed)
	}

	existing, _, _, _, _ := ReconcileProviders(nil, cfgWithPassword("a"), nil)
	_, added, updated, removed, _ = ReconcileProviders(cfgWithPassword("a"), cfgWithPassword("b"), existing)
	if len(updated) != 1 || len(added)+len(removed) != 0 {
		t.Fatalf("added=%v updated=%v removed=%v", added, updated, removed)
	}

	_, _, _, removed, _ = ReconcileProviders(cfgWithPassword("b"), cfgWithPassword(""), existing)
	if len(removed) != 1 {
		t.Fatalf("removed = %v", removed)
	}
}
