package tests

import (
	"errors"
	"testing"

	"mcs_platform/monitor/schema"

	"github.com/google/uuid"
)

func createSite(t *testing.T, c client, name string) schema.Site {
	t.Helper()

	var site schema.Site
	err := c.Post("/sites/").Json(map[string]string{"name": name, "location": "hq"}).Do(&site)
	if err != nil {
		t.Fatal(err)
	}
	return site
}

func createZone(t *testing.T, c client, siteId uuid.UUID, name string) schema.Zone {
	t.Helper()

	var zone schema.Zone
	err := c.Post("/zones/").Json(map[string]interface{}{"name": name, "site_id": siteId}).Do(&zone)
	if err != nil {
		t.Fatal(err)
	}
	return zone
}

func createCamera(t *testing.T, c client, zoneId uuid.UUID, name string) schema.Camera {
	t.Helper()

	var camera schema.Camera
	err := c.Post("/cameras/").Json(map[string]interface{}{"name": name, "zone_id": zoneId}).Do(&camera)
	if err != nil {
		t.Fatal(err)
	}
	return camera
}

func TestSiteCrud(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("siteadmin")
	if err != nil {
		t.Fatal(err)
	}

	site := createSite(t, user, "warehouse")
	if site.Status != "Active" {
		t.Fatalf("expected default active status, got %v", site.Status)
	}

	var fetched schema.Site
	err = user.Get("/sites/" + site.Id.String()).Do(&fetched)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Name != "warehouse" || fetched.Location != "hq" {
		t.Fatalf("unexpected site: %+v", fetched)
	}

	err = user.Put("/sites/"+site.Id.String()).Json(map[string]string{"location": "north lot"}).Do(&fetched)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Location != "north lot" || fetched.Name != "warehouse" {
		t.Fatalf("partial update misapplied: %+v", fetched)
	}

	var sites []schema.Site
	err = user.Get("/sites/").Do(&sites)
	if err != nil {
		t.Fatal(err)
	}
	if len(sites) != 1 {
		t.Fatalf("expected 1 site, got %d", len(sites))
	}

	err = user.Get("/sites/" + uuid.NewString()).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing site should 404, got %v", err)
	}
}

func TestZoneRequiresExistingSite(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("zoneadmin")
	if err != nil {
		t.Fatal(err)
	}

	err = user.Post("/zones/").Json(map[string]interface{}{"name": "orphan", "site_id": uuid.New()}).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("zone under missing site should 404, got %v", err)
	}

	// No partial row should remain after the failed create.
	var zones []schema.Zone
	err = user.Get("/zones/").Do(&zones)
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != 0 {
		t.Fatalf("failed create left a row behind: %v", zones)
	}

	site := createSite(t, user, "plant")
	zone := createZone(t, user, site.Id, "loading dock")
	if zone.SiteId != site.Id {
		t.Fatalf("zone attached to wrong site: %v", zone.SiteId)
	}
}

func TestZoneListFilteredBySite(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("filtering")
	if err != nil {
		t.Fatal(err)
	}

	siteA := createSite(t, user, "site a")
	siteB := createSite(t, user, "site b")

	createZone(t, user, siteA.Id, "a1")
	createZone(t, user, siteA.Id, "a2")
	createZone(t, user, siteB.Id, "b1")

	var zones []schema.Zone
	err = user.Get("/zones/?site_id=" + siteA.Id.String()).Do(&zones)
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != 2 {
		t.Fatalf("expected 2 zones for site a, got %d", len(zones))
	}

	err = user.Get("/zones/").Do(&zones)
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != 3 {
		t.Fatalf("expected 3 zones total, got %d", len(zones))
	}
}

func TestCameraDefaults(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("camadmin")
	if err != nil {
		t.Fatal(err)
	}

	site := createSite(t, user, "depot")
	zone := createZone(t, user, site.Id, "gate")

	camera := createCamera(t, user, zone.Id, "gate cam 1")
	if camera.Status != schema.CameraOnline {
		t.Fatalf("expected online status, got %v", camera.Status)
	}
	if !camera.RecordingEnabled {
		t.Fatal("recording should default to enabled")
	}

	err = user.Post("/cameras/").Json(map[string]interface{}{"name": "orphan cam", "zone_id": uuid.New()}).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("camera under missing zone should 404, got %v", err)
	}
}

func TestSiteDeleteCascades(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("cascade")
	if err != nil {
		t.Fatal(err)
	}

	site := createSite(t, user, "doomed")
	zone := createZone(t, user, site.Id, "doomed zone")
	camera := createCamera(t, user, zone.Id, "doomed cam")

	survivor := createSite(t, user, "survivor")
	survivorZone := createZone(t, user, survivor.Id, "survivor zone")

	// Subtree removal requires the manage_topology permission.
	err = user.Delete("/sites/" + site.Id.String()).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("site delete without permission should 403, got %v", err)
	}

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Delete("/sites/" + site.Id.String()).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, endpoint := range []string{
		"/sites/" + site.Id.String(),
		"/zones/" + zone.Id.String(),
		"/cameras/" + camera.Id.String(),
	} {
		err = user.Get(endpoint).Do(nil)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("%v should be gone after cascade, got %v", endpoint, err)
		}
	}

	err = user.Get("/zones/" + survivorZone.Id.String()).Do(nil)
	if err != nil {
		t.Fatalf("unrelated zone should survive: %v", err)
	}
}
