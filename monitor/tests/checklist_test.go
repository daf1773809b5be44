package tests

import (
	"errors"
	"fmt"
	"testing"

	"mcs_platform/monitor/schema"

	"github.com/google/uuid"
)

func createChecklist(t *testing.T, c client, name string) schema.Checklist {
	t.Helper()

	var checklist schema.Checklist
	err := c.Post("/checklists/").Json(map[string]string{"name": name}).Do(&checklist)
	if err != nil {
		t.Fatal(err)
	}
	return checklist
}

func createStep(t *testing.T, c client, checklistId uuid.UUID, number int, description string) schema.ChecklistStep {
	t.Helper()

	var step schema.ChecklistStep
	body := map[string]interface{}{"step_number": number, "description": description}
	err := c.Post("/checklists/"+checklistId.String()+"/steps").Json(body).Do(&step)
	if err != nil {
		t.Fatal(err)
	}
	return step
}

func TestChecklistCrud(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("checklists")
	if err != nil {
		t.Fatal(err)
	}

	checklist := createChecklist(t, user, "morning rounds")
	if checklist.Status != schema.ChecklistActive {
		t.Fatalf("expected active status, got %v", checklist.Status)
	}
	if checklist.CreatedBy.String() != user.userId {
		t.Fatalf("checklist not attributed to creator: %v", checklist.CreatedBy)
	}

	var updated schema.Checklist
	err = user.Put("/checklists/"+checklist.Id.String()).Json(map[string]string{"status": schema.ChecklistArchived}).Do(&updated)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != schema.ChecklistArchived || updated.Name != "morning rounds" {
		t.Fatalf("partial update misapplied: %+v", updated)
	}

	err = user.Get("/checklists/" + uuid.NewString()).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing checklist should 404, got %v", err)
	}
}

func TestTemplates(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("templates")
	if err != nil {
		t.Fatal(err)
	}

	var template schema.ChecklistTemplate
	err = user.Post("/checklists/templates").Json(map[string]string{"name": "standard patrol"}).Do(&template)
	if err != nil {
		t.Fatal(err)
	}
	if template.Version != "1.0" {
		t.Fatalf("expected default version, got %v", template.Version)
	}

	var checklist schema.Checklist
	err = user.Post("/checklists/").Json(map[string]interface{}{"name": "patrol week 1", "template_id": template.Id}).Do(&checklist)
	if err != nil {
		t.Fatal(err)
	}
	if checklist.TemplateId == nil || *checklist.TemplateId != template.Id {
		t.Fatalf("checklist not linked to template: %v", checklist.TemplateId)
	}

	err = user.Post("/checklists/").Json(map[string]interface{}{"name": "bad", "template_id": uuid.New()}).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing template should 404, got %v", err)
	}

	// Deleting the template detaches, it does not delete the checklist. The
	// delete itself requires the manage_checklists permission.
	err = user.Delete("/checklists/templates/" + template.Id.String()).Do(nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("template delete without permission should 403, got %v", err)
	}

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Delete("/checklists/templates/" + template.Id.String()).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	var detached schema.Checklist
	err = user.Get("/checklists/" + checklist.Id.String()).Do(&detached)
	if err != nil {
		t.Fatal(err)
	}
	if detached.TemplateId != nil {
		t.Fatalf("checklist should be detached from deleted template: %v", detached.TemplateId)
	}
}

func TestStepsOrderedByNumber(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("steporder")
	if err != nil {
		t.Fatal(err)
	}

	checklist := createChecklist(t, user, "ordered")

	// Insert out of order on purpose.
	for _, n := range []int{3, 1, 2} {
		createStep(t, user, checklist.Id, n, fmt.Sprintf("step %d", n))
	}

	var steps []schema.ChecklistStep
	err = user.Get("/checklists/" + checklist.Id.String() + "/steps").Do(&steps)
	if err != nil {
		t.Fatal(err)
	}

	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	for i, step := range steps {
		if step.StepNumber != i+1 {
			t.Fatalf("steps out of order: position %d has number %d", i, step.StepNumber)
		}
	}
}

func TestStepCameraMappings(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("mappings")
	if err != nil {
		t.Fatal(err)
	}

	site := createSite(t, user, "mapped site")
	zone := createZone(t, user, site.Id, "mapped zone")
	camera := createCamera(t, user, zone.Id, "mapped cam")

	checklist := createChecklist(t, user, "camera checks")
	step := createStep(t, user, checklist.Id, 1, "verify entrance")

	var mapping schema.CameraMapping
	body := map[string]interface{}{"camera_id": camera.Id, "zone_config": `{"region": "entrance"}`}
	err = user.Post("/checklists/steps/"+step.Id.String()+"/mappings").Json(body).Do(&mapping)
	if err != nil {
		t.Fatal(err)
	}

	err = user.Post("/checklists/steps/"+step.Id.String()+"/mappings").Json(map[string]interface{}{"camera_id": uuid.New()}).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("mapping to missing camera should 404, got %v", err)
	}

	var stepMappings []schema.CameraMapping
	err = user.Get("/checklists/steps/" + step.Id.String() + "/mappings").Do(&stepMappings)
	if err != nil {
		t.Fatal(err)
	}
	if len(stepMappings) != 1 || stepMappings[0].CameraId != camera.Id {
		t.Fatalf("unexpected mappings: %v", stepMappings)
	}

	var cameraMappings []schema.CameraMapping
	err = user.Get("/cameras/" + camera.Id.String() + "/mappings").Do(&cameraMappings)
	if err != nil {
		t.Fatal(err)
	}
	if len(cameraMappings) != 1 || cameraMappings[0].StepId != step.Id {
		t.Fatalf("unexpected camera mappings: %v", cameraMappings)
	}

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Delete("/checklists/mappings/" + uuid.NewString()).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing mapping should 404, got %v", err)
	}

	err = admin.Delete("/checklists/mappings/" + mapping.Id.String()).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	err = user.Get("/checklists/steps/" + step.Id.String() + "/mappings").Do(&stepMappings)
	if err != nil {
		t.Fatal(err)
	}
	if len(stepMappings) != 0 {
		t.Fatalf("mapping should be removed: %v", stepMappings)
	}
}

func TestChecklistDeleteCascades(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("cldelete")
	if err != nil {
		t.Fatal(err)
	}

	checklist := createChecklist(t, user, "doomed checklist")
	step := createStep(t, user, checklist.Id, 1, "doomed step")

	var execution schema.Execution
	err = user.Post("/executions/").Json(map[string]interface{}{"checklist_id": checklist.Id}).Do(&execution)
	if err != nil {
		t.Fatal(err)
	}

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	err = admin.Delete("/checklists/" + checklist.Id.String()).Do(nil)
	if err != nil {
		t.Fatal(err)
	}

	err = user.Get("/checklists/" + checklist.Id.String() + "/steps").Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("checklist should be gone, got %v", err)
	}

	err = user.Get("/executions/" + execution.Id.String()).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("execution history should be gone with the checklist, got %v", err)
	}

	err = user.Put("/checklists/steps/"+step.Id.String()).Json(map[string]string{"description": "x"}).Do(nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("step should be gone with the checklist, got %v", err)
	}
}
