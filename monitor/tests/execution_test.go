package tests

import (
	"testing"
	"time"

	"mcs_platform/monitor/schema"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startExecution(t *testing.T, c client, checklistId uuid.UUID) schema.Execution {
	t.Helper()

	var execution schema.Execution
	err := c.Post("/executions/").Json(map[string]interface{}{"checklist_id": checklistId}).Do(&execution)
	require.NoError(t, err)
	return execution
}

func TestExecutionLifecycle(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("executor")
	require.NoError(t, err)

	checklist := createChecklist(t, user, "nightly rounds")

	err = user.Post("/executions/").Json(map[string]interface{}{"checklist_id": uuid.New()}).Do(nil)
	require.ErrorIs(t, err, ErrNotFound)

	execution := startExecution(t, user, checklist.Id)
	assert.Equal(t, schema.ExecutionInProgress, execution.Status)
	assert.Equal(t, user.userId, execution.UserId.String())
	assert.Nil(t, execution.EndTime)
	assert.False(t, execution.StartTime.IsZero())

	var completed schema.Execution
	err = user.Put("/executions/" + execution.Id.String() + "/complete").Do(&completed)
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionCompleted, completed.Status)
	require.NotNil(t, completed.EndTime)

	firstEnd := *completed.EndTime

	// Completing again is allowed and refreshes the end timestamp.
	time.Sleep(10 * time.Millisecond)
	err = user.Put("/executions/" + execution.Id.String() + "/complete").Do(&completed)
	require.NoError(t, err)
	require.NotNil(t, completed.EndTime)
	assert.True(t, completed.EndTime.After(firstEnd) || completed.EndTime.Equal(firstEnd))
}

func TestExecutionListFilteredByChecklist(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("execlist")
	require.NoError(t, err)

	checklistA := createChecklist(t, user, "list a")
	checklistB := createChecklist(t, user, "list b")

	startExecution(t, user, checklistA.Id)
	startExecution(t, user, checklistA.Id)
	startExecution(t, user, checklistB.Id)

	var executions []schema.Execution
	err = user.Get("/executions/?checklist_id=" + checklistA.Id.String()).Do(&executions)
	require.NoError(t, err)
	assert.Len(t, executions, 2)

	err = user.Get("/executions/").Do(&executions)
	require.NoError(t, err)
	assert.Len(t, executions, 3)
}

func TestStepExecutionMustMatchChecklist(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("stepexec")
	require.NoError(t, err)

	checklist := createChecklist(t, user, "main list")
	step := createStep(t, user, checklist.Id, 1, "check the gate")

	other := createChecklist(t, user, "other list")
	foreignStep := createStep(t, user, other.Id, 1, "unrelated step")

	execution := startExecution(t, user, checklist.Id)

	var stepExecution schema.StepExecution
	body := map[string]interface{}{"step_id": step.Id, "status": schema.StepCompleted}
	err = user.Post("/executions/"+execution.Id.String()+"/steps").Json(body).Do(&stepExecution)
	require.NoError(t, err)
	assert.Equal(t, schema.StepCompleted, stepExecution.Status)

	// A step from a different checklist cannot be recorded here.
	err = user.Post("/executions/"+execution.Id.String()+"/steps").
		Json(map[string]interface{}{"step_id": foreignStep.Id}).Do(nil)
	require.ErrorIs(t, err, ErrUnprocessable)

	var stepExecutions []schema.StepExecution
	err = user.Get("/executions/" + execution.Id.String() + "/steps").Do(&stepExecutions)
	require.NoError(t, err)
	assert.Len(t, stepExecutions, 1)

	// Retrying the same step is allowed, each attempt is its own record.
	err = user.Post("/executions/"+execution.Id.String()+"/steps").Json(body).Do(nil)
	require.NoError(t, err)

	err = user.Get("/executions/" + execution.Id.String() + "/steps").Do(&stepExecutions)
	require.NoError(t, err)
	assert.Len(t, stepExecutions, 2)
}

func TestStepExecutionPartialUpdate(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("stepupdate")
	require.NoError(t, err)

	checklist := createChecklist(t, user, "update list")
	step := createStep(t, user, checklist.Id, 1, "inspect loading bay")
	execution := startExecution(t, user, checklist.Id)

	var stepExecution schema.StepExecution
	err = user.Post("/executions/"+execution.Id.String()+"/steps").
		Json(map[string]interface{}{"step_id": step.Id, "notes": "camera angle looks off"}).Do(&stepExecution)
	require.NoError(t, err)
	assert.Equal(t, schema.StepPending, stepExecution.Status)

	var updated schema.StepExecution
	err = user.Put("/executions/steps/"+stepExecution.Id.String()).
		Json(map[string]interface{}{"status": schema.StepCompleted, "verification_result": schema.ResultPass}).Do(&updated)
	require.NoError(t, err)
	assert.Equal(t, schema.StepCompleted, updated.Status)
	require.NotNil(t, updated.VerificationResult)
	assert.Equal(t, schema.ResultPass, *updated.VerificationResult)

	// Fields left out of the request keep their values.
	assert.Equal(t, "camera angle looks off", updated.Notes)
	assert.Equal(t, step.Id, updated.StepId)
	assert.Equal(t, execution.Id, updated.ExecutionId)

	err = user.Put("/executions/steps/"+stepExecution.Id.String()).
		Json(map[string]interface{}{"execution_time": 12.5}).Do(&updated)
	require.NoError(t, err)
	assert.Equal(t, 12.5, updated.ExecutionTime)
	assert.Equal(t, schema.StepCompleted, updated.Status)

	err = user.Put("/executions/steps/"+uuid.NewString()).
		Json(map[string]interface{}{"status": schema.StepFailed}).Do(nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEvidenceMetadataAmend(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("amender")
	require.NoError(t, err)

	checklist := createChecklist(t, user, "amend list")
	step := createStep(t, user, checklist.Id, 1, "record gate footage")
	execution := startExecution(t, user, checklist.Id)

	var stepExecution schema.StepExecution
	err = user.Post("/executions/"+execution.Id.String()+"/steps").
		Json(map[string]interface{}{"step_id": step.Id}).Do(&stepExecution)
	require.NoError(t, err)

	var evidence schema.Evidence
	err = user.Post("/executions/steps/"+stepExecution.Id.String()+"/evidence").
		Json(map[string]string{"file_path": "/evidence/gate.mp4", "type": schema.EvidenceVideo}).Do(&evidence)
	require.NoError(t, err)

	var amended schema.Evidence
	err = user.Put("/executions/evidence/"+evidence.Id.String()).
		Json(map[string]string{"metadata": `{"reviewed_by": "shift lead"}`}).Do(&amended)
	require.NoError(t, err)
	assert.Equal(t, `{"reviewed_by": "shift lead"}`, amended.Metadata)

	// Everything besides metadata stays as it was recorded.
	assert.Equal(t, "/evidence/gate.mp4", amended.FilePath)
	assert.Equal(t, schema.EvidenceVideo, amended.Type)
	assert.True(t, amended.Timestamp.Equal(evidence.Timestamp))

	var fetched []schema.Evidence
	err = user.Get("/executions/steps/" + stepExecution.Id.String() + "/evidence").Do(&fetched)
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, `{"reviewed_by": "shift lead"}`, fetched[0].Metadata)
	assert.Equal(t, "/evidence/gate.mp4", fetched[0].FilePath)

	err = user.Put("/executions/evidence/"+uuid.NewString()).
		Json(map[string]string{"metadata": "x"}).Do(nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEvidenceAndExceptions(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("evidence")
	require.NoError(t, err)

	checklist := createChecklist(t, user, "evidence list")
	step := createStep(t, user, checklist.Id, 1, "photograph entrance")
	execution := startExecution(t, user, checklist.Id)

	var stepExecution schema.StepExecution
	err = user.Post("/executions/"+execution.Id.String()+"/steps").
		Json(map[string]interface{}{"step_id": step.Id}).Do(&stepExecution)
	require.NoError(t, err)

	var evidence schema.Evidence
	err = user.Post("/executions/steps/"+stepExecution.Id.String()+"/evidence").
		Json(map[string]string{"file_path": "/evidence/entrance.jpg", "type": schema.EvidenceImage}).Do(&evidence)
	require.NoError(t, err)
	assert.False(t, evidence.Timestamp.IsZero())

	var exception schema.Exception
	err = user.Post("/executions/steps/"+stepExecution.Id.String()+"/exceptions").
		Json(map[string]string{"type": "Technical", "description": "camera feed frozen"}).Do(&exception)
	require.NoError(t, err)
	assert.Equal(t, schema.ExceptionOpen, exception.Status)
	assert.Nil(t, exception.ResolvedBy)

	var resolved schema.Exception
	err = user.Put("/executions/exceptions/" + exception.Id.String() + "/resolve").Do(&resolved)
	require.NoError(t, err)
	assert.Equal(t, schema.ExceptionResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, user.userId, resolved.ResolvedBy.String())
	require.NotNil(t, resolved.ResolvedAt)
}

func TestAlertWorkflow(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.newUser("alerts")
	require.NoError(t, err)

	checklist := createChecklist(t, user, "alert list")
	step := createStep(t, user, checklist.Id, 1, "verify perimeter")
	execution := startExecution(t, user, checklist.Id)

	var stepExecution schema.StepExecution
	err = user.Post("/executions/"+execution.Id.String()+"/steps").
		Json(map[string]interface{}{"step_id": step.Id}).Do(&stepExecution)
	require.NoError(t, err)

	var alert schema.Alert
	err = user.Post("/executions/steps/"+stepExecution.Id.String()+"/alerts").
		Json(map[string]string{"type": "Warning", "severity": schema.SeverityHigh, "message": "motion in restricted zone"}).Do(&alert)
	require.NoError(t, err)
	assert.Equal(t, schema.AlertActive, alert.Status)

	err = user.Put("/executions/alerts/" + alert.Id.String() + "/acknowledge").Do(&alert)
	require.NoError(t, err)
	assert.Equal(t, schema.AlertAcknowledged, alert.Status)

	err = user.Put("/executions/alerts/" + alert.Id.String() + "/resolve").Do(&alert)
	require.NoError(t, err)
	assert.Equal(t, schema.AlertResolved, alert.Status)
}
