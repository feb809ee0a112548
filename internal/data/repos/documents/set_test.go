package documents

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/planhaus/planhaus-backend/internal/data/repos/testutil"
	types "github.com/planhaus/planhaus-backend/internal/domain"
	"github.com/planhaus/planhaus-backend/internal/platform/dbctx"
)

func TestDocumentSetCreateValidation(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewDocumentSetRepo(db, testutil.Logger(t))

	if _, err := repo.Create(dbc, &types.DocumentSet{
		Name:     "Bad",
		RepoType: types.RepoType("warehouse"),
	}); err == nil {
		t.Fatal("unknown repo_type accepted")
	}

	orgID := uuid.New()
	if _, err := repo.Create(dbc, &types.DocumentSet{
		Name:     "Global without org",
		RepoType: types.RepoTypeFitout,
		IsGlobal: true,
	}); err == nil {
		t.Fatal("global set without organization accepted")
	}

	projectID := uuid.New()
	if _, err := repo.Create(dbc, &types.DocumentSet{
		Name:           "Global with project",
		RepoType:       types.RepoTypeFitout,
		IsGlobal:       true,
		OrganizationID: &orgID,
		ProjectID:      &projectID,
	}); err == nil {
		t.Fatal("global set scoped to a project accepted")
	}

	set, err := repo.Create(dbc, &types.DocumentSet{
		Name:           "Org fitout standards",
		RepoType:       types.RepoTypeFitout,
		IsGlobal:       true,
		OrganizationID: &orgID,
	})
	if err != nil {
		t.Fatalf("Create global set: %v", err)
	}
	if set.ID == uuid.Nil {
		t.Fatal("id not assigned")
	}
}

func TestDocumentSetDefaultForProject(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewDocumentSetRepo(db, testutil.Logger(t))

	projectID := uuid.New()
	if _, err := repo.GetDefaultForProject(dbc, projectID); err == nil {
		t.Fatal("expected not-found for project with no sets")
	}

	if _, err := repo.Create(dbc, &types.DocumentSet{
		Name:      "Working docs",
		RepoType:  types.RepoTypeProject,
		ProjectID: &projectID,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	def, err := repo.Create(dbc, &types.DocumentSet{
		Name:      "Contract set",
		RepoType:  types.RepoTypeProject,
		ProjectID: &projectID,
		IsDefault: true,
	})
	if err != nil {
		t.Fatalf("Create default: %v", err)
	}

	got, err := repo.GetDefaultForProject(dbc, projectID)
	if err != nil {
		t.Fatalf("GetDefaultForProject: %v", err)
	}
	if got.ID != def.ID {
		t.Fatalf("default = %s, want %s", got.ID, def.ID)
	}

	sets, err := repo.ListByProject(dbc, projectID)
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("ListByProject length = %d, want 2", len(sets))
	}
}
