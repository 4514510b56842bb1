package services

import (
	"context"
	"testing"

	"bizportal/internal/database/dbtest"
	"bizportal/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProjectCreatesOrganizationOnce(t *testing.T) {
	db := dbtest.Open(t)
	user := models.User{Email: "new@studio.test", Name: "Nia", Role: models.RoleMember}
	require.NoError(t, db.Create(&user).Error)

	p, err := CreateProject(context.Background(), db, user.ID, ProjectInput{
		Name:             "Marketing site",
		Budget:           decimal.NewFromInt(4000),
		OrganizationName: "Nia Studio",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectPlanning, p.Status)

	var orgs, projects int64
	db.Model(&models.Organization{}).Count(&orgs)
	db.Model(&models.WebsiteProject{}).Count(&projects)
	assert.Equal(t, int64(1), orgs)
	assert.Equal(t, int64(1), projects)

	var reloaded models.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	require.NotNil(t, reloaded.OrganizationID)
	assert.Equal(t, p.OrganizationID, *reloaded.OrganizationID)
	assert.Equal(t, models.RoleOwner, reloaded.Role)

	_, err = CreateProject(context.Background(), db, user.ID, ProjectInput{Name: "Second"})
	require.NoError(t, err)
	db.Model(&models.Organization{}).Count(&orgs)
	assert.Equal(t, int64(1), orgs)
}

func TestCreateProjectRollsBackOrganization(t *testing.T) {
	db := dbtest.Open(t)
	user := models.User{Email: "x@y.test", Role: models.RoleMember}
	require.NoError(t, db.Create(&user).Error)

	missing := uint(999)
	_, err := CreateProject(context.Background(), db, user.ID, ProjectInput{Name: "Site", ClientID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)

	var orgs int64
	db.Model(&models.Organization{}).Count(&orgs)
	assert.Zero(t, orgs)
}

func TestPortalUserCannotCreateOrganization(t *testing.T) {
	db := dbtest.Open(t)
	user := models.User{Email: "client@y.test", Role: models.RoleClient}
	require.NoError(t, db.Create(&user).Error)

	_, _, err := CreateOrganization(context.Background(), db, user.ID, OrganizationInput{Name: "Nope"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestProjectAndChangeRequestFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := CreateProject(ctx, f.db, f.member.ID, ProjectInput{Name: "Shop", ClientID: &f.client.ID})
	require.NoError(t, err)

	p, err = ChangeProjectStatus(ctx, f.db, f.memberActor(), p.ID, models.ProjectDevelopment)
	require.NoError(t, err)
	assert.Equal(t, 50, p.Progress)

	_, err = ChangeProjectStatus(ctx, f.db, f.memberActor(), p.ID, models.ProjectDesign)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cr, err := CreateChangeRequest(ctx, f.db, f.memberActor(), p.ID, ChangeRequestInput{Title: "New footer"})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeSubmitted, cr.Status)
	assert.Equal(t, models.PriorityMedium, cr.Priority)

	_, err = ChangeRequestStatus(ctx, f.db, f.memberActor(), cr.ID, models.ChangeReviewing)
	assert.ErrorIs(t, err, ErrForbidden)

	cr, err = ChangeRequestStatus(ctx, f.db, f.ownerActor(), cr.ID, models.ChangeReviewing)
	require.NoError(t, err)
	assert.Equal(t, models.ChangeReviewing, cr.Status)

	_, err = ChangeRequestStatus(ctx, f.db, f.ownerActor(), cr.ID, models.ChangeCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPortalChangeRequestScopedToOwnClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	portal := models.User{OrganizationID: &f.org.ID, Email: "ap@globex.test", Role: models.RoleClient}
	require.NoError(t, f.db.Create(&portal).Error)
	require.NoError(t, f.db.Model(&f.client).Update("portal_user_id", portal.ID).Error)

	other := models.Client{OrganizationID: f.org.ID, Name: "Initech"}
	require.NoError(t, f.db.Create(&other).Error)

	own, err := CreateProject(ctx, f.db, f.owner.ID, ProjectInput{Name: "Own", ClientID: &f.client.ID})
	require.NoError(t, err)
	foreign, err := CreateProject(ctx, f.db, f.owner.ID, ProjectInput{Name: "Foreign", ClientID: &other.ID})
	require.NoError(t, err)

	actor := Actor{UserID: portal.ID, OrganizationID: f.org.ID, Role: models.RoleClient}
	_, err = CreateChangeRequest(ctx, f.db, actor, own.ID, ChangeRequestInput{Title: "Logo"})
	assert.NoError(t, err)
	_, err = CreateChangeRequest(ctx, f.db, actor, foreign.ID, ChangeRequestInput{Title: "Logo"})
	assert.ErrorIs(t, err, ErrNotFound)
}
