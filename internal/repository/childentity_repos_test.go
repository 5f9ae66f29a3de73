package repository

import (
	"testing"
	"time"

	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/pkg/apperror"
	"github.com/linkloop/linkloop-backend/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func datePtr(year, month, day int) *time.Time {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &d
}

func TestExperienceSyncsProfile(t *testing.T) {
	db := newTestDB(t)
	owner := newTestUser(t, db, "owner@example.com")
	repo := NewExperienceRepository(db)

	older, err := repo.Create(testCtx(), ExperienceCreate{
		JobType:   "full-time",
		StartDate: datePtr(2018, 1, 1),
		EndDate:   datePtr(2020, 1, 1),
		Company:   &LookupCreate{Name: "OldCo"},
		JobTitle:  &LookupCreate{Name: "Engineer"},
	}, owner)
	require.NoError(t, err)

	current, err := repo.Create(testCtx(), ExperienceCreate{
		JobType:          "full-time",
		CurrentlyWorking: true,
		StartDate:        datePtr(2021, 6, 1),
		EndDate:          datePtr(2099, 1, 1), // ignored while currently working
		Company:          &LookupCreate{Name: "NewCo"},
		JobTitle:         &LookupCreate{Name: "Staff Engineer"},
	}, owner)
	require.NoError(t, err)
	assert.Nil(t, current.EndDate)

	var profile model.Profile
	require.NoError(t, db.Where("user_id = ?", owner.ID).First(&profile).Error)
	assert.True(t, profile.HasExperience)
	assert.True(t, profile.CurrentlyEmployed)
	require.NotNil(t, profile.LatestCompanyID)
	assert.Equal(t, *current.CompanyID, *profile.LatestCompanyID)

	// Dropping the current role falls back to the remaining one.
	_, err = repo.Delete(testCtx(), current.ID, owner)
	require.NoError(t, err)
	require.NoError(t, db.Where("user_id = ?", owner.ID).First(&profile).Error)
	assert.True(t, profile.HasExperience)
	assert.False(t, profile.CurrentlyEmployed)
	require.NotNil(t, profile.LatestCompanyID)
	assert.Equal(t, *older.CompanyID, *profile.LatestCompanyID)

	// No rows left clears the summary entirely.
	_, err = repo.Delete(testCtx(), older.ID, owner)
	require.NoError(t, err)
	require.NoError(t, db.Where("user_id = ?", owner.ID).First(&profile).Error)
	assert.False(t, profile.HasExperience)
	assert.Nil(t, profile.LatestCompanyID)
}

func TestInterestNamesCache(t *testing.T) {
	db := newTestDB(t)
	owner := newTestUser(t, db, "owner@example.com")
	kv := cache.NewMemory()
	repo := NewInterestRepository(db, kv, time.Minute, testLogger())

	_, err := repo.Create(testCtx(), UserInterestCreate{Interest: &LookupCreate{Name: "chess"}}, owner)
	require.NoError(t, err)
	_, err = repo.Create(testCtx(), UserInterestCreate{Interest: &LookupCreate{Name: "hiking"}}, owner)
	require.NoError(t, err)

	names, err := repo.GetNames(testCtx(), owner)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chess", "hiking"}, names)

	// Second read is served from the cache.
	raw, ok, err := kv.GetField(testCtx(), cache.UIDKey(owner.UID), "interests")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, raw)

	// A write invalidates it.
	row, err := repo.Create(testCtx(), UserInterestCreate{Interest: &LookupCreate{Name: "sailing"}}, owner)
	require.NoError(t, err)
	_, ok, err = kv.GetField(testCtx(), cache.UIDKey(owner.UID), "interests")
	require.NoError(t, err)
	assert.False(t, ok)

	names, err = repo.GetNames(testCtx(), owner)
	require.NoError(t, err)
	assert.Len(t, names, 3)

	_, err = repo.Delete(testCtx(), row.ID, owner)
	require.NoError(t, err)
	names, err = repo.GetNames(testCtx(), owner)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"chess", "hiking"}, names)
}

func TestLanguageResolutionOrder(t *testing.T) {
	db := newTestDB(t)
	owner := newTestUser(t, db, "owner@example.com")
	repo := NewLanguageRepository(db)

	english := model.Language{Code: "en"}
	english.SetName("English")
	english.SetDeletedAt(model.Epoch)
	require.NoError(t, db.Create(&english).Error)

	byCode, err := repo.Create(testCtx(), UserLanguageCreate{
		Level: "fluent", Language: &LanguageRef{Code: "en"},
	}, owner)
	require.NoError(t, err)
	require.NotNil(t, byCode.LanguageID)
	assert.Equal(t, english.ID, *byCode.LanguageID)

	// An unknown name is created on the fly; an unknown code is not.
	byName, err := repo.Create(testCtx(), UserLanguageCreate{
		Level: "basic", Language: &LanguageRef{Name: "Esperanto"},
	}, owner)
	require.NoError(t, err)
	require.NotNil(t, byName.Language)
	assert.Equal(t, "Esperanto", byName.Language.Name)

	_, err = repo.Create(testCtx(), UserLanguageCreate{
		Level: "basic", Language: &LanguageRef{Code: "zz"},
	}, owner)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserCertificateResolvesIssuer(t *testing.T) {
	db := newTestDB(t)
	owner := newTestUser(t, db, "owner@example.com")
	repo := NewUserCertificateRepository(db)

	row, err := repo.Create(testCtx(), UserCertificateCreate{
		CredentialID: "ABC-123",
		CanExpire:    false,
		ExpiryDate:   datePtr(2030, 1, 1), // ignored when it cannot expire
		Certificate:  &LookupCreate{Name: "Cloud Architect"},
		Organization: &LookupCreate{Name: "ExampleCorp"},
	}, owner)
	require.NoError(t, err)
	assert.Nil(t, row.ExpiryDate)
	require.NotNil(t, row.Certificate)

	var cert model.Certificate
	require.NoError(t, db.Preload("Organization").First(&cert, *row.CertificateID).Error)
	assert.Equal(t, "Cloud Architect", cert.Name)
	require.NotNil(t, cert.Organization)
	assert.Equal(t, "ExampleCorp", cert.Organization.Name)
}

func TestCVBatchBestEffort(t *testing.T) {
	db := newTestDB(t)
	owner := newTestUser(t, db, "owner@example.com")
	repos := NewRepositories(db, cache.NewMemory(), cache.NewMemory(), nil, testLogger(), Options{
		ConnCountTTL: time.Minute,
		InterestTTL:  time.Minute,
		InviteSalt:   "test",
	})

	res := repos.CVs.CreateBatch(testCtx(), CVBatch{
		Educations: []EducationCreate{
			{Grade: "BSc", School: &LookupCreate{Name: "State University"}},
		},
		Experiences: []ExperienceCreate{
			{JobType: "full-time", Company: &LookupCreate{Name: "Acme"}},
		},
		Skills: []UserSkillCreate{
			{Level: "expert", Skill: &LookupCreate{Name: "Go"}},
		},
		Languages: []UserLanguageCreate{
			// Unknown code: this one entry fails, the rest stand.
			{Level: "fluent", Language: &LanguageRef{Code: "zz"}},
			{Level: "native", Language: &LanguageRef{Name: "Spanish"}},
		},
	}, owner)

	assert.Equal(t, 4, res.Created)
	assert.Equal(t, 1, res.Failed)

	educations, err := repos.Educations.Base().GetAll(testCtx(), owner)
	require.NoError(t, err)
	assert.Len(t, educations, 1)
	require.NotNil(t, educations[0].SchoolID)
}
