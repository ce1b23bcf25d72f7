package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benidevo/matchcore/internal/matchcore/matcherr"
)

func TestGetCandidate_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	doc := `{"id":"c1","name":"Ada","skills":[{"name":"python","level":"expert"}],"location":"Paris"}`
	mock.ExpectQuery("SELECT data FROM candidates WHERE id = ?").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(doc)))

	s := NewSQLProfileStore(db)
	profile, err := s.GetCandidate(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.Name)
	require.Len(t, profile.Skills, 1)
	assert.Equal(t, "python", profile.Skills[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCandidate_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT data FROM candidates WHERE id = ?").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	s := NewSQLProfileStore(db)
	_, err = s.GetCandidate(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, matcherr.ClassNotFound, matcherr.ClassOf(err))
}

func TestGetJob_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	doc := `{"id":"j1","title":"Backend Engineer","requiredSkills":[{"name":"go","level":"advanced","required":true}]}`
	mock.ExpectQuery("SELECT data FROM jobs WHERE id = ?").
		WithArgs("j1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte(doc)))

	s := NewSQLProfileStore(db)
	posting, err := s.GetJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", posting.Title)
}

func TestGetJob_UndecodableIsInternal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT data FROM jobs WHERE id = ?").
		WithArgs("j-bad").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("not json")))

	s := NewSQLProfileStore(db)
	_, err = s.GetJob(context.Background(), "j-bad")
	require.Error(t, err)
	assert.Equal(t, matcherr.ClassInternal, matcherr.ClassOf(err))
}

func TestListActiveJobs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "data"}).
		AddRow("j1", []byte(`{"id":"j1","title":"One"}`)).
		AddRow("j2", []byte(`broken`)).
		AddRow("j3", []byte(`{"title":"Three"}`))
	mock.ExpectQuery("SELECT id, data FROM jobs WHERE active = 1").WillReturnRows(rows)

	s := NewSQLProfileStore(db)
	jobs, err := s.ListActiveJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2, "the broken row is skipped")
	assert.Equal(t, "j1", jobs[0].ID)
	assert.Equal(t, "j3", jobs[1].ID, "missing embedded ID backfilled from the key column")
}

func TestListActiveCandidates_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, data FROM candidates WHERE active = 1").
		WillReturnError(assert.AnError)

	s := NewSQLProfileStore(db)
	_, err = s.ListActiveCandidates(context.Background())
	require.Error(t, err)
	assert.Equal(t, matcherr.ClassTransient, matcherr.ClassOf(err))
}
