package profile

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roastreel/internal/apperr"
	"roastreel/internal/cache"
)

const janeURL = "https://www.linkedin.com/in/janedoe"

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, *cache.FileStore, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	store := cache.NewFileStore(t.TempDir(), quietLogger())
	f := NewFetcher(server.Client(), store, Config{
		BaseURL: server.URL + "/",
		APIKey:  "test-key",
		APIHost: "profiles.test",
	}, quietLogger())
	return f, store, &calls
}

func TestExtractHandle(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://www.linkedin.com/in/janedoe":            "janedoe",
		"https://www.linkedin.com/in/janedoe/":           "janedoe",
		"https://www.linkedin.com/in/jane-doe-42/detail": "jane-doe-42",
		"linkedin.com/in/janedoe?trk=public":             "janedoe",
		"https://www.linkedin.com/in/jane?trk=x":         "jane",
		"https://www.linkedin.com/in/jane#about":         "jane",
		"https://www.linkedin.com/in/jane/?locale=en_US": "jane",
		"/in/x":                                          "x",
	}
	for input, want := range cases {
		got, err := ExtractHandle(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	for _, bad := range []string{"", "https://www.linkedin.com/company/acme", "https://www.linkedin.com/in/", "https://www.linkedin.com/in//x"} {
		_, err := ExtractHandle(bad)
		require.Error(t, err, bad)
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput), bad)
	}
}

func TestNormalize_JaneDoe(t *testing.T) {
	t.Parallel()

	rec := Normalize([]byte(`{"firstName":"Jane","lastName":"Doe","position":[],"educations":[]}`))

	assert.Equal(t, "Jane Doe", rec.PersonalDetails.FullName)
	assert.Equal(t, "Jane", rec.PersonalDetails.FirstName)
	assert.Empty(t, rec.ProfessionalBackground.CurrentRole.Title)
	assert.Empty(t, rec.ProfessionalBackground.CurrentRole.CompanyName)
	assert.Empty(t, rec.Education.Degrees[0].School)
	assert.Empty(t, rec.Education.Degrees[1].Degree)
	require.NotNil(t, rec.Skills)
	assert.Empty(t, rec.Skills)
}

func TestNormalize_FullPayload(t *testing.T) {
	t.Parallel()

	raw := `{
		"firstName": "Jane", "lastName": "Doe",
		"geo": {"full": "Austin, Texas"},
		"profilePicture": "https://img/jane.jpg",
		"headline": "Synergy Evangelist",
		"summary": "I disrupt.",
		"position": [
			{"title": "CEO", "companyName": "Acme", "companyIndustry": "Software"},
			{"title": "Intern", "companyName": "Globex", "description": "Made coffee"}
		],
		"educations": [
			{"degree": "MBA", "schoolName": "State U"},
			{"degree": "BA", "schoolName": "College"},
			{"degree": "PhD", "schoolName": "Ignored"}
		],
		"skills": [{"name": "Leadership"}, {"name": ""}, "bogus", {"name": "Excel"}]
	}`
	rec := Normalize([]byte(raw))

	assert.Equal(t, "Austin, Texas", rec.PersonalDetails.Location)
	assert.Equal(t, "https://img/jane.jpg", rec.ProfilePicture)
	assert.Equal(t, "CEO", rec.ProfessionalBackground.CurrentRole.Title)
	assert.Equal(t, "Software", rec.ProfessionalBackground.CurrentRole.CompanyIndustry)
	assert.Equal(t, "Globex", rec.ProfessionalBackground.PreviousWorkExperience.PreviousCompany)
	assert.Equal(t, "Made coffee", rec.ProfessionalBackground.PreviousWorkExperience.KeyContributions)
	assert.Equal(t, "State U", rec.Education.Degrees[0].School)
	assert.Equal(t, "BA", rec.Education.Degrees[1].Degree)
	assert.Equal(t, []string{"Leadership", "Excel"}, rec.Skills)
}

func TestNormalize_IsTotal(t *testing.T) {
	t.Parallel()

	inputs := []string{
		``,
		`null`,
		`[]`,
		`"a string"`,
		`{}`,
		`{"firstName": 42, "lastName": null, "geo": "nowhere", "position": {"title": "x"}}`,
		`{"position": [null, 7], "educations": "none", "skills": [1, 2]}`,
		`{"data": {"firstName": "Wrapped", "lastName": "Up"}}`,
	}
	for _, in := range inputs {
		rec := Normalize([]byte(in))
		assert.NotNil(t, rec.Skills, in)
		assert.Len(t, rec.Education.Degrees, 2, in)
	}

	assert.Equal(t, "Wrapped Up", Normalize([]byte(`{"data": {"firstName": "Wrapped", "lastName": "Up"}}`)).PersonalDetails.FullName)
	assert.Equal(t, "", Normalize([]byte(`{"firstName": 42}`)).PersonalDetails.FullName)
}

func TestFetch_Success(t *testing.T) {
	t.Parallel()

	f, store, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "janedoe", r.URL.Query().Get("username"))
		assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))
		assert.Equal(t, "profiles.test", r.Header.Get("x-rapidapi-host"))
		_, _ = w.Write([]byte(`{"firstName":"Jane","lastName":"Doe","position":[],"educations":[]}`))
	})

	rec, err := f.Fetch(context.Background(), janeURL, false)
	require.NoError(t, err)
	assert.Equal(t, "janedoe", rec.Handle)
	assert.Equal(t, "Jane Doe", rec.PersonalDetails.FullName)

	entry, ok, err := store.Get(context.Background(), CacheKey("janedoe"))
	require.NoError(t, err)
	require.True(t, ok, "raw payload is cached")
	assert.Contains(t, entry.Text(), `"firstName":"Jane"`)
}

func TestFetch_RateLimitedWithoutCache(t *testing.T) {
	t.Parallel()

	f, _, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"Too many requests"}`))
	})

	_, err := f.Fetch(context.Background(), janeURL, false)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindRateLimited))
	assert.Equal(t, http.StatusTooManyRequests, apperr.StatusOf(err))
}

func TestFetch_FallsBackToCache(t *testing.T) {
	t.Parallel()

	statuses := []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusForbidden}
	for _, status := range statuses {
		status := status
		f, store, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		_, err := store.Put(context.Background(), CacheKey("janedoe"), []byte(`{"firstName":"Cached","lastName":"Jane"}`))
		require.NoError(t, err)

		rec, err := f.Fetch(context.Background(), janeURL, false)
		require.NoError(t, err, status)
		assert.Equal(t, "Cached Jane", rec.PersonalDetails.FullName, status)
	}
}

func TestFetch_UpstreamErrorCarriesStatus(t *testing.T) {
	t.Parallel()

	f, _, _ := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such profile"))
	})

	_, err := f.Fetch(context.Background(), janeURL, false)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUpstreamError, appErr.Kind)
	assert.Equal(t, http.StatusNotFound, appErr.Context["upstream_status"])
	assert.Equal(t, "no such profile", appErr.Context["body"])
}

func TestFetch_NetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	store := cache.NewFileStore(t.TempDir(), quietLogger())
	f := NewFetcher(http.DefaultClient, store, Config{BaseURL: baseURL}, quietLogger())

	_, err := f.Fetch(context.Background(), janeURL, false)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstreamUnavailable))

	_, err = store.Put(context.Background(), CacheKey("janedoe"), []byte(`{"firstName":"Offline"}`))
	require.NoError(t, err)
	rec, err := f.Fetch(context.Background(), janeURL, false)
	require.NoError(t, err)
	assert.Equal(t, "Offline", rec.PersonalDetails.FullName)
}

func TestFetch_CacheFirstSkipsNetwork(t *testing.T) {
	t.Parallel()

	f, store, calls := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"firstName":"Fresh"}`))
	})
	_, err := store.Put(context.Background(), CacheKey("janedoe"), []byte(`{"firstName":"Cached"}`))
	require.NoError(t, err)

	rec, err := f.Fetch(context.Background(), janeURL, true)
	require.NoError(t, err)
	assert.Equal(t, "Cached", rec.PersonalDetails.FirstName)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))

	rec, err = f.Fetch(context.Background(), janeURL, false)
	require.NoError(t, err)
	assert.Equal(t, "Fresh", rec.PersonalDetails.FirstName)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFetch_InvalidURLMakesNoRequest(t *testing.T) {
	t.Parallel()

	f, _, calls := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := f.Fetch(context.Background(), "https://example.com/company/acme", false)
	assert.True(t, apperr.Is(err, apperr.KindInvalidInput))
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestDownloadPicture(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "profile.jpg")
	require.NoError(t, DownloadPicture(context.Background(), server.Client(), server.URL+"/jane.jpg", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	require.Error(t, DownloadPicture(context.Background(), server.Client(), server.URL+"/missing.jpg", dest+"2"))
	require.Error(t, DownloadPicture(context.Background(), server.Client(), "", dest+"3"))
}
