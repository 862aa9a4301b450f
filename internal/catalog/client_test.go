package catalog

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pot-code/go-elearning/internal/domain"
	"github.com/pot-code/go-elearning/internal/infrastructure/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRemoteCatalog(t *testing.T, h http.HandlerFunc) *RemoteCatalog {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewRemoteCatalog(backend.NewClient(&backend.Config{BaseURL: srv.URL}))
}

func TestRemoteCatalog_GetCourseDetails(t *testing.T) {
	rc := newTestRemoteCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/courses/c1", r.URL.Path)
		w.Write([]byte(`{"id":"c1","title":"Go","modules":[
			{"id":"m1","title":"Basics","order":1,"lessons":[
				{"id":"l1","moduleId":"m1","title":"Intro","order":1,"type":"video","videoUrl":"https://cdn/v.mp4"}
			]}
		]}`))
	})

	details, err := rc.GetCourseDetails(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, details.Lessons(), 1)
	assert.Equal(t, domain.LessonVideo, details.Lessons()[0].Type)
	assert.Equal(t, "https://cdn/v.mp4", details.Lessons()[0].VideoURL)
}

func TestRemoteCatalog_Enroll(t *testing.T) {
	rc := newTestRemoteCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/enrollment/courses/c1/enrollments", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"userId": "u1"}, body)
		w.Write([]byte(`{"id":"e1","userId":"u1","courseId":"c1"}`))
	})

	e, err := rc.Enroll(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "e1", e.ID)
}

func TestRemoteCatalog_ListEnrollments(t *testing.T) {
	rc := newTestRemoteCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/enrollment/users/u1/enrollments", r.URL.Path)
		w.Write([]byte(`[{"id":"e1","course":{"id":"c1","title":"Go","modules":[]}}]`))
	})

	enrollments, err := rc.ListEnrollments(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "c1", enrollments[0].Course.ID)
}

func TestRemoteCatalog_UpdateProfile(t *testing.T) {
	rc := newTestRemoteCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/users/u1", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Ana", r.FormValue("name"))
		_, hasPhone := r.MultipartForm.Value["phone"]
		assert.False(t, hasPhone, "empty fields are not sent")

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := ioutil.ReadAll(file)
		assert.Equal(t, "me.png", header.Filename)
		assert.Equal(t, []byte("png"), content)

		w.Write([]byte(`{"id":"u1","name":"Ana","avatarUrl":"https://cdn/me.png"}`))
	})

	user, err := rc.UpdateProfile(context.Background(), "u1", &domain.ProfileUpdate{
		Name: "Ana", AvatarName: "me.png", Avatar: []byte("png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/me.png", user.AvatarURL)
}

func TestRemoteCatalog_GetMeUnauthorized(t *testing.T) {
	rc := newTestRemoteCatalog(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := rc.GetMe(context.Background())
	assert.Equal(t, http.StatusUnauthorized, backend.StatusCode(err))
}
