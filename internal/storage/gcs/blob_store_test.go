package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	appstorage "github.com/JakeFAU/crawlersvc/internal/storage"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func fakeClient(t *testing.T, fn roundTripperFunc) *storage.Client {
	t.Helper()
	client, err := storage.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{Transport: fn}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func jsonResponse(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Request:    r,
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusOK, `{}`), nil
	})
	_, err = New(client, Config{})
	require.Error(t, err)

	store, err := New(client, Config{Bucket: "b", Prefix: "/crawls/"})
	require.NoError(t, err)
	assert.Equal(t, "crawls/job/1.json", store.objectName("job/1.json"))
	assert.Equal(t, "job/1.json", store.keyOf("crawls/job/1.json"))
}

func TestOpenChecksBucket(t *testing.T) {
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		assert.Contains(t, r.URL.Path, "/storage/v1/b/test-bucket")
		return jsonResponse(r, http.StatusOK, `{"name":"test-bucket"}`), nil
	})
	store, client, err := Open(context.Background(), Config{Bucket: "test-bucket"},
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{Transport: transport}),
	)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, client.Close())
}

func TestOpenBucketError(t *testing.T) {
	transport := roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusForbidden, `{"error":{"code":403,"message":"denied"}}`), nil
	})
	_, _, err := Open(context.Background(), Config{Bucket: "test-bucket"},
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{Transport: transport}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test-bucket")
}

func TestListObjects(t *testing.T) {
	client := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, "/storage/v1/b/bucket/o", r.URL.Path)
		assert.Equal(t, "crawls/job/", r.URL.Query().Get("prefix"))
		return jsonResponse(r, http.StatusOK, `{"kind":"storage#objects","items":[
			{"name":"crawls/job/1.json","size":"10","updated":"2024-01-01T00:00:00Z"},
			{"name":"crawls/job/2.json","size":"20","updated":"2024-01-02T00:00:00Z"}
		]}`), nil
	})
	store, err := New(client, Config{Bucket: "bucket", Prefix: "crawls"})
	require.NoError(t, err)

	infos, err := store.ListObjects(context.Background(), "job")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "job/1.json", infos[0].Key)
	assert.Equal(t, int64(10), infos[0].Size)
	assert.True(t, infos[1].ModTime.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
}

func TestListObjectsEmptyPrefixIsNotFound(t *testing.T) {
	client := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(r, http.StatusOK, `{"kind":"storage#objects"}`), nil
	})
	store, err := New(client, Config{Bucket: "bucket"})
	require.NoError(t, err)

	_, err = store.ListObjects(context.Background(), "missing")
	require.ErrorIs(t, err, appstorage.ErrNotFound)
}

func TestDeleteObjectNotFound(t *testing.T) {
	client := fakeClient(t, func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodDelete, r.Method)
		return jsonResponse(r, http.StatusNotFound, `{"error":{"code":404,"message":"No such object"}}`), nil
	})
	store, err := New(client, Config{Bucket: "bucket"})
	require.NoError(t, err)

	err = store.DeleteObject(context.Background(), "job/1.json")
	require.ErrorIs(t, err, appstorage.ErrNotFound)
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusPreconditionFailed}))
	assert.False(t, isPreconditionFailed(&googleapi.Error{Code: http.StatusNotFound}))
	assert.False(t, isPreconditionFailed(errors.New("boom")))
}
