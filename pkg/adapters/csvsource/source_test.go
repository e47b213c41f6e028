package csvsource_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/quarry/pkg/adapters/csvsource"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const housing = "\uFEFFage, income ,score\n30,1000,7\n41,2000,8\n52,3000,9\n63,4000,6\n"

func TestRead_HeaderAndPreview(t *testing.T) {
	in, err := csvsource.Read(strings.NewReader(housing), "housing.csv", "/tmp/housing.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "income", "score"}, in.Headers)
	assert.Len(t, in.SampleRows, csvsource.PreviewRows)
	assert.Equal(t, []string{"30", "1000", "7"}, in.SampleRows[0])
	assert.Equal(t, "housing.csv", in.SourceLabel)
	assert.Equal(t, "/tmp/housing.csv", in.FileReference)
}

func TestRead_NoHeaders(t *testing.T) {
	_, err := csvsource.Read(strings.NewReader(""), "empty.csv", "")
	assert.ErrorIs(t, err, domain.ErrNoHeaders)

	_, err = csvsource.Read(strings.NewReader(" , \n1,2\n"), "blank.csv", "")
	assert.ErrorIs(t, err, domain.ErrNoHeaders)
}

func TestOpen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "cars.csv")
	require.NoError(t, os.WriteFile(name, []byte("mpg,hp\n30,100\n"), 0o644))

	in, err := csvsource.Open(name)
	require.NoError(t, err)
	assert.Equal(t, "cars.csv", in.SourceLabel)
	assert.Equal(t, name, in.FileReference)
	assert.Equal(t, [][]string{{"30", "100"}}, in.SampleRows)

	_, err = csvsource.Open(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/housing.csv":
			assert.Equal(t, "bytes=0-2047", r.Header.Get("Range"))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte(housing))
		case "/page":
			_, _ = w.Write([]byte("<!DOCTYPE html><html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	in, err := csvsource.Fetch(context.Background(), srv.Client(), srv.URL+"/data/housing.csv")
	require.NoError(t, err)
	assert.Equal(t, "housing.csv", in.SourceLabel)
	assert.Equal(t, []string{"age", "income", "score"}, in.Headers)

	_, err = csvsource.Fetch(context.Background(), srv.Client(), srv.URL+"/page")
	assert.ErrorIs(t, err, csvsource.ErrHTML)

	_, err = csvsource.Load(context.Background(), srv.URL+"/missing.csv")
	assert.ErrorContains(t, err, "404")
}

func TestSandbox_Local(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "cars.csv"), []byte("mpg,hp\n30,100\n"), 0o644))

	outside := filepath.Join(t.TempDir(), "secret.csv")
	require.NoError(t, os.WriteFile(outside, []byte("user,password\nroot,x\n"), 0o644))

	sb := csvsource.Sandbox{Root: root}

	in, err := sb.Load(context.Background(), "data/cars.csv")
	require.NoError(t, err)
	assert.Equal(t, "cars.csv", in.SourceLabel)
	assert.Equal(t, []string{"mpg", "hp"}, in.Headers)

	for _, ref := range []string{"", outside, "/etc/passwd", "../secret.csv", "data/../../secret.csv"} {
		_, err := sb.Load(context.Background(), ref)
		assert.ErrorIs(t, err, csvsource.ErrSourceNotAllowed, ref)
	}

	t.Run("SymlinkEscape", func(t *testing.T) {
		if err := os.Symlink(outside, filepath.Join(root, "link.csv")); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		_, err := sb.Load(context.Background(), "link.csv")
		assert.Error(t, err)
	})
}

func TestSandbox_Remote(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(housing))
	}))
	defer other.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/housing.csv":
			_, _ = w.Write([]byte(housing))
		case "/elsewhere":
			http.Redirect(w, r, other.URL+"/housing.csv", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")

	t.Run("DisabledByDefault", func(t *testing.T) {
		_, err := csvsource.Sandbox{}.Load(context.Background(), srv.URL+"/housing.csv")
		assert.ErrorIs(t, err, csvsource.ErrSourceNotAllowed)

		_, err = csvsource.Sandbox{}.Load(context.Background(), "http://169.254.169.254/latest/meta-data")
		assert.ErrorIs(t, err, csvsource.ErrSourceNotAllowed)
	})

	t.Run("AllowedHost", func(t *testing.T) {
		sb := csvsource.Sandbox{AllowedHosts: []string{host}, Client: srv.Client()}
		in, err := sb.Load(context.Background(), srv.URL+"/housing.csv")
		require.NoError(t, err)
		assert.Equal(t, []string{"age", "income", "score"}, in.Headers)
	})

	t.Run("RedirectToOtherHost", func(t *testing.T) {
		sb := csvsource.Sandbox{AllowedHosts: []string{host}}
		_, err := sb.Load(context.Background(), srv.URL+"/elsewhere")
		assert.ErrorIs(t, err, csvsource.ErrSourceNotAllowed)
	})
}
