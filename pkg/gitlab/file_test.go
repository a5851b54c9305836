package gitlab

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alecthomas/units"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeRepo simulates the repository-files endpoints for a single project.
type fakeRepo struct {
	files  map[string]string // path -> decoded content
	shas   map[string]string
	writes []fakeWrite
	gets   int
}

type fakeWrite struct {
	method string
	path   string
	body   map[string]string
}

const fakeProject = "acme%2Fdiagrams"

func (f *fakeRepo) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		escaped := r.URL.EscapedPath()
		if escaped == "/api/v4/user" {
			_, _ = w.Write([]byte(`{"id":9,"username":"tester","email":"t@example.com"}`))
			return
		}
		prefix := "/api/v4/projects/" + fakeProject + "/repository/files/"
		if len(escaped) <= len(prefix) || escaped[:len(prefix)] != prefix {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		path := escaped[len(prefix):]
		decoded, err := url.PathUnescape(path)
		require.NoError(t, err)
		switch r.Method {
		case http.MethodGet:
			f.gets++
			content, ok := f.files[path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"message":"404 File Not Found"}`))
				return
			}
			record := map[string]any{
				"file_name":      decoded[strings.LastIndex(decoded, "/")+1:],
				"file_path":      decoded,
				"encoding":       "base64",
				"content":        base64.StdEncoding.EncodeToString([]byte(content)),
				"content_sha256": f.shas[path],
				"ref":            r.URL.Query().Get("ref"),
			}
			require.NoError(t, json.NewEncoder(w).Encode(record))
		case http.MethodPost, http.MethodPut:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.writes = append(f.writes, fakeWrite{method: r.Method, path: path, body: body})
			raw, err := base64.StdEncoding.DecodeString(body["content"])
			require.NoError(t, err)
			f.files[path] = string(raw)
			f.shas[path] = fmt.Sprintf("sha-%d", len(f.writes))
			_, _ = w.Write([]byte(`{"file_path":"` + decoded + `","branch":"` + body["branch"] + `"}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newFakeDrive(t *testing.T) (*Client, *fakeRepo) {
	t.Helper()
	repo := &fakeRepo{files: map[string]string{}, shas: map[string]string{}}
	srv := httptest.NewServer(repo.handler(t))
	t.Cleanup(srv.Close)
	client, err := New(Options{
		BaseURL:    srv.URL,
		ClientID:   "test",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	client.auth = &stubAuth{}
	prime(client)
	return client, repo
}

func TestGetFile(t *testing.T) {
	client, repo := newFakeDrive(t)
	repo.files["folder%2Fchart.drawio"] = diagramXML
	repo.shas["folder%2Fchart.drawio"] = "abc123"

	file, err := client.GetFile(context.Background(), "acme/diagrams/master/folder/chart.drawio")
	require.NoError(t, err)
	require.Equal(t, "acme", file.Meta.Org)
	require.Equal(t, "diagrams", file.Meta.Repo)
	require.Equal(t, "master", file.Meta.Ref)
	require.Equal(t, "chart.drawio", file.Meta.Name)
	require.Equal(t, "folder/chart.drawio", file.Meta.Path)
	require.Equal(t, "abc123", file.Meta.SHA)
	require.Contains(t, file.Meta.HTMLURL, "/acme/diagrams/blob/master/folder/chart.drawio")
	require.Contains(t, file.Meta.DownloadURL, "inline=false")
	require.Equal(t, PayloadDiagram, file.Payload.Kind)
	require.Equal(t, diagramXML, file.Payload.Content)
}

func TestGetFileNotFound(t *testing.T) {
	client, _ := newFakeDrive(t)
	_, err := client.GetFile(context.Background(), "acme/diagrams/master/nope.txt")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestStat(t *testing.T) {
	client, repo := newFakeDrive(t)
	repo.files["a.txt"] = "x"
	repo.shas["a.txt"] = "s1"

	sha, exists, err := client.Stat(context.Background(), "acme/diagrams/master/a.txt")
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, "s1", sha)

	_, exists, err = client.Stat(context.Background(), "acme/diagrams/master/b.txt")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestInsertFile(t *testing.T) {
	client, repo := newFakeDrive(t)

	file, err := client.InsertFile(context.Background(), "acme/diagrams/master/folder", "new.txt",
		Payload{Kind: PayloadText, Content: "hello"}, "add new file", nil)
	require.NoError(t, err)
	require.Len(t, repo.writes, 1)
	write := repo.writes[0]
	require.Equal(t, http.MethodPost, write.method)
	require.Equal(t, "folder/new.txt", write.body["path"])
	require.Equal(t, "master", write.body["branch"])
	require.Equal(t, "add new file", write.body["commit_message"])
	require.Equal(t, "base64", write.body["encoding"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), write.body["content"])

	require.Equal(t, "folder/new.txt", file.Meta.Path)
	require.False(t, file.Meta.IsNew)
	require.NotEmpty(t, file.Meta.SHA)
}

func TestInsertFileExistingNeedsConfirm(t *testing.T) {
	client, repo := newFakeDrive(t)
	repo.files["folder%2Fnew.txt"] = "old"
	repo.shas["folder%2Fnew.txt"] = "s1"

	_, err := client.InsertFile(context.Background(), "acme/diagrams/master/folder", "new.txt",
		Payload{Kind: PayloadText, Content: "fresh"}, "update", nil)
	require.True(t, errors.Is(err, ErrConflict))
	require.Empty(t, repo.writes)

	asked := ""
	confirm := func(id string) bool {
		asked = id
		return true
	}
	_, err = client.InsertFile(context.Background(), "acme/diagrams/master/folder", "new.txt",
		Payload{Kind: PayloadText, Content: "fresh"}, "update", confirm)
	require.NoError(t, err)
	require.Equal(t, "acme/diagrams/master/folder/new.txt", asked)
	require.Len(t, repo.writes, 1)
	require.Equal(t, http.MethodPut, repo.writes[0].method)
}

func TestSpacesEscapeAsPercent20(t *testing.T) {
	client, repo := newFakeDrive(t)

	file, err := client.InsertFile(context.Background(), "acme/diagrams/master/folder%20a", "chart 1.drawio",
		Payload{Kind: PayloadText, Content: "x"}, "add", nil)
	require.NoError(t, err)
	require.Len(t, repo.writes, 1)
	// path segments use %20 for spaces; + only means a space in queries
	require.Equal(t, "folder%20a%2Fchart%201.drawio", repo.writes[0].path)
	require.NotContains(t, repo.writes[0].path, "+")
	require.Equal(t, "folder a/chart 1.drawio", file.Meta.Path)
	require.Equal(t, "chart 1.drawio", file.Meta.Name)
}

func TestSaveFileOverwriteRefreshesSHA(t *testing.T) {
	client, repo := newFakeDrive(t)
	repo.files["chart.drawio"] = diagramXML
	repo.shas["chart.drawio"] = "fresh-sha"

	file := &File{
		Meta: Metadata{
			Org: "acme", Repo: "diagrams", Ref: "master",
			Name: "chart.drawio", Path: "chart.drawio", SHA: "stale-sha",
		},
		Payload: Payload{Kind: PayloadDiagram, Content: diagramXML},
	}
	require.NoError(t, client.SaveFile(context.Background(), file, "save", true))
	require.Len(t, repo.writes, 1)
	require.Equal(t, http.MethodPut, repo.writes[0].method)
	sum := sha256.Sum256([]byte(diagramXML))
	require.Equal(t, hex.EncodeToString(sum[:]), file.Meta.SHA)
	require.False(t, file.Meta.IsNew)
	// only the pre-write refresh hits the provider, the token for the
	// written body is computed locally
	require.Equal(t, 1, repo.gets)
}

func TestSaveFileTooLarge(t *testing.T) {
	repo := &fakeRepo{files: map[string]string{}, shas: map[string]string{}}
	srv := httptest.NewServer(repo.handler(t))
	t.Cleanup(srv.Close)
	client, err := New(Options{
		BaseURL:     srv.URL,
		ClientID:    "test",
		HTTPClient:  srv.Client(),
		MaxFileSize: units.Base2Bytes(16),
	})
	require.NoError(t, err)
	client.auth = &stubAuth{}
	prime(client)

	file := &File{
		Meta:    Metadata{Org: "acme", Repo: "diagrams", Ref: "master", Name: "big.txt", Path: "big.txt", IsNew: true},
		Payload: Payload{Kind: PayloadText, Content: "way more than sixteen bytes of content"},
	}
	err = client.SaveFile(context.Background(), file, "save", false)
	require.True(t, errors.Is(err, ErrTooLarge))
	require.Empty(t, repo.writes)
}
