package gitlab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// CurrentUser returns the authenticated identity, fetching it (and
// driving the handshake when needed) on first use.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if u := c.User(); u != nil {
		return u, nil
	}
	failOnAuth := false
	if c.Token() == "" {
		if err := c.Login(ctx); err != nil {
			return nil, err
		}
		failOnAuth = true
	}
	if _, err := c.updateUser(ctx, failOnAuth); err != nil {
		return nil, err
	}
	return c.User(), nil
}

func (c *Client) getRepoFile(ctx context.Context, coord *Coordinate, ignoreNotFound bool) (*RepoFile, error) {
	query := url.Values{}
	query.Set("ref", coord.Ref)
	// cache-busting parameter, identical role to the editor's
	query.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))
	data, err := c.execute(ctx, apiRequest{
		method: http.MethodGet,
		path:   "/projects/" + encodeURIComponent(coord.ProjectID()) + "/repository/files/" + encodeURIComponent(coord.Path),
		query:  query,
	}, ignoreNotFound)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var file RepoFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "parse file record")
	}
	return &file, nil
}

// writeRepoFile creates (POST) or updates (PUT) one repository file with
// the provider's JSON entity. Content is always base64.
func (c *Client) writeRepoFile(ctx context.Context, coord *Coordinate, message, content string, update bool) error {
	method := http.MethodPost
	if update {
		method = http.MethodPut
	}
	_, err := c.execute(ctx, apiRequest{
		method: method,
		path:   "/projects/" + encodeURIComponent(coord.ProjectID()) + "/repository/files/" + encodeURIComponent(coord.Path),
		body: map[string]string{
			"path":           coord.Path,
			"branch":         coord.Ref,
			"commit_message": message,
			"content":        content,
			"encoding":       "base64",
		},
	}, false)
	return err
}

func pageQuery(p Page) url.Values {
	p = p.orDefault()
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(p.Size))
	query.Set("page", strconv.Itoa(p.Number))
	return query
}

func listEndpoint[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	data, err := c.execute(ctx, apiRequest{method: http.MethodGet, path: path, query: query}, false)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, errors.Wrap(err, "parse listing")
	}
	return items, nil
}

// ListGroups returns one page of the groups visible to the user.
func (c *Client) ListGroups(ctx context.Context, page Page) ([]Group, error) {
	return listEndpoint[Group](ctx, c, "/groups", pageQuery(page))
}

// ListGroupProjects returns one page of a group's projects.
func (c *Client) ListGroupProjects(ctx context.Context, groupID int64, page Page) ([]Project, error) {
	return listEndpoint[Project](ctx, c, "/groups/"+strconv.FormatInt(groupID, 10)+"/projects", pageQuery(page))
}

// ListUserProjects returns one page of the projects a user owns.
func (c *Client) ListUserProjects(ctx context.Context, userID int64, page Page) ([]Project, error) {
	return listEndpoint[Project](ctx, c, "/users/"+strconv.FormatInt(userID, 10)+"/projects", pageQuery(page))
}

// ListBranches returns one page of a project's branches.
func (c *Client) ListBranches(ctx context.Context, projectID string, page Page) ([]Branch, error) {
	return listEndpoint[Branch](ctx, c, "/projects/"+encodeURIComponent(projectID)+"/repository/branches", pageQuery(page))
}

// ListTree returns one page of the tree entries under path.
func (c *Client) ListTree(ctx context.Context, projectID, path string, page Page) ([]TreeEntry, error) {
	query := pageQuery(page)
	query.Set("path", path)
	return listEndpoint[TreeEntry](ctx, c, "/projects/"+encodeURIComponent(projectID)+"/repository/tree", query)
}
