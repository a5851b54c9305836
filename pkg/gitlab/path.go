package gitlab

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// refSentinel marks the boundary between repository coordinates and the
// file path inside a flattened identifier: everything before it is the
// namespace and repository, everything after is the in-repo path.
const refSentinel = "master"

// Coordinate addresses one location inside a repository. Org may contain
// slashes (nested group namespaces); Path is empty for the repository root.
type Coordinate struct {
	Org  string
	Repo string
	Ref  string
	Path string
}

// Resolve decomposes a compound identifier of the form
// "org/repo/master/folder/file" into a Coordinate. An identifier without
// the branch sentinel, or without at least a namespace and repository in
// front of it, is rejected with ErrBadPath.
func Resolve(id string) (*Coordinate, error) {
	decoded, err := url.PathUnescape(id)
	if err != nil {
		return nil, errors.Wrap(ErrBadPath, id)
	}
	tokens := strings.Split(decoded, "/")
	refPos := -1
	for i, token := range tokens {
		if token == refSentinel {
			refPos = i
			break
		}
	}
	if refPos < 2 {
		return nil, errors.Wrap(ErrBadPath, decoded)
	}
	return &Coordinate{
		Org:  strings.Join(tokens[:refPos-1], "/"),
		Repo: tokens[refPos-1],
		Ref:  tokens[refPos],
		Path: strings.Join(tokens[refPos+1:], "/"),
	}, nil
}

// ID re-joins the coordinate into the compound identifier form. Resolving
// the result yields the same coordinate.
func (c *Coordinate) ID() string {
	id := c.Org + "/" + c.Repo + "/" + url.PathEscape(c.Ref)
	if c.Path != "" {
		id += "/" + c.Path
	}
	return id
}

// ProjectID is the namespace-qualified project identifier the REST API
// expects, still unescaped.
func (c *Coordinate) ProjectID() string {
	return c.Org + "/" + c.Repo
}

// Join returns the coordinate of name inside this (folder) coordinate.
func (c *Coordinate) Join(name string) *Coordinate {
	path := c.Path
	if path != "" {
		path += "/"
	}
	return &Coordinate{
		Org:  c.Org,
		Repo: c.Repo,
		Ref:  c.Ref,
		Path: path + name,
	}
}
