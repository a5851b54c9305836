package gitlab

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/alecthomas/units"
	"github.com/pkg/errors"
)

// Metadata locates a file inside the provider. SHA is the content hash
// used for optimistic concurrency; IsNew marks a file that has not been
// created on the provider yet.
type Metadata struct {
	Org         string
	Repo        string
	Ref         string
	Name        string
	Path        string
	SHA         string
	HTMLURL     string
	DownloadURL string
	IsNew       bool
}

// ID returns the compound identifier addressing this file.
func (m *Metadata) ID() string {
	return (&Coordinate{Org: m.Org, Repo: m.Repo, Ref: m.Ref, Path: m.Path}).ID()
}

// File pairs provider metadata with the decoded editor payload.
type File struct {
	Meta    Metadata
	Payload Payload
}

func (c *Client) fileFrom(coord *Coordinate, rf *RepoFile) (*File, error) {
	payload, err := DecodeContent(rf)
	if err != nil {
		return nil, err
	}
	prefix := c.webBase + "/" + coord.Org + "/" + coord.Repo
	return &File{
		Meta: Metadata{
			Org:         coord.Org,
			Repo:        coord.Repo,
			Ref:         coord.Ref,
			Name:        rf.FileName,
			Path:        rf.FilePath,
			SHA:         rf.ContentSHA256,
			HTMLURL:     prefix + "/blob/" + url.PathEscape(coord.Ref) + "/" + rf.FilePath,
			DownloadURL: prefix + "/raw/" + url.PathEscape(coord.Ref) + "/" + rf.FilePath + "?inline=false",
		},
		Payload: payload,
	}, nil
}

// GetFile resolves a compound identifier and fetches the file behind it.
func (c *Client) GetFile(ctx context.Context, id string) (*File, error) {
	coord, err := Resolve(id)
	if err != nil {
		return nil, err
	}
	rf, err := c.getRepoFile(ctx, coord, false)
	if err != nil {
		return nil, err
	}
	return c.fileFrom(coord, rf)
}

// Stat reports whether the identifier exists and, when it does, its
// concurrency token.
func (c *Client) Stat(ctx context.Context, id string) (sha string, exists bool, err error) {
	coord, err := Resolve(id)
	if err != nil {
		return "", false, err
	}
	return c.statCoord(ctx, coord)
}

func (c *Client) statCoord(ctx context.Context, coord *Coordinate) (string, bool, error) {
	rf, err := c.getRepoFile(ctx, coord, true)
	if err != nil {
		return "", false, err
	}
	if rf == nil || rf.FilePath == "" {
		return "", false, nil
	}
	return rf.ContentSHA256, true, nil
}

// InsertFile writes a new file under the given folder identifier. When
// the target already exists the confirmReplace collaborator decides
// whether to overwrite; refusing (or having no collaborator) yields the
// structural conflict signal.
func (c *Client) InsertFile(ctx context.Context, folderID, name string, payload Payload, message string, confirmReplace func(id string) bool) (*File, error) {
	folder, err := Resolve(folderID)
	if err != nil {
		return nil, err
	}
	coord := folder.Join(name)
	_, exists, err := c.statCoord(ctx, coord)
	if err != nil {
		return nil, err
	}
	if exists {
		if confirmReplace == nil || !confirmReplace(coord.ID()) {
			return nil, newRequestError(ErrConflict, 409, "", false)
		}
	}
	if _, err := c.writeCoord(ctx, coord, message, payload, exists); err != nil {
		return nil, err
	}
	rf, err := c.getRepoFile(ctx, coord, false)
	if err != nil {
		return nil, err
	}
	return c.fileFrom(coord, rf)
}

// SaveFile commits the file's payload. With overwrite the concurrency
// token is refreshed from the provider first, so the write supersedes a
// concurrent change instead of conflicting on it.
func (c *Client) SaveFile(ctx context.Context, f *File, message string, overwrite bool) error {
	coord := &Coordinate{Org: f.Meta.Org, Repo: f.Meta.Repo, Ref: f.Meta.Ref, Path: f.Meta.Path}
	if overwrite {
		rf, err := c.getRepoFile(ctx, coord, false)
		if err != nil {
			return err
		}
		f.Meta.SHA = rf.ContentSHA256
	}
	sha, err := c.writeCoord(ctx, coord, message, f.Payload, !f.Meta.IsNew)
	if err != nil {
		return err
	}
	f.Meta.IsNew = false
	f.Meta.SHA = sha
	return nil
}

// writeCoord commits the encoded payload and returns the resulting
// concurrency token. The provider's content_sha256 is the hash of the
// raw body, so it is computed locally instead of re-fetched.
func (c *Client) writeCoord(ctx context.Context, coord *Coordinate, message string, payload Payload, update bool) (string, error) {
	content, err := EncodeContent(payload, coord.Path, c.pngExport)
	if err != nil {
		return "", err
	}
	if int64(len(content)) >= c.maxFileSize {
		return "", newRequestError(ErrTooLarge, 0, fmt.Sprintf("drawing too large (%s / %s)",
			units.Base2Bytes(len(content)), units.Base2Bytes(c.maxFileSize)), false)
	}
	if err := c.writeRepoFile(ctx, coord, message, content, update); err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return "", errors.Wrap(err, "decode written content")
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
