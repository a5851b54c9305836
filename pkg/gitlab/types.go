package gitlab

// Wire types for the GitLab v4 REST API. Only the fields this adapter
// reads are mapped; everything else is ignored on unmarshal.

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

type RepoFile struct {
	FileName      string `json:"file_name"`
	FilePath      string `json:"file_path"`
	Size          int64  `json:"size"`
	Encoding      string `json:"encoding"`
	Content       string `json:"content"`
	ContentSHA256 string `json:"content_sha256"`
	Ref           string `json:"ref"`
	BlobID        string `json:"blob_id"`
	CommitID      string `json:"commit_id"`
	LastCommitID  string `json:"last_commit_id"`
}

type TreeEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // "tree" or "blob"
	Path string `json:"path"`
	Mode string `json:"mode"`
}

type Group struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	FullPath string `json:"full_path"`
}

type ProjectOwner struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type Project struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	Path              string        `json:"path"`
	NameWithNamespace string        `json:"name_with_namespace"`
	PathWithNamespace string        `json:"path_with_namespace"`
	DefaultBranch     string        `json:"default_branch"`
	Owner             *ProjectOwner `json:"owner"`
}

type Branch struct {
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

// errorBody covers the two shapes GitLab uses for failures: a plain
// message and the errors array carrying machine-readable codes (the
// too_large case on 403).
type errorBody struct {
	Message string `json:"message"`
	Errors  []struct {
		Code string `json:"code"`
	} `json:"errors"`
}

// Page selects one slice of a paged listing endpoint.
type Page struct {
	Number int
	Size   int
}

const DefaultPageSize = 100

func (p Page) orDefault() Page {
	if p.Number <= 0 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	return p
}
