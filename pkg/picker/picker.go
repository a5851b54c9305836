// Package picker implements the interactive browse-and-select loop over
// groups, projects, branches and tree entries.
package picker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gopkg.d7z.net/gitlab-drive/pkg/gitlab"
	"gopkg.d7z.net/gitlab-drive/pkg/utils"
)

// Client is the slice of the drive client the picker consumes.
type Client interface {
	CurrentUser(ctx context.Context) (*gitlab.User, error)
	ListGroups(ctx context.Context, page gitlab.Page) ([]gitlab.Group, error)
	ListGroupProjects(ctx context.Context, groupID int64, page gitlab.Page) ([]gitlab.Project, error)
	ListUserProjects(ctx context.Context, userID int64, page gitlab.Page) ([]gitlab.Project, error)
	ListBranches(ctx context.Context, projectID string, page gitlab.Page) ([]gitlab.Branch, error)
	ListTree(ctx context.Context, projectID, path string, page gitlab.Page) ([]gitlab.TreeEntry, error)
}

const (
	optUp     = "../ [Up]"
	optMore   = "more..."
	optHere   = ". [This folder]"
	optManual = "enter org/repo/path..."
)

type Picker struct {
	client   Client
	prompt   Prompter
	pageSize int
	filter   *filter

	groups   *utils.Cache[[]gitlab.Group]
	projects *utils.Cache[[]gitlab.Project]
}

type Option func(*Picker) error

func WithPageSize(n int) Option {
	return func(p *Picker) error {
		p.pageSize = n
		return nil
	}
}

func WithPrompter(prompt Prompter) Option {
	return func(p *Picker) error {
		p.prompt = prompt
		return nil
	}
}

func New(client Client, opts ...Option) (*Picker, error) {
	groups, err := utils.NewCache[[]gitlab.Group](64, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	projects, err := utils.NewCache[[]gitlab.Project](256, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	p := &Picker{
		client:   client,
		prompt:   surveyPrompter{},
		pageSize: gitlab.DefaultPageSize,
		groups:   groups,
		projects: projects,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// PickFile walks the user to a blob and returns its compound identifier.
func (p *Picker) PickFile(ctx context.Context) (string, error) {
	return p.browse(ctx, true)
}

// PickFolder walks the user to a tree and returns its compound identifier.
func (p *Picker) PickFolder(ctx context.Context) (string, error) {
	return p.browse(ctx, false)
}

type location struct {
	org  string
	repo string
	ref  string
	path string
}

func (l *location) id() string {
	id := l.org + "/" + l.repo + "/" + url.PathEscape(l.ref)
	if l.path != "" {
		id += "/" + l.path
	}
	return id
}

func (p *Picker) browse(ctx context.Context, wantFile bool) (string, error) {
	for {
		loc, err := p.selectProject(ctx)
		if err != nil {
			return "", err
		}
		if loc.ref == "" {
			if err := p.selectRef(ctx, loc); err != nil {
				if errors.Is(err, errBack) {
					continue
				}
				return "", err
			}
		}
		id, err := p.selectEntry(ctx, loc, wantFile)
		if errors.Is(err, errBack) {
			continue
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}
}

// errBack unwinds one drill-down level.
var errBack = errors.New("back")

func (p *Picker) selectProject(ctx context.Context) (*location, error) {
	user, err := p.client.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	byLabel := make(map[string]gitlab.Project)
	var labels []string
	page := 1
	for {
		projects, err := p.ownAndGroupProjects(ctx, user.ID, page)
		if err != nil {
			return nil, err
		}
		for _, project := range projects {
			label := project.NameWithNamespace
			if _, dup := byLabel[label]; dup {
				continue
			}
			byLabel[label] = project
			labels = append(labels, label)
		}
		options := append([]string{optManual}, labels...)
		if len(projects) >= p.pageSize {
			options = append(options, optMore)
		}
		choice, err := p.prompt.Select("Select project", options)
		if err != nil {
			return nil, err
		}
		switch choice {
		case optMore:
			page++
			continue
		case optManual:
			return p.manualEntry()
		}
		project := byLabel[choice]
		loc := &location{
			repo: project.Path,
			ref:  project.DefaultBranch,
		}
		if project.Owner != nil {
			loc.org = project.Owner.Username
		}
		if idx := strings.LastIndex(project.PathWithNamespace, "/"); idx > 0 {
			loc.org = project.PathWithNamespace[:idx]
		}
		return loc, nil
	}
}

// ownAndGroupProjects merges the user's own projects with every visible
// group's, the way the selection dialog lists them side by side.
func (p *Picker) ownAndGroupProjects(ctx context.Context, userID int64, page int) ([]gitlab.Project, error) {
	key := fmt.Sprintf("all/%d/%d", userID, page)
	if cached, ok := p.projects.Get(key); ok {
		return cached, nil
	}
	result, err := p.client.ListUserProjects(ctx, userID, gitlab.Page{Number: page, Size: p.pageSize})
	if err != nil {
		return nil, err
	}
	groups, err := p.listGroups(ctx)
	if err != nil {
		return nil, err
	}
	if page == 1 {
		for _, group := range groups {
			projects, err := p.client.ListGroupProjects(ctx, group.ID, gitlab.Page{Size: p.pageSize})
			if err != nil {
				zap.L().Warn("list group projects", zap.String("group", group.FullPath), zap.Error(err))
				continue
			}
			result = append(result, projects...)
		}
	}
	p.projects.Put(key, result)
	return result, nil
}

func (p *Picker) listGroups(ctx context.Context) ([]gitlab.Group, error) {
	if cached, ok := p.groups.Get("groups"); ok {
		return cached, nil
	}
	groups, err := p.client.ListGroups(ctx, gitlab.Page{Size: p.pageSize})
	if err != nil {
		return nil, err
	}
	p.groups.Put("groups", groups)
	return groups, nil
}

func (p *Picker) manualEntry() (*location, error) {
	value, err := p.prompt.Input("org/repo/path")
	if err != nil {
		return nil, err
	}
	tokens := strings.Split(strings.Trim(value, "/"), "/")
	if len(tokens) < 2 {
		return nil, errors.Wrap(gitlab.ErrBadPath, value)
	}
	loc := &location{
		org:  tokens[0],
		repo: tokens[1],
		ref:  "master",
	}
	if len(tokens) > 2 {
		loc.path = strings.Join(tokens[2:], "/")
	}
	return loc, nil
}

func (p *Picker) selectRef(ctx context.Context, loc *location) error {
	var names []string
	page := 1
	for {
		branches, err := p.client.ListBranches(ctx, loc.org+"/"+loc.repo, gitlab.Page{Number: page, Size: p.pageSize})
		if err != nil {
			return err
		}
		for _, branch := range branches {
			names = append(names, branch.Name)
		}
		options := append([]string{optUp}, names...)
		if len(branches) >= p.pageSize {
			options = append(options, optMore)
		}
		choice, err := p.prompt.Select("Select branch", options)
		if err != nil {
			return err
		}
		switch choice {
		case optMore:
			page++
			continue
		case optUp:
			return errBack
		}
		loc.ref = choice
		loc.path = ""
		return nil
	}
}

func (p *Picker) selectEntry(ctx context.Context, loc *location, wantFile bool) (string, error) {
	for {
		entries, err := p.client.ListTree(ctx, loc.org+"/"+loc.repo, loc.path, gitlab.Page{Size: p.pageSize})
		if err != nil {
			return "", err
		}
		byLabel := make(map[string]gitlab.TreeEntry)
		options := []string{optUp}
		if !wantFile {
			options = append(options, optHere)
		}
		for _, entry := range entries {
			if entry.Type == "tree" {
				label := entry.Name + "/"
				byLabel[label] = entry
				options = append(options, label)
			}
		}
		if wantFile {
			for _, entry := range entries {
				if entry.Type == "blob" && p.filter.match(entry.Name) {
					byLabel[entry.Name] = entry
					options = append(options, entry.Name)
				}
			}
		}
		choice, err := p.prompt.Select("Select file", options)
		if err != nil {
			return "", err
		}
		switch choice {
		case optUp:
			if loc.path == "" {
				return "", errBack
			}
			tokens := strings.Split(loc.path, "/")
			loc.path = strings.Join(tokens[:len(tokens)-1], "/")
			continue
		case optHere:
			return loc.id(), nil
		}
		entry := byLabel[choice]
		if entry.Type == "tree" {
			loc.path = entry.Path
			continue
		}
		loc.path = entry.Path
		return loc.id(), nil
	}
}
