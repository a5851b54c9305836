package picker

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

type filter struct {
	pattern glob.Glob
}

// WithFilter limits the blobs offered for selection to names matching
// the glob pattern, e.g. "*.drawio" or "*.{png,svg}".
func WithFilter(pattern string) Option {
	return func(p *Picker) error {
		compiled, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return errors.Wrapf(err, "bad filter %q", pattern)
		}
		p.filter = &filter{pattern: compiled}
		return nil
	}
}

func (f *filter) match(name string) bool {
	if f == nil {
		return true
	}
	return f.pattern.Match(strings.ToLower(name))
}
