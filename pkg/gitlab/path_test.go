package gitlab

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	coord, err := Resolve("acme/diagrams/master/folder/chart.drawio")
	require.NoError(t, err)
	require.Equal(t, "acme", coord.Org)
	require.Equal(t, "diagrams", coord.Repo)
	require.Equal(t, "master", coord.Ref)
	require.Equal(t, "folder/chart.drawio", coord.Path)
	require.Equal(t, "acme/diagrams", coord.ProjectID())
}

func TestResolveNestedNamespace(t *testing.T) {
	coord, err := Resolve("acme/tools/diagrams/master/chart.drawio")
	require.NoError(t, err)
	require.Equal(t, "acme/tools", coord.Org)
	require.Equal(t, "diagrams", coord.Repo)
	require.Equal(t, "chart.drawio", coord.Path)
}

func TestResolveFolder(t *testing.T) {
	coord, err := Resolve("acme/diagrams/master")
	require.NoError(t, err)
	require.Equal(t, "", coord.Path)
	require.Equal(t, "acme/diagrams/master", coord.ID())
}

func TestResolveEscaped(t *testing.T) {
	coord, err := Resolve("acme/diagrams/master/folder%20a/chart.drawio")
	require.NoError(t, err)
	require.Equal(t, "folder a/chart.drawio", coord.Path)
}

func TestResolveIdempotent(t *testing.T) {
	coord, err := Resolve("acme/diagrams/master/folder/chart.drawio")
	require.NoError(t, err)
	again, err := Resolve(coord.ID())
	require.NoError(t, err)
	require.Equal(t, coord, again)
}

func TestResolveMissingSentinel(t *testing.T) {
	_, err := Resolve("acme/diagrams/main/chart.drawio")
	require.True(t, errors.Is(err, ErrBadPath))

	// sentinel present but no room for org and repo in front of it
	_, err = Resolve("diagrams/master/chart.drawio")
	require.True(t, errors.Is(err, ErrBadPath))

	_, err = Resolve("master/chart.drawio")
	require.True(t, errors.Is(err, ErrBadPath))
}

func TestJoin(t *testing.T) {
	folder, err := Resolve("acme/diagrams/master/folder")
	require.NoError(t, err)
	coord := folder.Join("chart.drawio")
	require.Equal(t, "folder/chart.drawio", coord.Path)

	root, err := Resolve("acme/diagrams/master")
	require.NoError(t, err)
	require.Equal(t, "chart.drawio", root.Join("chart.drawio").Path)
}
