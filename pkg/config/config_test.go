package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsOversizedResolverPool(t *testing.T) {
	c := Default()
	c.MaxPreparedForeignXacts = 5
	c.MaxForeignXactResolvers = 10
	require.Error(t, c.Validate())
}

func TestLoadResourceStandbyGroup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "group.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
apiVersion: fxcoord/v1
kind: StandbyGroup
metadata:
  name: default
spec:
  synchronousStandbyNames: "FIRST 2 (s1, s2, s3)"
`), 0o644))

	r, err := LoadResource(path)
	require.NoError(t, err)
	require.Equal(t, "StandbyGroup", r.Kind)

	spec, err := r.DecodeStandbyGroup()
	require.NoError(t, err)
	require.Equal(t, "FIRST 2 (s1, s2, s3)", spec.SynchronousStandbyNames)
}
