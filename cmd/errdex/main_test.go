package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequestEmpty(t *testing.T) {
	diagnoseStackFile = ""
	diagnoseCodeFile = ""
	diagnoseCodeLine = 0
	diagnoseEnv = nil

	req, err := buildRequest()
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestBuildRequestFromFiles(t *testing.T) {
	dir := t.TempDir()
	stackPath := filepath.Join(dir, "trace.txt")
	codePath := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(stackPath, []byte(`File "app.py", line 3, in main`), 0600))
	require.NoError(t, os.WriteFile(codePath, []byte("x = 1\ny = x + \"a\"\n"), 0600))

	diagnoseStackFile = stackPath
	diagnoseCodeFile = codePath
	diagnoseCodeLine = 2
	diagnoseEnv = map[string]string{"runtime_version": "3.11"}
	t.Cleanup(func() {
		diagnoseStackFile = ""
		diagnoseCodeFile = ""
		diagnoseCodeLine = 0
		diagnoseEnv = nil
	})

	req, err := buildRequest()
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Contains(t, req.StackTrace, "app.py")
	assert.Contains(t, req.Code, "y = x")
	assert.Equal(t, 2, req.CodeLine)
	assert.Equal(t, "3.11", req.Environment["runtime_version"])
}

func TestBuildRequestMissingStackFile(t *testing.T) {
	diagnoseStackFile = filepath.Join(t.TempDir(), "absent.txt")
	t.Cleanup(func() { diagnoseStackFile = "" })

	_, err := buildRequest()
	require.Error(t, err)
}
