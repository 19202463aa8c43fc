package help

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestColdstartIsValidYAML(t *testing.T) {
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(ColdstartYAML), &doc))

	for _, key := range []string{"read_modes", "commands", "mcp_tools", "mcp_resources", "limits"} {
		assert.Contains(t, doc, key)
	}
	tools, ok := doc["mcp_tools"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, tools, 7)
}
