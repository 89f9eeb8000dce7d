package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCLIDocs(t *testing.T) {
	root := &cobra.Command{Use: "keyforge", Short: "root"}
	child := &cobra.Command{
		Use:     "provision",
		Short:   "Provision a project",
		Example: "  - keyforge provision",
		Run:     func(*cobra.Command, []string) {},
	}
	child.Flags().String("prefix", "", "Project id prefix")
	hidden := &cobra.Command{Use: "secret", Hidden: true, Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child, hidden)

	var buf bytes.Buffer
	require.NoError(t, generateCLIDocs(&buf, root))

	got := buf.String()
	assert.Contains(t, got, "# keyforge CLI")
	assert.Contains(t, got, "### keyforge provision")
	assert.Contains(t, got, "Provision a project")
	assert.Contains(t, got, "--prefix")
	assert.Contains(t, got, "```bash\n  - keyforge provision\n```")
	assert.NotContains(t, got, "keyforge secret")
}

func TestOptionsSection(t *testing.T) {
	markdown := "## cmd\n\n### Options\n\n```\n  -h, --help\n```\n\n### SEE ALSO\n\n* parent"

	assert.Equal(t, "### Options\n\n```\n  -h, --help\n```", optionsSection(markdown))
	assert.Empty(t, optionsSection("## cmd\n"))
}
