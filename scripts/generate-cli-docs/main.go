// Package main generates a single markdown reference of every keyforge command.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/runvoy/keyforge/cmd/keyforge/cmd"
	"github.com/runvoy/keyforge/internal/constants"
)

func main() {
	var outFile string
	flag.StringVar(&outFile, "out", "./docs/CLI.md", "output file for generated markdown")
	flag.Parse()

	if outFile == "" {
		log.Fatal("error: output file is required")
	}

	if err := writeFile(outFile); err != nil {
		log.Fatalf("error: %s", err)
	}
}

func writeFile(outFile string) error {
	if err := os.MkdirAll(filepath.Dir(outFile), constants.ConfigDirPermissions); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var buf bytes.Buffer
	if err := generateCLIDocs(&buf, cmd.RootCmd()); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Clean(outFile), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	log.Printf("✅ Generated CLI documentation in %s", outFile)
	return nil
}

func generateCLIDocs(w io.Writer, root *cobra.Command) error {
	root.DisableAutoGenTag = true

	fmt.Fprintf(w, "# %s CLI\n\n", constants.ProjectName)
	fmt.Fprintln(w, "Every command with its description, flags and examples.")
	fmt.Fprintln(w)

	return generateDocs(w, root, 2)
}

func generateDocs(w io.Writer, c *cobra.Command, level int) error {
	if !c.IsAvailableCommand() || c.IsAdditionalHelpTopicCommand() {
		return nil
	}

	fmt.Fprintf(w, "%s %s\n\n", strings.Repeat("#", level), c.CommandPath())
	if c.Short != "" {
		fmt.Fprintf(w, "%s\n\n", c.Short)
	}
	if c.Long != "" && c.Long != c.Short {
		fmt.Fprintf(w, "%s\n\n", c.Long)
	}
	if c.Example != "" {
		fmt.Fprintf(w, "**Examples:**\n\n```bash\n%s\n```\n\n", c.Example)
	}

	var buf bytes.Buffer
	if err := doc.GenMarkdown(c, &buf); err != nil {
		return fmt.Errorf("generating markdown for %s: %w", c.CommandPath(), err)
	}
	if options := optionsSection(buf.String()); options != "" {
		fmt.Fprintf(w, "%s\n\n", options)
	}

	subcommands := c.Commands()
	sort.Slice(subcommands, func(i, j int) bool {
		return subcommands[i].Name() < subcommands[j].Name()
	})
	for _, sub := range subcommands {
		if err := generateDocs(w, sub, level+1); err != nil {
			return err
		}
	}
	return nil
}

// optionsSection cuts the "### Options" block out of cobra's markdown.
func optionsSection(markdown string) string {
	start := strings.Index(markdown, "### Options")
	if start < 0 {
		return ""
	}
	section := markdown[start:]

	for _, marker := range []string{"\n\n### Options inherited", "\n\n### SEE ALSO", "\n\n## "} {
		if end := strings.Index(section, marker); end > 0 {
			section = section[:end]
			break
		}
	}
	return strings.TrimRight(section, "\n")
}
