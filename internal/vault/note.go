package vault

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"
)

// maxTitleLength matches the title limit of the notes API.
const maxTitleLength = 200

// Note is a markdown file ready to be published.
type Note struct {
	RelPath string
	Title   string
	Content string
}

// Read loads f. The title is the first level-one heading, or the file name
// without its extension when there is none. YAML front matter is dropped
// from the content.
func Read(f File) (Note, error) {
	raw, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return Note{}, fmt.Errorf("failed to read %s: %w", f.RelPath, err)
	}
	content := stripFrontMatter(string(raw))

	title := headingTitle(content)
	if title == "" {
		title = strings.TrimSuffix(path.Base(f.RelPath), path.Ext(f.RelPath))
	}
	if r := []rune(title); len(r) > maxTitleLength {
		title = string(r[:maxTitleLength])
	}

	return Note{RelPath: f.RelPath, Title: title, Content: strings.TrimSpace(content)}, nil
}

func headingTitle(content string) string {
	sc := bufio.NewScanner(strings.NewReader(content))
	inFence := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if !inFence && strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

func stripFrontMatter(content string) string {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return content
	}
	rest := content[strings.Index(content, "\n")+1:]
	for offset := 0; offset < len(rest); {
		end := strings.IndexByte(rest[offset:], '\n')
		line := rest[offset:]
		if end >= 0 {
			line = rest[offset : offset+end]
		}
		if strings.TrimSpace(line) == "---" {
			if end < 0 {
				return ""
			}
			return rest[offset+end+1:]
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return content
}
