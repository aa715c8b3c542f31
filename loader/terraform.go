package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/talkops-ai/tfknowledge/core"
	"gopkg.in/yaml.v3"
)

// ResourceConfidence is the confidence of a syntactic parse.
const ResourceConfidence = 1.0

var (
	titleRe         = regexp.MustCompile(`^# (Resource|Data Source): ([A-Za-z0-9]+_[A-Za-z0-9_]+)`)
	anyTitleRe      = regexp.MustCompile(`^# .*?\b([A-Za-z0-9]+_[A-Za-z0-9_]+)`)
	subcategoryRe   = regexp.MustCompile(`^subcategory:\s*"?([^"]+)"?`)
	headingRe       = regexp.MustCompile(`^#{1,2} `)
	anyHeadingRe    = regexp.MustCompile(`^#`)
	argumentsRe     = regexp.MustCompile(`(?i)^##+\s*Argument Reference`)
	attributesRe    = regexp.MustCompile(`(?i)^##+\s*Attributes? Reference`)
	examplesRe      = regexp.MustCompile(`(?i)^##+\s*Example Usage`)
	argRequiredRe   = regexp.MustCompile("^[-*]\\s+`?([A-Za-z0-9_.]+)`?\\s*\\((Required|Optional)\\)\\s*-\\s*(.+)")
	argDashFirstRe  = regexp.MustCompile("^[-*]\\s+`?([A-Za-z0-9_.]+)`?\\s*-\\s*\\((Required|Optional)[^)]*\\)\\s*(.*)")
	namedBulletRe   = regexp.MustCompile("^[-*]\\s+`([A-Za-z0-9_.\\[\\]*]+)`\\s*-\\s*(.+)")
	noteKeywords    = []string{"**NOTE:**", "**Note:**", "**Warning:**", "**Tip:**"}
	frontmatterMark = []byte("---")
)

type frontmatter struct {
	Subcategory string `yaml:"subcategory"`
	PageTitle   string `yaml:"page_title"`
	Description string `yaml:"description"`
}

// LoadResource reads and parses the Terraform Markdown page at path.
func LoadResource(path string) (*core.ResourceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseResource(path, data)
}

// ParseResource parses a Terraform provider Markdown page. source is the
// page's path or URL; it is used to infer the type and service when the page
// does not state them.
func ParseResource(source string, data []byte) (*core.ResourceRecord, error) {
	fm, body := splitFrontmatter(data)
	lines := strings.Split(strings.ReplaceAll(string(body), "\r\n", "\n"), "\n")
	source = filepath.ToSlash(source)

	rec := &core.ResourceRecord{
		ResourceType: parseName(lines),
		Type:         parseType(lines, source),
		Service:      parseService(fm, lines, source),
		Description:  parseDescription(lines),
		Arguments:    parseArguments(lines),
		Attributes:   parseAttributes(lines),
		Examples:     parseExamples(lines),
		Notes:        parseNotes(lines),
		Confidence:   ResourceConfidence,
	}
	if rec.ResourceType == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotTerraformDoc, source)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// ResourceRule is the rule extractor for the resource schema.
func ResourceRule(chunk core.Chunk) (core.Record, error) {
	return ParseResource(chunk.Metadata.Source, []byte(chunk.Text))
}

// splitFrontmatter separates a leading YAML block delimited by --- lines.
// Malformed YAML is treated as absent.
func splitFrontmatter(data []byte) (*frontmatter, []byte) {
	trimmed := bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(trimmed, frontmatterMark) {
		return nil, data
	}
	rest := trimmed[len(frontmatterMark):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || strings.TrimSpace(string(rest[:nl])) != "" {
		return nil, data
	}
	rest = rest[nl+1:]

	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, data
	}
	block, body := rest[:end], rest[end+len("\n---"):]
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = nil
	}

	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, data
	}
	return &fm, body
}

func parseName(lines []string) string {
	for _, line := range lines {
		if m := titleRe.FindStringSubmatch(line); m != nil {
			return m[2]
		}
	}
	for _, line := range lines {
		if m := anyTitleRe.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

func parseType(lines []string, source string) string {
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "# Resource:"):
			return string(core.DocTypeResource)
		case strings.HasPrefix(line, "# Data Source:"):
			return string(core.DocTypeDataSource)
		}
	}
	switch {
	case strings.Contains(source, "/r/"):
		return string(core.DocTypeResource)
	case strings.Contains(source, "/d/"):
		return string(core.DocTypeDataSource)
	}
	return ""
}

func parseService(fm *frontmatter, lines []string, source string) string {
	if fm != nil && fm.Subcategory != "" {
		return fm.Subcategory
	}
	for _, line := range lines[:min(10, len(lines))] {
		if m := subcategoryRe.FindStringSubmatch(line); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	parts := strings.Split(source, "/")
	for i, part := range parts {
		if (part == "r" || part == "d") && i > 0 {
			return strings.ToUpper(parts[i-1])
		}
	}
	return ""
}

func parseDescription(lines []string) string {
	var desc []string
	in := false
	for _, line := range lines {
		if titleRe.MatchString(line) {
			in = true
			continue
		}
		if !in {
			continue
		}
		if anyHeadingRe.MatchString(line) {
			break
		}
		s := strings.TrimSpace(line)
		if s == "" || isCallout(s) {
			continue
		}
		desc = append(desc, s)
	}
	return strings.Join(desc, " ")
}

// section returns the lines after the first heading matching start, up to
// the next level one or two heading.
func section(lines []string, start *regexp.Regexp) []string {
	for i, line := range lines {
		if !start.MatchString(line) {
			continue
		}
		var out []string
		for _, l := range lines[i+1:] {
			if headingRe.MatchString(l) {
				break
			}
			out = append(out, l)
		}
		return out
	}
	return nil
}

// bulletList collects bullets recognized by match, appending continuation
// lines to the previous item's description. A continuation is a plain line
// directly under the item, or an indented line before the next bullet or
// heading.
func bulletList[T any](lines []string, match func(string) (T, bool), extend func(*T, string)) []T {
	var (
		items  []T
		open   bool
		direct bool
	)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if item, ok := match(trimmed); ok {
			items = append(items, item)
			open, direct = true, true
			continue
		}
		if trimmed == "" {
			direct = false
			continue
		}
		plain := !strings.HasPrefix(trimmed, "-") && !strings.HasPrefix(trimmed, "*") && !anyHeadingRe.MatchString(trimmed)
		if open && plain && (direct || strings.HasPrefix(line, "  ")) {
			extend(&items[len(items)-1], trimmed)
			continue
		}
		open, direct = false, false
	}
	return items
}

func parseArguments(lines []string) []core.Argument {
	sec := section(lines, argumentsRe)
	args := bulletList(sec, matchArgument, func(a *core.Argument, more string) {
		a.Description = strings.TrimSpace(a.Description + " " + more)
	})
	if len(args) > 0 {
		return args
	}
	for _, row := range parseTable(sec) {
		name := row.get("name")
		if name == "" {
			continue
		}
		args = append(args, core.Argument{
			Name:        strings.Trim(name, "`"),
			Type:        row.get("type"),
			Required:    strings.EqualFold(row.get("required"), "yes") || strings.EqualFold(row.get("required"), "true"),
			Description: row.get("description"),
		})
	}
	return args
}

func matchArgument(line string) (core.Argument, bool) {
	if m := argRequiredRe.FindStringSubmatch(line); m != nil {
		return core.Argument{Name: m[1], Required: m[2] == "Required", Description: strings.TrimSpace(m[3])}, true
	}
	if m := argDashFirstRe.FindStringSubmatch(line); m != nil {
		return core.Argument{Name: m[1], Required: m[2] == "Required", Description: strings.TrimSpace(m[3])}, true
	}
	if m := namedBulletRe.FindStringSubmatch(line); m != nil {
		return core.Argument{Name: m[1], Description: strings.TrimSpace(m[2])}, true
	}
	return core.Argument{}, false
}

func parseAttributes(lines []string) []core.Attribute {
	sec := section(lines, attributesRe)
	attrs := bulletList(sec, matchAttribute, func(a *core.Attribute, more string) {
		a.Description = strings.TrimSpace(a.Description + " " + more)
	})
	if len(attrs) > 0 {
		return attrs
	}
	for _, row := range parseTable(sec) {
		name := row.get("name")
		if name == "" {
			continue
		}
		attrs = append(attrs, core.Attribute{
			Name:        strings.Trim(name, "`"),
			Type:        row.get("type"),
			Description: row.get("description"),
		})
	}
	return attrs
}

func matchAttribute(line string) (core.Attribute, bool) {
	if m := namedBulletRe.FindStringSubmatch(line); m != nil {
		return core.Attribute{Name: m[1], Description: strings.TrimSpace(m[2])}, true
	}
	return core.Attribute{}, false
}

type tableRow struct {
	header []string
	cells  []string
}

// get returns the cell of the first column whose header contains key.
func (r tableRow) get(key string) string {
	for i, h := range r.header {
		if strings.Contains(h, key) && i < len(r.cells) {
			return r.cells[i]
		}
	}
	return ""
}

// parseTable reads the first Markdown table in lines.
func parseTable(lines []string) []tableRow {
	sep := -1
	for i, l := range lines {
		if i > 0 && strings.Contains(l, "|") && strings.Contains(l, "---") {
			sep = i
			break
		}
	}
	if sep < 0 {
		return nil
	}
	header := tableCells(lines[sep-1])
	for i := range header {
		header[i] = strings.ToLower(header[i])
	}

	var rows []tableRow
	for _, l := range lines[sep+1:] {
		if strings.TrimSpace(l) == "" || !strings.Contains(l, "|") {
			break
		}
		rows = append(rows, tableRow{header: header, cells: tableCells(l)})
	}
	return rows
}

func tableCells(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	cells := strings.Split(line, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func parseExamples(lines []string) []string {
	sec := section(lines, examplesRe)

	var (
		examples []string
		block    []string
		inFence  bool
	)
	for _, line := range sec {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inFence {
				examples = append(examples, strings.Join(block, "\n"))
			}
			inFence = !inFence
			block = nil
			continue
		}
		if inFence {
			block = append(block, line)
		}
	}
	if len(examples) > 0 {
		return examples
	}

	block = nil
	for _, line := range sec {
		if strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			block = append(block, strings.TrimLeft(line, " \t"))
			continue
		}
		if len(block) > 0 {
			examples = append(examples, strings.Join(block, "\n"))
			block = nil
		}
	}
	if len(block) > 0 {
		examples = append(examples, strings.Join(block, "\n"))
	}
	return examples
}

func parseNotes(lines []string) []string {
	var notes []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !isCallout(trimmed) {
			continue
		}
		content := strings.TrimSpace(strings.TrimLeft(trimmed, ">~- "))
		for _, kw := range noteKeywords {
			if strings.Contains(content, kw) {
				notes = append(notes, content)
				break
			}
		}
	}
	return notes
}

// isCallout reports whether a trimmed line is a quote or a ~> / -> callout.
func isCallout(trimmed string) bool {
	return strings.HasPrefix(trimmed, ">") || strings.HasPrefix(trimmed, "~>") || strings.HasPrefix(trimmed, "->")
}
