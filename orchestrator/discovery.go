// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package orchestrator

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/talkops-ai/tfknowledge/core"
)

// DefaultRawBaseURL is where provider documentation pages are fetched from.
const DefaultRawBaseURL = "https://raw.githubusercontent.com/hashicorp/terraform-provider-aws/main/website/docs"

var (
	assetNameRe   = regexp.MustCompile(`^aws_[a-zA-Z0-9_]+$`)
	serviceLineRe = regexp.MustCompile(`^##\s+(.+)$`)
	assetLinkRe   = regexp.MustCompile(`^- \[([^\]]+)\]\((https://registry\.terraform\.io[^)]+)\)`)
)

// readmeNames are the file names picked up by the README scan.
var readmeNames = []string{"README.md", "readme.md", "README.MD"}

// Document is one discovered source awaiting ingestion.
type Document struct {
	// Source is a URL or a local file path. It keys the document's log rows.
	Source  string
	Type    core.DocType
	Service string
	Name    string
}

// AssetURL builds the raw documentation URL of a provider asset.
func AssetURL(rawBase, name string, docType core.DocType) string {
	dir := "d"
	if docType == core.DocTypeResource {
		dir = "r"
	}
	return fmt.Sprintf("%s/%s/%s.html.markdown", strings.TrimRight(rawBase, "/"), dir, strings.TrimPrefix(name, "aws_"))
}

// ParseIndex reads a Markdown provider index. Service names come from "## "
// headings, asset kinds from "### Resources" and "### Data Sources", and
// assets from registry links below them. Invalid names and repeats of the
// same (name, type) pair are dropped.
func ParseIndex(r io.Reader, rawBase string, logger *slog.Logger) ([]Document, error) {
	if logger == nil {
		logger = slog.Default().With("component", "discovery")
	}
	type key struct {
		name    string
		docType core.DocType
	}
	var (
		docs    []Document
		seen    = make(map[key]struct{})
		current core.DocType
		service string
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")

		if m := serviceLineRe.FindStringSubmatch(line); m != nil {
			service = strings.TrimSpace(m[1])
			continue
		}
		switch {
		case strings.HasPrefix(line, "### Resources"):
			current = core.DocTypeResource
			continue
		case strings.HasPrefix(line, "### Data Sources"):
			current = core.DocTypeDataSource
			continue
		}

		m := assetLinkRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if !assetNameRe.MatchString(name) {
			logger.Warn("skipping invalid asset name", "name", name)
			continue
		}
		if current == "" {
			logger.Warn("skipping asset outside a resource or data source section", "name", name)
			continue
		}
		k := key{name: name, docType: current}
		if _, dup := seen[k]; dup {
			logger.Debug("skipping duplicate asset", "name", name, "type", current)
			continue
		}
		seen[k] = struct{}{}
		docs = append(docs, Document{
			Source:  AssetURL(rawBase, name, current),
			Type:    current,
			Service: service,
			Name:    name,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	return docs, nil
}

// LoadIndex parses the index file at path.
func LoadIndex(path, rawBase string, logger *slog.Logger) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIndex, err)
	}
	defer f.Close()
	return ParseIndex(f, rawBase, logger)
}

// Classify reports the document type implied by a file name: best-practice
// Markdown files and README files. PDF guides are not loadable and are not
// discovered.
func Classify(path string) (core.DocType, bool) {
	base := filepath.Base(path)
	if slices.Contains(readmeNames, base) {
		return core.DocTypeReadme, true
	}
	if strings.Contains(base, "best_practice") && filepath.Ext(base) == ".md" {
		return core.DocTypeBestPractice, true
	}
	return "", false
}

// ScanDirs finds best-practice documents directly inside each root and
// README files anywhere below it. Missing roots are an error.
func ScanDirs(roots []string) ([]Document, error) {
	var (
		docs []Document
		seen = make(map[string]struct{})
	)
	add := func(path string, docType core.DocType) {
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		docs = append(docs, Document{Source: path, Type: docType})
	}

	for _, root := range roots {
		matches, err := filepath.Glob(filepath.Join(root, "*best_practice*.md"))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			add(m, core.DocTypeBestPractice)
		}
	}

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if slices.Contains(readmeNames, d.Name()) {
				add(path, core.DocTypeReadme)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	return docs, nil
}

// Filter narrows discovered documents. Empty lists match everything.
type Filter struct {
	Types    []core.DocType
	Services []string
}

// Match reports whether doc passes the filter. Documents without a service
// pass any service filter.
func (f Filter) Match(doc Document) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, doc.Type) {
		return false
	}
	if len(f.Services) > 0 && doc.Service != "" {
		return slices.ContainsFunc(f.Services, func(s string) bool {
			return strings.EqualFold(s, doc.Service)
		})
	}
	return true
}

// Apply returns the documents that match, in input order.
func (f Filter) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if f.Match(d) {
			out = append(out, d)
		}
	}
	return out
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
