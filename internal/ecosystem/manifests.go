package ecosystem

import (
	"encoding/json"
	"encoding/xml"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// cargoWorkspaceMembers reads the `[workspace] members = [...]` table.
// Library: github.com/pelletier/go-toml/v2, promoted from an indirect
// (viper) dependency to a direct one since nothing else in the pack
// parses TOML better for this shape.
func cargoWorkspaceMembers(data []byte) ([]string, error) {
	var doc struct {
		Workspace *struct {
			Members []string `toml:"members"`
		} `toml:"workspace"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Workspace == nil {
		return nil, nil
	}
	return doc.Workspace.Members, nil
}

// npmWorkspaceMembers reads package.json's `workspaces` field, which
// may be a bare array or `{ "packages": [...] }`.
func npmWorkspaceMembers(data []byte) ([]string, error) {
	var doc struct {
		Workspaces json.RawMessage `json:"workspaces"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Workspaces) == 0 {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(doc.Workspaces, &list); err == nil {
		return list, nil
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(doc.Workspaces, &obj); err != nil {
		return nil, err
	}
	return obj.Packages, nil
}

// pnpmWorkspaceMembers reads `packages:` from pnpm-workspace.yaml.
// Library: gopkg.in/yaml.v3, promoted from an indirect (viper)
// dependency.
func pnpmWorkspaceMembers(data []byte) ([]string, error) {
	var doc struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Packages, nil
}

// lernaWorkspaceMembers reads `packages:` from lerna.json.
func lernaWorkspaceMembers(data []byte) ([]string, error) {
	var doc struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Packages) == 0 {
		return []string{"packages/*"}, nil
	}
	return doc.Packages, nil
}

// goWorkMembers parses `use` directives out of a go.work file. This is
// a lexical scan rather than a full go.work parser, consistent with
// spec §4.E's "lexical, not semantic" guidance applied here to manifest
// parsing as well.
func goWorkMembers(data []byte) ([]string, error) {
	var members []string
	lines := strings.Split(string(data), "\n")
	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "use ("):
			inBlock = true
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock:
			members = append(members, strings.Trim(trimmed, `"`))
		case strings.HasPrefix(trimmed, "use "):
			members = append(members, strings.Trim(strings.TrimSpace(strings.TrimPrefix(trimmed, "use ")), `"`))
		}
	}
	return members, nil
}

// mavenModules parses <modules><module>...</module></modules> from a
// pom.xml. Stdlib encoding/xml — no pack library offers a better fit
// for this narrow extraction and pulling in a full Maven POM model
// would be disproportionate to the one field needed here.
func mavenModules(data []byte) ([]string, error) {
	var doc struct {
		Modules struct {
			Module []string `xml:"module"`
		} `xml:"modules"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Modules.Module, nil
}
