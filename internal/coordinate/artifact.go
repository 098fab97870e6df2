package coordinate

import (
	"fmt"
	"strings"
)

// Artifact identifies one resolved Maven artifact
type Artifact struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
	Extension  string
}

// Key returns the canonical coordinate key used as node identity:
// group:artifact:version, with :classifier appended when present
func (a Artifact) Key() string {
	key := a.GroupID + ":" + a.ArtifactID + ":" + a.Version
	if a.Classifier != "" {
		key += ":" + a.Classifier
	}
	return key
}

// String renders the artifact in g:a:ext[:cls]:v form (accepted by Parse)
func (a Artifact) String() string {
	parts := []string{a.GroupID, a.ArtifactID, a.extension()}
	if a.Classifier != "" {
		parts = append(parts, a.Classifier)
	}
	parts = append(parts, a.Version)
	return strings.Join(parts, ":")
}

func (a Artifact) extension() string {
	if a.Extension == "" {
		return "jar"
	}
	return a.Extension
}

// Validate checks that all identity fields are present
func (a Artifact) Validate() error {
	if a.GroupID == "" {
		return fmt.Errorf("missing group id in %q", a.String())
	}
	if a.ArtifactID == "" {
		return fmt.Errorf("missing artifact id in %q", a.String())
	}
	if a.Version == "" {
		return fmt.Errorf("missing version in %q", a.String())
	}
	return nil
}

// Parse reads g:a:v, g:a:ext:v or g:a:ext:cls:v coordinates
func Parse(coords string) (Artifact, error) {
	parts := strings.Split(strings.TrimSpace(coords), ":")
	for i, p := range parts {
		if p == "" && !(len(parts) == 5 && i == 3) {
			return Artifact{}, fmt.Errorf("invalid coordinates %q: empty segment", coords)
		}
	}

	var a Artifact
	switch len(parts) {
	case 3:
		a = Artifact{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}
	case 4:
		a = Artifact{GroupID: parts[0], ArtifactID: parts[1], Extension: parts[2], Version: parts[3]}
	case 5:
		a = Artifact{GroupID: parts[0], ArtifactID: parts[1], Extension: parts[2], Classifier: parts[3], Version: parts[4]}
	default:
		return Artifact{}, fmt.Errorf("invalid coordinates %q: expected g:a[:ext[:cls]]:v", coords)
	}

	if err := a.Validate(); err != nil {
		return Artifact{}, fmt.Errorf("invalid coordinates %q: %w", coords, err)
	}
	return a, nil
}

// Packaging derives the packaging type from the artifact extension
func (a Artifact) Packaging() string {
	switch ext := strings.ToLower(a.extension()); ext {
	case "jar", "pom", "war", "ear", "aar", "rar", "zip":
		return strings.ToUpper(ext)
	case "bundle", "maven-plugin":
		return "JAR"
	default:
		return "OTHER"
	}
}

// RepositoryPath returns the artifact file path in the Maven2 repository
// layout, e.g. org/slf4j/slf4j-api/1.7.36/slf4j-api-1.7.36.jar
func (a Artifact) RepositoryPath() string {
	file := a.ArtifactID + "-" + a.Version
	if a.Classifier != "" {
		file += "-" + a.Classifier
	}
	file += "." + a.extension()

	return strings.Join([]string{
		strings.ReplaceAll(a.GroupID, ".", "/"),
		a.ArtifactID,
		a.Version,
		file,
	}, "/")
}
