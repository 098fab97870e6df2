package coordinate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Artifact{GroupID: "org.slf4j", ArtifactID: "slf4j-api", Version: "1.7.36"}
	assert.Equal(t, "org.slf4j:slf4j-api:1.7.36", a.Key())

	a.Classifier = "sources"
	assert.Equal(t, "org.slf4j:slf4j-api:1.7.36:sources", a.Key())
}

func TestKey_DistinguishesClassifier(t *testing.T) {
	plain := Artifact{GroupID: "g", ArtifactID: "a", Version: "1.0"}
	withTests := plain
	withTests.Classifier = "tests"
	assert.NotEqual(t, plain.Key(), withTests.Key())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		coords string
		want   Artifact
	}{
		{"gav", "junit:junit:4.13.2", Artifact{GroupID: "junit", ArtifactID: "junit", Version: "4.13.2"}},
		{"with extension", "org.example:lib:pom:2.0", Artifact{GroupID: "org.example", ArtifactID: "lib", Extension: "pom", Version: "2.0"}},
		{"with classifier", "org.example:lib:jar:tests:2.0", Artifact{GroupID: "org.example", ArtifactID: "lib", Extension: "jar", Classifier: "tests", Version: "2.0"}},
		{"empty classifier", "org.example:lib:jar::2.0", Artifact{GroupID: "org.example", ArtifactID: "lib", Extension: "jar", Version: "2.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.coords)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, coords := range []string{"", "junit", "junit:junit", ":a:1.0", "g:a:", "a:b:c:d:e:f"} {
		_, err := Parse(coords)
		assert.Error(t, err, coords)
	}
}

func TestString_RoundTripsThroughParse(t *testing.T) {
	a := Artifact{GroupID: "g", ArtifactID: "a", Version: "1.0", Classifier: "native", Extension: "zip"}
	got, err := Parse(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestPackaging(t *testing.T) {
	assert.Equal(t, "JAR", Artifact{}.Packaging())
	assert.Equal(t, "POM", Artifact{Extension: "pom"}.Packaging())
	assert.Equal(t, "JAR", Artifact{Extension: "bundle"}.Packaging())
	assert.Equal(t, "OTHER", Artifact{Extension: "tar.gz"}.Packaging())
}

func TestRepositoryPath(t *testing.T) {
	a := Artifact{GroupID: "org.apache.commons", ArtifactID: "commons-lang3", Version: "3.12.0"}
	assert.Equal(t, "org/apache/commons/commons-lang3/3.12.0/commons-lang3-3.12.0.jar", a.RepositoryPath())

	a.Classifier = "javadoc"
	assert.Equal(t, "org/apache/commons/commons-lang3/3.12.0/commons-lang3-3.12.0-javadoc.jar", a.RepositoryPath())
}
