package cache

// ScopedKeyer wraps a Keyer with a prefix so several repositories can share
// one backend without their entries colliding.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), RepoScope("/src/lanegraph"))
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RepoScope returns a short key prefix identifying a repository path.
func RepoScope(path string) string {
	return "repo:" + Hash([]byte(path))[:16] + ":"
}

// DetailsKey generates a prefixed key for commit details.
func (k *ScopedKeyer) DetailsKey(hash string) string {
	return k.prefix + k.inner.DetailsKey(hash)
}

// ArtifactKey generates a prefixed key for rendered artifacts.
func (k *ScopedKeyer) ArtifactKey(graphHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(graphHash, opts)
}
