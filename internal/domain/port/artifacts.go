package port

// ArtifactStore owns job-scoped temporary files. Remove is idempotent:
// removing a path that is already gone succeeds silently.
type ArtifactStore interface {
	WorkDir(jobID string) (string, error)
	Remove(path string) error
	RemoveAll(dir string) error
}
