package vcs

// Fake is an in-memory Adapter for tests, so the core's test suite
// never needs a real git repository on disk.
type Fake struct {
	Changed    map[string][]string // key: fromRev+"\x00"+toRev
	Head       string
	Dirty      bool
	Untracked  []string
	DefaultKey string // used when (fromRev, toRev) isn't found verbatim
}

var _ Adapter = (*Fake)(nil)

// NewFake constructs an empty Fake adapter.
func NewFake() *Fake {
	return &Fake{Changed: map[string][]string{}}
}

func key(from, to string) string { return from + "\x00" + to }

// SetChangedFiles registers the changed-file list for a given
// (fromRev, toRev) pair.
func (f *Fake) SetChangedFiles(fromRev, toRev string, files []string) {
	f.Changed[key(fromRev, toRev)] = files
}

func (f *Fake) ChangedFiles(fromRev, toRev string) ([]string, error) {
	if files, ok := f.Changed[key(fromRev, toRev)]; ok {
		return files, nil
	}
	return f.Changed[f.DefaultKey], nil
}

func (f *Fake) CurrentHead() (string, error) { return f.Head, nil }
func (f *Fake) IsDirty() (bool, error)        { return f.Dirty, nil }
func (f *Fake) UntrackedFiles() ([]string, error) {
	return f.Untracked, nil
}
