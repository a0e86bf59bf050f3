package tool

// FilesystemBackend performs the file operations agents reach through the
// built-in tools. Names are relative to the backend's root; a name that
// escapes it fails with domain.ErrPathOutsideSandbox.
type FilesystemBackend interface {
	// ReadFile returns the content of a file.
	ReadFile(name string) ([]byte, error)
	// WriteFile replaces a file, creating missing parent directories.
	WriteFile(name string, data []byte) error
	// ListDir returns entry names of a directory. Directories carry a
	// trailing slash.
	ListDir(name string) ([]string, error)
	// Root is the directory names resolve against.
	Root() string
	Name() string
}
